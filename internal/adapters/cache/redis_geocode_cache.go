package cache

import (
	"context"
	"delivery-schedule-bot/internal/domain"
	"delivery-schedule-bot/internal/platform/obs"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "geocode:"

type redisEntry struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RedisGeocodeCache stores address -> coordinate mappings as JSON values,
// one key per qualified address, expiring after TTL (0 keeps them forever).
type RedisGeocodeCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGeocodeCache(rdb *redis.Client, ttl time.Duration) *RedisGeocodeCache {
	return &RedisGeocodeCache{rdb: rdb, ttl: ttl}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// Fetch cached coordinates for the given addresses.
// Entries that fail to decode are treated as misses.
func (c *RedisGeocodeCache) GetMany(
	ctx context.Context,
	addresses []string,
) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, "geocode.redis.GetMany")(&err)

	if c.rdb == nil {
		return nil, errors.New("geocode cache: redis client is nil")
	}

	uniq := uniqueKeys(addresses)
	if len(uniq) == 0 {
		return map[string]domain.Coordinates{}, nil
	}

	keys := make([]string, 0, len(uniq))
	for _, a := range uniq {
		keys = append(keys, redisKeyPrefix+a)
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get geocode cache: mget: %w", err)
	}

	out := make(map[string]domain.Coordinates, len(uniq))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}

		var e redisEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			log.Printf("geocode cache: drop undecodable entry key=%q err=%v", keys[i], err)
			continue
		}
		out[uniq[i]] = domain.Coordinates{Lat: e.Lat, Lng: e.Lng}
	}

	return out, nil
}

// Store address -> coordinate mappings in the cache.
func (c *RedisGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) error {
	if c.rdb == nil {
		return errors.New("geocode cache: redis client is nil")
	}

	if len(results) == 0 {
		return nil
	}

	pipe := c.rdb.TxPipeline()
	for addr, coords := range results {
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("insert geocode cache: empty address key")
		}

		b, err := json.Marshal(redisEntry{Lat: coords.Lat, Lng: coords.Lng})
		if err != nil {
			return fmt.Errorf("insert geocode cache addr=%q: encode: %w", addr, err)
		}
		pipe.Set(ctx, redisKeyPrefix+addr, b, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert geocode cache: exec pipeline: %w", err)
	}

	return nil
}

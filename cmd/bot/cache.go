package main

import (
	"context"
	"database/sql"
	"delivery-schedule-bot/internal/adapters/cache"
	"delivery-schedule-bot/internal/adapters/repositories"
	"delivery-schedule-bot/internal/config"
	"delivery-schedule-bot/internal/platform/db"
	"delivery-schedule-bot/internal/ports"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// openGeocodeCache builds the configured cache backend and returns a close
// func. The "none" backend yields a nil cache.
func openGeocodeCache(ctx context.Context, cfg *config.Config) (ports.GeocodeCache, func(), error) {
	noop := func() {}

	var (
		gc      ports.GeocodeCache
		closeFn = noop
	)

	switch cfg.CacheBackend() {
	case config.CacheNone:
		return nil, noop, nil

	case config.CacheSqlite:
		sqliteDB, err := openSqlite(cfg.DBPath)
		if err != nil {
			return nil, noop, err
		}
		if err := repositories.InitSqliteSchema(sqliteDB); err != nil {
			sqliteDB.Close()
			return nil, noop, err
		}
		gc = cache.NewSqliteGeocodeCache(sqliteDB)
		closeFn = func() { sqliteDB.Close() }

	case config.CachePostgres:
		pg, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{})
		if err != nil {
			return nil, noop, err
		}
		if err := repositories.InitPostgresSchema(pg); err != nil {
			pg.Close()
			return nil, noop, err
		}
		gc = cache.NewSQLGeocodeCache(pg)
		closeFn = func() { pg.Close() }

	case config.CacheRedis:
		rdb, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, noop, fmt.Errorf("open redis cache: ping: %w", err)
		}
		gc = cache.NewRedisGeocodeCache(rdb, cfg.GeocodeCacheTTL)
		closeFn = func() { rdb.Close() }

	default:
		return nil, noop, fmt.Errorf("unknown geocode cache backend %q", cfg.GeocodeCache)
	}

	// Warm the cache with known coordinates for local runs.
	if seedPath := strings.TrimSpace(cfg.SeedPath); seedPath != "" {
		n, err := repositories.SeedGeocodeCacheFromJSON(ctx, gc, seedPath)
		if err != nil {
			closeFn()
			return nil, noop, err
		}
		log.Printf("Geocode cache seeded entries=%d path=%s", n, seedPath)
	}

	return gc, closeFn, nil
}

func openSqlite(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("openSqlite: create directory %q: %w", dir, err)
		}
	}

	sqliteDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("openSqlite: open sqlite database %q: %w", dbPath, err)
	}

	// A single connection avoids SQLITE_BUSY between concurrent chats.
	sqliteDB.SetMaxOpenConns(1)

	if err := sqliteDB.Ping(); err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("openSqlite: verify sqlite connection to %q: %w", dbPath, err)
	}

	return sqliteDB, nil
}

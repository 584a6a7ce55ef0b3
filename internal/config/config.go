package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Get returns the environment value for key, or fallback when unset or empty.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Geocode cache backends.
const (
	CacheNone     = "none"
	CacheSqlite   = "sqlite"
	CachePostgres = "postgres"
	CacheRedis    = "redis"
)

// Config holds the bot's runtime settings. Values come from Defaults, then
// an optional YAML file, then the environment.
type Config struct {
	TelegramToken   string        `yaml:"telegram_bot_token"`
	TelegramBaseURL string        `yaml:"telegram_base_url"`
	PollTimeout     time.Duration `yaml:"telegram_poll_timeout"`

	GoogleMapsKey  string        `yaml:"google_maps_api_key"`
	MapsRateLimit  float64       `yaml:"maps_rate_limit"`
	RoutesTimeout  time.Duration `yaml:"routes_timeout"`
	GeocodeTimeout time.Duration `yaml:"geocode_timeout"`

	AnthropicKey   string        `yaml:"anthropic_api_key"`
	AnthropicModel string        `yaml:"anthropic_model"`
	OCRTimeout     time.Duration `yaml:"ocr_timeout"`

	GeocodeCache    string        `yaml:"geocode_cache"`
	GeocodeCacheTTL time.Duration `yaml:"geocode_cache_ttl"`
	DBPath          string        `yaml:"db_path"`
	DatabaseURL     string        `yaml:"database_url"`
	RedisURL        string        `yaml:"redis_url"`
	SeedPath        string        `yaml:"seed_path"`

	HTTPAddr string `yaml:"http_addr"`
}

func Defaults() *Config {
	return &Config{
		TelegramBaseURL: "https://api.telegram.org",
		PollTimeout:     30 * time.Second,
		MapsRateLimit:   10,
		RoutesTimeout:   20 * time.Second,
		GeocodeTimeout:  10 * time.Second,
		OCRTimeout:      60 * time.Second,
		GeocodeCache:    CacheNone,
		GeocodeCacheTTL: 30 * 24 * time.Hour,
		DBPath:          "data/geocode.db",
		HTTPAddr:        ":8080",
	}
}

// Load builds the configuration. A missing file at path is not an error;
// an empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("load config: parse %q: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("load config: read %q: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.TelegramToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.TelegramBaseURL, "TELEGRAM_BASE_URL")
	setString(&c.GoogleMapsKey, "GOOGLE_MAPS_API_KEY")
	setString(&c.AnthropicKey, "ANTHROPIC_API_KEY")
	setString(&c.AnthropicModel, "ANTHROPIC_MODEL")
	setString(&c.GeocodeCache, "GEOCODE_CACHE")
	setString(&c.DBPath, "DB_PATH")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.SeedPath, "SEED_PATH")
	setString(&c.HTTPAddr, "HTTP_ADDR")

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"TELEGRAM_POLL_TIMEOUT", &c.PollTimeout},
		{"ROUTES_TIMEOUT", &c.RoutesTimeout},
		{"GEOCODE_TIMEOUT", &c.GeocodeTimeout},
		{"OCR_TIMEOUT", &c.OCRTimeout},
		{"GEOCODE_CACHE_TTL", &c.GeocodeCacheTTL},
	}
	for _, d := range durations {
		v := strings.TrimSpace(os.Getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v := strings.TrimSpace(os.Getenv("MAPS_RATE_LIMIT")); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MAPS_RATE_LIMIT: %w", err)
		}
		c.MapsRateLimit = rps
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate reports missing credentials and inconsistent cache settings.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.TelegramToken) == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if strings.TrimSpace(c.GoogleMapsKey) == "" {
		errs = append(errs, errors.New("GOOGLE_MAPS_API_KEY is required"))
	}

	switch strings.ToLower(strings.TrimSpace(c.GeocodeCache)) {
	case "", CacheNone:
	case CacheSqlite:
		if strings.TrimSpace(c.DBPath) == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite geocode cache"))
		}
	case CachePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres geocode cache"))
		}
	case CacheRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis geocode cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown GEOCODE_CACHE %q (want none, sqlite, postgres or redis)", c.GeocodeCache))
	}

	return errors.Join(errs...)
}

// CacheBackend returns the normalized geocode cache backend name.
func (c *Config) CacheBackend() string {
	b := strings.ToLower(strings.TrimSpace(c.GeocodeCache))
	if b == "" {
		return CacheNone
	}
	return b
}

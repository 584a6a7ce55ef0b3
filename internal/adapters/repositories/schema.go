package repositories

import (
	"context"
	"database/sql"
	"delivery-schedule-bot/internal/domain"
	"delivery-schedule-bot/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Initialize the SQLite geocode cache schema.
func InitSqliteSchema(db *sql.DB) error {
	return initSchema(db, `
	CREATE TABLE IF NOT EXISTS geocode_cache (
        address TEXT PRIMARY KEY,
        lat REAL NOT NULL,
        lng REAL NOT NULL,
        updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
    );
	`)
}

// Initialize the Postgres geocode cache schema.
func InitPostgresSchema(db *sql.DB) error {
	return initSchema(db, `
	CREATE TABLE IF NOT EXISTS geocode_cache (
        address TEXT PRIMARY KEY,
        lat DOUBLE PRECISION NOT NULL,
        lng DOUBLE PRECISION NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );
	`)
}

func initSchema(db *sql.DB, statements ...string) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type GeocodeSeed struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Warm a geocode cache with known coordinates from a JSON file.
// Addresses are stored under their qualified form, matching live lookups.
func SeedGeocodeCacheFromJSON(ctx context.Context, cache ports.GeocodeCache, jsonPath string) (int, error) {
	if cache == nil {
		return 0, errors.New("seed geocode cache: cache is nil")
	}

	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("seed geocode cache: read %q: %w", jsonPath, err)
	}

	var data []GeocodeSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return 0, fmt.Errorf("seed geocode cache: parse json: %w", err)
	}

	rows := make(map[string]domain.Coordinates, len(data))
	for i, item := range data {
		addr := domain.Qualify(strings.TrimSpace(item.Address))
		if addr == "" {
			return 0, fmt.Errorf("seed geocode cache: item at index %d: address cannot be empty", i+1)
		}

		c := domain.Coordinates{Lat: item.Lat, Lng: item.Lng}
		if !c.Valid() {
			return 0, fmt.Errorf("seed geocode cache: item at index %d: invalid coordinates (%f, %f)", i+1, item.Lat, item.Lng)
		}
		rows[addr] = c
	}

	if err := cache.PutMany(ctx, rows); err != nil {
		return 0, fmt.Errorf("seed geocode cache: %w", err)
	}

	return len(rows), nil
}

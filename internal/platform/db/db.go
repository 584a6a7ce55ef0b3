package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PoolConfig bounds the Postgres connection pool. Zero fields fall back to
// sizes suited to a geocode cache shared by a few bot replicas.
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

func (p PoolConfig) withDefaults() PoolConfig {
	if p.MaxOpen <= 0 {
		p.MaxOpen = 5
	}
	if p.MaxIdle <= 0 || p.MaxIdle > p.MaxOpen {
		p.MaxIdle = p.MaxOpen
	}
	if p.MaxLifetime <= 0 {
		p.MaxLifetime = 30 * time.Minute
	}
	return p
}

// Open connects to Postgres through the pgx stdlib driver, which the caller
// must register with a blank import.
func Open(ctx context.Context, databaseURL string, pool PoolConfig) (*sql.DB, error) {
	pool = pool.withDefaults()

	pg, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pg.SetMaxOpenConns(pool.MaxOpen)
	pg.SetMaxIdleConns(pool.MaxIdle)
	pg.SetConnMaxLifetime(pool.MaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pg.PingContext(pingCtx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("open postgres: verify connection: %w", err)
	}

	return pg, nil
}

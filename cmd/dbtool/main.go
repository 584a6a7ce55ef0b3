package main

import (
	"context"
	"database/sql"
	"delivery-schedule-bot/internal/adapters/cache"
	"delivery-schedule-bot/internal/adapters/repositories"
	"delivery-schedule-bot/internal/config"
	"delivery-schedule-bot/internal/platform/db"
	"log"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

// dbtool prepares the shared Postgres geocode cache: it creates the schema
// and warms the cache with known coordinates.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	pg, err := db.Open(ctx, databaseURL, db.PoolConfig{MaxOpen: 2})
	if err != nil {
		log.Fatal(err)
	}
	defer pg.Close()

	seedPath := config.Get("SEED_PATH", "data/seeds/geocodes.json")
	if err := initAndSeed(ctx, pg, seedPath); err != nil {
		log.Fatal(err)
	}
}

func initAndSeed(ctx context.Context, pg *sql.DB, seedPath string) error {
	log.Println("Initializing geocode cache schema...")
	if err := repositories.InitPostgresSchema(pg); err != nil {
		return err
	}
	log.Println("Schema ready.")

	log.Println("Seeding geocode cache...")
	n, err := repositories.SeedGeocodeCacheFromJSON(ctx, cache.NewSQLGeocodeCache(pg), seedPath)
	if err != nil {
		return err
	}
	log.Printf("Seeding complete. entries=%d", n)

	return nil
}

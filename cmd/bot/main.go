package main

import (
	"context"
	"delivery-schedule-bot/internal/adapters/ocr"
	"delivery-schedule-bot/internal/adapters/repositories"
	"delivery-schedule-bot/internal/adapters/routing"
	"delivery-schedule-bot/internal/adapters/telegram"
	"delivery-schedule-bot/internal/api"
	"delivery-schedule-bot/internal/config"
	"delivery-schedule-bot/internal/platform/metrics"
	"delivery-schedule-bot/internal/ports"
	"delivery-schedule-bot/internal/services"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

// main is the application composition root.
// It wires the Telegram transport, Google Maps, OCR and the geocode cache
// behind ports, starts the ops HTTP server, and polls for chat updates.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := config.Load(config.Get("CONFIG_FILE", "config.yaml"))
	if err != nil {
		log.Fatal(err)
	}

	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	geocodeCache, closeCache, err := openGeocodeCache(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeCache()

	maps, err := routing.NewGoogleMapsProvider(cfg.GoogleMapsKey, cfg.MapsRateLimit)
	if err != nil {
		log.Fatal(err)
	}

	// Without an API key photos are answered with a request to type addresses.
	var extractor ports.AddressExtractor
	if cfg.AnthropicKey != "" {
		e, err := ocr.NewAnthropicExtractor(cfg.AnthropicKey, cfg.AnthropicModel)
		if err != nil {
			log.Fatal(err)
		}
		extractor = e
	} else {
		log.Println("ANTHROPIC_API_KEY not set; photo address extraction disabled")
	}

	bot, err := telegram.NewClient(nil, cfg.TelegramBaseURL, cfg.TelegramToken)
	if err != nil {
		log.Fatal(err)
	}

	registry := repositories.NewMemorySessionRegistry()
	locator := services.NewGeocodingClient(maps, geocodeCache, cfg.GeocodeTimeout)
	scheduler := services.NewScheduler(
		registry,
		services.NewRouteOptimizer(maps, cfg.RoutesTimeout),
		services.NewNavigator(registry, locator, bot),
		extractor,
		bot,
		services.SchedulerConfig{OCRTimeout: cfg.OCRTimeout},
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(registry),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.Printf("Ops server listening addr=%s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ops server: %v", err)
		}
	}()

	log.Printf(
		"Bot polling poll_timeout=%s geocode_cache=%s ocr=%t",
		cfg.PollTimeout, cfg.CacheBackend(), extractor != nil,
	)
	poller := telegram.NewPoller(bot, scheduler, cfg.PollTimeout)
	if err := poller.Run(ctx); err != nil {
		log.Printf("poller stopped err=%v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ops server shutdown err=%v", err)
	}
	log.Println("Bot stopped")
}

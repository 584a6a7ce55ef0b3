package api

import (
	"delivery-schedule-bot/internal/api/handlers"
	"delivery-schedule-bot/internal/platform/metrics"
	"delivery-schedule-bot/internal/ports"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the operations endpoints: liveness, session inspection,
// and Prometheus metrics.
func NewRouter(registry ports.SessionRegistry) http.Handler {
	mux := http.NewServeMux()

	healthHandler := &handlers.HealthHandler{Registry: registry}
	sessionHandler := &handlers.SessionHandler{Registry: registry}

	mux.HandleFunc("/health", healthHandler.Health)
	mux.HandleFunc("/sessions", sessionHandler.Stats)
	mux.HandleFunc("/sessions/{chat_id}", sessionHandler.Session)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return loggingMiddleware(mux)
}

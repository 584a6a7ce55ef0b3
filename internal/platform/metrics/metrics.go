package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the bot.
	Registry = prometheus.NewRegistry()

	// ChatEvents counts inbound chat events by kind and outcome
	// (applied, rejected, no_session, discarded, error).
	ChatEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chat_events_total", Help: "Inbound chat events by kind and outcome."},
		[]string{"kind", "outcome"},
	)

	// ActiveSessions tracks schedule sessions currently held by the registry.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "schedule_sessions_active", Help: "Active schedule sessions."},
	)

	// Optimizations counts itinerary computations by result (optimized, fallback, skipped).
	Optimizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "itinerary_optimizations_total", Help: "Itinerary optimizations by result."},
		[]string{"result"},
	)

	// Geocodes counts stop lookups by result (cache_hit, resolved, not_found, error).
	Geocodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "geocode_lookups_total", Help: "Geocode lookups by result."},
		[]string{"result"},
	)

	// ProviderLatency records external call durations in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "provider_call_duration_seconds", Help: "External provider call duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"provider", "op"},
	)

	// HTTPRequests counts ops endpoint requests by method, path, and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers collectors to Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(ChatEvents)
		Registry.MustRegister(ActiveSessions)
		Registry.MustRegister(Optimizations)
		Registry.MustRegister(Geocodes)
		Registry.MustRegister(ProviderLatency)
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

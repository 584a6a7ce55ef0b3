package handlers

import (
	"delivery-schedule-bot/internal/api/dto"
	"delivery-schedule-bot/internal/ports"
	"log"
	"net/http"
)

// HealthHandler reports liveness along with the number of active schedules.
type HealthHandler struct {
	Registry ports.SessionRegistry
}

// Health answers 200 while the session registry is readable and 503 otherwise.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodGet) {
		return
	}

	stats, err := h.Registry.Stats(r.Context())
	if err != nil {
		log.Printf("health check: session registry unavailable err=%v", err)
		writeJSON(w, r, http.StatusServiceUnavailable, dto.HealthResponse{Status: "degraded"})
		return
	}

	res := dto.HealthResponse{Status: "ok"}
	for _, n := range stats {
		res.ActiveSessions += n
	}
	writeJSON(w, r, http.StatusOK, res)
}

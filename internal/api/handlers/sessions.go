package handlers

import (
	"delivery-schedule-bot/internal/api/dto"
	"delivery-schedule-bot/internal/domain"
	"delivery-schedule-bot/internal/ports"
	"errors"
	"log"
	"net/http"
)

// SessionHandler exposes the session registry to operators.
type SessionHandler struct {
	Registry ports.SessionRegistry
}

// Stats reports how many schedules are active, broken down by state.
func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodGet) {
		return
	}

	stats, err := h.Registry.Stats(r.Context())
	if err != nil {
		log.Printf("session stats failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := dto.SessionStatsResponse{ByState: make(map[string]int, len(domain.AllStates()))}
	for _, st := range domain.AllStates() {
		res.ByState[st.String()] = stats[st]
		res.Total += stats[st]
	}

	writeJSON(w, r, http.StatusOK, res)
}

// Session returns one chat's session (GET) or ends it (DELETE).
func (h *SessionHandler) Session(w http.ResponseWriter, r *http.Request) {
	chatID, err := chatIDParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		s, err := h.Registry.Get(r.Context(), chatID)
		if errors.Is(err, ports.ErrNoSession) {
			writeError(w, r, http.StatusNotFound, "no active schedule")
			return
		}
		if err != nil {
			log.Printf("get session failed: chat_id=%d err=%v", chatID, err)
			writeError(w, r, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, r, http.StatusOK, toSessionResponse(s))

	case http.MethodDelete:
		existed, err := h.Registry.Delete(r.Context(), chatID)
		if err != nil {
			log.Printf("delete session failed: chat_id=%d err=%v", chatID, err)
			writeError(w, r, http.StatusInternalServerError, "internal server error")
			return
		}
		if !existed {
			writeError(w, r, http.StatusNotFound, "no active schedule")
			return
		}
		log.Printf("session removed by operator chat_id=%d", chatID)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, DELETE")
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func toSessionResponse(s *domain.ScheduleSession) dto.SessionResponse {
	res := dto.SessionResponse{
		SessionID:        s.ID,
		ChatID:           s.ChatID,
		State:            s.State.String(),
		StartLocation:    s.StartLocation,
		EndLocation:      s.EndLocation,
		CollectedStops:   append([]string{}, s.CollectedStops...),
		Itinerary:        append([]string{}, s.Itinerary...),
		CurrentStopIndex: s.CurrentStopIndex,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	return res
}

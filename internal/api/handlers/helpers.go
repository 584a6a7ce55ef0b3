package handlers

import (
	"delivery-schedule-bot/internal/api/dto"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response failed method=%s path=%s status=%d err=%v", r.Method, r.URL.Path, status, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, dto.ErrorResponse{Error: msg})
}

// allowOnly rejects any method other than the listed ones.
func allowOnly(w http.ResponseWriter, r *http.Request, allowed string) bool {
	if r.Method == allowed {
		return true
	}
	w.Header().Set("Allow", allowed)
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// chatIDParam parses the {chat_id} path value. Telegram chat ids may be
// negative for groups.
func chatIDParam(r *http.Request) (int64, error) {
	raw := r.PathValue("chat_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("chat_id %q must be an integer", raw)
	}
	return id, nil
}

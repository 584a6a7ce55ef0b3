package dto

import "time"

type SessionStatsResponse struct {
	Total   int            `json:"total"`
	ByState map[string]int `json:"by_state"`
}

type SessionResponse struct {
	SessionID        string    `json:"session_id"`
	ChatID           int64     `json:"chat_id"`
	State            string    `json:"state"`
	StartLocation    string    `json:"start_location,omitempty"`
	EndLocation      string    `json:"end_location,omitempty"`
	CollectedStops   []string  `json:"collected_stops"`
	Itinerary        []string  `json:"itinerary"`
	CurrentStopIndex int       `json:"current_stop_index"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

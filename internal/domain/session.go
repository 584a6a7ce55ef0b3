package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Position of a chat in the scheduling workflow.
type State int

const (
	StateAwaitingStart State = iota
	StateAwaitingEnd
	StateCollectingStops
	StateItineraryReady
	StateTripInProgress
)

var stateNames = map[State]string{
	StateAwaitingStart:   "awaiting_start",
	StateAwaitingEnd:     "awaiting_end",
	StateCollectingStops: "collecting_stops",
	StateItineraryReady:  "itinerary_ready",
	StateTripInProgress:  "trip_in_progress",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// AllStates lists every workflow state in progression order.
func AllStates() []State {
	return []State{
		StateAwaitingStart,
		StateAwaitingEnd,
		StateCollectingStops,
		StateItineraryReady,
		StateTripInProgress,
	}
}

// validTransitions defines the forward-only state progression.
// Leaving TripInProgress happens by destroying the session, not by a transition.
var validTransitions = map[State][]State{
	StateAwaitingStart:   {StateAwaitingEnd},
	StateAwaitingEnd:     {StateCollectingStops},
	StateCollectingStops: {StateItineraryReady},
	StateItineraryReady:  {StateTripInProgress},
	StateTripInProgress:  {},
}

// IsValidTransition reports whether a session may move from one state to another.
func IsValidTransition(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

var (
	ErrWrongState          = errors.New("operation not valid in current state")
	ErrItineraryIncomplete = errors.New("itinerary is empty or incomplete")
)

// Schedule workflow record for a single chat.
//
// CollectedStops keeps the order addresses were supplied. Itinerary is empty
// until computed and is never modified afterwards; it always starts with
// StartLocation and ends with EndLocation.
type ScheduleSession struct {
	ID               string
	ChatID           int64
	State            State
	StartLocation    string
	EndLocation      string
	CollectedStops   []string
	Itinerary        []string
	CurrentStopIndex int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewScheduleSession(chatID int64, now time.Time) *ScheduleSession {
	return &ScheduleSession{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		State:     StateAwaitingStart,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers can read a session outside the registry lock.
func (s *ScheduleSession) Clone() *ScheduleSession {
	if s == nil {
		return nil
	}
	c := *s
	c.CollectedStops = append([]string(nil), s.CollectedStops...)
	c.Itinerary = append([]string(nil), s.Itinerary...)
	return &c
}

func (s *ScheduleSession) transition(to State) error {
	if !IsValidTransition(s.State, to) {
		return fmt.Errorf("transition %s -> %s: %w", s.State, to, ErrWrongState)
	}
	s.State = to
	return nil
}

// Record the start location and wait for the end location.
func (s *ScheduleSession) SetStart(location string) error {
	location = strings.TrimSpace(location)
	if location == "" {
		return errors.New("set start: location must be non-empty")
	}
	if err := s.transition(StateAwaitingEnd); err != nil {
		return fmt.Errorf("set start: %w", err)
	}
	s.StartLocation = location
	return nil
}

// Record the end location and begin collecting stops.
func (s *ScheduleSession) SetEnd(location string) error {
	location = strings.TrimSpace(location)
	if location == "" {
		return errors.New("set end: location must be non-empty")
	}
	if err := s.transition(StateCollectingStops); err != nil {
		return fmt.Errorf("set end: %w", err)
	}
	s.EndLocation = location
	return nil
}

// Append stops in the order given. Blank addresses are skipped; the number
// of stops actually added is returned.
func (s *ScheduleSession) AddStops(addresses ...string) (int, error) {
	if s.State != StateCollectingStops {
		return 0, fmt.Errorf("add stops in %s: %w", s.State, ErrWrongState)
	}

	added := 0
	for _, a := range addresses {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		s.CollectedStops = append(s.CollectedStops, a)
		added++
	}
	return added, nil
}

// Store the computed itinerary and mark the schedule ready to start.
func (s *ScheduleSession) SetItinerary(itinerary []string) error {
	if s.State != StateCollectingStops {
		return fmt.Errorf("set itinerary in %s: %w", s.State, ErrWrongState)
	}
	if len(s.CollectedStops) == 0 {
		return errors.New("set itinerary: no collected stops")
	}
	if len(itinerary) != len(s.CollectedStops)+2 {
		return fmt.Errorf(
			"set itinerary: got %d entries, want %d",
			len(itinerary), len(s.CollectedStops)+2,
		)
	}
	if itinerary[0] != s.StartLocation || itinerary[len(itinerary)-1] != s.EndLocation {
		return errors.New("set itinerary: itinerary must begin at the start and finish at the end location")
	}

	if err := s.transition(StateItineraryReady); err != nil {
		return fmt.Errorf("set itinerary: %w", err)
	}
	s.Itinerary = append([]string(nil), itinerary...)
	return nil
}

// Begin the trip at the first stop after the start location and return it.
func (s *ScheduleSession) StartTrip() (string, error) {
	if s.State != StateItineraryReady {
		return "", fmt.Errorf("start trip in %s: %w", s.State, ErrWrongState)
	}
	if len(s.Itinerary) < 2 {
		return "", fmt.Errorf("start trip: %w", ErrItineraryIncomplete)
	}
	if err := s.transition(StateTripInProgress); err != nil {
		return "", fmt.Errorf("start trip: %w", err)
	}

	// Index 0 is the start location, where the traveller already is.
	s.CurrentStopIndex = 1
	return s.Itinerary[s.CurrentStopIndex], nil
}

// Move to the next stop. done is true once the index has run past the
// itinerary; the caller must then destroy the session.
func (s *ScheduleSession) Advance() (stop string, done bool, err error) {
	if s.State != StateTripInProgress {
		return "", false, fmt.Errorf("advance in %s: %w", s.State, ErrWrongState)
	}

	s.CurrentStopIndex++
	if s.CurrentStopIndex >= len(s.Itinerary) {
		return "", true, nil
	}
	return s.Itinerary[s.CurrentStopIndex], false, nil
}

package services

import (
	"context"
	"delivery-schedule-bot/internal/adapters/repositories"
	"delivery-schedule-bot/internal/adapters/routing"
	"delivery-schedule-bot/internal/domain"
	"delivery-schedule-bot/internal/ports"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

const testChat int64 = 42

type harness struct {
	scheduler *Scheduler
	registry  *repositories.MemorySessionRegistry
	computer  *routing.MockRouteComputer
	geocoder  *routing.MockGeocoder
	extractor *fakeExtractor
	messenger *fakeMessenger
}

func newHarness(t *testing.T, computer *routing.MockRouteComputer) *harness {
	t.Helper()

	h := &harness{
		registry: repositories.NewMemorySessionRegistry(),
		computer: computer,
		geocoder: routing.NewMockGeocoder([]routing.MockLocation{
			{Address: "Bishan St 11 Singapore", Lat: 1.3501, Lng: 103.8489},
			{Address: "Jurong East St 21 Singapore", Lat: 1.3367, Lng: 103.7402},
			{Address: "Yishun Ave 1 Singapore", Lat: 1.4291, Lng: 103.8352},
		}),
		extractor: &fakeExtractor{},
		messenger: &fakeMessenger{},
	}

	locator := NewGeocodingClient(h.geocoder, nil, time.Second)
	h.scheduler = NewScheduler(
		h.registry,
		NewRouteOptimizer(computer, time.Second),
		NewNavigator(h.registry, locator, h.messenger),
		h.extractor,
		h.messenger,
		SchedulerConfig{OCRTimeout: time.Second},
	)
	return h
}

func (h *harness) send(t *testing.T, ev Event) {
	t.Helper()
	if ev.ChatID == 0 {
		ev.ChatID = testChat
	}
	if err := h.scheduler.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle %s: %v", ev.Kind, err)
	}
}

func (h *harness) text(t *testing.T, s string) {
	t.Helper()
	h.send(t, Event{Kind: EventText, Text: s})
}

func (h *harness) session(t *testing.T) *domain.ScheduleSession {
	t.Helper()
	s, err := h.registry.Get(context.Background(), testChat)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return s
}

func (h *harness) requireNoSession(t *testing.T) {
	t.Helper()
	if _, err := h.registry.Get(context.Background(), testChat); !errors.Is(err, ports.ErrNoSession) {
		t.Fatalf("expected no session, got err=%v", err)
	}
}

// driveTo walks a fresh session into state using a single stop.
func (h *harness) driveTo(t *testing.T, state domain.State) {
	t.Helper()

	h.send(t, Event{Kind: EventNewSchedule})
	if state >= domain.StateAwaitingEnd {
		h.text(t, "Toh Guan Road")
	}
	if state >= domain.StateCollectingStops {
		h.text(t, "Yishun Ave 1")
	}
	if state >= domain.StateItineraryReady {
		h.text(t, "Bishan St 11")
		h.send(t, Event{Kind: EventEndPictures})
	}
	if state >= domain.StateTripInProgress {
		h.send(t, Event{Kind: EventStartTrip})
	}

	if got := h.session(t).State; got != state {
		t.Fatalf("driveTo: state = %s, want %s", got, state)
	}
	h.messenger.reset()
}

func TestSchedulerTypedStopsScenario(t *testing.T) {
	h := newHarness(t, &routing.MockRouteComputer{Order: []int{1, 0}})

	h.send(t, Event{Kind: EventNewSchedule})
	if got := h.session(t).State; got != domain.StateAwaitingStart {
		t.Fatalf("state = %s", got)
	}

	h.text(t, "Toh Guan Road")
	if got := h.session(t).State; got != domain.StateAwaitingEnd {
		t.Fatalf("state = %s", got)
	}

	h.text(t, "Yishun Ave 1")
	if got := h.session(t).State; got != domain.StateCollectingStops {
		t.Fatalf("state = %s", got)
	}

	h.text(t, "Jurong East St 21")
	h.text(t, "Bishan St 11")
	if got := h.session(t).CollectedStops; !reflect.DeepEqual(got, []string{"Jurong East St 21", "Bishan St 11"}) {
		t.Fatalf("collected stops = %v", got)
	}

	h.send(t, Event{Kind: EventEndPictures})
	s := h.session(t)
	want := []string{"Toh Guan Road", "Bishan St 11", "Jurong East St 21", "Yishun Ave 1"}
	if s.State != domain.StateItineraryReady || !reflect.DeepEqual(s.Itinerary, want) {
		t.Fatalf("after end pictures: state=%s itinerary=%v", s.State, s.Itinerary)
	}
	if !strings.HasPrefix(h.messenger.last().Text, "Itinerary optimized and ready.") {
		t.Fatalf("itinerary reply = %q", h.messenger.last().Text)
	}

	h.messenger.reset()
	h.send(t, Event{Kind: EventStartTrip})
	s = h.session(t)
	if s.State != domain.StateTripInProgress || s.CurrentStopIndex != 1 {
		t.Fatalf("after start trip: state=%s index=%d", s.State, s.CurrentStopIndex)
	}
	sent := h.messenger.all()
	if len(sent) != 3 {
		t.Fatalf("start trip sent %d messages: %+v", len(sent), sent)
	}
	if sent[0].Text != msgTripStarted || sent[1].Text != "Address: Bishan St 11" {
		t.Fatalf("start trip texts = %q, %q", sent[0].Text, sent[1].Text)
	}
	if sent[2].Location == nil || sent[2].Location.Lat != 1.3501 {
		t.Fatalf("expected Bishan location, got %+v", sent[2])
	}

	for wantIndex := 2; wantIndex < len(want); wantIndex++ {
		h.send(t, Event{Kind: EventNextStop})
		if got := h.session(t).CurrentStopIndex; got != wantIndex {
			t.Fatalf("index = %d, want %d", got, wantIndex)
		}
	}

	h.messenger.reset()
	h.send(t, Event{Kind: EventNextStop})
	h.requireNoSession(t)
	sent = h.messenger.all()
	if len(sent) != 1 || sent[0].Text != msgTripComplete {
		t.Fatalf("completion should be the only output, got %+v", sent)
	}

	h.send(t, Event{Kind: EventNextStop})
	if h.messenger.last().Text != msgNoSession {
		t.Fatalf("after completion reply = %q", h.messenger.last().Text)
	}
}

func TestSchedulerEndPicturesWithoutStops(t *testing.T) {
	h := newHarness(t, &routing.MockRouteComputer{Order: []int{0}})
	h.driveTo(t, domain.StateCollectingStops)

	h.send(t, Event{Kind: EventEndPictures})

	if got := h.session(t).State; got != domain.StateCollectingStops {
		t.Fatalf("state = %s, want collecting_stops", got)
	}
	if h.messenger.last().Text != msgNoStops {
		t.Fatalf("reply = %q", h.messenger.last().Text)
	}
	if len(h.computer.Calls()) != 0 {
		t.Fatal("optimizer must not be called without stops")
	}
}

func TestSchedulerOptimizerFailureKeepsSubmittedOrder(t *testing.T) {
	h := newHarness(t, &routing.MockRouteComputer{Err: errors.New("routes api: 503")})
	h.driveTo(t, domain.StateCollectingStops)

	h.text(t, "Jurong East St 21")
	h.text(t, "Bishan St 11")
	h.send(t, Event{Kind: EventEndPictures})

	s := h.session(t)
	want := []string{"Toh Guan Road", "Jurong East St 21", "Bishan St 11", "Yishun Ave 1"}
	if s.State != domain.StateItineraryReady || !reflect.DeepEqual(s.Itinerary, want) {
		t.Fatalf("state=%s itinerary=%v", s.State, s.Itinerary)
	}
	if !strings.HasPrefix(h.messenger.last().Text, "Route optimization was unavailable") {
		t.Fatalf("reply = %q", h.messenger.last().Text)
	}
}

func TestSchedulerEndTripFromAnyState(t *testing.T) {
	for _, state := range domain.AllStates() {
		t.Run(state.String(), func(t *testing.T) {
			h := newHarness(t, &routing.MockRouteComputer{Order: []int{0}})
			h.driveTo(t, state)

			h.send(t, Event{Kind: EventEndTrip})

			h.requireNoSession(t)
			if h.messenger.last().Text != msgTripEnded {
				t.Fatalf("reply = %q", h.messenger.last().Text)
			}

			h.text(t, "Toh Guan Road")
			if h.messenger.last().Text != msgNoSession {
				t.Fatalf("reply after end = %q", h.messenger.last().Text)
			}
			h.requireNoSession(t)
		})
	}
}

func TestSchedulerRejectsEventsInvalidForState(t *testing.T) {
	kinds := []EventKind{EventText, EventPhoto, EventEndPictures, EventStartTrip, EventNextStop}

	for _, state := range domain.AllStates() {
		for _, kind := range kinds {
			if Accepts(state, kind) {
				continue
			}
			t.Run(state.String()+"/"+kind.String(), func(t *testing.T) {
				h := newHarness(t, &routing.MockRouteComputer{Order: []int{0}})
				h.driveTo(t, state)
				before := h.session(t)

				h.send(t, Event{Kind: kind, Text: "Clementi Ave 3", Image: []byte("jpeg")})

				after := h.session(t)
				if !reflect.DeepEqual(before, after) {
					t.Fatalf("session mutated:\nbefore %+v\nafter  %+v", before, after)
				}
				reply := h.messenger.last().Text
				if !strings.Contains(reply, stateGuidance[state]) {
					t.Fatalf("reply %q does not carry %s guidance", reply, state)
				}
				if h.extractor.calls != 0 {
					t.Fatal("extractor must not run for a rejected photo")
				}
			})
		}
	}
}

func TestSchedulerWithoutSession(t *testing.T) {
	kinds := []EventKind{EventText, EventPhoto, EventEndPictures, EventStartTrip, EventNextStop}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHarness(t, &routing.MockRouteComputer{Order: []int{0}})

			h.send(t, Event{Kind: kind, Text: "Toh Guan Road"})

			if h.messenger.last().Text != msgNoSession {
				t.Fatalf("reply = %q", h.messenger.last().Text)
			}
			h.requireNoSession(t)
		})
	}
}

func TestSchedulerStartIsStatic(t *testing.T) {
	h := newHarness(t, &routing.MockRouteComputer{Order: []int{0}})

	h.send(t, Event{Kind: EventStart})

	if h.messenger.last().Text != msgHelp {
		t.Fatalf("reply = %q", h.messenger.last().Text)
	}
	h.requireNoSession(t)
}

func TestSchedulerTrimsAndIgnoresEmptyText(t *testing.T) {
	h := newHarness(t, &routing.MockRouteComputer{Order: []int{0}})
	h.driveTo(t, domain.StateAwaitingStart)

	h.text(t, "   ")
	if got := h.session(t).State; got != domain.StateAwaitingStart {
		t.Fatalf("state = %s after blank text", got)
	}
	if h.messenger.last().Text != msgEmptyText {
		t.Fatalf("reply = %q", h.messenger.last().Text)
	}

	h.text(t, "  Toh Guan Road \n")
	if got := h.session(t).StartLocation; got != "Toh Guan Road" {
		t.Fatalf("start location = %q", got)
	}
}

func TestSchedulerNewScheduleReplacesSession(t *testing.T) {
	h := newHarness(t, &routing.MockRouteComputer{Order: []int{0}})
	h.driveTo(t, domain.StateCollectingStops)
	old := h.session(t)

	h.send(t, Event{Kind: EventNewSchedule})

	s := h.session(t)
	if s.ID == old.ID || s.State != domain.StateAwaitingStart || s.StartLocation != "" {
		t.Fatalf("session not replaced: %+v", s)
	}
	if h.messenger.last().Text != msgNewSchedule {
		t.Fatalf("reply = %q", h.messenger.last().Text)
	}
}

func TestSchedulerPhotoExtraction(t *testing.T) {
	h := newHarness(t, &routing.MockRouteComputer{Order: []int{0}})
	h.driveTo(t, domain.StateCollectingStops)

	h.extractor.addresses = []string{"Jurong East St 21", " ", "Bishan St 11"}
	h.send(t, Event{Kind: EventPhoto, Image: []byte("jpeg")})

	if got := h.session(t).CollectedStops; !reflect.DeepEqual(got, []string{"Jurong East St 21", "Bishan St 11"}) {
		t.Fatalf("collected stops = %v", got)
	}
	if !strings.Contains(h.messenger.last().Text, "Jurong East St 21, Bishan St 11") {
		t.Fatalf("reply = %q", h.messenger.last().Text)
	}
}

func TestSchedulerPhotoWithoutAddresses(t *testing.T) {
	tests := []struct {
		name      string
		addresses []string
		err       error
	}{
		{name: "nothing found", addresses: nil},
		{name: "extractor error", err: errors.New("ocr unavailable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &routing.MockRouteComputer{Order: []int{0}})
			h.driveTo(t, domain.StateCollectingStops)
			h.extractor.addresses = tt.addresses
			h.extractor.err = tt.err

			h.send(t, Event{Kind: EventPhoto, Image: []byte("jpeg")})

			s := h.session(t)
			if len(s.CollectedStops) != 0 || s.State != domain.StateCollectingStops {
				t.Fatalf("session mutated: %+v", s)
			}
			if h.messenger.last().Text != msgNothingFound {
				t.Fatalf("reply = %q", h.messenger.last().Text)
			}
		})
	}
}

func TestSchedulerPhotoWithoutExtractor(t *testing.T) {
	h := newHarness(t, &routing.MockRouteComputer{Order: []int{0}})
	h.scheduler.extractor = nil
	h.driveTo(t, domain.StateCollectingStops)

	h.send(t, Event{Kind: EventPhoto, Image: []byte("jpeg")})

	if h.messenger.last().Text != msgNoExtractor {
		t.Fatalf("reply = %q", h.messenger.last().Text)
	}
}

func TestSchedulerUnresolvableStop(t *testing.T) {
	h := newHarness(t, &routing.MockRouteComputer{Order: []int{0}})
	h.driveTo(t, domain.StateCollectingStops)
	h.text(t, "Unknown Crescent")
	h.send(t, Event{Kind: EventEndPictures})
	h.messenger.reset()

	h.send(t, Event{Kind: EventStartTrip})

	for _, m := range h.messenger.all() {
		if m.Location != nil {
			t.Fatalf("unexpected location send: %+v", m)
		}
	}
	if h.messenger.last().Text != "Could not geocode address: Unknown Crescent" {
		t.Fatalf("reply = %q", h.messenger.last().Text)
	}
	if got := h.session(t).State; got != domain.StateTripInProgress {
		t.Fatalf("state = %s", got)
	}
}

func TestSchedulerEndTripDuringOptimization(t *testing.T) {
	computer := &routing.MockRouteComputer{
		Order:   []int{0},
		Gate:    make(chan struct{}),
		Started: make(chan struct{}, 1),
	}
	h := newHarness(t, computer)
	h.driveTo(t, domain.StateCollectingStops)
	h.text(t, "Bishan St 11")

	done := make(chan error, 1)
	go func() {
		done <- h.scheduler.Handle(context.Background(), Event{Kind: EventEndPictures, ChatID: testChat})
	}()

	select {
	case <-computer.Started:
	case <-time.After(2 * time.Second):
		t.Fatal("optimizer was not called")
	}

	h.send(t, Event{Kind: EventEndTrip})
	close(computer.Gate)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("end pictures: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("end pictures did not return")
	}

	h.requireNoSession(t)
	for _, m := range h.messenger.all() {
		if strings.HasPrefix(m.Text, "Itinerary optimized") {
			t.Fatalf("late itinerary was delivered: %q", m.Text)
		}
	}
	if h.messenger.last().Text != msgTripEnded {
		t.Fatalf("last reply = %q", h.messenger.last().Text)
	}
}

func TestSchedulerLateResultDoesNotLeakIntoNewSession(t *testing.T) {
	computer := &routing.MockRouteComputer{
		Order:   []int{0},
		Gate:    make(chan struct{}),
		Started: make(chan struct{}, 1),
	}
	h := newHarness(t, computer)
	h.driveTo(t, domain.StateCollectingStops)
	h.text(t, "Bishan St 11")

	done := make(chan error, 1)
	go func() {
		done <- h.scheduler.Handle(context.Background(), Event{Kind: EventEndPictures, ChatID: testChat})
	}()
	<-computer.Started

	h.send(t, Event{Kind: EventEndTrip})
	h.driveTo(t, domain.StateCollectingStops)
	close(computer.Gate)
	if err := <-done; err != nil {
		t.Fatalf("end pictures: %v", err)
	}

	s := h.session(t)
	if s.State != domain.StateCollectingStops || len(s.Itinerary) != 0 {
		t.Fatalf("new session picked up stale itinerary: %+v", s)
	}
}

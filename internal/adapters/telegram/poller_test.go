package telegram

import (
	"context"
	"delivery-schedule-bot/internal/adapters/repositories"
	"delivery-schedule-bot/internal/adapters/routing"
	"delivery-schedule-bot/internal/ports"
	"delivery-schedule-bot/internal/services"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []services.Event
	got    chan struct{}
	block  map[services.EventKind]chan struct{}

	// entered receives the kind of every event that reaches a block gate.
	entered chan services.EventKind
}

func (h *recordingHandler) Handle(ctx context.Context, ev services.Event) error {
	if gate, ok := h.block[ev.Kind]; ok {
		if h.entered != nil {
			h.entered <- ev.Kind
		}
		<-gate
	}
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	h.got <- struct{}{}
	return nil
}

func (h *recordingHandler) snapshot() []services.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]services.Event(nil), h.events...)
}

func waitEvents(t *testing.T, h *recordingHandler, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d events", i, n)
		}
	}
}

func TestPollerDeliversEventsInOrderPerChat(t *testing.T) {
	api := &fakeBotAPI{
		updates: [][]update{{
			{UpdateID: 1, Message: &message{Chat: &chat{ID: 1}, Text: "/newschedule"}},
			{UpdateID: 2, Message: &message{Chat: &chat{ID: 1}, Text: "Toh Guan Road"}},
			{UpdateID: 3, Message: &message{Chat: &chat{ID: 1}, Photo: []photoSize{{FileID: "p1", Width: 10, Height: 10}}}},
			{UpdateID: 4, Message: &message{Chat: &chat{ID: 2}, Text: "/start"}},
		}},
		files: map[string]string{"p1": "photos/p1.jpg"},
		blobs: map[string][]byte{"photos/p1.jpg": []byte("img")},
	}
	h := &recordingHandler{got: make(chan struct{}, 16)}
	p := NewPoller(newTestClient(t, api), h, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	waitEvents(t, h, 4)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	var chat1 []services.Event
	for _, ev := range h.snapshot() {
		if ev.ChatID == 1 {
			chat1 = append(chat1, ev)
		}
	}
	if len(chat1) != 3 {
		t.Fatalf("chat 1 events = %+v", chat1)
	}
	if chat1[0].Kind != services.EventNewSchedule || chat1[1].Kind != services.EventText || chat1[2].Kind != services.EventPhoto {
		t.Fatalf("chat 1 order = %v, %v, %v", chat1[0].Kind, chat1[1].Kind, chat1[2].Kind)
	}
	if string(chat1[2].Image) != "img" {
		t.Fatalf("photo bytes = %q", chat1[2].Image)
	}
}

func textUpdate(id, chatID int64, text string) update {
	return update{UpdateID: id, Message: &message{Chat: &chat{ID: chatID}, Text: text}}
}

func TestPollerBusyChatDoesNotStallOthers(t *testing.T) {
	gate := make(chan struct{})
	hold := make(chan struct{})

	var backlog []update
	for i := int64(0); i < 20; i++ {
		backlog = append(backlog, textUpdate(10+i, 1, fmt.Sprintf("Stop %d", i)))
	}
	backlog = append(backlog,
		textUpdate(40, 2, "/start"),
		textUpdate(41, 1, "/endtrip"),
	)

	api := &fakeBotAPI{
		updates: [][]update{{textUpdate(1, 1, "/endpictures")}, backlog},
		hold:    hold,
	}
	h := &recordingHandler{
		got:     make(chan struct{}, 64),
		block:   map[services.EventKind]chan struct{}{services.EventEndPictures: gate},
		entered: make(chan services.EventKind, 1),
	}
	p := NewPoller(newTestClient(t, api), h, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case <-h.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("end pictures never started")
	}
	close(hold)

	// Chat 1 is blocked with 20 events queued behind it.
	waitEvents(t, h, 2)
	got := h.snapshot()
	kinds := map[services.EventKind]int64{}
	for _, ev := range got {
		kinds[ev.Kind] = ev.ChatID
	}
	if chatID, ok := kinds[services.EventStart]; !ok || chatID != 2 {
		t.Fatalf("chat 2 /start not handled while chat 1 was busy: %+v", got)
	}
	if chatID, ok := kinds[services.EventEndTrip]; !ok || chatID != 1 {
		t.Fatalf("chat 1 /endtrip not handled while chat 1 was busy: %+v", got)
	}

	close(gate)
	waitEvents(t, h, 1)
	cancel()
	<-done

	got = h.snapshot()
	if len(got) != 3 || got[2].Kind != services.EventEndPictures {
		t.Fatalf("handled = %+v, want the queued texts dropped by end trip", got)
	}
}

// completionHandler reports each event after the wrapped handler returns.
type completionHandler struct {
	next EventHandler

	mu   sync.Mutex
	done []services.EventKind
	got  chan struct{}
}

func (h *completionHandler) Handle(ctx context.Context, ev services.Event) error {
	err := h.next.Handle(ctx, ev)
	h.mu.Lock()
	h.done = append(h.done, ev.Kind)
	h.mu.Unlock()
	h.got <- struct{}{}
	return err
}

func (h *completionHandler) kinds() []services.EventKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]services.EventKind(nil), h.done...)
}

func TestPollerEndTripDiscardsEarlierQueuedEvents(t *testing.T) {
	hold := make(chan struct{})
	computer := &routing.MockRouteComputer{
		Order:   []int{0},
		Gate:    make(chan struct{}),
		Started: make(chan struct{}, 1),
	}

	api := &fakeBotAPI{
		updates: [][]update{
			{
				textUpdate(1, 1, "/newschedule"),
				textUpdate(2, 1, "Toh Guan Road"),
				textUpdate(3, 1, "Jurong East"),
				textUpdate(4, 1, "Bishan St 11"),
				textUpdate(5, 1, "/endpictures"),
			},
			{
				textUpdate(6, 1, "/newschedule"),
				textUpdate(7, 1, "Clementi Ave 3"),
				textUpdate(8, 1, "/endtrip"),
			},
		},
		hold: hold,
	}
	bot := newTestClient(t, api)

	registry := repositories.NewMemorySessionRegistry()
	locator := services.NewGeocodingClient(routing.NewMockGeocoder(nil), nil, 0)
	scheduler := services.NewScheduler(
		registry,
		services.NewRouteOptimizer(computer, 0),
		services.NewNavigator(registry, locator, bot),
		nil,
		bot,
		services.SchedulerConfig{},
	)
	h := &completionHandler{next: scheduler, got: make(chan struct{}, 16)}
	p := NewPoller(bot, h, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case <-computer.Started:
	case <-time.After(2 * time.Second):
		t.Fatal("optimizer never called")
	}
	close(hold)

	// new_schedule, three texts, then end_trip while optimization is blocked.
	for i := 0; i < 5; i++ {
		select {
		case <-h.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d events", i)
		}
	}
	close(computer.Gate)
	select {
	case <-h.got:
	case <-time.After(2 * time.Second):
		t.Fatal("end pictures never finished")
	}
	cancel()
	<-done

	want := []services.EventKind{
		services.EventNewSchedule,
		services.EventText,
		services.EventText,
		services.EventText,
		services.EventEndTrip,
		services.EventEndPictures,
	}
	got := h.kinds()
	if len(got) != len(want) {
		t.Fatalf("handled = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("handled = %v, want %v", got, want)
		}
	}

	if _, err := registry.Get(context.Background(), 1); !errors.Is(err, ports.ErrNoSession) {
		t.Fatalf("session after end trip: err = %v, want ErrNoSession", err)
	}
	for _, c := range api.recorded("sendMessage") {
		if text, _ := c.Body["text"].(string); strings.Contains(text, "Use /starttrip to begin your delivery.") {
			t.Fatalf("itinerary sent for an ended trip: %q", text)
		}
	}
}

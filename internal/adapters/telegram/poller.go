package telegram

import (
	"context"
	"delivery-schedule-bot/internal/platform/obs"
	"delivery-schedule-bot/internal/services"
	"errors"
	"log"
	"sync"
	"time"
)

// EventHandler consumes inbound chat events.
type EventHandler interface {
	Handle(ctx context.Context, ev services.Event) error
}

type job struct {
	ev          services.Event
	photoFileID string
}

// chatQueue holds the events waiting for one chat. It is guarded by the
// poller mutex and drained by at most one goroutine at a time.
type chatQueue struct {
	jobs     []job
	draining bool
}

// Poller long-polls the Bot API and feeds events to the handler.
//
// Each chat has its own unbounded queue and drain goroutine, so a slow OCR
// or optimization call delays only that chat and the polling loop never
// blocks on a busy chat. End-trip is handled inline by the polling loop: it
// discards whatever the chat still had queued and runs even while the
// chat's current event is blocked on a provider call.
type Poller struct {
	client      *Client
	handler     EventHandler
	pollTimeout time.Duration

	mu     sync.Mutex
	queues map[int64]*chatQueue
	wg     sync.WaitGroup
}

func NewPoller(client *Client, handler EventHandler, pollTimeout time.Duration) *Poller {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Poller{
		client:      client,
		handler:     handler,
		pollTimeout: pollTimeout,
		queues:      make(map[int64]*chatQueue),
	}
}

// Run polls until ctx is cancelled, then waits for in-flight events.
func (p *Poller) Run(ctx context.Context) error {
	defer p.wg.Wait()

	var offset int64
	for {
		updates, next, err := p.client.getUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("telegram getUpdates failed err=%v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		offset = next

		for _, u := range updates {
			ev, fileID, ok := toEvent(u.Message)
			if !ok {
				continue
			}
			p.dispatch(ctx, job{ev: ev, photoFileID: fileID})
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// dispatch never blocks on a chat's queue.
func (p *Poller) dispatch(ctx context.Context, j job) {
	chatID := j.ev.ChatID

	if j.ev.Kind == services.EventEndTrip {
		if dropped := p.discard(chatID); dropped > 0 {
			log.Printf("chat_id=%d end trip dropped %d queued events", chatID, dropped)
		}
		p.handle(ctx, j)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.queues[chatID]
	if !ok {
		q = &chatQueue{}
		p.queues[chatID] = q
	}
	q.jobs = append(q.jobs, j)
	if !q.draining {
		q.draining = true
		p.wg.Add(1)
		go p.drain(ctx, chatID, q)
	}
}

// discard empties a chat's queue and reports how many events it held.
// Events sent before an end-trip must not run after it.
func (p *Poller) discard(chatID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.queues[chatID]
	if !ok {
		return 0
	}
	n := len(q.jobs)
	q.jobs = nil
	return n
}

// drain handles a chat's events in arrival order and exits once the queue
// is empty. Taking a job and emptying the queue both happen under p.mu, so
// a discarded job is never started.
func (p *Poller) drain(ctx context.Context, chatID int64, q *chatQueue) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		if len(q.jobs) == 0 || ctx.Err() != nil {
			q.draining = false
			if len(q.jobs) == 0 {
				delete(p.queues, chatID)
			}
			p.mu.Unlock()
			return
		}
		j := q.jobs[0]
		q.jobs[0] = job{}
		q.jobs = q.jobs[1:]
		p.mu.Unlock()

		p.handle(ctx, j)
	}
}

func (p *Poller) handle(ctx context.Context, j job) {
	ctx = obs.WithEventID(ctx)

	if j.photoFileID != "" {
		img, err := p.client.downloadPhoto(ctx, j.photoFileID)
		if err != nil {
			log.Printf("event_id=%s chat_id=%d photo download failed err=%v", obs.EventID(ctx), j.ev.ChatID, err)
		}
		j.ev.Image = img
	}

	if err := p.handler.Handle(ctx, j.ev); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("event_id=%s chat_id=%d handle %s failed err=%v", obs.EventID(ctx), j.ev.ChatID, j.ev.Kind, err)
	}
}

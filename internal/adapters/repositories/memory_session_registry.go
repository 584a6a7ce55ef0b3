package repositories

import (
	"context"
	"delivery-schedule-bot/internal/domain"
	"delivery-schedule-bot/internal/platform/metrics"
	"delivery-schedule-bot/internal/ports"
	"errors"
	"sync"
	"time"
)

// In-memory implementation of the SessionRegistry port.
//
// Sessions live for the lifetime of the process. Every read and write takes
// the registry mutex, so operations on one chat never interleave; callers
// receive copies and must go through Update to change a session.
type MemorySessionRegistry struct {
	mu       sync.Mutex
	sessions map[int64]*domain.ScheduleSession
	now      func() time.Time
}

func NewMemorySessionRegistry() *MemorySessionRegistry {
	return &MemorySessionRegistry{
		sessions: make(map[int64]*domain.ScheduleSession),
		now:      time.Now,
	}
}

func (r *MemorySessionRegistry) Create(ctx context.Context, s *domain.ScheduleSession) error {
	if s == nil {
		return errors.New("create session: session is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ChatID] = s.Clone()
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return nil
}

func (r *MemorySessionRegistry) Get(ctx context.Context, chatID int64) (*domain.ScheduleSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[chatID]
	if !ok {
		return nil, ports.ErrNoSession
	}
	return s.Clone(), nil
}

// Update runs fn against a copy and stores the copy only when fn succeeds.
func (r *MemorySessionRegistry) Update(ctx context.Context, chatID int64, fn ports.Mutation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.sessions[chatID]
	if !ok {
		return ports.ErrNoSession
	}

	next := cur.Clone()
	remove, err := fn(next)
	if err != nil {
		return err
	}

	if remove {
		delete(r.sessions, chatID)
		metrics.ActiveSessions.Set(float64(len(r.sessions)))
		return nil
	}

	next.UpdatedAt = r.now()
	r.sessions[chatID] = next
	return nil
}

func (r *MemorySessionRegistry) Delete(ctx context.Context, chatID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.sessions[chatID]
	delete(r.sessions, chatID)
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return ok, nil
}

func (r *MemorySessionRegistry) Stats(ctx context.Context) (map[domain.State]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[domain.State]int, len(domain.AllStates()))
	for _, s := range r.sessions {
		out[s.State]++
	}
	return out, nil
}

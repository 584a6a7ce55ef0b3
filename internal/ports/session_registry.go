package ports

import (
	"context"
	"delivery-schedule-bot/internal/domain"
	"errors"
)

var (
	// ErrNoSession reports that the chat has no active schedule.
	ErrNoSession = errors.New("no active schedule")
	// ErrStaleSession reports a result computed for a session that has since
	// been ended, replaced, or moved on. Such results are discarded.
	ErrStaleSession = errors.New("session changed while the operation was in flight")
)

// Mutation is applied to a chat's session while the registry holds that chat's lock.
// It must not block. Returning remove=true destroys the session after fn returns.
type Mutation func(s *domain.ScheduleSession) (remove bool, err error)

// Port: process-wide mapping from chat id to its schedule session.
type SessionRegistry interface {
	// Store a new session for its chat, replacing any existing one.
	Create(ctx context.Context, s *domain.ScheduleSession) error
	// Return a copy of the chat's session, or ErrNoSession.
	Get(ctx context.Context, chatID int64) (*domain.ScheduleSession, error)
	// Apply fn to the chat's session atomically, or return ErrNoSession.
	// An error from fn is returned unchanged and the stored session is not modified.
	Update(ctx context.Context, chatID int64, fn Mutation) error
	// Destroy the chat's session. Reports whether one existed.
	Delete(ctx context.Context, chatID int64) (bool, error)
	// Count active sessions by state.
	Stats(ctx context.Context) (map[domain.State]int, error)
}

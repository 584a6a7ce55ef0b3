package services

import (
	"context"
	"delivery-schedule-bot/internal/domain"
	"delivery-schedule-bot/internal/ports"
	"errors"
	"fmt"
)

// commitSession applies fn to the chat's session only if it is still the
// session the caller read (same id) and still in the expected state.
// Anything else means the chat moved on while the caller was blocked, and
// the result is reported as ports.ErrStaleSession.
func commitSession(
	ctx context.Context,
	registry ports.SessionRegistry,
	chatID int64,
	sessionID string,
	want domain.State,
	fn ports.Mutation,
) error {
	err := registry.Update(ctx, chatID, func(cur *domain.ScheduleSession) (bool, error) {
		if cur.ID != sessionID || cur.State != want {
			return false, ports.ErrStaleSession
		}
		return fn(cur)
	})
	if errors.Is(err, ports.ErrNoSession) {
		return fmt.Errorf("commit chat_id=%d: %w", chatID, ports.ErrStaleSession)
	}
	return err
}

// sessionActive reports whether the chat still holds the given session.
func sessionActive(ctx context.Context, registry ports.SessionRegistry, chatID int64, sessionID string) bool {
	s, err := registry.Get(ctx, chatID)
	if err != nil {
		return false
	}
	return s.ID == sessionID
}

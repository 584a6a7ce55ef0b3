package obs

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

const EventIDKey ctxKey = "event_id"

// WithEventID tags ctx with a fresh id so every log line for one inbound
// chat event can be correlated.
func WithEventID(ctx context.Context) context.Context {
	return context.WithValue(ctx, EventIDKey, uuid.NewString())
}

func EventID(ctx context.Context) string {
	id, _ := ctx.Value(EventIDKey).(string)
	return id
}

func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	eventID := EventID(ctx)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			log.Printf("event_id=%s op=%s dur=%dms err=%v", eventID, name, dur.Milliseconds(), *errp)
			return
		}
		log.Printf("event_id=%s op=%s dur=%dms", eventID, name, dur.Milliseconds())
	}
}

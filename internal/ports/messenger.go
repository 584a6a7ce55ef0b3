package ports

import "context"

// Outbound side of the chat transport.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendLocation(ctx context.Context, chatID int64, lat, lng float64) error
}

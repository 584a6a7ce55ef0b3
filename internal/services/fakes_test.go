package services

import (
	"context"
	"delivery-schedule-bot/internal/domain"
	"sync"
)

type sentMessage struct {
	ChatID   int64
	Text     string
	Location *domain.Coordinates
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (m *fakeMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *fakeMessenger) SendLocation(ctx context.Context, chatID int64, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Location: &domain.Coordinates{Lat: lat, Lng: lng}})
	return nil
}

func (m *fakeMessenger) all() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

func (m *fakeMessenger) last() sentMessage {
	all := m.all()
	if len(all) == 0 {
		return sentMessage{}
	}
	return all[len(all)-1]
}

func (m *fakeMessenger) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

type fakeExtractor struct {
	addresses []string
	err       error
	calls     int
}

func (e *fakeExtractor) ExtractAddresses(ctx context.Context, image []byte) ([]string, error) {
	e.calls++
	return e.addresses, e.err
}

type mapCache struct {
	mu   sync.Mutex
	m    map[string]domain.Coordinates
	err  error
	puts int
}

func newMapCache() *mapCache {
	return &mapCache{m: make(map[string]domain.Coordinates)}
}

func (c *mapCache) GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]domain.Coordinates)
	for _, a := range addresses {
		if v, ok := c.m[a]; ok {
			out[a] = v
		}
	}
	return out, nil
}

func (c *mapCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	for k, v := range results {
		c.m[k] = v
		c.puts++
	}
	return nil
}

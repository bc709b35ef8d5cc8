package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// LocalBus is an in-process domain.SignalBus used when no Redis is
// configured. Slow subscribers lose messages instead of blocking
// publishers.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	logger *slog.Logger
}

// NewLocalBus creates an empty bus.
func NewLocalBus(logger *slog.Logger) *LocalBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalBus{
		subs:   make(map[string]map[chan []byte]struct{}),
		logger: logger.With(slog.String("component", "local_bus")),
	}
}

// Publish delivers payload to every current subscriber of channel.
func (b *LocalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[channel] {
		select {
		case ch <- append([]byte(nil), payload...):
		default:
			b.logger.Warn("local_bus: dropping message for slow subscriber", slog.String("channel", channel))
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx ends; the returned channel is
// closed then.
func (b *LocalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 64)
	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan []byte]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[channel], ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

var _ domain.SignalBus = (*LocalBus)(nil)

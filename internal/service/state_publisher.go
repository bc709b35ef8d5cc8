package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// StatePublisher forwards submission states to the signal bus so other
// processes (the websocket hub of a headless server) can follow them.
type StatePublisher struct {
	bus      domain.SignalBus
	endpoint func() string
	logger   *slog.Logger
	timeout  time.Duration
}

// NewStatePublisher creates a publisher. endpoint names the active
// deployment for each signal.
func NewStatePublisher(bus domain.SignalBus, endpoint func() string, logger *slog.Logger) *StatePublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatePublisher{bus: bus, endpoint: endpoint, logger: logger, timeout: 2 * time.Second}
}

// Publish sends st on domain.SubmissionChannel. Errors are logged only.
func (p *StatePublisher) Publish(st domain.SubmissionState) {
	payload, err := json.Marshal(domain.NewStateSignal(st, p.endpoint(), time.Now().UTC()))
	if err != nil {
		p.logger.Error("state_publisher: marshal", slog.Any("error", err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.bus.Publish(ctx, domain.SubmissionChannel, payload); err != nil {
		p.logger.Warn("state_publisher: publish failed", slog.Any("error", err))
	}
}

// Package notify fans finished market submissions out to chat channels
// (Telegram, Discord), filtered by event name.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// Event names.
const (
	EventMarketCreated = "market_created"
	EventMarketFailed  = "market_failed"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches to every sender. Only events in the allowed set pass;
// an empty set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return len(n.senders) > 0
}

// Notify sends when event passes the filter. One sender failing does not
// stop the others; all failures are joined into the returned error.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.WarnContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.Any("error", err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent", slog.String("sender", s.Name()), slog.String("event", event))
	}
	return errors.Join(errs...)
}

// SubmissionFinished turns a finished cycle into a market_created or
// market_failed notification. It satisfies submission.Hook.
func (n *Notifier) SubmissionFinished(ctx context.Context, rec domain.SubmissionRecord) error {
	if !n.Enabled() {
		return nil
	}
	event, title := EventMarketFailed, "Market creation failed"
	if rec.Outcome == domain.PhaseSucceeded {
		event, title = EventMarketCreated, "Market created"
	}
	return n.Notify(ctx, event, title, formatRecord(rec))
}

func formatRecord(rec domain.SubmissionRecord) string {
	var b strings.Builder
	name := rec.Title
	if name == "" {
		name = "(untitled)"
	}
	fmt.Fprintf(&b, "%s\nendpoint: %s", name, rec.Endpoint)
	if rec.ImageFilename != "" {
		fmt.Fprintf(&b, "\nimage: %s", rec.ImageFilename)
	}
	if msg := strings.TrimSpace(strings.Join(rec.Messages, "")); msg != "" {
		fmt.Fprintf(&b, "\n%s", msg)
	}
	if !rec.StartedAt.IsZero() && !rec.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "\ntook %s", rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond))
	}
	return b.String()
}

// postJSON sends payload and treats any non-2xx answer as an error.
func postJSON(ctx context.Context, client *http.Client, url, channel string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal payload: %w", channel, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: unexpected status %d: %s", channel, resp.StatusCode, string(respBody))
	}
	return nil
}

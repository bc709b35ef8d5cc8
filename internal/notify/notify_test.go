package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

type recordingSender struct {
	mu     sync.Mutex
	name   string
	titles []string
	bodies []string
	err    error
}

func (s *recordingSender) Send(_ context.Context, title, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, title)
	s.bodies = append(s.bodies, message)
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func TestNotifier_FiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventMarketFailed}, nil)
	ctx := context.Background()

	ok := domain.SubmissionRecord{Title: "Will it rain?", Outcome: domain.PhaseSucceeded}
	bad := domain.SubmissionRecord{Title: "Will it snow?", Outcome: domain.PhaseFailed, Endpoint: "https://x",
		Messages: []string{"Invalid Input! ", "\n* title: required"}}

	require.NoError(t, n.SubmissionFinished(ctx, ok))
	require.NoError(t, n.SubmissionFinished(ctx, bad))

	require.Len(t, s.titles, 1)
	assert.Equal(t, "Market creation failed", s.titles[0])
	assert.Contains(t, s.bodies[0], "Will it snow?")
	assert.Contains(t, s.bodies[0], "* title: required")
}

func TestNotifier_OneFailureDoesNotStopOthers(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, nil)

	err := n.Notify(context.Background(), EventMarketCreated, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.titles, 1)
}

func TestNotifier_NoSendersIsQuiet(t *testing.T) {
	n := NewNotifier(nil, nil, nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.SubmissionFinished(context.Background(), domain.SubmissionRecord{}))
}

func TestFormatRecord(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := formatRecord(domain.SubmissionRecord{
		Endpoint: "https://staging.omenium.app/api", ImageFilename: "f.png",
		StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond),
	})
	assert.Equal(t, "(untitled)\nendpoint: https://staging.omenium.app/api\nimage: f.png\ntook 1.5s", out)
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.apiBase = srv.URL
	require.NoError(t, s.Send(context.Background(), "Market created", "body"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Market created*\nbody", got["text"])
}

func TestDiscordSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "discord: unexpected status 400"))
}

package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pydea-rs/omen-creator-panel/internal/config"
	"github.com/pydea-rs/omen-creator-panel/internal/domain"
	"github.com/pydea-rs/omen-creator-panel/internal/form"
	"github.com/pydea-rs/omen-creator-panel/internal/service"
	"github.com/pydea-rs/omen-creator-panel/internal/session"
	"github.com/pydea-rs/omen-creator-panel/internal/submission"
)

type fakeClient struct {
	mu      sync.Mutex
	created []domain.CreateMarketRequest
	images  []domain.Image
}

func (c *fakeClient) Login(_ context.Context, _, password string) (string, error) {
	if password != "pw" {
		return "", &domain.RemoteError{StatusCode: 401, Message: "bad credentials"}
	}
	return "tok", nil
}

func (c *fakeClient) Categories(context.Context) ([]domain.Category, error) {
	return []domain.Category{
		{ID: 1, Name: "Sports", SubCategories: []domain.Category{
			{ID: 11, Name: "Football"},
			{ID: 12, Name: "Tennis"},
		}},
		{ID: 2, Name: "Politics"},
	}, nil
}

func (c *fakeClient) Oracles(context.Context) ([]domain.Oracle, error) {
	return []domain.Oracle{{ID: 7, Name: "UMA", Address: "0xabc"}}, nil
}

func (c *fakeClient) UploadImage(_ context.Context, _ string, img domain.Image) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = append(c.images, img)
	return "stored-" + img.Name, nil
}

func (c *fakeClient) CreateMarket(_ context.Context, _ string, req domain.CreateMarketRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, req)
	return nil
}

// newTestDeps builds the in-process part of the graph Wire builds, with a
// fake remote.
func newTestDeps(t *testing.T, client *fakeClient) *Dependencies {
	t.Helper()
	sessions := session.NewManager(session.NewMemoryStore(), nil)
	ws := service.NewWorkspace(func(domain.Endpoint) service.Client { return client }, sessions, nil, nil)
	orch := submission.New(ws, sessions, submission.Options{
		SuccessDelay: time.Hour,
		FailureDelay: time.Hour,
	})
	t.Cleanup(orch.Reset)
	ws.SetBusy(func() bool { return orch.State().Busy() })

	deps := &Dependencies{
		Endpoint:     domain.DefaultEndpoint(),
		Sessions:     sessions,
		Workspace:    ws,
		Orchestrator: orch,
	}
	require.NoError(t, ws.Select(context.Background(), deps.Endpoint))
	return deps
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestWire_LocalOnly(t *testing.T) {
	cfg := config.Defaults()
	cfg.Session.Store = "memory"
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")

	deps, cleanup, err := Wire(context.Background(), &cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, domain.DefaultEndpoint(), deps.Endpoint)
	assert.NotNil(t, deps.History)
	assert.Nil(t, deps.RateLimiter)
	assert.Nil(t, deps.LockManager)
	assert.IsType(t, &service.LocalBus{}, deps.SignalBus)
	assert.False(t, deps.Notifier.Enabled())
	assert.False(t, deps.Orchestrator.State().Busy())
	assert.Equal(t, uint64(0), deps.Snapshot().Cycle)
}

func TestWire_HistoryNone(t *testing.T) {
	cfg := config.Defaults()
	cfg.Session.Store = "memory"
	cfg.History.Driver = "none"

	deps, cleanup, err := Wire(context.Background(), &cfg)
	require.NoError(t, err)
	defer cleanup()
	assert.Nil(t, deps.History)
}

func TestWire_UnknownEndpoint(t *testing.T) {
	cfg := config.Defaults()
	cfg.API.Endpoint = "nowhere"
	_, _, err := Wire(context.Background(), &cfg)
	assert.ErrorIs(t, err, domain.ErrUnknownEndpoint)
}

func TestLoadDraft(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "draft.toml", `
title = "Who wins the derby?"
category = 11
deadline = 2030-01-02T15:04:00Z
outcomes = ["Home", "Away", "Draw"]
image = "logo.png"
fee = 2.5
`)
	df, err := LoadDraft(p)
	require.NoError(t, err)
	assert.Equal(t, "Who wins the derby?", df.Title)
	assert.Equal(t, int64(11), df.Category)
	require.NotNil(t, df.Deadline)
	assert.True(t, df.Deadline.Equal(time.Date(2030, 1, 2, 15, 4, 0, 0, time.UTC)))
	assert.Equal(t, []string{"Home", "Away", "Draw"}, df.Outcomes)
	require.NotNil(t, df.Fee)
	assert.InDelta(t, 2.5, *df.Fee, 1e-9)
	assert.Nil(t, df.StartAt)
	assert.Equal(t, dir, df.dir)

	bad := writeFile(t, dir, "bad.toml", "title = \"x\"\ncolour = \"red\"\n")
	_, err = LoadDraft(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestCreate(t *testing.T) {
	deadline := time.Date(2030, 1, 2, 15, 4, 0, 0, time.UTC)
	draft := DraftFile{
		Title:    "  Derby  ",
		Category: 11,
		Deadline: &deadline,
		Outcomes: []string{"Home", " ", "Away", "Draw"},
	}

	t.Run("requires login", func(t *testing.T) {
		deps := newTestDeps(t, &fakeClient{})
		_, err := Create(context.Background(), deps, draft)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("rejects a parent category", func(t *testing.T) {
		deps := newTestDeps(t, &fakeClient{})
		require.NoError(t, Login(context.Background(), deps, "me", "pw"))
		df := draft
		df.Category = 1
		_, err := Create(context.Background(), deps, df)
		assert.ErrorIs(t, err, domain.ErrNotLeaf)
	})

	t.Run("rejects too few outcomes", func(t *testing.T) {
		deps := newTestDeps(t, &fakeClient{})
		require.NoError(t, Login(context.Background(), deps, "me", "pw"))
		df := draft
		df.Outcomes = []string{"Only"}
		_, err := Create(context.Background(), deps, df)
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, form.MsgMinOutcomes, ve.Message)
	})

	t.Run("creates with image", func(t *testing.T) {
		client := &fakeClient{}
		deps := newTestDeps(t, client)
		require.NoError(t, Login(context.Background(), deps, "me", "pw"))

		dir := t.TempDir()
		writeFile(t, dir, "logo.png", "\x89PNG\r\n\x1a\nrest")
		df := draft
		df.Image = "logo.png"
		df.dir = dir

		res, err := Create(context.Background(), deps, df)
		require.NoError(t, err)
		assert.True(t, res.Success)

		client.mu.Lock()
		defer client.mu.Unlock()
		require.Len(t, client.created, 1)
		req := client.created[0]
		assert.Equal(t, "Derby", req.Title)
		require.NotNil(t, req.CategoryID)
		assert.Equal(t, int64(11), *req.CategoryID)
		assert.Len(t, req.Outcomes, 3)
		assert.Equal(t, "stored-logo.png", req.Image)
		require.Len(t, client.images, 1)
		assert.Equal(t, "image/png", client.images[0].ContentType)
	})
}

func TestLogin_RequiresBothFields(t *testing.T) {
	deps := newTestDeps(t, &fakeClient{})
	var ve *domain.ValidationError
	assert.ErrorAs(t, Login(context.Background(), deps, " ", "pw"), &ve)

	err := Login(context.Background(), deps, "me", "nope")
	var re *domain.RemoteError
	require.ErrorAs(t, err, &re)
	assert.False(t, deps.Sessions.IsAuthenticated())

	require.NoError(t, Login(context.Background(), deps, "me", "pw"))
	assert.True(t, deps.Sessions.IsAuthenticated())
	require.NoError(t, Logout(context.Background(), deps))
	assert.False(t, deps.Sessions.IsAuthenticated())
}

func TestPrintCategoriesAndOracles(t *testing.T) {
	deps := newTestDeps(t, &fakeClient{})

	var buf bytes.Buffer
	require.NoError(t, PrintCategories(&buf, deps))
	assert.Equal(t, "Sports\n  Football  [11]\n  Tennis  [12]\nPolitics  [2]\n", buf.String())

	buf.Reset()
	require.NoError(t, PrintOracles(&buf, deps))
	assert.Contains(t, buf.String(), "UMA")
	assert.Contains(t, buf.String(), "0xabc")
}

func TestPrintHistory_Disabled(t *testing.T) {
	deps := newTestDeps(t, &fakeClient{})
	err := PrintHistory(context.Background(), &bytes.Buffer{}, deps, 10)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
	"github.com/pydea-rs/omen-creator-panel/internal/session"
)

type fakeClient struct {
	mu         sync.Mutex
	base       string
	categories []domain.Category
	oracles    []domain.Oracle
	catErr     error
	gate       chan struct{}
	catCalls   int
	token      string
}

func (c *fakeClient) Login(_ context.Context, u, p string) (string, error) {
	if p != "pw" {
		return "", &domain.RemoteError{StatusCode: 401}
	}
	return c.token, nil
}

func (c *fakeClient) Categories(ctx context.Context) ([]domain.Category, error) {
	c.mu.Lock()
	c.catCalls++
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.categories, c.catErr
}

func (c *fakeClient) Oracles(context.Context) ([]domain.Oracle, error) {
	return c.oracles, nil
}

func (c *fakeClient) UploadImage(context.Context, string, domain.Image) (string, error) {
	return "f-" + c.base, nil
}

func (c *fakeClient) CreateMarket(context.Context, string, domain.CreateMarketRequest) error {
	return nil
}

var (
	epApp = domain.KnownEndpoints[0]
	epCom = domain.KnownEndpoints[1]
)

func newWorkspace(t *testing.T, clients map[string]*fakeClient, store domain.SessionStore, cache domain.ReferenceCache) *Workspace {
	t.Helper()
	mgr := session.NewManager(store, nil)
	return NewWorkspace(func(ep domain.Endpoint) Client { return clients[ep.BaseURL] }, mgr, cache, nil)
}

func TestWorkspace_SwitchClearsDataAndRederivesSessionBeforeInteractive(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, epCom.BaseURL, "com-token"))

	app := &fakeClient{base: "app", categories: []domain.Category{{ID: 1, Name: "A"}}, oracles: []domain.Oracle{{ID: 1}}}
	com := &fakeClient{base: "com", categories: []domain.Category{{ID: 2, Name: "C"}}, gate: make(chan struct{})}
	w := newWorkspace(t, map[string]*fakeClient{epApp.BaseURL: app, epCom.BaseURL: com}, store, nil)

	require.NoError(t, w.Select(ctx, epApp))
	assert.Len(t, w.Categories(), 1)
	assert.False(t, w.Session().IsAuthenticated())
	assert.True(t, w.Disabled(), "unauthenticated form stays disabled")

	done := make(chan error, 1)
	go func() { done <- w.Select(ctx, epCom) }()

	require.Eventually(t, func() bool {
		com.mu.Lock()
		defer com.mu.Unlock()
		return com.catCalls == 1
	}, time.Second, time.Millisecond)

	assert.True(t, w.Loading())
	assert.Nil(t, w.Categories(), "old endpoint's data is gone while loading")
	assert.Nil(t, w.Oracles())
	assert.Equal(t, "com-token", w.Session().Token, "session derived before loading ends")
	assert.True(t, w.Disabled())

	close(com.gate)
	require.NoError(t, <-done)
	assert.False(t, w.Loading())
	assert.Equal(t, "C", w.Categories()[0].Name)
	assert.False(t, w.Disabled())
}

func TestWorkspace_FetchFailuresAreIndividual(t *testing.T) {
	app := &fakeClient{catErr: errors.New("down"), oracles: []domain.Oracle{{ID: 7, Name: "UMA"}}}
	w := newWorkspace(t, map[string]*fakeClient{epApp.BaseURL: app}, session.NewMemoryStore(), nil)

	require.NoError(t, w.Select(context.Background(), epApp))
	assert.Nil(t, w.Categories())
	assert.Len(t, w.Oracles(), 1)
	errs := w.LoadErrors()
	assert.Contains(t, errs, "categories")
	assert.NotContains(t, errs, "oracles")
	assert.False(t, w.Loading())
}

func TestWorkspace_LoginRoutesToActiveEndpoint(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	app := &fakeClient{base: "app", token: "fresh"}
	w := newWorkspace(t, map[string]*fakeClient{epApp.BaseURL: app}, store, nil)

	assert.ErrorIs(t, w.Login(ctx, "u", "pw"), domain.ErrUnknownEndpoint)

	require.NoError(t, w.Select(ctx, epApp))
	assert.Error(t, w.Login(ctx, "u", "bad"))
	require.NoError(t, w.Login(ctx, "u", "pw"))
	assert.Equal(t, "fresh", w.Session().Token)
	stored, err := store.Get(ctx, epApp.BaseURL)
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored)

	name, err := w.UploadImage(ctx, "fresh", domain.Image{})
	require.NoError(t, err)
	assert.Equal(t, "f-app", name)

	require.NoError(t, w.Logout(ctx))
	require.NoError(t, w.Logout(ctx))
	assert.False(t, w.Session().IsAuthenticated())
}

func TestWorkspace_BusyGateDisables(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, epApp.BaseURL, "tok"))
	w := newWorkspace(t, map[string]*fakeClient{epApp.BaseURL: {}}, store, nil)
	require.NoError(t, w.Select(ctx, epApp))

	busy := false
	w.SetBusy(func() bool { return busy })
	assert.False(t, w.Disabled())
	busy = true
	assert.True(t, w.Disabled())
}

func TestWorkspace_CacheAvoidsRefetchUntilRefresh(t *testing.T) {
	ctx := context.Background()
	app := &fakeClient{categories: []domain.Category{{ID: 1, Name: "A"}}}
	cache := NewMemoryReferenceCache(time.Hour)
	w := newWorkspace(t, map[string]*fakeClient{epApp.BaseURL: app}, session.NewMemoryStore(), cache)

	require.NoError(t, w.Select(ctx, epApp))
	require.NoError(t, w.Select(ctx, epApp))
	assert.Equal(t, 1, app.catCalls)

	require.NoError(t, w.Refresh(ctx))
	assert.Equal(t, 2, app.catCalls)
}

func TestMemoryReferenceCache_Expires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryReferenceCache(time.Minute)
	c.now = func() time.Time { return now }

	require.NoError(t, c.SetOracles(ctx, "ep", []domain.Oracle{{ID: 1}}))
	got, err := c.Oracles(ctx, "ep")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = c.Categories(ctx, "ep")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	now = now.Add(2 * time.Minute)
	_, err = c.Oracles(ctx, "ep")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
	"github.com/pydea-rs/omen-creator-panel/internal/form"
	"github.com/pydea-rs/omen-creator-panel/internal/submission"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeWorkspace struct {
	mu       sync.Mutex
	endpoint domain.Endpoint
	token    string
	loading  bool
	cats     []domain.Category
	oracles  []domain.Oracle
	loadErrs map[string]error
	loginErr error
	selected []domain.Endpoint
}

func (f *fakeWorkspace) Endpoint() domain.Endpoint { return f.endpoint }
func (f *fakeWorkspace) Session() domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.Session{Endpoint: f.endpoint.BaseURL, Token: f.token}
}
func (f *fakeWorkspace) Select(_ context.Context, ep domain.Endpoint) error {
	f.endpoint = ep
	f.selected = append(f.selected, ep)
	return nil
}
func (f *fakeWorkspace) Refresh(context.Context) error { return nil }
func (f *fakeWorkspace) Login(_ context.Context, _, _ string) error {
	if f.loginErr != nil {
		return f.loginErr
	}
	f.mu.Lock()
	f.token = "tok"
	f.mu.Unlock()
	return nil
}
func (f *fakeWorkspace) Logout(context.Context) error {
	f.mu.Lock()
	f.token = ""
	f.mu.Unlock()
	return nil
}
func (f *fakeWorkspace) Categories() []domain.Category { return f.cats }
func (f *fakeWorkspace) Oracles() []domain.Oracle      { return f.oracles }
func (f *fakeWorkspace) Loading() bool                 { return f.loading }
func (f *fakeWorkspace) LoadErrors() map[string]error  { return f.loadErrs }

type fakeSubmitter struct {
	state  domain.SubmissionState
	result domain.SubmissionResult
	err    error
	got    []domain.MarketDraft
}

func (s *fakeSubmitter) State() domain.SubmissionState { return s.state }
func (s *fakeSubmitter) Submit(_ context.Context, d domain.MarketDraft) (domain.SubmissionResult, error) {
	s.got = append(s.got, d)
	return s.result, s.err
}

type fakeLocker struct{ err error }

func (l fakeLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	return func() {}, nil
}

func do(t *testing.T, h http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(method, "/", r))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var forest = []domain.Category{
	{ID: 1, Name: "Sports", SubCategories: []domain.Category{{ID: 11, Name: "Football"}}},
	{ID: 3, Name: "Crypto"},
}

const validBody = `{"title":"Will it rain?","deadline":"2026-12-01T00:00:00Z","outcomes":["Yes"," ","No"],"categoryId":11,"fee":2.5}`

func TestCreateMarket(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		loading    bool
		state      domain.SubmissionState
		body       string
		lock       Locker
		result     domain.SubmissionResult
		err        error
		wantStatus int
		wantKey    string
		wantValue  any
	}{
		{name: "nudges when logged out", body: validBody, wantStatus: http.StatusUnauthorized, wantKey: "action", wantValue: "login"},
		{name: "loading", token: "t", loading: true, body: validBody, wantStatus: http.StatusServiceUnavailable},
		{name: "busy", token: "t", state: domain.SubmissionState{Phase: domain.PhaseCreating}, body: validBody, wantStatus: http.StatusConflict},
		{name: "bad json", token: "t", body: `{"title":`, wantStatus: http.StatusBadRequest},
		{name: "unknown field", token: "t", body: `{"titel":"x"}`, wantStatus: http.StatusBadRequest},
		{name: "too few outcomes", token: "t", body: `{"deadline":"2026-12-01T00:00:00Z","outcomes":["Yes",""]}`,
			wantStatus: http.StatusUnprocessableEntity, wantKey: "error", wantValue: form.MsgMinOutcomes},
		{name: "fee out of range", token: "t", body: `{"deadline":"2026-12-01T00:00:00Z","outcomes":["a","b"],"fee":101}`,
			wantStatus: http.StatusUnprocessableEntity, wantKey: "field", wantValue: "fee"},
		{name: "non-leaf category", token: "t", body: `{"deadline":"2026-12-01T00:00:00Z","outcomes":["a","b"],"categoryId":1}`,
			wantStatus: http.StatusUnprocessableEntity, wantKey: "field", wantValue: "categoryId"},
		{name: "lock held", token: "t", body: validBody, lock: fakeLocker{err: domain.ErrLockHeld}, wantStatus: http.StatusConflict},
		{name: "superseded", token: "t", body: validBody, err: submission.ErrSuperseded, wantStatus: http.StatusConflict},
		{name: "created", token: "t", body: validBody, lock: fakeLocker{},
			result:     domain.SubmissionResult{ID: "s1", Success: true, Messages: []string{submission.MsgCreated}},
			wantStatus: http.StatusCreated, wantKey: "id", wantValue: "s1"},
		{name: "remote failure", token: "t", body: validBody,
			result:     domain.SubmissionResult{ID: "s2", Messages: []string{submission.MsgUnexpected}},
			wantStatus: http.StatusOK, wantKey: "success", wantValue: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := &fakeWorkspace{endpoint: domain.DefaultEndpoint(), token: tt.token, loading: tt.loading, cats: forest}
			sub := &fakeSubmitter{state: tt.state, result: tt.result, err: tt.err}
			h := NewSubmissionHandler(ws, sub, tt.lock, discard())

			rec := do(t, h.CreateMarket, http.MethodPost, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantKey != "" {
				assert.Equal(t, tt.wantValue, decode(t, rec)[tt.wantKey])
			}
		})
	}
}

type slowSession struct{}

func (slowSession) Token() string {
	time.Sleep(time.Millisecond)
	return "tok"
}
func (slowSession) Endpoint() string                    { return domain.DefaultEndpoint().BaseURL }
func (slowSession) ForceLogout(context.Context, string) {}

type blockingGateway struct {
	entered chan struct{}
	release chan struct{}
	creates atomic.Int32
}

func (g *blockingGateway) UploadImage(context.Context, string, domain.Image) (string, error) {
	return "img.png", nil
}

func (g *blockingGateway) CreateMarket(ctx context.Context, _ string, _ domain.CreateMarketRequest) error {
	if g.creates.Add(1) == 1 {
		close(g.entered)
	}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestCreateMarket_ConcurrentRequestsRunOneCycle(t *testing.T) {
	gw := &blockingGateway{entered: make(chan struct{}), release: make(chan struct{})}
	orch := submission.New(gw, slowSession{}, submission.Options{
		SuccessDelay: time.Hour,
		FailureDelay: time.Hour,
		Logger:       discard(),
	})
	t.Cleanup(orch.Reset)

	ws := &fakeWorkspace{endpoint: domain.DefaultEndpoint(), token: "t", cats: forest}
	h := NewSubmissionHandler(ws, orch, nil, discard())

	const n = 20
	start := make(chan struct{})
	codes := make(chan *httptest.ResponseRecorder, n)
	var losers sync.WaitGroup
	losers.Add(n - 1)
	for i := 0; i < n; i++ {
		go func() {
			<-start
			rec := httptest.NewRecorder()
			h.CreateMarket(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(validBody)))
			if rec.Code != http.StatusCreated {
				losers.Done()
			}
			codes <- rec
		}()
	}
	close(start)

	select {
	case <-gw.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("no request reached the gateway")
	}
	losers.Wait()
	close(gw.release)

	created := 0
	for i := 0; i < n; i++ {
		rec := <-codes
		switch rec.Code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			assert.Equal(t, domain.ErrSubmissionInFlight.Error(), decode(t, rec)["error"])
		default:
			t.Errorf("unexpected status %d: %s", rec.Code, rec.Body.String())
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, int32(1), gw.creates.Load())
}

func TestCreateMarket_PassesCleanDraft(t *testing.T) {
	ws := &fakeWorkspace{endpoint: domain.DefaultEndpoint(), token: "t"}
	sub := &fakeSubmitter{result: domain.SubmissionResult{Success: true}}
	h := NewSubmissionHandler(ws, sub, nil, discard())

	body := `{"title":"T","deadline":"2026-12-01T00:00:00Z","outcomes":[" Yes ","","No"],"image":{"name":"a.png","data":"iVBORw0KGgo="}}`
	rec := do(t, h.CreateMarket, http.MethodPost, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, sub.got, 1)
	d := sub.got[0]
	assert.Equal(t, []string{"Yes", "No"}, d.Outcomes)
	assert.Nil(t, d.StartAt)
	require.NotNil(t, d.Image)
	assert.Equal(t, "image/png", d.Image.ContentType)
}

func TestGetState(t *testing.T) {
	sub := &fakeSubmitter{state: domain.SubmissionState{Phase: domain.PhaseFailed, Message: submission.StateFailed, Details: []string{"x"}, Cycle: 3}}
	h := NewSubmissionHandler(&fakeWorkspace{}, sub, nil, discard())
	out := decode(t, do(t, h.GetState, http.MethodGet, ""))
	assert.Equal(t, "failed", out["phase"])
	assert.Equal(t, true, out["busy"])
	assert.Equal(t, float64(3), out["cycle"])
}

func TestSessionHandler(t *testing.T) {
	ws := &fakeWorkspace{endpoint: domain.DefaultEndpoint()}
	busy := false
	h := NewSessionHandler(ws, func() bool { return busy }, discard())

	out := decode(t, do(t, h.ListEndpoints, http.MethodGet, ""))
	assert.Len(t, out["endpoints"], len(domain.KnownEndpoints))

	rec := do(t, h.SelectEndpoint, http.MethodPut, `{"endpoint":"https://unknown/api"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	busy = true
	rec = do(t, h.SelectEndpoint, http.MethodPut, `{"endpoint":"Omenium Com (Staging)"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	busy = false

	rec = do(t, h.SelectEndpoint, http.MethodPut, `{"endpoint":"Omenium Com (Staging)"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ws.selected, 1)
	assert.Equal(t, "https://staging.omenium.com/api", ws.selected[0].BaseURL)

	rec = do(t, h.Login, http.MethodPost, `{"username":"","password":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	ws.loginErr = &domain.RemoteError{StatusCode: 401, Message: "Invalid credentials"}
	rec = do(t, h.Login, http.MethodPost, `{"username":"u","password":"p"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decode(t, rec)["error"])

	ws.loginErr = nil
	rec = do(t, h.Login, http.MethodPost, `{"username":"u","password":"p"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["authenticated"])
	assert.NotContains(t, rec.Body.String(), "tok")

	rec = do(t, h.Logout, http.MethodDelete, "")
	assert.Equal(t, false, decode(t, rec)["authenticated"])
}

func TestReferenceHandler(t *testing.T) {
	ws := &fakeWorkspace{cats: forest, loadErrs: map[string]error{"oracles": io.ErrUnexpectedEOF}}
	h := NewReferenceHandler(ws, discard())

	out := decode(t, do(t, h.ListCategories, http.MethodGet, ""))
	assert.Len(t, out["categories"], 2)
	assert.Nil(t, out["error"])

	out = decode(t, do(t, h.ListOracles, http.MethodGet, ""))
	assert.Equal(t, []any{}, out["oracles"])
	assert.Equal(t, io.ErrUnexpectedEOF.Error(), out["error"])
}

type fakeHistory struct{ opts domain.ListOpts }

func (f *fakeHistory) Recent(_ context.Context, opts domain.ListOpts) ([]domain.SubmissionRecord, error) {
	f.opts = opts
	return []domain.SubmissionRecord{{ID: "a", Outcome: domain.PhaseSucceeded}}, nil
}

func TestHistoryHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHistoryHandler(nil, discard()).ListHistory(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	hist := &fakeHistory{}
	rec = httptest.NewRecorder()
	NewHistoryHandler(hist, discard()).ListHistory(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=9999&offset=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ListOpts{Limit: 500, Offset: 5}, hist.opts)
	assert.Contains(t, rec.Body.String(), `"outcome":"succeeded"`)
}

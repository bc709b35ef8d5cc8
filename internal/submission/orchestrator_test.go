package submission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
	"github.com/pydea-rs/omen-creator-panel/internal/schedule"
)

type fakeGateway struct {
	mu         sync.Mutex
	uploads    int
	creates    []domain.CreateMarketRequest
	tokens     []string
	uploadName string
	uploadErr  error
	createErr  error
	// block, when set, makes CreateMarket wait for ctx cancellation.
	block chan struct{}
}

func (g *fakeGateway) UploadImage(_ context.Context, token string, _ domain.Image) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.uploads++
	g.tokens = append(g.tokens, token)
	return g.uploadName, g.uploadErr
}

func (g *fakeGateway) CreateMarket(ctx context.Context, token string, req domain.CreateMarketRequest) error {
	g.mu.Lock()
	g.creates = append(g.creates, req)
	g.tokens = append(g.tokens, token)
	block := g.block
	g.mu.Unlock()
	if block != nil {
		close(block)
		<-ctx.Done()
		return ctx.Err()
	}
	return g.createErr
}

func (g *fakeGateway) calls() (uploads, creates int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.uploads, len(g.creates)
}

type fakeSession struct {
	mu      sync.Mutex
	token   string
	logouts int
}

func (s *fakeSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) Endpoint() string { return "https://staging.omenium.app/api" }

func (s *fakeSession) ForceLogout(context.Context, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.logouts++
}

func validDraft() domain.MarketDraft {
	deadline := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.MarketDraft{
		Title:       "T",
		Description: "D",
		Deadline:    &deadline,
		Outcomes:    []string{"Yes", "No"},
	}
}

type harness struct {
	orch   *Orchestrator
	gw     *fakeGateway
	sess   *fakeSession
	clock  *schedule.Manual
	states []domain.SubmissionState
	recs   []domain.SubmissionRecord
	mu     sync.Mutex
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		gw:    &fakeGateway{uploadName: "img-1.png"},
		sess:  &fakeSession{token: "tok"},
		clock: schedule.NewManual(),
	}
	h.orch = New(h.gw, h.sess, Options{
		Scheduler: h.clock,
		Hooks: []Hook{HookFunc(func(_ context.Context, rec domain.SubmissionRecord) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.recs = append(h.recs, rec)
			return nil
		})},
	})
	h.orch.Subscribe(func(st domain.SubmissionState) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.states = append(h.states, st)
	})
	return h
}

func (h *harness) phases() []domain.Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Phase, 0, len(h.states))
	for _, s := range h.states {
		out = append(out, s.Phase)
	}
	return out
}

func TestSubmit_EndToEndWithoutImage(t *testing.T) {
	h := newHarness(t)

	res, err := h.orch.Submit(context.Background(), validDraft())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{MsgCreated}, res.Messages)

	uploads, creates := h.gw.calls()
	assert.Equal(t, 0, uploads)
	assert.Equal(t, 1, creates)

	st := h.orch.State()
	assert.Equal(t, domain.PhaseSucceeded, st.Phase)
	assert.Equal(t, StateSucceeded, st.Message)

	h.clock.Advance(1999 * time.Millisecond)
	assert.Equal(t, domain.PhaseSucceeded, h.orch.State().Phase)
	h.clock.Advance(time.Millisecond)
	assert.Equal(t, domain.PhaseIdle, h.orch.State().Phase)

	assert.Equal(t, []domain.Phase{domain.PhaseCreating, domain.PhaseSucceeded, domain.PhaseIdle}, h.phases())
	require.Len(t, h.recs, 1)
	assert.Equal(t, domain.PhaseSucceeded, h.recs[0].Outcome)
	assert.Equal(t, "T", h.recs[0].Title)
}

func TestSubmit_MapsDraftIntoRequest(t *testing.T) {
	h := newHarness(t)
	cat, oracle := int64(4), int64(9)
	fee, liq := 2.5, 100.0
	d := validDraft()
	d.CategoryID = &cat
	d.OracleID = &oracle
	d.Fee = &fee
	d.InitialLiquidity = &liq
	d.Outcomes = []string{" Yes ", "", "No", "Maybe"}
	d.Image = &domain.Image{Name: "a.png", Data: []byte{1}}

	_, err := h.orch.Submit(context.Background(), d)
	require.NoError(t, err)

	require.Len(t, h.gw.creates, 1)
	req := h.gw.creates[0]
	assert.Equal(t, []domain.OutcomeEntry{{Title: "Yes"}, {Title: "No"}, {Title: "Maybe"}}, req.Outcomes)
	assert.Equal(t, "img-1.png", req.Image)
	assert.Equal(t, &cat, req.CategoryID)
	assert.Equal(t, &oracle, req.OracleID)
	assert.Equal(t, &fee, req.Fee)
	assert.Equal(t, []string{"tok", "tok"}, h.gw.tokens)
	assert.Equal(t, []domain.Phase{domain.PhaseUploading, domain.PhaseCreating, domain.PhaseSucceeded}, h.phases())
	assert.Equal(t, "img-1.png", h.recs[0].ImageFilename)
}

func TestSubmit_EmptyUploadFilenameNeverCreates(t *testing.T) {
	h := newHarness(t)
	h.gw.uploadName = ""
	d := validDraft()
	d.Image = &domain.Image{Name: "a.png", Data: []byte{1}}

	res, err := h.orch.Submit(context.Background(), d)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, []string{MsgUploadFailed}, res.Messages)

	uploads, creates := h.gw.calls()
	assert.Equal(t, 1, uploads)
	assert.Equal(t, 0, creates)

	st := h.orch.State()
	assert.Equal(t, domain.PhaseFailed, st.Phase)
	assert.Equal(t, StateFailed, st.Message)
	assert.Equal(t, []string{MsgUploadFailed}, st.Details)

	h.clock.Advance(2999 * time.Millisecond)
	assert.Equal(t, domain.PhaseFailed, h.orch.State().Phase)
	h.clock.Advance(time.Millisecond)
	assert.Equal(t, domain.PhaseIdle, h.orch.State().Phase)
}

func TestSubmit_MissingTokenForcesLogout(t *testing.T) {
	h := newHarness(t)
	h.sess.token = ""

	res, err := h.orch.Submit(context.Background(), validDraft())
	require.NoError(t, err)
	assert.Equal(t, []string{MsgAuthConflict}, res.Messages)
	assert.Equal(t, 1, h.sess.logouts)
	uploads, creates := h.gw.calls()
	assert.Zero(t, uploads+creates)
}

func TestSubmit_MissingDeadlineIsLocal(t *testing.T) {
	h := newHarness(t)
	d := validDraft()
	d.Deadline = nil
	d.Image = &domain.Image{Name: "a.png", Data: []byte{1}}

	res, err := h.orch.Submit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{MsgDeadlineRequired}, res.Messages)
	uploads, creates := h.gw.calls()
	assert.Zero(t, uploads+creates)
}

func TestSubmit_UnauthorizedAtAnyStepLogsOut(t *testing.T) {
	for _, step := range []string{"upload", "create"} {
		t.Run(step, func(t *testing.T) {
			h := newHarness(t)
			d := validDraft()
			d.Image = &domain.Image{Name: "a.png", Data: []byte{1}}
			unauthorized := &domain.RemoteError{StatusCode: 401, Message: "Unauthorized"}
			if step == "upload" {
				h.gw.uploadErr = unauthorized
			} else {
				h.gw.createErr = unauthorized
			}

			res, err := h.orch.Submit(context.Background(), d)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, []string{MsgSessionExpired}, res.Messages)
			assert.Equal(t, 1, h.sess.logouts)
			assert.Equal(t, "", h.sess.Token())
			assert.Equal(t, domain.PhaseFailed, h.orch.State().Phase)
		})
	}
}

func TestSubmit_ValidationExceptionBullets(t *testing.T) {
	h := newHarness(t)
	h.gw.createErr = &domain.RemoteError{
		StatusCode: 400,
		Message:    "VALIDATION EXCEPTION",
		Fields:     []domain.FieldIssue{{Field: "title", Issue: "too short"}},
	}
	res, err := h.orch.Submit(context.Background(), validDraft())
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, MsgInvalidInput, res.Messages[0])
	assert.Contains(t, res.Messages[1], "title")
	assert.Contains(t, res.Messages[1], "too short")
}

func TestSubmit_NewSubmissionCancelsPendingRevert(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Submit(context.Background(), validDraft())
	require.NoError(t, err)

	h.clock.Advance(1500 * time.Millisecond)
	h.gw.createErr = errors.New("boom")
	res, err := h.orch.Submit(context.Background(), validDraft())
	require.NoError(t, err)
	assert.Equal(t, []string{"boom"}, res.Messages)

	// The first cycle's revert would have fired at 2000ms.
	h.clock.Advance(1000 * time.Millisecond)
	assert.Equal(t, domain.PhaseFailed, h.orch.State().Phase)
	h.clock.Advance(2000 * time.Millisecond)
	assert.Equal(t, domain.PhaseIdle, h.orch.State().Phase)
}

func TestSubmit_SupersededCycleIsCancelledAndDiscarded(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t)
	started := make(chan struct{})
	h.gw.block = started

	type outcome struct {
		res domain.SubmissionResult
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := h.orch.Submit(context.Background(), validDraft())
		first <- outcome{res, err}
	}()
	<-started

	h.gw.mu.Lock()
	h.gw.block = nil
	h.gw.mu.Unlock()

	res, err := h.orch.Submit(context.Background(), validDraft())
	require.NoError(t, err)
	assert.True(t, res.Success)

	got := <-first
	assert.ErrorIs(t, got.err, ErrSuperseded)
	assert.Equal(t, domain.PhaseSucceeded, h.orch.State().Phase)
	assert.Len(t, h.recs, 1, "superseded cycles are not recorded")
}

func TestReset(t *testing.T) {
	h := newHarness(t)
	h.gw.createErr = errors.New("x")
	_, _ = h.orch.Submit(context.Background(), validDraft())
	h.orch.Reset()
	assert.Equal(t, domain.PhaseIdle, h.orch.State().Phase)
	assert.Zero(t, h.clock.Len())
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	h := newHarness(t)
	count := 0
	unsub := h.orch.Subscribe(func(domain.SubmissionState) { count++ })
	unsub()
	_, _ = h.orch.Submit(context.Background(), validDraft())
	assert.Zero(t, count)
}

func TestHookErrorDoesNotChangeOutcome(t *testing.T) {
	h := newHarness(t)
	h.orch.AddHook(HookFunc(func(context.Context, domain.SubmissionRecord) error {
		return errors.New("history down")
	}))
	res, err := h.orch.Submit(context.Background(), validDraft())
	require.NoError(t, err)
	assert.True(t, res.Success)
}

// Package submission runs the market creation pipeline: optional image
// upload, then creation, with a visible progress state that reverts to idle
// after the result has been on screen for a while.
package submission

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
	"github.com/pydea-rs/omen-creator-panel/internal/schedule"
)

// ErrSuperseded is returned by Submit when a newer submission started
// before this one finished. Its result was discarded.
var ErrSuperseded = errors.New("submission superseded")

// Gateway is the remote side of a submission.
type Gateway interface {
	UploadImage(ctx context.Context, token string, img domain.Image) (string, error)
	CreateMarket(ctx context.Context, token string, req domain.CreateMarketRequest) error
}

// Session supplies the credential and lets the orchestrator drop it.
type Session interface {
	Token() string
	Endpoint() string
	ForceLogout(ctx context.Context, reason string)
}

// Hook runs after every finished cycle. Hooks are best-effort: errors are
// logged and never change the outcome.
type Hook interface {
	SubmissionFinished(ctx context.Context, rec domain.SubmissionRecord) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, rec domain.SubmissionRecord) error

// SubmissionFinished implements Hook.
func (f HookFunc) SubmissionFinished(ctx context.Context, rec domain.SubmissionRecord) error {
	return f(ctx, rec)
}

// Options configure an Orchestrator.
type Options struct {
	SuccessDelay time.Duration
	FailureDelay time.Duration
	Scheduler    schedule.Scheduler
	Logger       *slog.Logger
	Hooks        []Hook
	Now          func() time.Time
}

// DefaultOptions returns the standard display delays.
func DefaultOptions() Options {
	return Options{
		SuccessDelay: 2 * time.Second,
		FailureDelay: 3 * time.Second,
	}
}

// Orchestrator owns the submission state machine:
//
//	Idle → Uploading? → Creating → Succeeded | Failed → (timer) → Idle
//
// Callers are expected to keep the submit control disabled while the state
// is not Idle. A second Submit anyway cancels the first one's requests and
// pending revert and starts a fresh cycle.
type Orchestrator struct {
	gw     Gateway
	sess   Session
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	state  domain.SubmissionState
	cycle  uint64
	cancel context.CancelFunc
	revert *schedule.Task

	notifyMu  sync.Mutex
	observers map[int]func(domain.SubmissionState)
	nextObs   int
}

// New creates an idle Orchestrator.
func New(gw Gateway, sess Session, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.SuccessDelay <= 0 {
		opts.SuccessDelay = def.SuccessDelay
	}
	if opts.FailureDelay <= 0 {
		opts.FailureDelay = def.FailureDelay
	}
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		gw:        gw,
		sess:      sess,
		opts:      opts,
		logger:    opts.Logger.With(slog.String("component", "submission")),
		revert:    schedule.NewTask(opts.Scheduler),
		observers: make(map[int]func(domain.SubmissionState)),
	}
}

// AddHook registers a hook for later cycles.
func (o *Orchestrator) AddHook(h Hook) {
	o.mu.Lock()
	o.opts.Hooks = append(o.opts.Hooks, h)
	o.mu.Unlock()
}

// State returns the current state.
func (o *Orchestrator) State() domain.SubmissionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Subscribe registers fn to receive the state after every change. The
// returned function unsubscribes.
func (o *Orchestrator) Subscribe(fn func(domain.SubmissionState)) func() {
	o.notifyMu.Lock()
	id := o.nextObs
	o.nextObs++
	o.observers[id] = fn
	o.notifyMu.Unlock()
	return func() {
		o.notifyMu.Lock()
		delete(o.observers, id)
		o.notifyMu.Unlock()
	}
}

// Submit runs one cycle for draft and blocks until it reaches Succeeded or
// Failed. The returned error is non-nil only when the cycle was superseded
// by a newer Submit.
func (o *Orchestrator) Submit(ctx context.Context, draft domain.MarketDraft) (domain.SubmissionResult, error) {
	draft = draft.Clone()
	id := uuid.NewString()
	started := o.opts.Now()

	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.revert.Cancel()
	o.cycle++
	cycle := o.cycle
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.mu.Unlock()
	defer cancel()

	logger := o.logger.With(slog.String("submission_id", id), slog.Uint64("cycle", cycle))
	logger.DebugContext(ctx, "submission started", slog.String("title", draft.Title))

	filename, err := o.run(runCtx, cycle, draft)
	if !o.isCurrent(cycle) {
		logger.InfoContext(ctx, "submission superseded")
		return domain.SubmissionResult{ID: id}, ErrSuperseded
	}

	rec := domain.SubmissionRecord{
		ID:            id,
		Endpoint:      o.sess.Endpoint(),
		Title:         draft.Title,
		ImageFilename: filename,
		StartedAt:     started,
	}

	var result domain.SubmissionResult
	if err == nil {
		result = domain.SubmissionResult{ID: id, Success: true, Messages: []string{MsgCreated}}
		if !o.finish(cycle, domain.PhaseSucceeded, StateSucceeded, result.Messages, o.opts.SuccessDelay) {
			return domain.SubmissionResult{ID: id}, ErrSuperseded
		}
		rec.Outcome = domain.PhaseSucceeded
		logger.InfoContext(ctx, "market created", slog.String("image", filename))
	} else {
		c := Classify(err)
		if c.Logout {
			o.sess.ForceLogout(ctx, "server rejected the session")
		}
		result = domain.SubmissionResult{ID: id, Messages: c.Messages}
		if !o.finish(cycle, domain.PhaseFailed, StateFailed, c.Messages, o.opts.FailureDelay) {
			return domain.SubmissionResult{ID: id}, ErrSuperseded
		}
		rec.Outcome = domain.PhaseFailed
		logger.WarnContext(ctx, "market creation failed",
			slog.String("kind", c.Kind.String()),
			slog.Any("error", err),
		)
	}

	rec.Messages = result.Messages
	rec.FinishedAt = o.opts.Now()
	o.runHooks(context.WithoutCancel(ctx), rec)
	return result, nil
}

// Reset drops any cycle in flight and returns to Idle immediately.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.revert.Cancel()
	o.cycle++
	o.state = domain.SubmissionState{}
	o.mu.Unlock()
	o.publish()
}

// run performs the network steps and returns the uploaded filename.
func (o *Orchestrator) run(ctx context.Context, cycle uint64, draft domain.MarketDraft) (string, error) {
	token := o.sess.Token()
	if token == "" {
		o.sess.ForceLogout(ctx, "no token at submission start")
		return "", &domain.PreconditionError{Message: MsgAuthConflict}
	}
	if draft.Deadline == nil || draft.Deadline.IsZero() {
		return "", &domain.PreconditionError{Message: MsgDeadlineRequired}
	}

	var filename string
	if draft.Image != nil {
		if !o.transition(cycle, domain.PhaseUploading, StateUploading) {
			return "", ErrSuperseded
		}
		name, err := o.gw.UploadImage(ctx, token, *draft.Image)
		if err != nil {
			return "", err
		}
		if name == "" {
			return "", &domain.PreconditionError{Message: MsgUploadFailed}
		}
		filename = name
	}

	req, err := BuildRequest(draft, filename)
	if err != nil {
		return filename, err
	}
	if !o.transition(cycle, domain.PhaseCreating, StateCreating) {
		return filename, ErrSuperseded
	}
	if err := o.gw.CreateMarket(ctx, token, req); err != nil {
		return filename, err
	}
	return filename, nil
}

func (o *Orchestrator) transition(cycle uint64, phase domain.Phase, msg string) bool {
	o.mu.Lock()
	if o.cycle != cycle {
		o.mu.Unlock()
		return false
	}
	o.state = domain.SubmissionState{Phase: phase, Message: msg, Cycle: cycle}
	o.mu.Unlock()
	o.logger.Debug("submission state", slog.String("phase", phase.String()), slog.Uint64("cycle", cycle))
	o.publish()
	return true
}

// finish enters a terminal phase and schedules the revert to Idle.
func (o *Orchestrator) finish(cycle uint64, phase domain.Phase, msg string, details []string, delay time.Duration) bool {
	o.mu.Lock()
	if o.cycle != cycle {
		o.mu.Unlock()
		return false
	}
	o.state = domain.SubmissionState{
		Phase:   phase,
		Message: msg,
		Details: append([]string(nil), details...),
		Cycle:   cycle,
	}
	o.cancel = nil
	o.revert.Schedule(delay, func(gen uint64) {
		o.mu.Lock()
		if !o.revert.Current(gen) || o.cycle != cycle {
			o.mu.Unlock()
			return
		}
		o.revert.Done()
		o.state = domain.SubmissionState{}
		o.mu.Unlock()
		o.publish()
	})
	o.mu.Unlock()
	o.publish()
	return true
}

func (o *Orchestrator) isCurrent(cycle uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cycle == cycle
}

func (o *Orchestrator) snapshotLocked() domain.SubmissionState {
	st := o.state
	st.Details = append([]string(nil), o.state.Details...)
	return st
}

// publish delivers the latest state to observers, one delivery at a time.
func (o *Orchestrator) publish() {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()
	st := o.State()
	for _, fn := range o.observers {
		fn(st)
	}
}

func (o *Orchestrator) runHooks(ctx context.Context, rec domain.SubmissionRecord) {
	o.mu.Lock()
	hooks := append([]Hook(nil), o.opts.Hooks...)
	o.mu.Unlock()
	for _, h := range hooks {
		if err := h.SubmissionFinished(ctx, rec); err != nil {
			o.logger.WarnContext(ctx, "submission hook failed",
				slog.String("submission_id", rec.ID),
				slog.Any("error", err),
			)
		}
	}
}

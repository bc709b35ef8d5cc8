// Package form holds the editable market draft, validates it locally, and
// hands valid drafts to the submission pipeline.
package form

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pydea-rs/omen-creator-panel/internal/category"
	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// Validation messages.
const (
	MsgMinOutcomes = "Please provide at least 2 outcomes"
	MsgFeeRange    = "Fee must be between 0 and 100"
	MsgLiquidity   = "Initial liquidity cannot be negative"
	MsgDeadline    = "Resolving date (deadline) is required"
	MsgCategory    = "Please choose a category without subcategories"
)

// Submitter runs a validated draft.
type Submitter interface {
	Submit(ctx context.Context, draft domain.MarketDraft) (domain.SubmissionResult, error)
}

// Action tells the caller what a submit or image attempt turned into.
type Action int

const (
	// ActionNudge means the form was disabled and the login prompt should
	// be shown instead. It is not an error.
	ActionNudge Action = iota
	ActionRejected
	ActionSubmitted
	ActionApplied
)

func (a Action) String() string {
	switch a {
	case ActionNudge:
		return "nudge"
	case ActionRejected:
		return "rejected"
	case ActionSubmitted:
		return "submitted"
	default:
		return "applied"
	}
}

// Outcome is the result of Submit or AttachImage.
type Outcome struct {
	Action Action
	// Err is a *domain.ValidationError when Action is ActionRejected, or
	// the submitter's error when the cycle was superseded.
	Err    error
	Result domain.SubmissionResult
}

// Form is the draft aggregate. All field edits are refused with
// domain.ErrDisabled while the disabled gate is closed; the image picker
// and the submit action nudge toward login instead.
type Form struct {
	mu          sync.Mutex
	draft       domain.MarketDraft
	showStartAt bool

	submitter  Submitter
	disabled   func() bool
	onNudge    func()
	categories func() []domain.Category
}

// Option configures a Form.
type Option func(*Form)

// WithDisabled installs the gate that decides whether the form is usable.
func WithDisabled(fn func() bool) Option {
	return func(f *Form) { f.disabled = fn }
}

// WithNudge installs the callback that opens the login prompt.
func WithNudge(fn func()) Option {
	return func(f *Form) { f.onNudge = fn }
}

// WithCategories installs the source of the loaded category forest. Only
// leaves of it are accepted as the draft's category. While the forest is
// empty any id is kept and checked again on submit.
func WithCategories(fn func() []domain.Category) Option {
	return func(f *Form) { f.categories = fn }
}

// WithDefaultCategory preselects a category id. Zero means none.
func WithDefaultCategory(id int64) Option {
	return func(f *Form) {
		if id != 0 {
			f.draft.CategoryID = &id
		}
	}
}

// New creates a form with an empty draft.
func New(submitter Submitter, opts ...Option) *Form {
	f := &Form{
		draft:      domain.NewDraft(),
		submitter:  submitter,
		disabled:   func() bool { return false },
		categories: func() []domain.Category { return nil },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Disabled reports the gate state.
func (f *Form) Disabled() bool {
	return f.disabled()
}

// Draft returns a copy of the current draft.
func (f *Form) Draft() domain.MarketDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.Clone()
}

// StartAtVisible reports whether the start-at field is revealed.
func (f *Form) StartAtVisible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.showStartAt
}

// ToggleStartAt reveals or hides the start-at field. Hiding drops any value
// entered while it was visible.
func (f *Form) ToggleStartAt() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.showStartAt = !f.showStartAt
	if !f.showStartAt {
		f.draft.StartAt = nil
	}
	return f.showStartAt
}

func (f *Form) edit(fn func(d *domain.MarketDraft)) error {
	if f.disabled() {
		return domain.ErrDisabled
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.draft)
	return nil
}

// SetTitle sets the title.
func (f *Form) SetTitle(s string) error {
	return f.edit(func(d *domain.MarketDraft) { d.Title = s })
}

// SetDescription sets the description.
func (f *Form) SetDescription(s string) error {
	return f.edit(func(d *domain.MarketDraft) { d.Description = s })
}

// SetCategory sets the category. Pass nil to clear. A node that has
// subcategories is refused with domain.ErrNotLeaf.
func (f *Form) SetCategory(id *int64) error {
	if id != nil && !f.selectable(*id) {
		return domain.ErrNotLeaf
	}
	return f.edit(func(d *domain.MarketDraft) { d.CategoryID = copyPtr(id) })
}

func (f *Form) selectable(id int64) bool {
	return leafOrUnknown(f.categories(), id)
}

func leafOrUnknown(roots []domain.Category, id int64) bool {
	return len(roots) == 0 || category.IsSelectable(roots, id)
}

// checkCategory rejects a draft whose category is not a leaf of roots, such
// as a preselected default that turned out to be a parent.
func checkCategory(d domain.MarketDraft, roots []domain.Category) error {
	if d.CategoryID != nil && !leafOrUnknown(roots, *d.CategoryID) {
		return &domain.ValidationError{Field: "categoryId", Message: MsgCategory}
	}
	return nil
}

// SetDeadline sets the resolving date. Pass nil to clear.
func (f *Form) SetDeadline(t *time.Time) error {
	return f.edit(func(d *domain.MarketDraft) { d.Deadline = copyPtr(t) })
}

// SetStartAt sets the start date. It is ignored while the field is hidden.
func (f *Form) SetStartAt(t *time.Time) error {
	return f.edit(func(d *domain.MarketDraft) {
		if f.showStartAt {
			d.StartAt = copyPtr(t)
		}
	})
}

// SetReference sets the resolution reference.
func (f *Form) SetReference(s string) error {
	return f.edit(func(d *domain.MarketDraft) { d.Reference = s })
}

// SetInitialLiquidity sets the initial liquidity. Pass nil to clear.
func (f *Form) SetInitialLiquidity(v *float64) error {
	return f.edit(func(d *domain.MarketDraft) { d.InitialLiquidity = copyPtr(v) })
}

// SetOracle sets the oracle. Pass nil to clear.
func (f *Form) SetOracle(id *int64) error {
	return f.edit(func(d *domain.MarketDraft) { d.OracleID = copyPtr(id) })
}

// SetFee sets the fee. Range checks happen on submit, not while typing.
func (f *Form) SetFee(v *float64) error {
	return f.edit(func(d *domain.MarketDraft) { d.Fee = copyPtr(v) })
}

// SetOutcome replaces outcome i.
func (f *Form) SetOutcome(i int, s string) error {
	return f.edit(func(d *domain.MarketDraft) {
		if i >= 0 && i < len(d.Outcomes) {
			d.Outcomes[i] = s
		}
	})
}

// AddOutcome appends an empty outcome slot.
func (f *Form) AddOutcome() error {
	return f.edit(func(d *domain.MarketDraft) { d.Outcomes = append(d.Outcomes, "") })
}

// RemoveOutcome drops slot i. The list never shrinks below two entries; it
// reports whether a slot was removed.
func (f *Form) RemoveOutcome(i int) (bool, error) {
	removed := false
	err := f.edit(func(d *domain.MarketDraft) {
		if len(d.Outcomes) <= domain.MinOutcomes || i < 0 || i >= len(d.Outcomes) {
			return
		}
		d.Outcomes = append(d.Outcomes[:i:i], d.Outcomes[i+1:]...)
		removed = true
	})
	return removed, err
}

// AttachImage sets the image, or nudges toward login when disabled.
func (f *Form) AttachImage(img domain.Image) Outcome {
	if f.disabled() {
		f.nudge()
		return Outcome{Action: ActionNudge}
	}
	img.Data = append([]byte(nil), img.Data...)
	img.DetectContentType()
	f.mu.Lock()
	f.draft.Image = &img
	f.mu.Unlock()
	return Outcome{Action: ActionApplied}
}

// ClearImage removes the image.
func (f *Form) ClearImage() error {
	return f.edit(func(d *domain.MarketDraft) { d.Image = nil })
}

// Validate checks the draft and returns the copy that would be submitted:
// blank outcomes dropped, start-at removed when hidden.
func (f *Form) Validate() (domain.MarketDraft, error) {
	roots := f.categories()
	f.mu.Lock()
	defer f.mu.Unlock()
	draft, err := Validate(f.draft, f.showStartAt)
	if err == nil {
		err = checkCategory(draft, roots)
	}
	if err != nil {
		return domain.MarketDraft{}, err
	}
	return draft, nil
}

// Validate is the pure form of Form.Validate.
func Validate(d domain.MarketDraft, showStartAt bool) (domain.MarketDraft, error) {
	out := d.Clone()
	out.Outcomes = d.FilledOutcomes()
	if len(out.Outcomes) < domain.MinOutcomes {
		return domain.MarketDraft{}, &domain.ValidationError{Field: "outcomes", Message: MsgMinOutcomes}
	}
	if out.Fee != nil && (math.IsNaN(*out.Fee) || *out.Fee < 0 || *out.Fee > 100) {
		return domain.MarketDraft{}, &domain.ValidationError{Field: "fee", Message: MsgFeeRange}
	}
	if out.InitialLiquidity != nil && (math.IsNaN(*out.InitialLiquidity) || *out.InitialLiquidity < 0) {
		return domain.MarketDraft{}, &domain.ValidationError{Field: "initialLiquidity", Message: MsgLiquidity}
	}
	if out.Deadline == nil || out.Deadline.IsZero() {
		return domain.MarketDraft{}, &domain.ValidationError{Field: "deadline", Message: MsgDeadline}
	}
	if !showStartAt {
		out.StartAt = nil
	}
	return out, nil
}

// Submit validates and runs the draft. While disabled it nudges instead.
// The start-at field is hidden again once a valid draft is handed off.
func (f *Form) Submit(ctx context.Context) Outcome {
	if f.disabled() {
		f.nudge()
		return Outcome{Action: ActionNudge}
	}

	roots := f.categories()
	f.mu.Lock()
	draft, err := Validate(f.draft, f.showStartAt)
	if err == nil {
		err = checkCategory(draft, roots)
	}
	if err != nil {
		f.mu.Unlock()
		return Outcome{Action: ActionRejected, Err: err}
	}
	f.showStartAt = false
	f.draft.StartAt = nil
	f.mu.Unlock()

	res, err := f.submitter.Submit(ctx, draft)
	return Outcome{Action: ActionSubmitted, Result: res, Err: err}
}

func (f *Form) nudge() {
	if f.onNudge != nil {
		f.onNudge()
	}
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Package tui is the terminal front end: the market form, the login and
// endpoint dialogs, the cascading category menu and the submission overlay.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pydea-rs/omen-creator-panel/internal/category"
	"github.com/pydea-rs/omen-creator-panel/internal/domain"
	"github.com/pydea-rs/omen-creator-panel/internal/form"
	"github.com/pydea-rs/omen-creator-panel/internal/submission"
)

// Workspace is what the form needs from the endpoint working set.
type Workspace interface {
	Endpoint() domain.Endpoint
	Session() domain.Session
	Select(ctx context.Context, ep domain.Endpoint) error
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	Categories() []domain.Category
	Oracles() []domain.Oracle
	Loading() bool
	LoadErrors() map[string]error
	Disabled() bool
	OnChange(fn func())
}

// Submissions is the submission pipeline as seen by the form.
type Submissions interface {
	form.Submitter
	State() domain.SubmissionState
	Subscribe(fn func(domain.SubmissionState)) func()
}

// Options configure a Model.
type Options struct {
	// Endpoint is selected when the program starts. Zero keeps whatever
	// the workspace has.
	Endpoint        domain.Endpoint
	DefaultCategory int64
	Picker          category.Options
	Logger          *slog.Logger
}

type modal int

const (
	modalNone modal = iota
	modalLogin
	modalEndpoints
)

// Redraw signals pushed from other goroutines. Their payload is always
// re-read from the source, so dropping one while another is queued is
// harmless.
type (
	stateMsg     struct{}
	workspaceMsg struct{}
	cascadeMsg   struct{}
)

type loginDoneMsg struct{ err error }
type logoutDoneMsg struct{ err error }
type selectDoneMsg struct {
	ep  domain.Endpoint
	err error
}
type submitDoneMsg struct{ out form.Outcome }

// Model is the bubbletea model of the creator form.
type Model struct {
	ctx    context.Context
	ws     Workspace
	subs   Submissions
	form   *form.Form
	picker *category.Cascade
	logger *slog.Logger
	keys   keyMap
	styles map[style]lipgloss.Style

	events    chan tea.Msg
	done      chan struct{}
	closeOnce sync.Once
	unsub     func()

	initial domain.Endpoint

	width, height int

	focus    int
	inputs   map[fieldKind]*textinput.Model
	outcomes []textinput.Model
	fieldErr map[fieldKind]error

	// kb is the keyboard cursor inside the open category menu.
	kb struct{ level, index int }

	modal       modal
	user, pass  textinput.Model
	loginErr    string
	loginBusy   bool
	epCursor    int
	epErr       string
	submitting  bool
	status      string
	statusIsErr bool

	lastEndpoint string
	lastLoading  bool

	// Geometry of the last View, used to resolve mouse events.
	trigger  category.Rect
	layout   category.Layout
	rowField map[int]int
}

// New builds the model and subscribes it to the workspace, the
// submission pipeline and the category menu. Close releases the
// subscriptions.
func New(ctx context.Context, ws Workspace, subs Submissions, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Model{
		ctx:      ctx,
		ws:       ws,
		subs:     subs,
		logger:   logger.With(slog.String("component", "tui")),
		keys:     defaultKeyMap(),
		styles:   defaultPalette(),
		events:   make(chan tea.Msg, 64),
		done:     make(chan struct{}),
		initial:  opts.Endpoint,
		width:    80,
		height:   24,
		inputs:   make(map[fieldKind]*textinput.Model),
		fieldErr: make(map[fieldKind]error),
		rowField: make(map[int]int),
	}
	m.form = form.New(subs,
		form.WithDisabled(ws.Disabled),
		form.WithCategories(ws.Categories),
		form.WithDefaultCategory(opts.DefaultCategory),
	)

	pickerOpts := opts.Picker
	pickerOpts.OnSelect = func(id int64, name string) {
		if err := m.form.SetCategory(&id); err != nil {
			m.logger.Debug("category not applied", slog.Int64("id", id), slog.Any("error", err))
		}
	}
	pickerOpts.OnChange = func() { m.post(cascadeMsg{}) }
	m.picker = category.NewCascade(ws.Categories(), pickerOpts)
	m.picker.SetSelected(m.form.Draft().CategoryID)
	m.picker.SetDisabled(m.form.Disabled())

	for _, kind := range []fieldKind{fTitle, fDescription, fDeadline, fStartAt, fReference, fLiquidity, fFee, fImage} {
		in := newInput(kind)
		m.inputs[kind] = &in
	}
	for range m.form.Draft().Outcomes {
		m.outcomes = append(m.outcomes, newOutcomeInput(len(m.outcomes)))
	}
	m.user = textinput.New()
	m.user.Prompt = ""
	m.user.Placeholder = "username"
	m.pass = textinput.New()
	m.pass.Prompt = ""
	m.pass.Placeholder = "password"
	m.pass.EchoMode = textinput.EchoPassword
	m.pass.EchoCharacter = '•'

	ws.OnChange(func() { m.post(workspaceMsg{}) })
	m.unsub = subs.Subscribe(func(domain.SubmissionState) { m.post(stateMsg{}) })

	m.lastEndpoint = ws.Endpoint().BaseURL
	m.lastLoading = ws.Loading()
	m.setFocus(0)
	return m
}

func newOutcomeInput(i int) textinput.Model {
	in := newInput(fOutcome)
	in.Placeholder = []string{"Yes", "No"}[min(i, 1)]
	if i >= 2 {
		in.Placeholder = "another outcome"
	}
	return in
}

// post queues a redraw signal without blocking the sender.
func (m *Model) post(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
	}
}

// listen waits for the next signal.
func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.events:
			return msg
		case <-m.done:
			return nil
		}
	}
}

// Close drops the subscriptions. It is safe to call more than once.
func (m *Model) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		if m.unsub != nil {
			m.unsub()
		}
		m.picker.Close()
	})
}

// Form exposes the draft aggregate.
func (m *Model) Form() *form.Form { return m.form }

// Init starts listening and, when configured, selects the start endpoint.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.listen()}
	if m.initial.BaseURL != "" {
		cmds = append(cmds, m.selectCmd(m.initial))
	}
	return tea.Batch(cmds...)
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case stateMsg, workspaceMsg, cascadeMsg:
		m.sync()
		return m, m.listen()

	case loginDoneMsg:
		m.loginBusy = false
		if msg.err != nil {
			m.loginErr = errorText(msg.err)
			return m, nil
		}
		m.closeModal()
		m.setStatus("Logged in to "+m.ws.Endpoint().Name, false)
		return m, nil

	case logoutDoneMsg:
		if msg.err != nil {
			m.setStatus("Logout failed: "+msg.err.Error(), true)
		} else {
			m.setStatus("Logged out", false)
		}
		return m, nil

	case selectDoneMsg:
		if msg.err != nil {
			m.setStatus("Could not switch to "+msg.ep.Name+": "+msg.err.Error(), true)
		} else {
			m.setStatus("Using "+msg.ep.Name, false)
		}
		m.sync()
		return m, nil

	case submitDoneMsg:
		m.submitting = false
		m.onSubmitDone(msg.out)
		return m, nil

	case tea.MouseMsg:
		return m, m.handleMouse(msg)

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

// sync pulls derived state from the workspace and the pipeline. It only
// touches the menu when something actually changed, since the menu's own
// change signal leads back here.
func (m *Model) sync() {
	ep, loading := m.ws.Endpoint().BaseURL, m.ws.Loading()
	if ep != m.lastEndpoint || loading != m.lastLoading {
		m.lastEndpoint, m.lastLoading = ep, loading
		m.picker.SetRoots(m.ws.Categories())
	}
	if disabled := m.form.Disabled(); m.picker.View().Disabled != disabled {
		m.picker.SetDisabled(disabled)
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		m.Close()
		return tea.Quit
	}
	switch m.modal {
	case modalLogin:
		return m.handleLoginKey(msg)
	case modalEndpoints:
		return m.handleEndpointKey(msg)
	}

	if m.picker.IsOpen() && m.currentField().kind == fCategory {
		if cmd, ok := m.handleMenuKey(msg); ok {
			return cmd
		}
	}

	switch {
	case key.Matches(msg, m.keys.ToggleStartAt):
		if m.form.ToggleStartAt() {
			m.setStatus("Start date field shown", false)
		} else {
			m.inputs[fStartAt].SetValue("")
			m.setStatus("Start date field hidden", false)
		}
		m.setFocus(m.focus)
		return nil
	case key.Matches(msg, m.keys.Next):
		m.picker.Close()
		m.setFocus(m.focus + 1)
		return nil
	case key.Matches(msg, m.keys.Prev):
		m.picker.Close()
		m.setFocus(m.focus - 1)
		return nil
	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	case key.Matches(msg, m.keys.Login):
		m.openLogin()
		return nil
	case key.Matches(msg, m.keys.Logout):
		return m.logoutCmd()
	case key.Matches(msg, m.keys.Endpoints):
		m.openEndpoints()
		return nil
	case key.Matches(msg, m.keys.AddOutcome):
		m.addOutcome()
		return nil
	case key.Matches(msg, m.keys.RemoveOutcome):
		m.removeOutcome()
		return nil
	case key.Matches(msg, m.keys.Close):
		m.picker.Close()
		return nil
	}

	f := m.currentField()
	switch f.kind {
	case fCategory:
		if key.Matches(msg, m.keys.Activate) {
			m.openMenu()
		}
		return nil
	case fOracle:
		switch {
		case key.Matches(msg, m.keys.Left):
			m.cycleOracle(-1)
		case key.Matches(msg, m.keys.Right), key.Matches(msg, m.keys.Activate):
			m.cycleOracle(1)
		}
		return nil
	case fSubmit:
		if key.Matches(msg, m.keys.Activate) {
			return m.submit()
		}
		return nil
	case fImage:
		if msg.Type == tea.KeyEnter {
			m.attachImage()
			return nil
		}
	}

	// The form refuses edits while disabled; so does the input.
	if m.form.Disabled() {
		return nil
	}
	in := m.input(f)
	if in == nil {
		return nil
	}
	updated, cmd := in.Update(msg)
	*in = updated
	m.apply(f)
	return cmd
}

// handleMenuKey drives the open category menu from the keyboard. It
// reports whether the key was consumed.
func (m *Model) handleMenuKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	v := m.picker.View()
	if len(v.Levels) == 0 {
		return nil, false
	}
	if m.kb.level >= len(v.Levels) {
		m.kb.level, m.kb.index = len(v.Levels)-1, 0
	}
	nodes := v.Levels[m.kb.level].Nodes
	switch {
	case key.Matches(msg, m.keys.Close):
		m.picker.Close()
	case key.Matches(msg, m.keys.Up):
		if m.kb.index > 0 {
			m.kb.index--
		}
		m.hoverKB()
	case key.Matches(msg, m.keys.Down):
		if m.kb.index < len(nodes)-1 {
			m.kb.index++
		}
		m.hoverKB()
	case key.Matches(msg, m.keys.Left):
		if m.kb.level > 0 {
			m.kb.level--
			m.kb.index = max(v.Levels[m.kb.level].Active, 0)
			m.hoverKB()
		}
	case key.Matches(msg, m.keys.Right):
		m.descend(nodes)
	case key.Matches(msg, m.keys.Activate):
		if m.kb.index < len(nodes) && !nodes[m.kb.index].IsLeaf() {
			m.descend(nodes)
			break
		}
		if m.picker.Activate(m.kb.level, m.kb.index) {
			m.setStatus("Category: "+m.picker.Label(), false)
		}
	default:
		return nil, false
	}
	return nil, true
}

func (m *Model) descend(nodes []domain.Category) {
	if m.kb.index >= len(nodes) || nodes[m.kb.index].IsLeaf() {
		return
	}
	m.hoverKB()
	m.kb.level++
	m.kb.index = 0
	m.hoverKB()
}

func (m *Model) openMenu() {
	m.picker.Toggle()
	if m.picker.IsOpen() {
		m.kb.level, m.kb.index = 0, 0
		m.hoverKB()
	}
}

// hoverKB moves the menu highlight to the keyboard cursor.
func (m *Model) hoverKB() {
	v := m.picker.View()
	if m.kb.level >= len(v.Levels) {
		return
	}
	panel := menuGeometry(m.levelOrigin(v, m.kb.level), v.Levels[m.kb.level].Nodes)
	var row category.Rect
	if m.kb.index < len(panel.Rows) {
		row = panel.Rows[m.kb.index]
	}
	m.picker.Hover(m.kb.level, m.kb.index, row)
}

func (m *Model) levelOrigin(v category.View, level int) category.Point {
	if level == 0 {
		return category.Point{X: m.trigger.Left, Y: m.trigger.Bottom}
	}
	return v.Levels[level].Origin
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if m.modal != modalNone {
		return nil
	}
	p := category.Point{X: msg.X, Y: msg.Y}
	switch {
	case msg.Action == tea.MouseActionMotion:
		m.picker.Move(p)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		onFlyout := false
		if m.picker.IsOpen() {
			for _, panel := range m.layout.Panels {
				onFlyout = onFlyout || panel.Bounds.Contains(p)
			}
		}
		m.picker.Click(p)
		if onFlyout {
			return nil
		}
		if i, ok := m.rowField[p.Y]; ok {
			m.setFocus(i)
			if m.currentField().kind == fSubmit {
				return m.submit()
			}
		}
	}
	return nil
}

// fields lists the focusable lines in display order.
func (m *Model) fields() []field {
	out := []field{{kind: fTitle}, {kind: fDescription}, {kind: fCategory}, {kind: fDeadline}}
	if m.form.StartAtVisible() {
		out = append(out, field{kind: fStartAt})
	}
	for i := range m.outcomes {
		out = append(out, field{kind: fOutcome, outcome: i})
	}
	return append(out,
		field{kind: fReference},
		field{kind: fLiquidity},
		field{kind: fOracle},
		field{kind: fFee},
		field{kind: fImage},
		field{kind: fSubmit},
	)
}

func (m *Model) currentField() field {
	fs := m.fields()
	return fs[min(m.focus, len(fs)-1)]
}

func (m *Model) input(f field) *textinput.Model {
	if f.kind == fOutcome {
		if f.outcome < len(m.outcomes) {
			return &m.outcomes[f.outcome]
		}
		return nil
	}
	return m.inputs[f.kind]
}

// setFocus moves focus to line i, wrapping at both ends.
func (m *Model) setFocus(i int) {
	fs := m.fields()
	n := len(fs)
	m.focus = ((i % n) + n) % n
	for _, f := range fs {
		if in := m.input(f); in != nil {
			in.Blur()
		}
	}
	if in := m.input(fs[m.focus]); in != nil && fs[m.focus].textual() {
		in.Focus()
	}
}

// apply pushes an edited input into the draft.
func (m *Model) apply(f field) {
	in := m.input(f)
	v := in.Value()
	var err error
	switch f.kind {
	case fTitle:
		err = m.form.SetTitle(v)
	case fDescription:
		err = m.form.SetDescription(v)
	case fReference:
		err = m.form.SetReference(v)
	case fOutcome:
		err = m.form.SetOutcome(f.outcome, v)
	case fDeadline:
		t, perr := parseTime(v)
		m.fieldErr[fDeadline] = perr
		err = m.form.SetDeadline(t)
	case fStartAt:
		t, perr := parseTime(v)
		m.fieldErr[fStartAt] = perr
		err = m.form.SetStartAt(t)
	case fLiquidity:
		n, perr := parseNumber(v)
		m.fieldErr[fLiquidity] = perr
		err = m.form.SetInitialLiquidity(n)
	case fFee:
		n, perr := parseNumber(v)
		m.fieldErr[fFee] = perr
		err = m.form.SetFee(n)
	}
	if err != nil {
		m.logger.Debug("edit refused", slog.Any("error", err))
	}
}

func (m *Model) addOutcome() {
	if err := m.form.AddOutcome(); err != nil {
		return
	}
	m.outcomes = append(m.outcomes, newOutcomeInput(len(m.outcomes)))
	m.setFocus(m.indexOf(field{kind: fOutcome, outcome: len(m.outcomes) - 1}))
}

func (m *Model) removeOutcome() {
	f := m.currentField()
	if f.kind != fOutcome {
		return
	}
	removed, err := m.form.RemoveOutcome(f.outcome)
	if err != nil || !removed {
		if err == nil {
			m.setStatus("A market needs at least two outcomes", true)
		}
		return
	}
	m.outcomes = append(m.outcomes[:f.outcome:f.outcome], m.outcomes[f.outcome+1:]...)
	m.setFocus(m.focus)
}

func (m *Model) indexOf(target field) int {
	for i, f := range m.fields() {
		if f == target {
			return i
		}
	}
	return m.focus
}

func (m *Model) cycleOracle(step int) {
	oracles := m.ws.Oracles()
	if len(oracles) == 0 || m.form.Disabled() {
		return
	}
	// Position -1 is "no oracle".
	cur := -1
	if id := m.form.Draft().OracleID; id != nil {
		for i, o := range oracles {
			if o.ID == *id {
				cur = i
			}
		}
	}
	n := len(oracles) + 1
	next := ((cur+1+step)%n+n)%n - 1
	if next < 0 {
		_ = m.form.SetOracle(nil)
		return
	}
	id := oracles[next].ID
	_ = m.form.SetOracle(&id)
}

func (m *Model) attachImage() {
	path := strings.TrimSpace(m.inputs[fImage].Value())
	if path == "" {
		if err := m.form.ClearImage(); err == nil {
			m.setStatus("Image removed", false)
		} else if errors.Is(err, domain.ErrDisabled) {
			m.openLogin()
		}
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		m.setStatus("Cannot read image: "+err.Error(), true)
		return
	}
	out := m.form.AttachImage(domain.Image{Name: filepath.Base(path), Data: data})
	switch out.Action {
	case form.ActionNudge:
		m.openLogin()
	case form.ActionApplied:
		m.setStatus("Image attached: "+filepath.Base(path), false)
	}
}

func (m *Model) submit() tea.Cmd {
	if m.submitting {
		return nil
	}
	m.picker.Close()
	m.submitting = true
	f := m.form
	ctx := m.ctx
	return func() tea.Msg {
		return submitDoneMsg{out: f.Submit(ctx)}
	}
}

func (m *Model) onSubmitDone(out form.Outcome) {
	// A handed-off draft hides the start date again.
	if !m.form.StartAtVisible() {
		m.inputs[fStartAt].SetValue("")
		m.fieldErr[fStartAt] = nil
		m.setFocus(m.focus)
	}
	switch out.Action {
	case form.ActionNudge:
		m.openLogin()
	case form.ActionRejected:
		m.setStatus(errorText(out.Err), true)
	case form.ActionSubmitted:
		switch {
		case errors.Is(out.Err, submission.ErrSuperseded):
			m.setStatus("Submission superseded by a newer one", true)
		case out.Result.Success:
			m.setStatus(strings.Join(out.Result.Messages, " "), false)
		default:
			m.setStatus(strings.Join(out.Result.Messages, " "), true)
			if !m.ws.Session().IsAuthenticated() {
				m.openLogin()
			}
		}
	}
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status, m.statusIsErr = s, isErr
}

func (m *Model) openLogin() {
	m.picker.Close()
	m.modal = modalLogin
	m.loginErr = ""
	m.user.SetValue("")
	m.pass.SetValue("")
	m.user.Focus()
	m.pass.Blur()
}

func (m *Model) openEndpoints() {
	m.picker.Close()
	m.modal = modalEndpoints
	m.epErr = ""
	m.epCursor = 0
	active := m.ws.Endpoint().BaseURL
	for i, ep := range domain.KnownEndpoints {
		if ep.BaseURL == active {
			m.epCursor = i
		}
	}
}

func (m *Model) closeModal() {
	m.modal = modalNone
	m.user.Blur()
	m.pass.Blur()
}

func (m *Model) handleLoginKey(msg tea.KeyMsg) tea.Cmd {
	if m.loginBusy {
		return nil
	}
	switch {
	case key.Matches(msg, m.keys.Close):
		m.closeModal()
		return nil
	case msg.Type == tea.KeyTab || msg.Type == tea.KeyShiftTab:
		m.swapLoginFocus()
		return nil
	case msg.Type == tea.KeyEnter:
		if m.user.Focused() {
			m.swapLoginFocus()
			return nil
		}
		username, password := strings.TrimSpace(m.user.Value()), m.pass.Value()
		if username == "" || password == "" {
			m.loginErr = "Username and password are required"
			return nil
		}
		m.loginBusy = true
		m.loginErr = ""
		ws, ctx := m.ws, m.ctx
		return func() tea.Msg { return loginDoneMsg{err: ws.Login(ctx, username, password)} }
	}
	var cmd tea.Cmd
	if m.user.Focused() {
		m.user, cmd = m.user.Update(msg)
	} else {
		m.pass, cmd = m.pass.Update(msg)
	}
	return cmd
}

func (m *Model) swapLoginFocus() {
	if m.user.Focused() {
		m.user.Blur()
		m.pass.Focus()
	} else {
		m.pass.Blur()
		m.user.Focus()
	}
}

func (m *Model) handleEndpointKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Close):
		m.closeModal()
	case key.Matches(msg, m.keys.Up), msg.Type == tea.KeyShiftTab:
		m.epCursor = (m.epCursor - 1 + len(domain.KnownEndpoints)) % len(domain.KnownEndpoints)
	case key.Matches(msg, m.keys.Down), msg.Type == tea.KeyTab:
		m.epCursor = (m.epCursor + 1) % len(domain.KnownEndpoints)
	case key.Matches(msg, m.keys.Activate):
		if m.subs.State().Busy() {
			m.epErr = domain.ErrSubmissionInFlight.Error()
			return nil
		}
		ep := domain.KnownEndpoints[m.epCursor]
		m.closeModal()
		m.setStatus("Switching to "+ep.Name+"...", false)
		return m.selectCmd(ep)
	}
	return nil
}

func (m *Model) selectCmd(ep domain.Endpoint) tea.Cmd {
	ws, ctx := m.ws, m.ctx
	return func() tea.Msg { return selectDoneMsg{ep: ep, err: ws.Select(ctx, ep)} }
}

func (m *Model) logoutCmd() tea.Cmd {
	ws, ctx := m.ws, m.ctx
	return func() tea.Msg { return logoutDoneMsg{err: ws.Logout(ctx)} }
}

// errorText is the user-facing text of an error: a validation message or
// the server's message when there is one.
func errorText(err error) string {
	if err == nil {
		return ""
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var re *domain.RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return err.Error()
}

package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/mattn/go-runewidth"

	"github.com/pydea-rs/omen-creator-panel/internal/category"
	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

const (
	labelX     = 2
	valueX     = 22
	fieldsTop  = 3
	modalWidth = 52
)

// View renders the form. It also records the geometry it drew so that
// mouse events can be resolved against it.
func (m *Model) View() string {
	var c canvas
	disabled := m.form.Disabled()

	m.drawHeader(&c)
	y := m.drawFields(&c, disabled)

	if m.status != "" {
		st := stOK
		if m.statusIsErr {
			st = stError
		}
		lines := strings.Split(m.status, "\n")
		for i, line := range lines {
			c.put(labelX, y+1+i, line, st)
		}
		y += len(lines) - 1
	} else if disabled && !m.ws.Session().IsAuthenticated() {
		c.put(labelX, y+1, "Login required to create markets (ctrl+l)", stMuted)
	}
	c.put(labelX, y+3, m.keys.helpLine(), stMuted)

	layout := category.Layout{Trigger: m.trigger}
	if v := m.picker.View(); v.Open {
		for i, lvl := range v.Levels {
			layout.Panels = append(layout.Panels, drawMenu(&c, m.levelOrigin(v, i), lvl, v.Selected))
		}
	}
	m.layout = layout
	m.picker.SetLayout(layout)

	if st := m.subs.State(); st.Busy() {
		m.drawOverlay(&c, st)
	}
	switch m.modal {
	case modalLogin:
		m.drawLogin(&c)
	case modalEndpoints:
		m.drawEndpoints(&c)
	}
	return c.render(m.styles)
}

func (m *Model) drawHeader(c *canvas) {
	x := c.put(0, 0, "Omen Market Creator", stHeader)
	ep := m.ws.Endpoint()
	name := ep.Name
	if name == "" {
		name = "no endpoint selected"
	}
	x = c.put(x+2, 0, name, stLabel)
	if m.ws.Session().IsAuthenticated() {
		c.put(x+2, 0, "● logged in", stOK)
	} else {
		c.put(x+2, 0, "○ logged out", stMuted)
	}

	switch errs := m.ws.LoadErrors(); {
	case m.ws.Loading():
		c.put(0, 1, "Loading categories and oracles...", stMuted)
	case len(errs) > 0:
		keys := make([]string, 0, len(errs))
		for k := range errs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, "could not load "+k+": "+errs[k].Error())
		}
		c.put(0, 1, strings.Join(parts, "; "), stError)
	}
}

// drawFields draws one line per field and returns the line after them.
func (m *Model) drawFields(c *canvas, disabled bool) int {
	m.rowField = make(map[int]int)
	draft := m.form.Draft()
	fs := m.fields()
	y := fieldsTop
	for i, f := range fs {
		y = fieldsTop + i
		m.rowField[y] = i
		focused := i == m.focus
		if focused {
			c.put(0, y, "›", stFocus)
		}

		labelSt := stLabel
		switch {
		case focused:
			labelSt = stFocus
		case disabled:
			labelSt = stMuted
		}
		label := fieldLabels[f.kind]
		if f.kind == fOutcome {
			label = fmt.Sprintf("Outcome %d", f.outcome+1)
		}
		c.put(labelX, y, label, labelSt)

		switch f.kind {
		case fCategory:
			text := m.picker.Label()
			if text == "" {
				text = "Select a category"
			}
			st := stPlain
			if disabled {
				st = stMuted
			}
			end := c.put(valueX, y, "[ "+text+" ▾ ]", st)
			m.trigger = category.Rect{Left: valueX, Top: y, Right: end, Bottom: y + 1}
		case fOracle:
			name := "none"
			if draft.OracleID != nil {
				name = fmt.Sprintf("#%d", *draft.OracleID)
				for _, o := range m.ws.Oracles() {
					if o.ID == *draft.OracleID {
						name = o.Name
					}
				}
			}
			c.put(valueX, y, "‹ "+name+" ›", stPlain)
		case fSubmit:
			text, st := "[ Create market ]", stButton
			switch {
			case m.submitting:
				text = "[ Creating... ]"
			case disabled:
				st = stMuted
			}
			c.put(labelX, y, text, st)
		default:
			end := drawInput(c, valueX, y, m.input(f), focused)
			if err := m.fieldErr[f.kind]; err != nil {
				c.put(end+1, y, "! "+err.Error(), stError)
			}
			if f.kind == fImage && draft.Image != nil {
				c.put(end+1, y, fmt.Sprintf("✓ %s (%.1f KB)", draft.Image.Name, float64(len(draft.Image.Data))/1024), stOK)
			}
		}
	}
	return y + 1
}

// drawInput draws a text input and returns the column after it.
func drawInput(c *canvas, x, y int, in *textinput.Model, focused bool) int {
	value := []rune(in.Value())
	if in.EchoMode == textinput.EchoPassword {
		value = []rune(strings.Repeat(string(in.EchoCharacter), len(value)))
	}
	if len(value) == 0 && !focused {
		return c.put(x, y, in.Placeholder, stMuted)
	}
	end := c.put(x, y, string(value), stPlain)
	if !focused {
		return end
	}
	pos := min(in.Position(), len(value))
	cx := x + runewidth.StringWidth(string(value[:pos]))
	under := " "
	if pos < len(value) {
		under = string(value[pos])
	}
	return max(end, c.put(cx, y, under, stCursor))
}

// menuWidth is the inner width of a flyout: marker, name, chevron.
func menuWidth(nodes []domain.Category) int {
	w := 10
	for _, n := range nodes {
		w = max(w, runewidth.StringWidth(n.Name))
	}
	return w + 5
}

// menuGeometry lays out a flyout whose border starts at origin.
func menuGeometry(origin category.Point, nodes []domain.Category) category.Panel {
	w := menuWidth(nodes)
	h := max(len(nodes), 1)
	p := category.Panel{
		Bounds: category.Rect{Left: origin.X, Top: origin.Y, Right: origin.X + w + 2, Bottom: origin.Y + h + 2},
	}
	for i := range nodes {
		p.Rows = append(p.Rows, category.Rect{
			Left:   origin.X + 1,
			Top:    origin.Y + 1 + i,
			Right:  origin.X + 1 + w,
			Bottom: origin.Y + 2 + i,
		})
	}
	return p
}

func drawMenu(c *canvas, origin category.Point, lvl category.Level, selected *int64) category.Panel {
	p := menuGeometry(origin, lvl.Nodes)
	w := menuWidth(lvl.Nodes)
	c.box(origin.X, origin.Y, w, max(len(lvl.Nodes), 1), stBorder)
	if len(lvl.Nodes) == 0 {
		c.put(origin.X+2, origin.Y+1, "(empty)", stMuted)
		return p
	}
	for i, n := range lvl.Nodes {
		row := p.Rows[i]
		st := stMenu
		if i == lvl.Active {
			st = stMenuActive
		}
		c.fill(row.Left, row.Top, w, ' ', st)
		marker := "  "
		if selected != nil && *selected == n.ID {
			marker = "✓ "
		}
		c.put(row.Left, row.Top, marker+n.Name, st)
		if !n.IsLeaf() {
			c.put(row.Right-2, row.Top, "▸", st)
		}
	}
	return p
}

// centered returns the top-left corner of a w by h box in the middle of
// the terminal.
func (m *Model) centered(w, h int) (int, int) {
	return max((m.width-w-2)/2, 0), max((m.height-h-2)/2, 0)
}

func (m *Model) drawOverlay(c *canvas, st domain.SubmissionState) {
	lines := []string{st.Message}
	for _, d := range st.Details {
		lines = append(lines, strings.Split(d, "\n")...)
	}
	w := 0
	for _, l := range lines {
		w = max(w, runewidth.StringWidth(l))
	}
	w += 4
	h := len(lines) + 2
	x, y := m.centered(w, h)

	tone := stOverlay
	switch st.Phase {
	case domain.PhaseSucceeded:
		tone = stOK
	case domain.PhaseFailed:
		tone = stError
	}
	c.box(x, y, w, h, tone)
	for i, l := range lines {
		lineSt := stPlain
		if i == 0 {
			lineSt = tone
		}
		c.put(x+3, y+2+i, l, lineSt)
	}
}

func (m *Model) drawLogin(c *canvas) {
	h := 7
	x, y := m.centered(modalWidth, h)
	c.box(x, y, modalWidth, h, stBorder)
	c.put(x+2, y+1, "Login to "+m.ws.Endpoint().Name, stHeader)
	c.put(x+2, y+3, "Username", stLabel)
	drawInput(c, x+13, y+3, &m.user, m.user.Focused())
	c.put(x+2, y+4, "Password", stLabel)
	drawInput(c, x+13, y+4, &m.pass, m.pass.Focused())
	switch {
	case m.loginBusy:
		c.put(x+2, y+6, "Logging in...", stMuted)
	case m.loginErr != "":
		c.put(x+2, y+6, m.loginErr, stError)
	default:
		c.put(x+2, y+6, "enter: login  tab: switch  esc: cancel", stMuted)
	}
}

func (m *Model) drawEndpoints(c *canvas) {
	h := len(domain.KnownEndpoints) + 4
	x, y := m.centered(modalWidth, h)
	c.box(x, y, modalWidth, h, stBorder)
	c.put(x+2, y+1, "Select API endpoint", stHeader)
	active := m.ws.Endpoint().BaseURL
	for i, ep := range domain.KnownEndpoints {
		st := stPlain
		prefix := "  "
		if i == m.epCursor {
			st, prefix = stFocus, "› "
		}
		end := c.put(x+2, y+3+i, prefix+ep.Name, st)
		if ep.BaseURL == active {
			c.put(end+1, y+3+i, "(active)", stOK)
		}
	}
	if m.epErr != "" {
		c.put(x+2, y+h, m.epErr, stError)
	} else {
		c.put(x+2, y+h, "enter: switch  esc: cancel", stMuted)
	}
}

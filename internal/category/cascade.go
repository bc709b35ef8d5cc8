package category

import (
	"sync"
	"time"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
	"github.com/pydea-rs/omen-creator-panel/internal/schedule"
)

// Point is a screen position. Units are whatever the host renders in
// (pixels, terminal cells).
type Point struct {
	X, Y int
}

// Rect is a screen rectangle; Right and Bottom are exclusive.
type Rect struct {
	Left, Top, Right, Bottom int
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X < r.Right && p.Y >= r.Top && p.Y < r.Bottom
}

// Panel is the rendered geometry of one open level.
type Panel struct {
	Bounds Rect
	Rows   []Rect
}

// Layout is what the host last rendered. It lets pointer events be
// resolved to rows and outside clicks be told apart from clicks on a
// flyout that lives outside the trigger's own area.
type Layout struct {
	Trigger Rect
	Panels  []Panel
}

// Options configure a Cascade. A zero HideDelay or nil Scheduler falls back
// to the defaults; offsets are used as given.
type Options struct {
	// HideDelay is the grace period before a submenu closes once the
	// pointer has left it.
	HideDelay time.Duration
	// TopOffset moves a submenu up from its row's top edge.
	TopOffset int
	// Gap separates a submenu from its row's right edge.
	Gap int

	Scheduler schedule.Scheduler
	// OnSelect is called with the chosen leaf, outside the lock.
	OnSelect func(id int64, name string)
	// OnChange is called after every visible change, including those made
	// by the hide timer on another goroutine.
	OnChange func()
}

// DefaultOptions returns the pixel-based defaults.
func DefaultOptions() Options {
	return Options{HideDelay: 150 * time.Millisecond, TopOffset: 8, Gap: 4}
}

// Level is the render view of one open flyout.
type Level struct {
	Nodes []domain.Category
	// Origin is the top-left corner of a submenu. It is zero for the first
	// level, which the host anchors to the trigger.
	Origin Point
	// Active is the highlighted row, or -1.
	Active int
}

// View is a snapshot for rendering.
type View struct {
	Open     bool
	Disabled bool
	Label    string
	Selected *int64
	Levels   []Level
}

// frame is one entry of the hovered path: the parent row at a level whose
// children are shown one level deeper at origin.
type frame struct {
	node   domain.Category
	index  int
	origin Point
}

type cursor struct {
	level, index int
}

var noCursor = cursor{-1, -1}

// Cascade is the state machine behind the cascading category picker. The
// first level opens on an explicit toggle; deeper levels open on hover and
// close after a grace delay so the pointer can cross the gap between a row
// and its flyout.
//
// Cascade is safe for concurrent use.
type Cascade struct {
	mu   sync.Mutex
	opts Options

	roots    []domain.Category
	selected *int64
	label    string
	disabled bool
	open     bool

	path      []frame
	highlight cursor
	layout    Layout

	hide       *schedule.Task
	hideTarget int
}

// NewCascade builds a closed cascade over roots.
func NewCascade(roots []domain.Category, opts Options) *Cascade {
	def := DefaultOptions()
	if opts.HideDelay <= 0 {
		opts.HideDelay = def.HideDelay
	}
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.Real{}
	}
	return &Cascade{
		opts:      opts,
		roots:     roots,
		highlight: noCursor,
		hide:      schedule.NewTask(opts.Scheduler),
	}
}

// SetRoots replaces the forest wholesale and closes the menu. The label is
// re-resolved against the new forest.
func (c *Cascade) SetRoots(roots []domain.Category) {
	c.mu.Lock()
	c.roots = roots
	c.closeLocked()
	c.resolveLabelLocked()
	c.mu.Unlock()
	c.changed()
}

// SetSelected sets the current selection without firing OnSelect.
func (c *Cascade) SetSelected(id *int64) {
	c.mu.Lock()
	if id == nil {
		c.selected = nil
	} else {
		v := *id
		c.selected = &v
	}
	c.resolveLabelLocked()
	c.mu.Unlock()
	c.changed()
}

// SetDisabled toggles the disabled flag; disabling closes the menu.
func (c *Cascade) SetDisabled(disabled bool) {
	c.mu.Lock()
	c.disabled = disabled
	if disabled {
		c.closeLocked()
	}
	c.mu.Unlock()
	c.changed()
}

// SetLayout records the geometry the host rendered.
func (c *Cascade) SetLayout(l Layout) {
	c.mu.Lock()
	c.layout = l
	c.mu.Unlock()
}

// Toggle opens or closes the first level. It does nothing while disabled.
func (c *Cascade) Toggle() {
	c.mu.Lock()
	if c.disabled {
		c.mu.Unlock()
		return
	}
	if c.open {
		c.closeLocked()
	} else {
		c.open = true
	}
	c.mu.Unlock()
	c.changed()
}

// Close collapses every level without touching the selection.
func (c *Cascade) Close() {
	c.mu.Lock()
	wasOpen := c.open
	c.closeLocked()
	c.mu.Unlock()
	if wasOpen {
		c.changed()
	}
}

// IsOpen reports whether the first level is shown.
func (c *Cascade) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Hover handles the pointer entering row index of level. row is that row's
// screen rectangle and anchors the submenu of a parent node.
func (c *Cascade) Hover(level, index int, row Rect) {
	c.mu.Lock()
	node, ok := c.nodeLocked(level, index)
	if !ok {
		c.mu.Unlock()
		return
	}
	if c.hide.Pending() && c.hideTarget < level {
		c.hide.Cancel()
	}
	c.highlight = cursor{level, index}

	if !node.IsLeaf() {
		c.hide.Cancel()
		if len(c.path) > level && c.path[level].node.ID == node.ID && c.path[level].index == index {
			c.mu.Unlock()
			return
		}
		c.path = append(c.path[:level], frame{
			node:   node,
			index:  index,
			origin: Point{X: row.Right + c.opts.Gap, Y: row.Top - c.opts.TopOffset},
		})
		c.mu.Unlock()
		c.changed()
		return
	}

	if len(c.path) > level {
		c.scheduleCollapseLocked(level)
	} else {
		c.hide.Cancel()
	}
	c.mu.Unlock()
	c.changed()
}

// EnterPanel handles the pointer entering a level outside any row. It keeps
// that level alive by cancelling a pending hide that would remove it.
func (c *Cascade) EnterPanel(level int) {
	c.mu.Lock()
	if c.hide.Pending() && c.hideTarget < level {
		c.hide.Cancel()
	}
	c.mu.Unlock()
}

// Leave handles the pointer leaving every open level. Submenus close after
// the grace delay; the first level stays until a selection or an outside
// click.
func (c *Cascade) Leave() {
	c.mu.Lock()
	c.highlight = noCursor
	if len(c.path) > 0 {
		c.scheduleCollapseLocked(0)
	}
	c.mu.Unlock()
	c.changed()
}

// Activate handles a click on row index of level. A leaf becomes the
// selection, OnSelect fires, and every level closes. Clicking a parent row
// opens its submenu immediately. It reports whether a leaf was selected.
func (c *Cascade) Activate(level, index int) bool {
	c.mu.Lock()
	node, ok := c.nodeLocked(level, index)
	if !ok || c.disabled {
		c.mu.Unlock()
		return false
	}
	if !node.IsLeaf() {
		var row Rect
		if level < len(c.layout.Panels) && index < len(c.layout.Panels[level].Rows) {
			row = c.layout.Panels[level].Rows[index]
		}
		c.mu.Unlock()
		c.Hover(level, index, row)
		return false
	}

	id := node.ID
	c.selected = &id
	c.label = node.Name
	c.closeLocked()
	onSelect := c.opts.OnSelect
	c.mu.Unlock()

	if onSelect != nil {
		onSelect(node.ID, node.Name)
	}
	c.changed()
	return true
}

// Move resolves a pointer position against the recorded layout.
func (c *Cascade) Move(p Point) {
	level, index, inPanel := c.hit(p)
	switch {
	case index >= 0:
		c.mu.Lock()
		row := c.layout.Panels[level].Rows[index]
		c.mu.Unlock()
		c.Hover(level, index, row)
	case inPanel:
		c.EnterPanel(level)
	default:
		if c.IsOpen() {
			c.Leave()
		}
	}
}

// Click resolves a click against the recorded layout: the trigger toggles,
// a row activates, and anything outside the trigger and every open flyout
// closes the cascade.
func (c *Cascade) Click(p Point) {
	c.mu.Lock()
	onTrigger := c.layout.Trigger.Contains(p)
	c.mu.Unlock()
	if onTrigger {
		c.Toggle()
		return
	}
	level, index, inPanel := c.hit(p)
	switch {
	case index >= 0:
		c.Activate(level, index)
	case inPanel:
	default:
		c.Close()
	}
}

// View returns a render snapshot.
func (c *Cascade) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{Open: c.open, Disabled: c.disabled, Label: c.label}
	if c.selected != nil {
		id := *c.selected
		v.Selected = &id
	}
	if !c.open {
		return v
	}
	v.Levels = append(v.Levels, Level{Nodes: c.roots, Active: c.activeLocked(0)})
	for i, f := range c.path {
		v.Levels = append(v.Levels, Level{
			Nodes:  f.node.SubCategories,
			Origin: f.origin,
			Active: c.activeLocked(i + 1),
		})
	}
	return v
}

// Label returns the display name of the current selection.
func (c *Cascade) Label() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label
}

func (c *Cascade) activeLocked(level int) int {
	if level < len(c.path) {
		return c.path[level].index
	}
	if c.highlight.level == level {
		return c.highlight.index
	}
	return -1
}

func (c *Cascade) hit(p Point) (level, index int, inPanel bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return -1, -1, false
	}
	visible := len(c.path) + 1
	if visible > len(c.layout.Panels) {
		visible = len(c.layout.Panels)
	}
	// Deeper levels are drawn on top.
	for l := visible - 1; l >= 0; l-- {
		panel := c.layout.Panels[l]
		if !panel.Bounds.Contains(p) {
			continue
		}
		for i, r := range panel.Rows {
			if r.Contains(p) {
				return l, i, true
			}
		}
		return l, -1, true
	}
	return -1, -1, false
}

func (c *Cascade) nodeLocked(level, index int) (domain.Category, bool) {
	if !c.open || level < 0 || level > len(c.path) {
		return domain.Category{}, false
	}
	nodes := c.roots
	if level > 0 {
		nodes = c.path[level-1].node.SubCategories
	}
	if index < 0 || index >= len(nodes) {
		return domain.Category{}, false
	}
	return nodes[index], true
}

// scheduleCollapseLocked trims the hovered path to target levels after the
// grace delay. An identical pending collapse keeps its original deadline.
func (c *Cascade) scheduleCollapseLocked(target int) {
	if c.hide.Pending() && c.hideTarget == target {
		return
	}
	c.hideTarget = target
	c.hide.Schedule(c.opts.HideDelay, func(gen uint64) {
		c.mu.Lock()
		if !c.hide.Current(gen) {
			c.mu.Unlock()
			return
		}
		c.hide.Done()
		if len(c.path) > target {
			c.path = c.path[:target]
		}
		if c.highlight.level > target {
			c.highlight = noCursor
		}
		c.mu.Unlock()
		c.changed()
	})
}

func (c *Cascade) closeLocked() {
	c.open = false
	c.path = nil
	c.highlight = noCursor
	c.hide.Cancel()
}

func (c *Cascade) resolveLabelLocked() {
	c.label = ""
	if c.selected == nil {
		return
	}
	if name, ok := FindName(c.roots, *c.selected); ok {
		c.label = name
	}
}

func (c *Cascade) changed() {
	if c.opts.OnChange != nil {
		c.opts.OnChange()
	}
}

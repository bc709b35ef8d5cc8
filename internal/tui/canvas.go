package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// style names one entry of the palette a canvas renders with.
type style int

const (
	stPlain style = iota
	stHeader
	stLabel
	stMuted
	stFocus
	stCursor
	stError
	stOK
	stBorder
	stMenu
	stMenuActive
	stButton
	stOverlay
)

type cell struct {
	r     rune
	style style
	// cont marks the right half of a wide rune.
	cont bool
}

// canvas is a grid of terminal cells. Later writes cover earlier ones,
// which is how flyouts and modals are drawn over the form.
type canvas struct {
	lines [][]cell
}

func (c *canvas) grow(y, x int) {
	for len(c.lines) <= y {
		c.lines = append(c.lines, nil)
	}
	for len(c.lines[y]) < x {
		c.lines[y] = append(c.lines[y], cell{r: ' '})
	}
}

// put writes s at (x, y) and returns the column after it.
func (c *canvas) put(x, y int, s string, st style) int {
	if y < 0 {
		return x + runewidth.StringWidth(s)
	}
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if x >= 0 {
			c.grow(y, x+w)
			c.lines[y][x] = cell{r: r, style: st}
			if w == 2 {
				c.lines[y][x+1] = cell{cont: true, style: st}
			}
		}
		x += w
	}
	return x
}

// fill paints a w-wide run of r.
func (c *canvas) fill(x, y, w int, r rune, st style) {
	c.put(x, y, strings.Repeat(string(r), max(w, 0)), st)
}

// restyle changes the style of the w cells at (x, y).
func (c *canvas) restyle(x, y, w int, st style) {
	if y < 0 || y >= len(c.lines) {
		return
	}
	c.grow(y, x+w)
	for i := max(x, 0); i < x+w; i++ {
		c.lines[y][i].style = st
	}
}

// box draws a bordered rectangle with a blank interior of w by h cells.
func (c *canvas) box(x, y, w, h int, st style) {
	c.put(x, y, "┌"+strings.Repeat("─", w)+"┐", st)
	for i := 1; i <= h; i++ {
		c.put(x, y+i, "│", st)
		c.fill(x+1, y+i, w, ' ', stPlain)
		c.put(x+w+1, y+i, "│", st)
	}
	c.put(x, y+h+1, "└"+strings.Repeat("─", w)+"┘", st)
}

// render emits the grid, one styled span per run of equal style.
func (c *canvas) render(palette map[style]lipgloss.Style) string {
	var b strings.Builder
	for y, line := range c.lines {
		if y > 0 {
			b.WriteByte('\n')
		}
		var run strings.Builder
		cur := stPlain
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if ps, ok := palette[cur]; ok && cur != stPlain {
				b.WriteString(ps.Render(run.String()))
			} else {
				b.WriteString(run.String())
			}
			run.Reset()
		}
		for _, cl := range line {
			if cl.cont {
				continue
			}
			if cl.style != cur {
				flush()
				cur = cl.style
			}
			run.WriteRune(cl.r)
		}
		flush()
	}
	return b.String()
}

// plain returns the grid without styling.
func (c *canvas) plain() string {
	return c.render(nil)
}

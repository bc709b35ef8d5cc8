package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanvas_PutOverwrites(t *testing.T) {
	var c canvas
	c.put(0, 0, "hello world", stPlain)
	c.put(6, 0, "there", stFocus)
	c.put(2, 2, "x", stPlain)
	assert.Equal(t, "hello there\n\n  x", c.plain())
}

func TestCanvas_WideRunes(t *testing.T) {
	var c canvas
	end := c.put(0, 0, "日本", stPlain)
	assert.Equal(t, 4, end)
	c.put(end, 0, "!", stPlain)
	assert.Equal(t, "日本!", c.plain())
}

func TestCanvas_Box(t *testing.T) {
	var c canvas
	c.box(0, 0, 3, 1, stBorder)
	c.put(1, 1, "abc", stPlain)
	assert.Equal(t, "┌───┐\n│abc│\n└───┘", c.plain())
}

func TestCanvas_NegativeCoordinatesAreClipped(t *testing.T) {
	var c canvas
	c.put(-2, 0, "abcd", stPlain)
	c.put(0, -1, "zz", stPlain)
	assert.Equal(t, "cd", c.plain())
}

package tui

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
)

type fieldKind int

const (
	fTitle fieldKind = iota
	fDescription
	fCategory
	fDeadline
	fStartAt
	fOutcome
	fReference
	fLiquidity
	fOracle
	fFee
	fImage
	fSubmit
)

var fieldLabels = map[fieldKind]string{
	fTitle:       "Title",
	fDescription: "Description",
	fCategory:    "Category",
	fDeadline:    "Resolving date",
	fStartAt:     "Start at",
	fReference:   "Reference",
	fLiquidity:   "Initial liquidity",
	fOracle:      "Oracle",
	fFee:         "Fee (%)",
	fImage:       "Image path",
}

var fieldPlaceholders = map[fieldKind]string{
	fTitle:       "Will it rain in Lisbon tomorrow?",
	fDescription: "Resolution rules",
	fDeadline:    "YYYY-MM-DD HH:MM",
	fStartAt:     "YYYY-MM-DD HH:MM",
	fReference:   "https://",
	fLiquidity:   "0",
	fFee:         "0-100",
	fImage:       "path/to/image.png, enter to attach",
}

// field is one focusable line of the form. outcome indexes the outcome
// slot for fOutcome.
type field struct {
	kind    fieldKind
	outcome int
}

func (f field) textual() bool {
	switch f.kind {
	case fCategory, fOracle, fSubmit:
		return false
	}
	return true
}

func newInput(kind fieldKind) textinput.Model {
	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = fieldPlaceholders[kind]
	in.CharLimit = 2048
	return in
}

var timeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	time.RFC3339,
}

var (
	errBadTime   = errors.New("expected YYYY-MM-DD HH:MM")
	errBadNumber = errors.New("not a number")
)

// parseTime reads a local date. Blank input clears the field.
func parseTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, errBadTime
}

// parseNumber reads an optional decimal. Blank input clears the field.
func parseNumber(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errBadNumber
	}
	return &v, nil
}

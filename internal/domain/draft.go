package domain

import (
	"net/http"
	"strings"
	"time"
)

// MinOutcomes is the least number of outcomes a market can have.
const MinOutcomes = 2

// Image is an in-memory image attached to a draft.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// DetectContentType fills ContentType from the data when it is empty.
func (i *Image) DetectContentType() string {
	if i.ContentType == "" {
		i.ContentType = http.DetectContentType(i.Data)
	}
	return i.ContentType
}

// MarketDraft is the editable market definition held by the form.
type MarketDraft struct {
	Title            string
	Description      string
	CategoryID       *int64
	Deadline         *time.Time
	StartAt          *time.Time
	Outcomes         []string
	Image            *Image
	Reference        string
	InitialLiquidity *float64
	OracleID         *int64
	Fee              *float64
}

// NewDraft returns an empty draft with the minimum number of outcome slots.
func NewDraft() MarketDraft {
	return MarketDraft{Outcomes: make([]string, MinOutcomes)}
}

// FilledOutcomes returns the trimmed, non-blank outcomes in order.
func (d MarketDraft) FilledOutcomes() []string {
	out := make([]string, 0, len(d.Outcomes))
	for _, o := range d.Outcomes {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Clone returns a deep copy so the orchestrator never shares slices or
// pointers with the form being edited.
func (d MarketDraft) Clone() MarketDraft {
	c := d
	c.Outcomes = append([]string(nil), d.Outcomes...)
	if d.CategoryID != nil {
		v := *d.CategoryID
		c.CategoryID = &v
	}
	if d.Deadline != nil {
		v := *d.Deadline
		c.Deadline = &v
	}
	if d.StartAt != nil {
		v := *d.StartAt
		c.StartAt = &v
	}
	if d.Image != nil {
		img := *d.Image
		c.Image = &img
	}
	if d.InitialLiquidity != nil {
		v := *d.InitialLiquidity
		c.InitialLiquidity = &v
	}
	if d.OracleID != nil {
		v := *d.OracleID
		c.OracleID = &v
	}
	if d.Fee != nil {
		v := *d.Fee
		c.Fee = &v
	}
	return c
}

// OutcomeEntry is one outcome in the creation request.
type OutcomeEntry struct {
	Title string `json:"title"`
}

// CreateMarketRequest is the body of the market creation call.
type CreateMarketRequest struct {
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	CategoryID       *int64         `json:"categoryId,omitempty"`
	EndDate          time.Time      `json:"endDate"`
	StartAt          *time.Time     `json:"startAt,omitempty"`
	Outcomes         []OutcomeEntry `json:"outcomes"`
	Image            string         `json:"image,omitempty"`
	Reference        string         `json:"reference,omitempty"`
	InitialLiquidity *float64       `json:"initialLiquidity,omitempty"`
	OracleID         *int64         `json:"oracleId,omitempty"`
	Fee              *float64       `json:"fee,omitempty"`
}

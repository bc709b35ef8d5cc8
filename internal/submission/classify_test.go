package submission

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		msgs   []string
		logout bool
	}{
		{
			name: "precondition keeps its own text",
			err:  &domain.PreconditionError{Message: MsgUploadFailed},
			kind: KindPrecondition,
			msgs: []string{MsgUploadFailed},
		},
		{
			name: "local validation",
			err:  &domain.ValidationError{Field: "fee", Message: "Fee must be between 0 and 100"},
			kind: KindPrecondition,
			msgs: []string{"Fee must be between 0 and 100"},
		},
		{
			name:   "401 wrapped",
			err:    fmt.Errorf("omenium: create market: %w", &domain.RemoteError{StatusCode: 401}),
			kind:   KindAuthExpired,
			msgs:   []string{MsgSessionExpired},
			logout: true,
		},
		{
			name: "validation exception with fields",
			err: &domain.RemoteError{StatusCode: 400, Message: "validation exception", Fields: []domain.FieldIssue{
				{Field: "title", Issue: "too short"},
				{Field: "fee", Issue: "too high"},
			}},
			kind: KindValidationException,
			msgs: []string{MsgInvalidInput, "\n* title: too short", "\n* fee: too high"},
		},
		{
			name: "validation exception without fields",
			err:  &domain.RemoteError{StatusCode: 400, Message: "Validation exception"},
			kind: KindValidationException,
			msgs: []string{MsgInvalidInput},
		},
		{
			name: "other 400 uses body message",
			err:  &domain.RemoteError{StatusCode: 400, Message: "Category is archived"},
			kind: KindRemote,
			msgs: []string{"Category is archived"},
		},
		{
			name: "remote without body message",
			err:  &domain.RemoteError{StatusCode: 500},
			kind: KindRemote,
			msgs: []string{"request failed with status code 500"},
		},
		{
			name: "transport error message",
			err:  errors.New("dial tcp: connection refused"),
			kind: KindTransport,
			msgs: []string{"dial tcp: connection refused"},
		},
		{
			name: "transport error drops prefixes and url",
			err: fmt.Errorf("omenium: create market: %w", &url.Error{
				Op:  "Post",
				URL: "https://staging.omenium.app/api/prediction-market/create",
				Err: fmt.Errorf("dial tcp 10.0.0.1:443: %w", errors.New("connection refused")),
			}),
			kind: KindTransport,
			msgs: []string{"connection refused"},
		},
		{
			name: "timeout inside url error",
			err:  fmt.Errorf("omenium: upload image: %w", &url.Error{Op: "Post", URL: "https://x", Err: context.DeadlineExceeded}),
			kind: KindTransport,
			msgs: []string{"context deadline exceeded"},
		},
		{
			name: "nil error falls back",
			err:  nil,
			kind: KindTransport,
			msgs: []string{MsgUnexpected},
		},
		{
			name: "empty message falls back",
			err:  errors.New(""),
			kind: KindTransport,
			msgs: []string{MsgUnexpected},
		},
		{
			name: "cancelled context",
			err:  context.Canceled,
			kind: KindTransport,
			msgs: []string{"context canceled"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.err)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.msgs, c.Messages)
			assert.Equal(t, tt.logout, c.Logout)
		})
	}
}

func TestBuildRequest(t *testing.T) {
	deadline := time.Date(2030, 6, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	start := deadline.Add(-24 * time.Hour)
	req, err := BuildRequest(domain.MarketDraft{
		Title:     "  Will it rain?  ",
		Deadline:  &deadline,
		StartAt:   &start,
		Outcomes:  []string{"Yes", "  ", "No"},
		Reference: " https://weather.example ",
	}, "file.png")
	assert.NoError(t, err)
	assert.Equal(t, "Will it rain?", req.Title)
	assert.Equal(t, time.UTC, req.EndDate.Location())
	assert.True(t, req.EndDate.Equal(deadline))
	if assert.NotNil(t, req.StartAt) {
		assert.True(t, req.StartAt.Equal(start))
	}
	assert.Equal(t, []domain.OutcomeEntry{{Title: "Yes"}, {Title: "No"}}, req.Outcomes)
	assert.Equal(t, "file.png", req.Image)
	assert.Equal(t, "https://weather.example", req.Reference)

	_, err = BuildRequest(domain.MarketDraft{}, "")
	var pre *domain.PreconditionError
	assert.ErrorAs(t, err, &pre)
	assert.Equal(t, MsgDeadlineRequired, pre.Message)
}

package domain

import "context"

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// HistoryStore persists finished submissions.
type HistoryStore interface {
	Insert(ctx context.Context, rec SubmissionRecord) error
	ListRecent(ctx context.Context, opts ListOpts) ([]SubmissionRecord, error)
}

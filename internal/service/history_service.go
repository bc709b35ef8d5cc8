package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// HistoryService records finished submissions and lists them back.
type HistoryService struct {
	store  domain.HistoryStore
	logger *slog.Logger
}

// NewHistoryService creates a HistoryService over store.
func NewHistoryService(store domain.HistoryStore, logger *slog.Logger) *HistoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryService{store: store, logger: logger}
}

// SubmissionFinished stores rec. It satisfies submission.Hook.
func (s *HistoryService) SubmissionFinished(ctx context.Context, rec domain.SubmissionRecord) error {
	if err := s.store.Insert(ctx, rec); err != nil {
		return fmt.Errorf("history_service: insert %s: %w", rec.ID, err)
	}
	s.logger.DebugContext(ctx, "history_service: recorded submission",
		slog.String("submission_id", rec.ID),
		slog.String("outcome", rec.Outcome.String()),
	)
	return nil
}

// Recent returns the latest records, newest first. Limits outside 1..500
// fall back to 50.
func (s *HistoryService) Recent(ctx context.Context, opts domain.ListOpts) ([]domain.SubmissionRecord, error) {
	if opts.Limit <= 0 || opts.Limit > 500 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	recs, err := s.store.ListRecent(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("history_service: list: %w", err)
	}
	return recs, nil
}

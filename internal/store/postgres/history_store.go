package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// HistoryStore implements domain.HistoryStore using PostgreSQL.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a HistoryStore backed by the given pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// Insert records rec. Re-inserting an id is a no-op.
func (s *HistoryStore) Insert(ctx context.Context, rec domain.SubmissionRecord) error {
	const query = `
		INSERT INTO submission_history (
			id, endpoint, title, outcome, messages, image_filename, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	msgs := rec.Messages
	if msgs == nil {
		msgs = []string{}
	}
	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Endpoint, rec.Title, rec.Outcome.String(), msgs,
		rec.ImageFilename, rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert submission %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns records newest first.
func (s *HistoryStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.SubmissionRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, endpoint, title, outcome, messages, image_filename, started_at, finished_at
		FROM submission_history
		ORDER BY finished_at DESC, id
		LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list submissions: %w", err)
	}
	recs, err := scanHistoryRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan submissions: %w", err)
	}
	return recs, nil
}

func scanHistoryRows(rows pgx.Rows) ([]domain.SubmissionRecord, error) {
	defer rows.Close()
	var out []domain.SubmissionRecord
	for rows.Next() {
		var (
			r       domain.SubmissionRecord
			outcome string
		)
		if err := rows.Scan(&r.ID, &r.Endpoint, &r.Title, &outcome, &r.Messages,
			&r.ImageFilename, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		r.Outcome = domain.ParsePhase(outcome)
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ domain.HistoryStore = (*HistoryStore)(nil)

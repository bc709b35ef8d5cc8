// Package sqlite keeps the submission history in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS submission_history (
    id             TEXT PRIMARY KEY,
    endpoint       TEXT    NOT NULL,
    title          TEXT    NOT NULL DEFAULT '',
    outcome        TEXT    NOT NULL,
    messages       TEXT    NOT NULL DEFAULT '[]',
    image_filename TEXT    NOT NULL DEFAULT '',
    started_at     INTEGER NOT NULL,
    finished_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS submission_history_finished_at_idx
    ON submission_history (finished_at DESC);
`

// Open creates or opens the database at path with WAL enabled and the
// schema in place. ":memory:" gives a private in-process database.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// Every pooled connection to :memory: would see its own empty database.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: set WAL mode: %w", err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return db, nil
}

// HistoryStore implements domain.HistoryStore.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore wraps an opened database.
func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Insert records rec. Re-inserting an id is a no-op.
func (s *HistoryStore) Insert(ctx context.Context, rec domain.SubmissionRecord) error {
	msgs := rec.Messages
	if msgs == nil {
		msgs = []string{}
	}
	encoded, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("sqlite: encode messages: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO submission_history (
			id, endpoint, title, outcome, messages, image_filename, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Endpoint, rec.Title, rec.Outcome.String(), string(encoded),
		rec.ImageFilename, rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert submission %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns records newest first.
func (s *HistoryStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.SubmissionRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint, title, outcome, messages, image_filename, started_at, finished_at
		FROM submission_history
		ORDER BY finished_at DESC, id
		LIMIT ? OFFSET ?`, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list submissions: %w", err)
	}
	defer rows.Close()

	var out []domain.SubmissionRecord
	for rows.Next() {
		var (
			r                 domain.SubmissionRecord
			outcome, msgs     string
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &r.Endpoint, &r.Title, &outcome, &msgs,
			&r.ImageFilename, &started, &finished); err != nil {
			return nil, fmt.Errorf("sqlite: scan submission: %w", err)
		}
		if err := json.Unmarshal([]byte(msgs), &r.Messages); err != nil {
			return nil, fmt.Errorf("sqlite: decode messages of %s: %w", r.ID, err)
		}
		r.Outcome = domain.ParsePhase(outcome)
		r.StartedAt = time.UnixMilli(started).UTC()
		r.FinishedAt = time.UnixMilli(finished).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ domain.HistoryStore = (*HistoryStore)(nil)

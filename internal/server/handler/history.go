package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// HistoryLister lists finished submissions.
type HistoryLister interface {
	Recent(ctx context.Context, opts domain.ListOpts) ([]domain.SubmissionRecord, error)
}

// HistoryHandler serves the submission history.
type HistoryHandler struct {
	history HistoryLister
	logger  *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler. history may be nil when no
// store is configured.
func NewHistoryHandler(history HistoryLister, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{history: history, logger: logger.With(slog.String("handler", "history"))}
}

type recordResponse struct {
	ID            string    `json:"id"`
	Endpoint      string    `json:"endpoint"`
	Title         string    `json:"title"`
	Outcome       string    `json:"outcome"`
	Messages      []string  `json:"messages"`
	ImageFilename string    `json:"imageFilename,omitempty"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// ListHistory returns recent submissions, newest first.
// GET /api/history?limit=50&offset=0
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "submission history is disabled")
		return
	}
	recs, err := h.history.Recent(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list history failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		msgs := rec.Messages
		if msgs == nil {
			msgs = []string{}
		}
		out = append(out, recordResponse{
			ID:            rec.ID,
			Endpoint:      rec.Endpoint,
			Title:         rec.Title,
			Outcome:       rec.Outcome.String(),
			Messages:      msgs,
			ImageFilename: rec.ImageFilename,
			StartedAt:     rec.StartedAt,
			FinishedAt:    rec.FinishedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": out})
}

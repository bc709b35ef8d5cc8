package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pydea-rs/omen-creator-panel/internal/category"
	"github.com/pydea-rs/omen-creator-panel/internal/domain"
	"github.com/pydea-rs/omen-creator-panel/internal/form"
	"github.com/pydea-rs/omen-creator-panel/internal/submission"
)

// MsgLoginRequired answers a submit attempt without a session. Clients show
// the login prompt on it.
const MsgLoginRequired = "Please login first"

// lockTTL bounds how long a crashed server can keep an endpoint locked.
const lockTTL = 2 * time.Minute

// Submitter is the submission pipeline.
type Submitter interface {
	State() domain.SubmissionState
	Submit(ctx context.Context, draft domain.MarketDraft) (domain.SubmissionResult, error)
}

// Locker serialises submissions across servers sharing a backend.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SubmissionHandler serves market creation.
type SubmissionHandler struct {
	ws     Workspace
	sub    Submitter
	lock   Locker
	logger *slog.Logger

	// inFlight is held from before Submit until it returns. The orchestrator
	// stays Idle until its first transition, so State alone cannot refuse a
	// concurrent request.
	inFlight atomic.Bool
}

// NewSubmissionHandler creates a SubmissionHandler. lock may be nil.
func NewSubmissionHandler(ws Workspace, sub Submitter, lock Locker, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{ws: ws, sub: sub, lock: lock, logger: logger.With(slog.String("handler", "submission"))}
}

type stateResponse struct {
	Phase   string   `json:"phase"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
	Cycle   uint64   `json:"cycle"`
	Busy    bool     `json:"busy"`
}

func toStateResponse(st domain.SubmissionState) stateResponse {
	return stateResponse{
		Phase:   st.Phase.String(),
		Message: st.Message,
		Details: st.Details,
		Cycle:   st.Cycle,
		Busy:    st.Busy(),
	}
}

// GetState returns the current submission state.
// GET /api/submission
func (h *SubmissionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStateResponse(h.sub.State()))
}

type imageBody struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Data        []byte `json:"data"` // base64
}

type createMarketBody struct {
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	CategoryID       *int64     `json:"categoryId"`
	Deadline         *time.Time `json:"deadline"`
	StartAt          *time.Time `json:"startAt"`
	Outcomes         []string   `json:"outcomes"`
	Reference        string     `json:"reference"`
	InitialLiquidity *float64   `json:"initialLiquidity"`
	OracleID         *int64     `json:"oracleId"`
	Fee              *float64   `json:"fee"`
	Image            *imageBody `json:"image"`
}

func (b createMarketBody) draft() domain.MarketDraft {
	d := domain.MarketDraft{
		Title:            b.Title,
		Description:      b.Description,
		CategoryID:       b.CategoryID,
		Deadline:         b.Deadline,
		StartAt:          b.StartAt,
		Outcomes:         b.Outcomes,
		Reference:        b.Reference,
		InitialLiquidity: b.InitialLiquidity,
		OracleID:         b.OracleID,
		Fee:              b.Fee,
	}
	if b.Image != nil && len(b.Image.Data) > 0 {
		img := domain.Image{Name: b.Image.Name, ContentType: b.Image.ContentType, Data: b.Image.Data}
		img.DetectContentType()
		d.Image = &img
	}
	return d
}

type validationResponse struct {
	Error string `json:"error"`
	Field string `json:"field"`
}

type resultResponse struct {
	ID       string   `json:"id"`
	Success  bool     `json:"success"`
	Messages []string `json:"messages"`
}

// CreateMarket validates the draft and runs one submission cycle, answering
// once it reaches Succeeded or Failed. A failed cycle is still a 200 with
// success=false; the messages are what a user would have been shown.
// POST /api/markets
func (h *SubmissionHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	if !h.ws.Session().IsAuthenticated() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": MsgLoginRequired, "action": "login"})
		return
	}
	if h.ws.Loading() {
		writeError(w, http.StatusServiceUnavailable, "endpoint data is still loading")
		return
	}
	if h.sub.State().Busy() {
		writeError(w, http.StatusConflict, domain.ErrSubmissionInFlight.Error())
		return
	}

	var body createMarketBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	draft, err := form.Validate(body.draft(), body.StartAt != nil)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Error: ve.Message, Field: ve.Field})
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if draft.CategoryID != nil {
		if roots := h.ws.Categories(); len(roots) > 0 && !category.IsSelectable(roots, *draft.CategoryID) {
			writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Error: domain.ErrNotLeaf.Error(), Field: "categoryId"})
			return
		}
	}

	if !h.inFlight.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, domain.ErrSubmissionInFlight.Error())
		return
	}
	defer h.inFlight.Store(false)

	// The cycle outlives a client that hangs up mid-request.
	ctx := context.WithoutCancel(r.Context())

	if h.lock != nil {
		unlock, err := h.lock.Acquire(ctx, "submission:"+h.ws.Endpoint().BaseURL, lockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			writeError(w, http.StatusConflict, domain.ErrSubmissionInFlight.Error())
			return
		}
		if err != nil {
			h.logger.WarnContext(ctx, "submission lock unavailable, continuing", slog.Any("error", err))
		} else {
			defer unlock()
		}
	}

	res, err := h.sub.Submit(ctx, draft)
	if errors.Is(err, submission.ErrSuperseded) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "submission error", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "submission failed")
		return
	}

	status := http.StatusOK
	if res.Success {
		status = http.StatusCreated
	}
	writeJSON(w, status, resultResponse{ID: res.ID, Success: res.Success, Messages: res.Messages})
}

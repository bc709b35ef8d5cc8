package handler

import (
	"log/slog"
	"net/http"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// ReferenceHandler serves the active endpoint's categories and oracles.
type ReferenceHandler struct {
	ws     Workspace
	logger *slog.Logger
}

// NewReferenceHandler creates a ReferenceHandler.
func NewReferenceHandler(ws Workspace, logger *slog.Logger) *ReferenceHandler {
	return &ReferenceHandler{ws: ws, logger: logger.With(slog.String("handler", "reference"))}
}

type categoriesResponse struct {
	Categories []domain.Category `json:"categories"`
	Loading    bool              `json:"loading"`
	Error      string            `json:"error,omitempty"`
}

// ListCategories returns the category forest. A failed fetch yields an
// empty list plus the error text, never a failed request.
// GET /api/categories
func (h *ReferenceHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	resp := categoriesResponse{Categories: h.ws.Categories(), Loading: h.ws.Loading()}
	if resp.Categories == nil {
		resp.Categories = []domain.Category{}
	}
	if err := h.ws.LoadErrors()["categories"]; err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type oraclesResponse struct {
	Oracles []domain.Oracle `json:"oracles"`
	Loading bool            `json:"loading"`
	Error   string          `json:"error,omitempty"`
}

// ListOracles returns the oracle list.
// GET /api/oracles
func (h *ReferenceHandler) ListOracles(w http.ResponseWriter, r *http.Request) {
	resp := oraclesResponse{Oracles: h.ws.Oracles(), Loading: h.ws.Loading()}
	if resp.Oracles == nil {
		resp.Oracles = []domain.Oracle{}
	}
	if err := h.ws.LoadErrors()["oracles"]; err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh drops cached reference data and reloads it.
// POST /api/reference/refresh
func (h *ReferenceHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.Refresh(r.Context()); err != nil {
		writeError(w, remoteStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": len(h.ws.Categories()), "oracles": len(h.ws.Oracles())})
}

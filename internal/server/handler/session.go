package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// Workspace is the slice of the endpoint working set the API needs.
type Workspace interface {
	Endpoint() domain.Endpoint
	Session() domain.Session
	Select(ctx context.Context, ep domain.Endpoint) error
	Refresh(ctx context.Context) error
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	Categories() []domain.Category
	Oracles() []domain.Oracle
	Loading() bool
	LoadErrors() map[string]error
}

// SessionHandler serves endpoint selection and login.
type SessionHandler struct {
	ws     Workspace
	busy   func() bool
	logger *slog.Logger
}

// NewSessionHandler creates a SessionHandler. busy reports a submission in
// flight; endpoint switches are refused meanwhile.
func NewSessionHandler(ws Workspace, busy func() bool, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{ws: ws, busy: busy, logger: logger.With(slog.String("handler", "session"))}
}

type endpointsResponse struct {
	Endpoints []domain.Endpoint `json:"endpoints"`
	Active    domain.Endpoint   `json:"active"`
}

// ListEndpoints returns the known endpoints and the active one.
// GET /api/endpoints
func (h *SessionHandler) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, endpointsResponse{Endpoints: domain.KnownEndpoints, Active: h.ws.Endpoint()})
}

type selectEndpointRequest struct {
	// Endpoint is a known endpoint's name or base URL.
	Endpoint string `json:"endpoint"`
}

// SelectEndpoint switches the active endpoint and reloads its data.
// PUT /api/endpoint
func (h *SessionHandler) SelectEndpoint(w http.ResponseWriter, r *http.Request) {
	var req selectEndpointRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	ep, err := domain.LookupEndpoint(req.Endpoint)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.busy() {
		writeError(w, http.StatusConflict, domain.ErrSubmissionInFlight.Error())
		return
	}
	if err := h.ws.Select(r.Context(), ep); err != nil {
		h.logger.ErrorContext(r.Context(), "select endpoint failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load session for endpoint")
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView())
}

type sessionResponse struct {
	Endpoint      domain.Endpoint   `json:"endpoint"`
	Authenticated bool              `json:"authenticated"`
	Loading       bool              `json:"loading"`
	LoadErrors    map[string]string `json:"loadErrors,omitempty"`
}

func (h *SessionHandler) sessionView() sessionResponse {
	resp := sessionResponse{
		Endpoint:      h.ws.Endpoint(),
		Authenticated: h.ws.Session().IsAuthenticated(),
		Loading:       h.ws.Loading(),
	}
	if errs := h.ws.LoadErrors(); len(errs) > 0 {
		resp.LoadErrors = make(map[string]string, len(errs))
		for k, v := range errs {
			resp.LoadErrors[k] = v.Error()
		}
	}
	return resp
}

// GetSession reports the active endpoint and whether it is logged in. The
// token itself is never returned.
// GET /api/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessionView())
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates against the active endpoint.
// POST /api/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}
	if err := h.ws.Login(r.Context(), req.Username, req.Password); err != nil {
		status := remoteStatus(err)
		h.logger.WarnContext(r.Context(), "login failed", slog.Int("status", status), slog.Any("error", err))
		msg := "login failed"
		var re *domain.RemoteError
		if errors.As(err, &re) && re.Message != "" {
			msg = re.Message
		} else if status == http.StatusBadRequest {
			msg = err.Error()
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView())
}

// Logout drops the active endpoint's session. Repeating it is harmless.
// DELETE /api/session
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.Logout(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "logout failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView())
}

package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnknownEndpoint    = errors.New("unknown api endpoint")
	ErrNotLeaf            = errors.New("category is not a leaf")
	ErrDisabled           = errors.New("form is disabled")
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	ErrLockHeld           = errors.New("lock already held")
)

// ValidationError is a local field problem caught before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// PreconditionError is raised by the orchestrator itself when a submission
// cannot proceed (missing token, missing deadline, empty upload filename).
// Its message is shown to the user as is.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string { return e.Message }

// FieldIssue is one entry of a validation-exception body, kept in the order
// the server sent it.
type FieldIssue struct {
	Field string
	Issue string
}

// RemoteError is any non-2xx answer from the API.
type RemoteError struct {
	StatusCode int
	// Message is the body's "message" field, if any.
	Message string
	Fields  []FieldIssue
	Body    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

// Unauthorized reports whether the server rejected the credential.
func (e *RemoteError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// ValidationException reports whether the body is a structured per-field
// validation failure.
func (e *RemoteError) ValidationException() bool {
	return e.StatusCode == http.StatusBadRequest &&
		strings.EqualFold(strings.TrimSpace(e.Message), "validation exception")
}

// Is lets errors.Is(err, ErrUnauthorized) match a 401.
func (e *RemoteError) Is(target error) bool {
	return target == ErrUnauthorized && e.Unauthorized()
}

package domain

import "context"

// Session is the authentication state for one endpoint.
type Session struct {
	Endpoint string `json:"endpoint"`
	Token    string `json:"-"`
}

// IsAuthenticated reports whether a token is present.
func (s Session) IsAuthenticated() bool {
	return s.Token != ""
}

// SessionStore persists tokens keyed by endpoint base URL. Get returns
// ErrNotFound when nothing is stored.
type SessionStore interface {
	Get(ctx context.Context, endpoint string) (string, error)
	Set(ctx context.Context, endpoint, token string) error
	Clear(ctx context.Context, endpoint string) error
}

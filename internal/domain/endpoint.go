package domain

import (
	"fmt"
	"strings"
)

// Endpoint is one deployment of the Omenium API. The base URL is the
// identity that sessions are keyed by.
type Endpoint struct {
	Name    string `json:"name"`
	BaseURL string `json:"baseUrl"`
}

// KnownEndpoints is the fixed set of selectable deployments. The first
// entry is the default.
var KnownEndpoints = []Endpoint{
	{Name: "Omenium App (Staging)", BaseURL: "https://staging.omenium.app/api"},
	{Name: "Omenium Com (Staging)", BaseURL: "https://staging.omenium.com/api"},
}

// DefaultEndpoint returns the first known endpoint.
func DefaultEndpoint() Endpoint {
	return KnownEndpoints[0]
}

// LookupEndpoint finds a known endpoint by base URL or by name
// (case-insensitive).
func LookupEndpoint(key string) (Endpoint, error) {
	key = strings.TrimSpace(key)
	for _, ep := range KnownEndpoints {
		if strings.TrimRight(key, "/") == ep.BaseURL || strings.EqualFold(key, ep.Name) {
			return ep, nil
		}
	}
	return Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownEndpoint, key)
}

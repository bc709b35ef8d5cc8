package omenium

import (
	"context"
	"fmt"
	"net/http"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := c.doJSON(ctx, http.MethodPost, pathLogin, "", loginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return "", fmt.Errorf("omenium: login: %w", err)
	}
	token, err := extractToken(body)
	if err != nil {
		return "", fmt.Errorf("omenium: login: %w", err)
	}
	return token, nil
}

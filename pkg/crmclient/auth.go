package crmclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/white/crm-backend/internal/models"
)

type loginResponse struct {
	User   models.UserProfile `json:"user"`
	Tokens models.TokenPair   `json:"tokens"`
}

// Login authenticates and stores the session. A locked account yields a
// *RateLimitError whose Until tells when to try again.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp loginResponse
	err := c.doPublic(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		AccessToken:  resp.Tokens.AccessToken,
		RefreshToken: resp.Tokens.RefreshToken,
		User:         resp.User,
	}
	if err := c.store.Save(c.baseURL, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Logout revokes the server session and clears the local one. The local
// session is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	sess, err := c.Session()
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return err
	}
	callErr := c.doPublic(ctx, http.MethodPost, "/auth/logout", map[string]string{
		"refresh_token": sess.RefreshToken,
	}, nil)
	if err := c.store.Clear(c.baseURL); err != nil {
		return err
	}
	var apiErr *APIError
	if errors.As(callErr, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return nil
	}
	return callErr
}

// Refresh trades the refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	sess, err := c.Session()
	if err != nil {
		return nil, err
	}
	var resp struct {
		Tokens models.TokenPair `json:"tokens"`
	}
	err = c.doPublic(ctx, http.MethodPost, "/auth/refresh", map[string]string{
		"refresh_token": sess.RefreshToken,
	}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			_ = c.store.Clear(c.baseURL)
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	sess.AccessToken = resp.Tokens.AccessToken
	if err := c.store.Save(c.baseURL, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Me checks the stored session against the server.
func (c *Client) Me(ctx context.Context) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

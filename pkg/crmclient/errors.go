package crmclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnauthorized is returned when the server answers 401 or 403 to an
// authenticated call. The session has already been cleared when it is returned.
var ErrUnauthorized = errors.New("not logged in or session expired")

// ErrNoSession is returned by calls that need a session when none is stored.
var ErrNoSession = errors.New("no stored session, log in first")

// APIError is a non-success answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed (HTTP %d)", e.Status)
	}
	if e.Code == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsValidation reports whether err is a 400 from the server.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest
}

// RateLimitError is a 429 from the login endpoint.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	Limit      int
	Current    int

	received time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many attempts (%d of %d), retry in %s", e.Current, e.Limit, e.RetryAfter)
}

// Until is the moment the caller may try again.
func (e *RateLimitError) Until() time.Time {
	return e.received.Add(e.RetryAfter)
}

// Remaining is the wait left at now, never negative.
func (e *RateLimitError) Remaining(now time.Time) time.Duration {
	d := e.Until().Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// AsRateLimit unwraps a RateLimitError.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

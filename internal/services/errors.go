package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountInactive       = errors.New("account is inactive")
	ErrInvalidRefreshToken   = errors.New("invalid refresh token")
	ErrSessionRevoked        = errors.New("session expired or revoked")
	ErrChecklistItemNotFound = errors.New("checklist item not found")
)

// RateLimitedError is returned by Login once the attempt limit for an
// address is exceeded.
type RateLimitedError struct {
	RetryAfter time.Duration
	Limit      int
	Current    int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many login attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

// AsRateLimited unwraps a RateLimitedError.
func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

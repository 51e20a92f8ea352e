// Package crmclient is a typed client for the CRM REST API. It keeps the
// login session in a SessionStore and never updates local state before the
// server has confirmed a mutation.
package crmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	apiPrefix  = "/api/v1"
	maxRetries = 3
	baseDelay  = 300 * time.Millisecond
	maxJitter  = 100 * time.Millisecond
)

// Client talks to one CRM server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      SessionStore
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns a client for baseURL, e.g. http://localhost:8080.
func New(baseURL string, store SessionStore, opts ...Option) *Client {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		store: store,
		now:   time.Now,
		sleep: sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL is the server this client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Session returns the stored session, or ErrNoSession.
func (c *Client) Session() (*Session, error) {
	sess, err := c.store.Load(c.baseURL)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	return sess, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type rateLimitBody struct {
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
	Limit      int    `json:"limit"`
	Current    int    `json:"current"`
}

// retryable marks failures a GET may be repeated after.
type retryable struct{ err error }

func (r retryable) Error() string { return r.err.Error() }
func (r retryable) Unwrap() error { return r.err }

// do sends one API call and decodes the answer into out. GETs are retried on
// network errors and 5xx; mutations are sent exactly once.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	_, err := c.send(ctx, method, path, body, out, true)
	return err
}

// doPublic is do without the bearer token.
func (c *Client) doPublic(ctx context.Context, method, path string, body, out interface{}) error {
	_, err := c.send(ctx, method, path, body, out, false)
	return err
}

// doHeader is do that also hands back the response headers.
func (c *Client) doHeader(ctx context.Context, method, path string, body, out interface{}) (http.Header, error) {
	return c.send(ctx, method, path, body, out, true)
}

func (c *Client) send(ctx context.Context, method, path string, body, out interface{}, authed bool) (http.Header, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	token := ""
	if authed {
		sess, err := c.Session()
		if err != nil {
			return nil, err
		}
		token = sess.AccessToken
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = maxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		hdr, err := c.once(ctx, method, path, token, payload, out)
		var r retryable
		if !errors.As(err, &r) {
			return hdr, err
		}
		lastErr = r.err
		if attempt < attempts {
			delay := backoff(attempt)
			zap.L().Debug("retrying request",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(r.err))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, method, path, token string, payload []byte, out interface{}) (http.Header, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retryable{fmt.Errorf("network error: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryable{fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || len(data) == 0 {
			return resp.Header, nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return resp.Header, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if token != "" {
			_ = c.store.Clear(c.baseURL)
			return nil, ErrUnauthorized
		}
		return nil, decodeAPIError(resp.StatusCode, data)

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, c.decodeRateLimit(resp, data)

	case resp.StatusCode >= 500:
		return nil, retryable{decodeAPIError(resp.StatusCode, data)}

	default:
		return nil, decodeAPIError(resp.StatusCode, data)
	}
}

func decodeAPIError(status int, data []byte) error {
	apiErr := &APIError{Status: status}
	var body errorBody
	if json.Unmarshal(data, &body) == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}

func (c *Client) decodeRateLimit(resp *http.Response, data []byte) error {
	var body rateLimitBody
	_ = json.Unmarshal(data, &body)

	seconds := body.RetryAfter
	if seconds <= 0 {
		seconds, _ = strconv.Atoi(resp.Header.Get("Retry-After"))
	}
	if seconds <= 0 {
		seconds = 1
	}
	return &RateLimitError{
		Message:    body.Message,
		RetryAfter: time.Duration(seconds) * time.Second,
		Limit:      body.Limit,
		Current:    body.Current,
		received:   c.now(),
	}
}

func backoff(attempt int) time.Duration {
	delay := baseDelay * time.Duration(1<<(attempt-1))
	return delay + time.Duration(rand.Int63n(int64(maxJitter))) //nolint:gosec // jitter
}

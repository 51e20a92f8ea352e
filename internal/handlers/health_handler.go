package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const checkTimeout = 2 * time.Second

type HealthResponse struct {
	Status  string                 `json:"status"`
	Service string                 `json:"service"`
	Version string                 `json:"version"`
	Uptime  string                 `json:"uptime"`
	Checks  map[string]HealthCheck `json:"checks,omitempty"`
}

type HealthCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PingFunc checks one dependency.
type PingFunc func(ctx context.Context) error

type namedCheck struct {
	name string
	ping PingFunc
}

// HealthHandler reports the service and its dependencies. Checks run in
// parallel, each under its own timeout, and every one must pass.
type HealthHandler struct {
	service string
	version string
	started time.Time
	checks  []namedCheck
}

func NewHealthHandler(service, version string) *HealthHandler {
	return &HealthHandler{service: service, version: version, started: time.Now()}
}

// AddCheck registers a named dependency check. A nil ping is ignored.
func (h *HealthHandler) AddCheck(name string, ping PingFunc) *HealthHandler {
	if ping == nil {
		return h
	}
	h.checks = append(h.checks, namedCheck{name: name, ping: ping})
	sort.Slice(h.checks, func(i, j int) bool { return h.checks[i].name < h.checks[j].name })
	return h
}

func (h *HealthHandler) GetOverallHealth(w http.ResponseWriter, r *http.Request) {
	results := h.run(r.Context())

	resp := HealthResponse{
		Status:  "healthy",
		Service: h.service,
		Version: h.version,
		Uptime:  time.Since(h.started).Truncate(time.Second).String(),
		Checks:  results,
	}
	status := http.StatusOK
	for name, c := range results {
		if c.Status != "healthy" {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			zap.L().Warn("health check failed", zap.String("check", name), zap.String("error", c.Error))
		}
	}
	respondWithJSON(w, status, resp)
}

func (h *HealthHandler) run(ctx context.Context) map[string]HealthCheck {
	var (
		mu      sync.Mutex
		results = make(map[string]HealthCheck, len(h.checks))
		g       errgroup.Group
	)
	for _, c := range h.checks {
		c := c
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			err := c.ping(cctx)
			res := HealthCheck{Status: "healthy", Latency: time.Since(start).Round(time.Microsecond).String()}
			if err != nil {
				res.Status = "unhealthy"
				res.Error = err.Error()
			}

			mu.Lock()
			results[c.name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

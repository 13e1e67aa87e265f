// Package health exposes liveness and readiness endpoints backed by named
// checks evaluated on demand.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Check probes one dependency; a nil error means healthy.
type Check func(ctx context.Context) error

type namedCheck struct {
	name    string
	timeout time.Duration
	check   Check
}

// Service tracks readiness state and runs registered checks for the
// /livez and /readyz endpoints.
type Service struct {
	mu     sync.RWMutex
	ready  bool
	checks []namedCheck
}

// New creates a Service that reports not ready until SetReady(true).
func New() *Service {
	return &Service{}
}

// AddReadinessCheck registers a named readiness check with a per-probe
// timeout.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, namedCheck{name: name, timeout: timeout, check: check})
}

// SetReady flips the readiness flag.
func (s *Service) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// LiveEndpoint always reports the process as alive.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, "ok", nil)
}

// ReadyEndpoint reports ready only when SetReady(true) was called and every
// registered check passes.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ready := s.ready
	checks := make([]namedCheck, len(s.checks))
	copy(checks, s.checks)
	s.mu.RUnlock()

	results := make(map[string]string, len(checks))
	healthy := ready
	for _, c := range checks {
		ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
		err := c.check(ctx)
		cancel()
		if err != nil {
			healthy = false
			results[c.name] = err.Error()
			continue
		}
		results[c.name] = "ok"
	}

	if !healthy {
		writeStatus(w, http.StatusServiceUnavailable, "unavailable", results)
		return
	}
	writeStatus(w, http.StatusOK, "ok", results)
}

func writeStatus(w http.ResponseWriter, code int, status string, checks map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks,omitempty"`
	}{Status: status, Checks: checks})
}

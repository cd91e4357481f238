// Package health provides the health check endpoint used by clients and
// deployment probes. Discovery clients treat the literal body field
// status == "ok" as the success criterion, so that value is part of the
// wire contract and must not change.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/vocalis-app/vocalis/internal/log"
)

// Status represents the overall health status.
type Status string

const (
	StatusOK        Status = "ok"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Response is the full health check response body.
type Response struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for component health checks.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager aggregates component health checks.
type Manager struct {
	version  string
	checkers []Checker
}

// NewManager creates a new health check manager.
func NewManager(version string) *Manager {
	return &Manager{version: version}
}

// RegisterChecker adds a health checker to the manager.
func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

// Health runs all registered checks. Component checks are only included in
// the response when verbose is set; the top-level status always reflects them.
func (m *Manager) Health(ctx context.Context, verbose bool) Response {
	resp := Response{
		Status:    StatusOK,
		Version:   m.version,
		Timestamp: time.Now(),
	}

	if len(m.checkers) == 0 {
		return resp
	}

	checks := make(map[string]CheckResult, len(m.checkers))
	for _, checker := range m.checkers {
		result := checker.Check(ctx)
		checks[checker.Name()] = result

		switch result.Status {
		case StatusUnhealthy:
			resp.Status = StatusUnhealthy
		case StatusDegraded:
			if resp.Status == StatusOK {
				resp.Status = StatusDegraded
			}
		}
	}
	if verbose {
		resp.Checks = checks
	}
	return resp
}

// ServeHealth handles HTTP health check requests. It always answers 200 for
// liveness; the body status distinguishes degraded states.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "health.encode_error").Msg("failed to encode health response")
	}
}

// DirChecker verifies a directory exists and is writable.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a checker for directory existence and writability.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(_ context.Context) CheckResult {
	info, err := os.Stat(c.path)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected directory, got file"}
	}

	probe, err := os.CreateTemp(c.path, ".healthcheck-*")
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: "directory not writable"}
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	return CheckResult{Status: StatusOK, Message: "directory writable"}
}

// BinaryChecker verifies an external binary can be resolved on PATH.
// A missing transcoder degrades the service (uploads still succeed with
// fallback originals) instead of making it unhealthy.
type BinaryChecker struct {
	name string
	bin  string
}

// NewBinaryChecker creates a checker for external binary availability.
func NewBinaryChecker(name, bin string) *BinaryChecker {
	return &BinaryChecker{name: name, bin: bin}
}

func (c *BinaryChecker) Name() string { return c.name }

func (c *BinaryChecker) Check(_ context.Context) CheckResult {
	if _, err := exec.LookPath(c.bin); err != nil {
		return CheckResult{Status: StatusDegraded, Message: "binary not found, conversions will fall back", Error: err.Error()}
	}
	return CheckResult{Status: StatusOK, Message: "binary resolved"}
}

// Pinger is satisfied by stores that can verify connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker verifies the metadata store answers.
type StoreChecker struct {
	name  string
	store Pinger
}

// NewStoreChecker creates a checker for metadata store connectivity.
func NewStoreChecker(name string, store Pinger) *StoreChecker {
	return &StoreChecker{name: name, store: store}
}

func (c *StoreChecker) Name() string { return c.name }

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	if err := c.store.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusOK, Message: "store reachable"}
}

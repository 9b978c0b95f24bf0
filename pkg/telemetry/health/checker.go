package health

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"parchment-hq/parchment/pkg/blob"
)

// CheckFunc probes one dependency, returning nil when it is healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one dependency probe.
type CheckResult struct {
	Status   string        `json:"status"` // "ok" or "unhealthy"
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ms,omitempty"`
}

// Status aggregates all probe outcomes.
type Status struct {
	Status    string                 `json:"status"` // "ready" or "degraded"
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Checker runs registered dependency probes for readiness reporting.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// New creates a checker. A zero timeout defaults to 5 seconds per probe.
func New(timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
	}
}

// Register adds (or replaces) a named probe.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Readiness runs every probe concurrently and aggregates the results.
// Any unhealthy probe degrades the overall status.
func (c *Checker) Readiness(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var resultMu sync.Mutex
	var wg sync.WaitGroup
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			result := c.run(ctx, check)
			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
		}(name, check)
	}
	wg.Wait()

	status := "ready"
	for _, result := range results {
		if result.Status == "unhealthy" {
			status = "degraded"
		}
	}
	return Status{
		Status:    status,
		Checks:    results,
		Timestamp: time.Now().UTC(),
	}
}

func (c *Checker) run(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		errCh <- check(checkCtx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return CheckResult{Status: "unhealthy", Message: err.Error(), Duration: time.Since(start)}
		}
		return CheckResult{Status: "ok", Duration: time.Since(start)}
	case <-checkCtx.Done():
		return CheckResult{Status: "unhealthy", Message: "check timed out", Duration: time.Since(start)}
	}
}

// DatabaseCheck probes a SQL database with a ping.
func DatabaseCheck(db *sql.DB) CheckFunc {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

// BlobCheck probes the blob gateway with an existence lookup on a key
// that is never written; reachability matters, not the answer.
func BlobCheck(gateway blob.Gateway) CheckFunc {
	const probeKey = "health/probe"
	return func(ctx context.Context) error {
		_, err := gateway.Exists(ctx, probeKey)
		if err != nil && !strings.Contains(err.Error(), "not found") {
			return err
		}
		return nil
	}
}

package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// checkTimeout bounds each readiness check. A worker that cannot answer a
// loopback dial within this window is not ready.
const checkTimeout = 3 * time.Second

// HealthChecker aggregates readiness across the coordinator's dependencies,
// typically one check per fleet worker port plus the credit tool server.
type HealthChecker struct {
	mu     sync.Mutex
	checks []HealthCheck
	logger *slog.Logger
}

// HealthCheck is one named dependency, usually a fleet worker.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthStatus is the body served on the health and readiness endpoints.
type HealthStatus struct {
	Status string                 `json:"status"` // "ok" or "degraded"
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult reports one dependency, with the probe latency for operators
// chasing a slow worker.
type CheckResult struct {
	Status    string `json:"status"` // "ok" or "fail"
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// NewHealthChecker creates a HealthChecker with no checks registered.
func NewHealthChecker(logger *slog.Logger) *HealthChecker {
	return &HealthChecker{logger: logger}
}

// AddCheck registers a named readiness check.
func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, HealthCheck{Name: name, Check: check})
}

// CheckHealth reports liveness. The process answering is the check.
func (h *HealthChecker) CheckHealth() HealthStatus {
	return HealthStatus{Status: "ok"}
}

// CheckReady runs every registered check concurrently and aggregates the
// results: "ok" when all dependencies answer, "degraded" when any fail.
// Workers are independent processes, so one slow check never delays the rest.
func (h *HealthChecker) CheckReady(ctx context.Context) HealthStatus {
	h.mu.Lock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.Unlock()

	if len(checks) == 0 {
		return HealthStatus{Status: "ok"}
	}

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c HealthCheck) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			err := c.Check(checkCtx)
			latency := time.Since(start).Milliseconds()
			if err != nil {
				results[i] = CheckResult{Status: "fail", Message: err.Error(), LatencyMS: latency}
				return
			}
			results[i] = CheckResult{Status: "ok", LatencyMS: latency}
		}(i, c)
	}
	wg.Wait()

	status := HealthStatus{
		Status: "ok",
		Checks: make(map[string]CheckResult, len(checks)),
	}
	for i, c := range checks {
		status.Checks[c.Name] = results[i]
		if results[i].Status != "ok" {
			status.Status = "degraded"
			if h.logger != nil {
				h.logger.Warn("dependency not ready",
					slog.String("check", c.Name),
					slog.String("error", results[i].Message),
				)
			}
		}
	}
	return status
}

// Package health runs periodic dependency checks and reports service
// liveness and readiness over HTTP.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status of one checked component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Component string        `json:"component"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Critical  bool          `json:"critical"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Checker probes one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
	// Critical failures take readiness down; non-critical ones only
	// degrade the report.
	Critical() bool
}

// Overall is the aggregated service health.
type Overall struct {
	Status     Status                 `json:"status"`
	Components map[string]CheckResult `json:"components"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Manager runs registered checkers on an interval and caches the
// latest results.
type Manager struct {
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	checkers map[string]Checker
	results  map[string]CheckResult
}

// NewManager creates a manager. Checks run every interval, each bounded
// by timeout.
func NewManager(interval, timeout time.Duration, logger *zap.Logger) *Manager {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		checkers: make(map[string]Checker),
		results:  make(map[string]CheckResult),
	}
}

// Register adds a checker. Re-registering a name replaces the previous
// checker.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[c.Name()] = c
	m.logger.Info("Health checker registered",
		zap.String("component", c.Name()),
		zap.Bool("critical", c.Critical()))
}

// Start runs the check loop until the context is cancelled. The first
// round runs immediately so readiness reflects reality at startup.
func (m *Manager) Start(ctx context.Context) {
	m.runChecks(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runChecks(ctx)
		}
	}
}

func (m *Manager) runChecks(ctx context.Context) {
	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		checkers = append(checkers, c)
	}
	m.mu.RUnlock()

	for _, c := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		res := c.Check(checkCtx)
		cancel()
		res.Component = c.Name()
		res.Critical = c.Critical()
		if res.Timestamp.IsZero() {
			res.Timestamp = time.Now().UTC()
		}
		if res.Status != StatusHealthy {
			m.logger.Warn("Health check not healthy",
				zap.String("component", res.Component),
				zap.String("status", string(res.Status)),
				zap.String("error", res.Error))
		}

		m.mu.Lock()
		m.results[c.Name()] = res
		m.mu.Unlock()
	}
}

// Overall aggregates the cached results: any critical failure is
// unhealthy, any other failure degrades, no results yet is unknown.
func (m *Manager) Overall() Overall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := Overall{
		Status:     StatusHealthy,
		Components: make(map[string]CheckResult, len(m.results)),
		Timestamp:  time.Now().UTC(),
	}
	if len(m.checkers) > 0 && len(m.results) == 0 {
		out.Status = StatusUnknown
	}
	for name, res := range m.results {
		out.Components[name] = res
		switch {
		case res.Status == StatusUnhealthy && res.Critical:
			out.Status = StatusUnhealthy
		case res.Status != StatusHealthy && out.Status == StatusHealthy:
			out.Status = StatusDegraded
		}
	}
	return out
}

// Ready reports whether the service should accept traffic.
func (m *Manager) Ready() bool {
	return m.Overall().Status != StatusUnhealthy
}

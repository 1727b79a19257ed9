// Package agents implements the runtime shared by the sourcing analysis
// agents: identity, categorized append-only memory, and a run lifecycle
// that keeps every fault inside the returned execution record. Variants
// supply the task body; Run guarantees the caller never sees a panic or
// an error from a provider-side failure.
package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/altai-labs/magellan/internal/metrics"
)

// Status of an agent over its lifecycle.
type Status string

const (
	StatusInitialized         Status = "initialized"
	StatusExecuting           Status = "executing"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
)

// Agent variant kinds, used as the metrics role label.
const (
	KindMaterialIdentifier = "material_identifier"
	KindCountryScout       = "country_scout"
	KindDimensionExpert    = "dimension_expert"
)

// Provider IDs the variants invoke through the gateway. The service
// wiring registers the concrete adapters under these names.
const (
	ProviderIDGenerate = "claude"
	ProviderIDSearch   = "web_search"
	ProviderIDQuery    = "database"
)

// Memory categories used by the variants.
const (
	MemoryResearch  = "research"
	MemoryCountries = "countries"
	MemoryAnalysis  = "analysis"
	MemoryGeneral   = "general"
)

// MemoryEntry is one fact an agent recorded during its run.
type MemoryEntry struct {
	Category  string    `json:"category"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Memory is an append-only categorized log scoped to one agent. Entries
// are never rewritten: Recall returns the most recent value for a key
// and older entries stay in the log. The log is discarded with its
// agent.
type Memory struct {
	mu      sync.Mutex
	entries []MemoryEntry
}

// Remember appends a timestamped entry.
func (m *Memory) Remember(category, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, MemoryEntry{
		Category:  category,
		Key:       key,
		Value:     value,
		Timestamp: time.Now(),
	})
}

// Recall returns the most recent value stored under category/key.
func (m *Memory) Recall(category, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.Category == category && e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// CategoryEntries returns a copy of every entry in a category, oldest
// first.
func (m *Memory) CategoryEntries(category string) []MemoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MemoryEntry
	for _, e := range m.entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the total number of entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Agent is one unit of analysis work with its own identity, memory, and
// lifecycle state. Agents are cheap and single-use: a variant creates
// one per run and discards it together with the run's memory.
type Agent struct {
	ID     string
	Name   string
	Kind   string
	Role   string
	Goal   string
	Memory *Memory

	logger *zap.Logger

	status    Status
	faults    int
	startedAt time.Time
	endedAt   time.Time
}

// New creates an agent in the initialized state.
func New(kind, role, goal string, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	name := DisplayName(id, 0)
	return &Agent{
		ID:     id,
		Name:   name,
		Kind:   kind,
		Role:   role,
		Goal:   goal,
		Memory: &Memory{},
		logger: logger.With(
			zap.String("agent_id", id),
			zap.String("agent", name),
			zap.String("kind", kind),
		),
		status: StatusInitialized,
	}
}

// Status returns the agent's current lifecycle status.
func (a *Agent) Status() Status { return a.status }

// Faults returns the count of non-fatal faults recorded so far.
func (a *Agent) Faults() int { return a.faults }

// NoteFault records a non-fatal fault such as a degraded provider
// payload or a parse fallback. A run that completes with faults
// finishes completed_with_errors.
func (a *Agent) NoteFault() { a.faults++ }

// Execution is the lifecycle record attached to every run outcome. Err
// preserves the underlying error for errors.As chains; Error carries
// the serializable text.
type Execution struct {
	AgentID   string        `json:"agent_id"`
	Agent     string        `json:"agent"`
	Kind      string        `json:"kind"`
	Role      string        `json:"role"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Err       error         `json:"-"`
	Faults    int           `json:"fault_count"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Elapsed   time.Duration `json:"execution_time"`
}

// Failed reports whether the run produced no usable result.
func (e Execution) Failed() bool { return e.Status == StatusFailed }

// Task is the variant-specific body of an agent run.
type Task[T any] interface {
	// Validate checks the task inputs before any provider work happens.
	Validate() error
	// Execute performs the work, recording intermediate state in the
	// agent's memory.
	Execute(ctx context.Context, a *Agent) (T, error)
}

// Run drives a task through the agent lifecycle. Faults never escape: a
// validation error, task error, or panic ends the run with status
// failed and the zero result, and the execution record carries the
// error text. Callers substitute their neutral default on Failed().
func Run[T any](ctx context.Context, a *Agent, task Task[T]) (out T, exec Execution) {
	a.begin()
	defer func() {
		if r := recover(); r != nil {
			var zero T
			out = zero
			exec = a.finish(fmt.Errorf("panic: %v", r))
		}
	}()

	if err := task.Validate(); err != nil {
		return out, a.finish(err)
	}
	v, err := task.Execute(ctx, a)
	if err != nil {
		return out, a.finish(err)
	}
	out = v
	return out, a.finish(nil)
}

func (a *Agent) begin() {
	a.startedAt = time.Now()
	a.status = StatusExecuting
	a.logger.Info("Agent starting", zap.String("goal", a.Goal))
}

func (a *Agent) finish(err error) Execution {
	a.endedAt = time.Now()
	elapsed := a.endedAt.Sub(a.startedAt)

	switch {
	case err != nil:
		a.status = StatusFailed
		a.faults++
	case a.faults > 0:
		a.status = StatusCompletedWithErrors
	default:
		a.status = StatusCompleted
	}

	exec := Execution{
		AgentID:   a.ID,
		Agent:     a.Name,
		Kind:      a.Kind,
		Role:      a.Role,
		Status:    a.status,
		Faults:    a.faults,
		StartedAt: a.startedAt,
		EndedAt:   a.endedAt,
		Elapsed:   elapsed,
	}
	if err != nil {
		exec.Err = err
		exec.Error = fmt.Sprintf("agent %s execution failed: %v", a.ID, err)
		a.logger.Error("Agent execution failed",
			zap.Error(err),
			zap.Duration("elapsed", elapsed))
	} else {
		a.logger.Info("Agent completed",
			zap.String("status", string(a.status)),
			zap.Int("faults", a.faults),
			zap.Duration("elapsed", elapsed))
	}
	metrics.RecordAgent(a.Kind, string(a.status), elapsed.Seconds())
	return exec
}

// dedupeTrim drops empty entries and case-insensitive duplicates while
// preserving order.
func dedupeTrim(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Package streaming provides in-memory pub/sub for analysis progress
// events. Each execution keeps a fixed-capacity ring of recent events so
// late subscribers can replay what they missed.
package streaming

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/altai-labs/magellan/internal/metrics"
)

// Type classifies a progress event.
type Type string

const (
	TypeAnalysisStarted     Type = "analysis_started"
	TypePhaseStarted        Type = "phase_started"
	TypePhaseCompleted      Type = "phase_completed"
	TypeMaterialsIdentified Type = "materials_identified"
	TypeCountriesIdentified Type = "countries_identified"
	TypeCountryScored       Type = "country_scored"
	TypeAnalysisCompleted   Type = "analysis_completed"
	TypeAnalysisFailed      Type = "analysis_failed"
)

// Event is one progress update for a running analysis.
type Event struct {
	ExecutionID string    `json:"execution_id"`
	Type        Type      `json:"type"`
	Phase       string    `json:"phase,omitempty"`
	Material    string    `json:"material,omitempty"`
	Country     string    `json:"country,omitempty"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Seq         uint64    `json:"seq"`
}

// Marshal renders the event for websocket frames and logs.
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Manager fans events out to subscribers per execution and retains a
// bounded replay history.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	history     map[string]*ring
	capacity    int
	logger      *zap.Logger
}

// NewManager creates a manager whose per-execution replay rings hold
// capacity events each.
func NewManager(capacity int, logger *zap.Logger) *Manager {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string]*ring),
		capacity:    capacity,
		logger:      logger,
	}
}

// Subscribe registers a buffered channel for one execution's events. The
// caller must drain it and call Unsubscribe when done.
func (m *Manager) Subscribe(executionID string, buffer int) chan Event {
	ch := make(chan Event, buffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subscribers[executionID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		m.subscribers[executionID] = subs
	}
	subs[ch] = struct{}{}
	metrics.EventSubscribers.Inc()
	return ch
}

// Unsubscribe removes and closes the subscriber channel.
func (m *Manager) Unsubscribe(executionID string, ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs, ok := m.subscribers[executionID]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	metrics.EventSubscribers.Dec()
	if len(subs) == 0 {
		delete(m.subscribers, executionID)
	}
}

// Publish stamps the event with a sequence number, records it in the
// execution's ring and delivers it to every subscriber without blocking.
// Slow subscribers miss events rather than stall the pipeline.
func (m *Manager) Publish(executionID string, evt Event) {
	evt.ExecutionID = executionID
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rg := m.history[executionID]
	if rg == nil {
		rg = newRing(m.capacity)
		m.history[executionID] = rg
	}
	evt.Seq = rg.nextSeq
	rg.nextSeq++
	rg.push(evt)

	metrics.EventsPublished.WithLabelValues(string(evt.Type)).Inc()

	// Delivery happens under the lock: the sends never block, and
	// Unsubscribe closes channels under this same lock, so a send can
	// never hit a closed channel.
	for ch := range m.subscribers[executionID] {
		select {
		case ch <- evt:
		default:
			m.logger.Debug("Dropping event for slow subscriber",
				zap.String("execution_id", executionID),
				zap.String("type", string(evt.Type)),
				zap.Uint64("seq", evt.Seq),
			)
		}
	}
}

// ReplaySince returns retained events with Seq greater than since, oldest
// first. Best effort within the ring capacity.
func (m *Manager) ReplaySince(executionID string, since uint64) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rg := m.history[executionID]
	if rg == nil {
		return nil
	}
	return rg.since(since)
}

// Forget drops the replay history for a finished execution.
func (m *Manager) Forget(executionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, executionID)
}

// ring is a fixed-capacity buffer of events in publish order. Sequence
// numbers start at 1 so ReplaySince(id, 0) yields the full history.
type ring struct {
	buf     []Event
	start   int
	count   int
	nextSeq uint64
}

func newRing(capacity int) *ring { return &ring{buf: make([]Event, capacity), nextSeq: 1} }

func (r *ring) push(e Event) {
	if len(r.buf) == 0 {
		return
	}
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []Event {
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

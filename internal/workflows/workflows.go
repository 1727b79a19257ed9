// Package workflows drives the four-phase sourcing analysis: material
// identification, country discovery, expert evaluation, and aggregation
// into ranked recommendations. The engine owns the execution state
// machine, fans phases out through bounded worker pools, and converts
// branch-level failures into structured partial results so one bad
// country or dimension never sinks its siblings.
package workflows

import (
	"fmt"
	"strings"

	"github.com/altai-labs/magellan/internal/providers"
	"github.com/altai-labs/magellan/internal/scoring"
)

// State of a workflow execution. Executions move strictly forward
// through the pipeline states; FAILED is reachable from any state.
type State string

const (
	StateInit             State = "INIT"
	StateMaterialID       State = "MATERIAL_ID"
	StateCountryDiscovery State = "COUNTRY_DISCOVERY"
	StateExpertEval       State = "EXPERT_EVAL"
	StateAggregation      State = "AGGREGATION"
	StateCompleted        State = "COMPLETED"
	StateFailed           State = "FAILED"
)

var stateOrder = map[State]int{
	StateInit:             0,
	StateMaterialID:       1,
	StateCountryDiscovery: 2,
	StateExpertEval:       3,
	StateAggregation:      4,
	StateCompleted:        5,
}

// CanTransition reports whether moving to the given state is legal:
// one step forward through the pipeline, or FAILED from anywhere.
func (s State) CanTransition(to State) bool {
	if to == StateFailed {
		return true
	}
	from, ok := stateOrder[s]
	if !ok {
		return false
	}
	next, ok := stateOrder[to]
	if !ok {
		return false
	}
	return next == from+1
}

// label is the lowercase form used for metric labels and event phases.
func (s State) label() string { return strings.ToLower(string(s)) }

// Branch outcome statuses recorded on per-material and per-dimension
// results.
const (
	BranchSuccess = "success"
	BranchFailed  = "failed"
	BranchTimeout = "timeout"
)

// Request describes one sourcing analysis. Zero-value fields take the
// documented defaults.
type Request struct {
	// IndustryContext seeds material identification. Defaults to
	// "general sourcing".
	IndustryContext string `json:"industry_context"`
	// DestinationCountry is where the materials would be shipped.
	// Defaults to "USA".
	DestinationCountry string `json:"destination_country"`
	// Priority selects the scoring weight profile: profitability,
	// stability, eco-friendly, or balanced. Empty means balanced.
	Priority string `json:"priority"`
}

// withDefaults fills the documented defaults and resolves the priority
// profile. An unknown priority is a validation failure.
func (r Request) withDefaults() (Request, scoring.Priority, error) {
	if strings.TrimSpace(r.IndustryContext) == "" {
		r.IndustryContext = "general sourcing"
	}
	if strings.TrimSpace(r.DestinationCountry) == "" {
		r.DestinationCountry = "USA"
	}
	priority, err := scoring.ParsePriority(r.Priority)
	if err != nil {
		return r, "", &providers.ValidationError{Field: "priority", Reason: err.Error()}
	}
	r.Priority = string(priority)
	return r, priority, nil
}

// WorkflowExecutionError marks an unrecoverable execution failure: the
// phase that aborted and the underlying cause. Branch-level faults are
// absorbed into partial results and never surface as this error; only
// a failed first phase or an exhausted overall deadline does.
type WorkflowExecutionError struct {
	ExecutionID string
	Phase       State
	Err         error
}

func (e *WorkflowExecutionError) Error() string {
	return fmt.Sprintf("workflow execution failed in phase %s: %v", e.Phase, e.Err)
}

func (e *WorkflowExecutionError) Unwrap() error { return e.Err }

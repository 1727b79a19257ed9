package workflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/altai-labs/magellan/internal/agents"
	"github.com/altai-labs/magellan/internal/config"
	"github.com/altai-labs/magellan/internal/metrics"
	"github.com/altai-labs/magellan/internal/providers"
	"github.com/altai-labs/magellan/internal/scoring"
	"github.com/altai-labs/magellan/internal/streaming"
	"github.com/altai-labs/magellan/internal/tracing"
	"github.com/altai-labs/magellan/internal/workerpool"
)

// Identifier resolves an industry description into raw materials.
type Identifier interface {
	Identify(ctx context.Context, industry string) (agents.MaterialSet, agents.Execution)
}

// Scout discovers producing countries for one raw material.
type Scout interface {
	Discover(ctx context.Context, material string) (agents.CountryShortlist, agents.Execution)
}

// Expert scores one sourcing dimension for a (material, country) pair.
type Expert interface {
	Evaluate(ctx context.Context, dimension, material, country, destination string) (agents.DimensionFinding, agents.Execution)
}

// Deps wires the engine's collaborators. Events is optional; a nil
// manager disables progress publication.
type Deps struct {
	Identifier Identifier
	Scout      Scout
	Expert     Expert
	Tables     agents.TableSource
	Events     *streaming.Manager
}

// Engine runs sourcing analyses through the four-phase pipeline.
// Engines are safe for concurrent use; each Analyze call owns its
// execution state and worker pools.
type Engine struct {
	identifier Identifier
	scout      Scout
	expert     Expert
	tables     agents.TableSource
	events     *streaming.Manager
	cfg        config.WorkflowConfig
	logger     *zap.Logger
}

// NewEngine creates the engine.
func NewEngine(deps Deps, cfg config.WorkflowConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		identifier: deps.Identifier,
		scout:      deps.Scout,
		expert:     deps.Expert,
		tables:     deps.Tables,
		events:     deps.Events,
		cfg:        cfg,
		logger:     logger,
	}
}

// expertSearchQueries is the research budget each dimension expert
// spends before its analysis call; performance counters charge it
// structurally per evaluation.
const expertSearchQueries = 4

// run accumulates the mutable state of one execution. Only the engine
// goroutine touches it; fan-out branches hand their outcomes back
// through workerpool results.
type run struct {
	id       string
	req      Request
	priority scoring.Priority
	weights  scoring.Weights
	state    State
	started  time.Time

	materials []string
	analyses  []MaterialAnalysis
	countries []CountryAnalysis
	recs      *Recommendations
	perf      PerformanceMetrics
}

func (r *run) countExecution(exec agents.Execution) {
	if exec.Status == "" {
		return
	}
	r.perf.AgentExecutions++
	if exec.Failed() {
		r.perf.FailedAgents++
	} else {
		r.perf.SuccessfulAgents++
	}
}

// Analyze executes one sourcing analysis. It returns a COMPLETED
// result with nil error on success. A request that fails validation
// returns (nil, *providers.ValidationError). A fatal execution failure
// returns the FAILED result, partial results included, together with a
// *WorkflowExecutionError naming the aborting phase.
func (e *Engine) Analyze(ctx context.Context, req Request) (*Result, error) {
	req, priority, err := req.withDefaults()
	if err != nil {
		return nil, err
	}

	r := &run{
		id:       uuid.NewString(),
		req:      req,
		priority: priority,
		weights:  scoring.ProfileFor(priority),
		state:    StateInit,
		started:  time.Now(),
	}
	logger := e.logger.With(zap.String("execution_id", r.id))

	runCtx := ctx
	cancel := func() {}
	if e.cfg.OverallTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.OverallTimeout)
	}
	defer cancel()

	runCtx, span := tracing.StartSpan(runCtx, "workflows.analyze",
		attribute.String("execution_id", r.id),
		attribute.String("priority", string(priority)))
	defer span.End()

	metrics.WorkflowsStarted.WithLabelValues(string(priority)).Inc()
	logger.Info("Sourcing analysis started",
		zap.String("industry_context", req.IndustryContext),
		zap.String("destination_country", req.DestinationCountry),
		zap.String("priority", string(priority)))
	e.publish(r, streaming.Event{Type: streaming.TypeAnalysisStarted, Message: req.IndustryContext})

	phases := []struct {
		state State
		fn    func(context.Context, *run, *zap.Logger) error
	}{
		{StateMaterialID, e.identifyMaterials},
		{StateCountryDiscovery, e.discoverCountries},
		{StateExpertEval, e.evaluateDimensions},
		{StateAggregation, e.aggregate},
	}
	for _, phase := range phases {
		if err := runCtx.Err(); err != nil {
			return e.fail(r, logger, r.state, err)
		}
		e.advance(r, phase.state, logger)
		e.publish(r, streaming.Event{Type: streaming.TypePhaseStarted, Phase: phase.state.label()})

		start := time.Now()
		phaseCtx, phaseSpan := tracing.StartSpan(runCtx, "workflows."+phase.state.label())
		err := phase.fn(phaseCtx, r, logger)
		phaseSpan.End()
		if err != nil {
			return e.fail(r, logger, phase.state, err)
		}

		metrics.RecordPhase(phase.state.label(), time.Since(start).Seconds())
		e.publish(r, streaming.Event{Type: streaming.TypePhaseCompleted, Phase: phase.state.label()})
	}

	e.advance(r, StateCompleted, logger)
	elapsed := time.Since(r.started)
	metrics.WorkflowsCompleted.WithLabelValues("completed").Inc()
	metrics.WorkflowDuration.Observe(elapsed.Seconds())
	logger.Info("Sourcing analysis completed",
		zap.Int("materials", len(r.materials)),
		zap.Int("country_analyses", len(r.countries)),
		zap.Duration("elapsed", elapsed))
	e.publish(r, streaming.Event{
		Type:    streaming.TypeAnalysisCompleted,
		Message: fmt.Sprintf("%d materials, %d country analyses", len(r.materials), len(r.countries)),
	})

	return &Result{
		ExecutionID:        r.id,
		Status:             StateCompleted,
		ExecutionTime:      elapsed.Seconds(),
		IndustryContext:    req.IndustryContext,
		DestinationCountry: req.DestinationCountry,
		Materials:          r.materials,
		MaterialAnalyses:   r.analyses,
		CountryAnalyses:    r.countries,
		Recommendations:    r.recs,
		Performance:        r.perf,
	}, nil
}

// identifyMaterials is phase 1. A failed identification is fatal: no
// later phase has a seed without it.
func (e *Engine) identifyMaterials(ctx context.Context, r *run, logger *zap.Logger) error {
	callCtx := ctx
	cancel := func() {}
	if e.cfg.MaterialTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.cfg.MaterialTimeout)
	}
	defer cancel()

	set, exec := e.identifier.Identify(callCtx, r.req.IndustryContext)
	r.countExecution(exec)
	r.perf.TotalAPICalls++

	status := BranchSuccess
	if exec.Failed() {
		status = BranchFailed
		if providers.IsTimeout(exec.Err) {
			status = BranchTimeout
		}
	}
	metrics.PhaseBranches.WithLabelValues(StateMaterialID.label(), status).Inc()
	if exec.Failed() {
		return exec.Err
	}

	r.materials = set.Materials
	logger.Info("Raw materials identified",
		zap.Strings("materials", set.Materials),
		zap.String("source", set.Source))
	e.publish(r, streaming.Event{
		Type:    streaming.TypeMaterialsIdentified,
		Phase:   StateMaterialID.label(),
		Message: strings.Join(set.Materials, ", "),
	})
	return nil
}

type discoveryOutcome struct {
	shortlist agents.CountryShortlist
	exec      agents.Execution
}

// discoverCountries is phase 2: one scout per material under the
// discovery pool. A branch that fails or times out keeps its material
// in play with the static producer shortlist.
func (e *Engine) discoverCountries(ctx context.Context, r *run, logger *zap.Logger) error {
	pool := workerpool.New("country_discovery", int64(e.cfg.DiscoveryConcurrency), e.cfg.DiscoveryTimeout, e.logger)
	results := workerpool.Map(ctx, pool, len(r.materials), func(taskCtx context.Context, i int) (discoveryOutcome, error) {
		shortlist, exec := e.scout.Discover(taskCtx, r.materials[i])
		if exec.Failed() {
			return discoveryOutcome{shortlist, exec}, exec.Err
		}
		return discoveryOutcome{shortlist, exec}, nil
	})

	r.analyses = make([]MaterialAnalysis, 0, len(results))
	for _, res := range results {
		material := r.materials[res.Index]
		out := res.Value
		r.countExecution(out.exec)
		if out.exec.Status != "" {
			r.perf.TotalAPICalls += 2
			r.perf.SearchQueries++
			if out.shortlist.Requirements != "" {
				r.perf.TotalAPICalls++
				r.perf.DatabaseQueries++
			}
		}

		analysis := MaterialAnalysis{Material: material}
		switch {
		case res.Err == nil:
			analysis.Status = BranchSuccess
			analysis.Countries = out.shortlist.Countries
			analysis.Source = out.shortlist.Source
			analysis.Requirements = out.shortlist.Requirements
		case res.TimedOut():
			analysis.Status = BranchTimeout
			analysis.Error = "Leader agent execution timed out"
		default:
			analysis.Status = BranchFailed
			analysis.Error = out.exec.Error
		}
		if len(analysis.Countries) == 0 {
			countries := e.tables.Tables().CountriesFor(material)
			if len(countries) > e.cfg.CountriesPerMaterial {
				countries = countries[:e.cfg.CountriesPerMaterial]
			}
			analysis.Countries = countries
			analysis.Source = agents.SourceFallback
		}

		metrics.PhaseBranches.WithLabelValues(StateCountryDiscovery.label(), analysis.Status).Inc()
		e.publish(r, streaming.Event{
			Type:     streaming.TypeCountriesIdentified,
			Phase:    StateCountryDiscovery.label(),
			Material: material,
			Message:  strings.Join(analysis.Countries, ", "),
		})
		r.analyses = append(r.analyses, analysis)
	}

	logger.Info("Country discovery completed", zap.Int("materials", len(r.analyses)))
	return nil
}

type pairRef struct {
	material string
	country  string
}

type expertOutcome struct {
	finding agents.DimensionFinding
	exec    agents.Execution
}

// evaluateDimensions is phase 3: every (material, country, dimension)
// triple is one branch under the expert pool, so the pool's limit
// bounds expert concurrency across the whole phase. A failed or
// timed-out evaluation contributes the neutral score and leaves its
// siblings untouched.
func (e *Engine) evaluateDimensions(ctx context.Context, r *run, logger *zap.Logger) error {
	var pairs []pairRef
	for _, analysis := range r.analyses {
		for _, country := range analysis.Countries {
			pairs = append(pairs, pairRef{analysis.Material, country})
		}
	}
	if len(pairs) == 0 {
		logger.Warn("No countries to evaluate")
		return nil
	}

	dims := scoring.Dimensions
	pool := workerpool.New("expert_eval", int64(e.cfg.ExpertConcurrency), e.cfg.ExpertTimeout, e.logger)
	results := workerpool.Map(ctx, pool, len(pairs)*len(dims), func(taskCtx context.Context, idx int) (expertOutcome, error) {
		pair := pairs[idx/len(dims)]
		dim := dims[idx%len(dims)]
		finding, exec := e.expert.Evaluate(taskCtx, dim, pair.material, pair.country, r.req.DestinationCountry)
		if exec.Failed() {
			return expertOutcome{finding, exec}, exec.Err
		}
		return expertOutcome{finding, exec}, nil
	})

	r.countries = make([]CountryAnalysis, 0, len(pairs))
	for p, pair := range pairs {
		analysis := CountryAnalysis{
			Material:        pair.material,
			Country:         pair.country,
			Status:          BranchFailed,
			Dimensions:      make([]DimensionOutcome, 0, len(dims)),
			DimensionScores: make(map[string]float64, len(dims)),
		}
		for d, dim := range dims {
			res := results[p*len(dims)+d]
			out := res.Value
			r.countExecution(out.exec)
			if out.exec.Status != "" {
				r.perf.TotalAPICalls += 1 + expertSearchQueries
				r.perf.SearchQueries += expertSearchQueries
			}

			outcome := DimensionOutcome{Dimension: dim}
			switch {
			case res.Err == nil:
				outcome.Status = BranchSuccess
				outcome.Score = out.finding.Score
				outcome.Method = out.finding.Method
				outcome.Confidence = out.finding.Confidence
				outcome.Insights = out.finding.Insights
				analysis.Status = BranchSuccess
			case res.TimedOut():
				outcome.Status = BranchTimeout
				outcome.Error = "Expert agent execution timed out"
				outcome.Score = scoring.NeutralScore
			default:
				outcome.Status = BranchFailed
				outcome.Error = out.exec.Error
				outcome.Score = scoring.NeutralScore
			}
			metrics.PhaseBranches.WithLabelValues(StateExpertEval.label(), outcome.Status).Inc()
			analysis.Dimensions = append(analysis.Dimensions, outcome)
			analysis.DimensionScores[dim] = outcome.Score
		}

		analysis.OverallScore = r.weights.Composite(analysis.DimensionScores)
		e.publish(r, streaming.Event{
			Type:     streaming.TypeCountryScored,
			Phase:    StateExpertEval.label(),
			Material: pair.material,
			Country:  pair.country,
			Message:  fmt.Sprintf("composite score %.2f", analysis.OverallScore),
		})
		r.countries = append(r.countries, analysis)
	}

	logger.Info("Expert evaluation completed", zap.Int("pairs", len(pairs)))
	return nil
}

// aggregate is phase 4: rank every material's countries under the
// priority profile and assemble the recommendation payload.
func (e *Engine) aggregate(ctx context.Context, r *run, logger *zap.Logger) error {
	recs := &Recommendations{
		PriorityFocus: r.priority,
		WeightsUsed:   r.weights,
	}

	byMaterial := make(map[string][]scoring.ScoreRecord, len(r.materials))
	orders := make(map[string]int, len(r.materials))
	for _, ca := range r.countries {
		byMaterial[ca.Material] = append(byMaterial[ca.Material], scoring.ScoreRecord{
			Material:        ca.Material,
			Country:         ca.Country,
			DimensionScores: ca.DimensionScores,
			Weights:         r.weights,
			Composite:       ca.OverallScore,
			Order:           orders[ca.Material],
		})
		orders[ca.Material]++
	}
	for _, material := range r.materials {
		rec := scoring.Recommend(material, byMaterial[material], r.priority)
		if rec == nil {
			continue
		}
		recs.Materials = append(recs.Materials, rec)
	}
	recs.TopOpportunities = scoring.TopOpportunities(recs.Materials)
	recs.ExecutiveSummary = r.executiveSummary()
	r.recs = recs

	logger.Info("Recommendations assembled",
		zap.Int("materials", len(recs.Materials)),
		zap.Int("top_opportunities", len(recs.TopOpportunities)))
	return nil
}

func (r *run) executiveSummary() string {
	countries := 0
	for _, a := range r.analyses {
		countries += len(a.Countries)
	}
	evaluated := 0
	for _, c := range r.countries {
		if c.Status == BranchSuccess {
			evaluated++
		}
	}
	return fmt.Sprintf("Comprehensive sourcing analysis completed for %d strategic raw materials across %d potential source countries. "+
		"Expert evaluation conducted on %d country-material combinations across profitability, stability, and eco-friendliness dimensions. "+
		"Analysis provides actionable recommendations for strategic sourcing decisions with quantified risk assessments.",
		len(r.materials), countries, evaluated)
}

func (e *Engine) advance(r *run, to State, logger *zap.Logger) {
	if !r.state.CanTransition(to) {
		logger.DPanic("Illegal state transition",
			zap.String("from", string(r.state)),
			zap.String("to", string(to)))
		return
	}
	r.state = to
	logger.Debug("Workflow state advanced", zap.String("state", string(to)))
}

func (e *Engine) fail(r *run, logger *zap.Logger, phase State, cause error) (*Result, error) {
	e.advance(r, StateFailed, logger)
	elapsed := time.Since(r.started)

	werr := &WorkflowExecutionError{ExecutionID: r.id, Phase: phase, Err: cause}
	res := &Result{
		ExecutionID:   r.id,
		Status:        StateFailed,
		Error:         fmt.Sprintf("Comprehensive workflow failed: %v", cause),
		ExecutionTime: elapsed.Seconds(),
		Performance:   r.perf,
	}
	if len(r.materials) > 0 || len(r.analyses) > 0 || len(r.countries) > 0 {
		res.Partial = &Partial{
			Materials:        r.materials,
			MaterialAnalyses: r.analyses,
			CountryAnalyses:  r.countries,
		}
	}

	metrics.WorkflowsCompleted.WithLabelValues("failed").Inc()
	metrics.WorkflowDuration.Observe(elapsed.Seconds())
	logger.Error("Sourcing analysis failed",
		zap.String("phase", string(phase)),
		zap.Error(cause),
		zap.Duration("elapsed", elapsed))
	e.publish(r, streaming.Event{
		Type:    streaming.TypeAnalysisFailed,
		Phase:   phase.label(),
		Message: res.Error,
	})
	return res, werr
}

func (e *Engine) publish(r *run, evt streaming.Event) {
	if e.events == nil {
		return
	}
	e.events.Publish(r.id, evt)
}

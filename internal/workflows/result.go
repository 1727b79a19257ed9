package workflows

import (
	"github.com/altai-labs/magellan/internal/extraction"
	"github.com/altai-labs/magellan/internal/scoring"
)

// MaterialAnalysis records the country-discovery outcome for one raw
// material. A failed or timed-out branch still carries the fallback
// shortlist so the material proceeds to expert evaluation.
type MaterialAnalysis struct {
	Material     string   `json:"raw_material"`
	Status       string   `json:"status"`
	Error        string   `json:"error,omitempty"`
	Countries    []string `json:"countries"`
	Source       string   `json:"source"`
	Requirements string   `json:"business_requirements,omitempty"`
}

// DimensionOutcome is one expert evaluation inside a country analysis.
// Failed and timed-out evaluations carry the neutral score.
type DimensionOutcome struct {
	Dimension  string            `json:"dimension"`
	Status     string            `json:"status"`
	Score      float64           `json:"score"`
	Method     extraction.Method `json:"method,omitempty"`
	Confidence string            `json:"confidence_level,omitempty"`
	Insights   []string          `json:"key_insights,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// CountryAnalysis is the full expert evaluation of one (material,
// country) pair: the three dimension outcomes plus the weighted
// composite. Status is success when at least one dimension evaluation
// produced a real score, failed when every dimension fell back to the
// neutral default.
type CountryAnalysis struct {
	Material        string             `json:"raw_material"`
	Country         string             `json:"country"`
	Status          string             `json:"status"`
	Dimensions      []DimensionOutcome `json:"expert_results"`
	OverallScore    float64            `json:"overall_score"`
	DimensionScores map[string]float64 `json:"expert_scores"`
}

// Recommendations is the aggregated phase-4 output.
type Recommendations struct {
	PriorityFocus    scoring.Priority                  `json:"priority_focus"`
	WeightsUsed      scoring.Weights                   `json:"scoring_weights_used"`
	ExecutiveSummary string                            `json:"executive_summary"`
	Materials        []*scoring.MaterialRecommendation `json:"material_recommendations"`
	TopOpportunities []scoring.Opportunity             `json:"top_opportunities"`
}

// PerformanceMetrics counts the work one execution performed. Provider
// calls are counted structurally from the agent variant that ran, so a
// branch that failed partway still counts its full call budget.
type PerformanceMetrics struct {
	TotalAPICalls    int `json:"total_api_calls"`
	SearchQueries    int `json:"search_queries"`
	DatabaseQueries  int `json:"database_queries"`
	AgentExecutions  int `json:"agent_executions"`
	SuccessfulAgents int `json:"successful_agents"`
	FailedAgents     int `json:"failed_agents"`
}

// Partial holds whatever phases completed before a fatal failure.
type Partial struct {
	Materials        []string           `json:"identified_raw_materials,omitempty"`
	MaterialAnalyses []MaterialAnalysis `json:"material_analyses,omitempty"`
	CountryAnalyses  []CountryAnalysis  `json:"detailed_analysis,omitempty"`
}

// Result is the outcome of one sourcing analysis. COMPLETED results
// carry the full top-level payload; FAILED results carry the error and
// the partial results produced before the failure.
type Result struct {
	ExecutionID        string             `json:"execution_id"`
	Status             State              `json:"status"`
	Error              string             `json:"error,omitempty"`
	ExecutionTime      float64            `json:"execution_time"`
	IndustryContext    string             `json:"industry_context,omitempty"`
	DestinationCountry string             `json:"destination_country,omitempty"`
	Materials          []string           `json:"identified_raw_materials,omitempty"`
	MaterialAnalyses   []MaterialAnalysis `json:"material_analyses,omitempty"`
	CountryAnalyses    []CountryAnalysis  `json:"detailed_analysis,omitempty"`
	Recommendations    *Recommendations   `json:"final_recommendations,omitempty"`
	Partial            *Partial           `json:"partial_results,omitempty"`
	Performance        PerformanceMetrics `json:"performance_metrics"`
}

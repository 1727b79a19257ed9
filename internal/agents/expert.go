package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/altai-labs/magellan/internal/extraction"
	"github.com/altai-labs/magellan/internal/gateway"
	"github.com/altai-labs/magellan/internal/providers"
	"github.com/altai-labs/magellan/internal/scoring"
)

// Evidence confidence grades attached to expert findings.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// dimensionLabels map scoring dimensions to the field labels used in
// role strings and prompts.
var dimensionLabels = map[string]string{
	scoring.DimensionProfitability: "profitability",
	scoring.DimensionStability:     "stability",
	scoring.DimensionEco:           "eco-friendly",
}

// keyFactors back both the expert prompt context and the confidence
// assessment's domain-terminology check.
var keyFactors = map[string][]string{
	scoring.DimensionEco: {
		"Carbon footprint", "Sustainable farming practices", "Certification standards",
		"Water usage", "Biodiversity impact", "Waste management", "Renewable energy usage",
	},
	scoring.DimensionProfitability: {
		"Production costs", "Labor costs", "Transportation costs", "Market pricing",
		"Currency stability", "Tax implications", "Volume discounts", "Quality premiums",
	},
	scoring.DimensionStability: {
		"Political stability", "Economic indicators", "Trade policies", "Infrastructure quality",
		"Legal framework", "Corruption levels", "Supply chain reliability", "Force majeure risks",
	},
}

// DimensionFinding is one expert evaluation of a sourcing dimension for
// a (material, country) pair.
type DimensionFinding struct {
	Material   string            `json:"raw_material"`
	Country    string            `json:"country"`
	Dimension  string            `json:"dimension"`
	Score      float64           `json:"score"`
	Method     extraction.Method `json:"method"`
	Analysis   string            `json:"analysis"`
	Insights   []string          `json:"key_insights"`
	Confidence string            `json:"confidence_level"`
	Searches   int               `json:"successful_searches"`
}

// DimensionExpert scores one sourcing dimension for a country:
// specialized research searches, one expert analysis call, then score
// extraction over the analysis text.
type DimensionExpert struct {
	gw        *gateway.Gateway
	extractor *extraction.ScoreExtractor
	logger    *zap.Logger
}

// NewDimensionExpert creates the expert.
func NewDimensionExpert(gw *gateway.Gateway, extractor *extraction.ScoreExtractor, logger *zap.Logger) *DimensionExpert {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DimensionExpert{gw: gw, extractor: extractor, logger: logger}
}

// Evaluate runs one expert agent for the dimension. dimension must be
// one of the scoring dimensions.
func (e *DimensionExpert) Evaluate(ctx context.Context, dimension, material, country, destination string) (DimensionFinding, Execution) {
	label := dimensionLabels[dimension]
	if label == "" {
		label = dimension
	}
	agent := New(KindDimensionExpert,
		fmt.Sprintf("Expert in the field of: %s", label),
		fmt.Sprintf("Provide specialized analysis on %s aspects of raw material sourcing", label),
		e.logger)
	return Run[DimensionFinding](ctx, agent, &expertTask{
		expert:      e,
		dimension:   dimension,
		material:    material,
		country:     country,
		destination: destination,
	})
}

type expertTask struct {
	expert      *DimensionExpert
	dimension   string
	material    string
	country     string
	destination string
}

func (t *expertTask) Validate() error {
	if strings.TrimSpace(t.material) == "" {
		return &providers.ValidationError{Field: "raw_material", Reason: "cannot be empty"}
	}
	if strings.TrimSpace(t.country) == "" {
		return &providers.ValidationError{Field: "country", Reason: "cannot be empty"}
	}
	if _, ok := dimensionLabels[t.dimension]; !ok {
		return &providers.ValidationError{Field: "dimension", Reason: fmt.Sprintf("unknown dimension %q", t.dimension)}
	}
	return nil
}

func (t *expertTask) Execute(ctx context.Context, a *Agent) (DimensionFinding, error) {
	e := t.expert
	finding := DimensionFinding{
		Material:  t.material,
		Country:   t.country,
		Dimension: t.dimension,
	}

	research := t.conductResearch(ctx, a)
	finding.Searches = research.successes

	inv, err := e.gw.Generate(ctx, ProviderIDGenerate, providers.GenerateRequest{
		Prompt:      expertPrompt(t.dimension, t.material, t.country, t.destination, research.summary()),
		MaxTokens:   2000,
		Temperature: 0.2,
	})
	if err != nil {
		return finding, err
	}
	a.Memory.Remember(MemoryAnalysis, "expert_analysis", inv.Text)
	if inv.Degraded() {
		a.NoteFault()
	}

	score := e.extractor.Extract(t.dimension, inv.Text)
	finding.Score = score.Value
	finding.Method = score.Method
	finding.Analysis = inv.Text
	finding.Insights = keyInsights(inv.Text)
	finding.Confidence = assessConfidence(t.dimension, research, inv.Text)

	a.logger.Info("Dimension evaluated",
		zap.String("material", t.material),
		zap.String("country", t.country),
		zap.String("dimension", t.dimension),
		zap.Float64("score", finding.Score),
		zap.String("method", string(score.Method)),
		zap.String("confidence", finding.Confidence))
	return finding, nil
}

type researchResult struct {
	query     string
	focusArea string
	text      string
	degraded  bool
}

type researchSet struct {
	results   []researchResult
	successes int
}

// conductResearch runs the dimension's specialized searches. Individual
// search failures are recorded in the set and never abort the run.
func (t *expertTask) conductResearch(ctx context.Context, a *Agent) *researchSet {
	set := &researchSet{}
	for _, q := range researchQueries(t.dimension, t.material, t.country, t.destination) {
		inv, err := t.expert.gw.Search(ctx, ProviderIDSearch, q.query, 6)
		r := researchResult{query: q.query, focusArea: q.focus}
		switch {
		case err != nil:
			a.NoteFault()
			r.text = fmt.Sprintf("Search failed: %v", err)
			r.degraded = true
		case inv.Degraded():
			a.NoteFault()
			r.text = inv.Text
			r.degraded = true
		default:
			r.text = inv.Text
			set.successes++
		}
		set.results = append(set.results, r)
	}
	a.Memory.Remember(MemoryResearch, "specialized_research", set.summary())
	return set
}

// summary renders the research set the way the expert prompt expects.
func (r *researchSet) summary() string {
	var b strings.Builder
	for _, res := range r.results {
		fmt.Fprintf(&b, "Focus Area: %s\n", res.focusArea)
		fmt.Fprintf(&b, "Query: %s\n", res.query)
		fmt.Fprintf(&b, "Results: %s\n", res.text)
		b.WriteString(strings.Repeat("-", 50))
		b.WriteString("\n")
	}
	return b.String()
}

type researchQuery struct {
	query string
	focus string
}

func researchQueries(dimension, material, country, destination string) []researchQuery {
	base := fmt.Sprintf("%s %s", country, material)
	switch dimension {
	case scoring.DimensionEco:
		return []researchQuery{
			{base + " sustainability environmental impact carbon footprint", "environmental_impact"},
			{base + " organic certification fair trade rainforest alliance", "certifications"},
			{base + " sustainable farming practices environmental standards", "practices"},
			{base + " deforestation biodiversity water usage pollution", "risks"},
		}
	case scoring.DimensionProfitability:
		return []researchQuery{
			{base + " production costs labor costs pricing economics", "production_costs"},
			{base + " export prices market rates profit margins", "market_pricing"},
			{fmt.Sprintf("%s transportation costs logistics shipping %s", base, destination), "logistics_costs"},
			{base + " currency exchange rates economic stability inflation", "economic_factors"},
		}
	case scoring.DimensionStability:
		return []researchQuery{
			{base + " political stability government economic indicators", "political_factors"},
			{base + " trade policies export regulations business environment", "trade_environment"},
			{base + " infrastructure quality supply chain reliability", "infrastructure"},
			{fmt.Sprintf("%s risk assessment political risk economic risk %s", base, destination), "risk_assessment"},
		}
	}
	return []researchQuery{{fmt.Sprintf("%s %s analysis", base, dimension), "general"}}
}

var insightIndicators = []string{
	"key", "important", "significant", "critical", "major", "notable",
	"advantage", "benefit", "strength", "weakness", "risk", "opportunity",
}

// keyInsights pulls the standout sentences from an analysis: long
// enough to carry substance and containing an insight indicator word.
// Capped at five.
func keyInsights(analysis string) []string {
	var insights []string
	for _, sentence := range strings.Split(analysis, ".") {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) <= 30 {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, indicator := range insightIndicators {
			if strings.Contains(lower, indicator) {
				insights = append(insights, sentence)
				break
			}
		}
		if len(insights) == 5 {
			break
		}
	}
	if len(insights) == 0 {
		return []string{"Analysis completed - see full report for details"}
	}
	return insights
}

var dataIndicators = []string{"data", "statistics", "percentage", "number", "figure", "report"}

// assessConfidence grades the evidence behind a finding. Enough
// successful research, substantive analysis length, concrete data
// points, and domain terminology each add one factor.
func assessConfidence(dimension string, research *researchSet, analysis string) string {
	factors := 0
	if research.successes >= 3 {
		factors++
	}
	if len(analysis) > 500 {
		factors++
	}
	lower := strings.ToLower(analysis)
	for _, indicator := range dataIndicators {
		if strings.Contains(lower, indicator) {
			factors++
			break
		}
	}
	for _, term := range keyFactors[dimension] {
		if strings.Contains(lower, strings.ToLower(term)) {
			factors++
			break
		}
	}

	switch {
	case factors >= 3:
		return ConfidenceHigh
	case factors >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

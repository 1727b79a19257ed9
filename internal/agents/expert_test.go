package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/altai-labs/magellan/internal/extraction"
	"github.com/altai-labs/magellan/internal/providers"
	"github.com/altai-labs/magellan/internal/scoring"
)

func newExpert(t *testing.T, search *scriptedSearch, gen *scriptedGenerate) *DimensionExpert {
	t.Helper()
	gw := newTestGateway(t)
	gw.RegisterSearch(ProviderIDSearch, search)
	gw.RegisterGenerate(ProviderIDGenerate, gen)
	extractor := extraction.NewScoreExtractor(extraction.JitterConfig{}, zaptest.NewLogger(t))
	return NewDimensionExpert(gw, extractor, zaptest.NewLogger(t))
}

func TestEvaluateExplicitScore(t *testing.T) {
	analysis := "Peru offers a significant advantage in production scale with extensive export data available. " +
		"Labor costs are moderate relative to peers. " +
		strings.Repeat("The supply base remains broad and mature across regions. ", 10) +
		"Overall score: 7.5/10."

	search := &scriptedSearch{fn: func(_ int, query string, _ int) (providers.Value, error) {
		return providers.Text("results: " + query), nil
	}}
	gen := &scriptedGenerate{fn: func(int, providers.GenerateRequest) (providers.Value, error) {
		return providers.Text(analysis), nil
	}}

	expert := newExpert(t, search, gen)
	finding, exec := expert.Evaluate(context.Background(), scoring.DimensionProfitability, "Copper", "Peru", "USA")

	require.Equal(t, StatusCompleted, exec.Status)
	assert.Equal(t, 7.5, finding.Score)
	assert.Equal(t, extraction.MethodPattern, finding.Method)
	assert.Equal(t, scoring.DimensionProfitability, finding.Dimension)
	assert.Equal(t, 4, finding.Searches)
	assert.Equal(t, ConfidenceHigh, finding.Confidence)
	require.Len(t, finding.Insights, 1)
	assert.Contains(t, finding.Insights[0], "significant advantage")

	assert.Equal(t, []string{
		"Peru Copper production costs labor costs pricing economics",
		"Peru Copper export prices market rates profit margins",
		"Peru Copper transportation costs logistics shipping USA",
		"Peru Copper currency exchange rates economic stability inflation",
	}, search.seenQueries())
	assert.Equal(t, []int{6, 6, 6, 6}, search.seenMaxResults())

	req := gen.lastRequest()
	assert.Equal(t, 2000, req.MaxTokens)
	assert.InDelta(t, 0.2, req.Temperature, 1e-9)
	assert.Contains(t, req.Prompt, "As a senior expert in profitability")
	assert.Contains(t, req.Prompt, "sourcing of Copper from Peru to USA")
	assert.Contains(t, req.Prompt, "Focus Area: logistics_costs")
	assert.Contains(t, req.Prompt, "Key Factors: Production costs")
	assert.Contains(t, req.Prompt, "results: Peru Copper export prices market rates profit margins")
}

func TestEvaluateHeuristicWhenNoExplicitScore(t *testing.T) {
	search := &scriptedSearch{fn: func(_ int, query string, _ int) (providers.Value, error) {
		return providers.Text("results: " + query), nil
	}}
	gen := &scriptedGenerate{fn: func(int, providers.GenerateRequest) (providers.Value, error) {
		return providers.Text("The outlook is excellent with strong and reliable suppliers."), nil
	}}

	expert := newExpert(t, search, gen)
	finding, exec := expert.Evaluate(context.Background(), scoring.DimensionProfitability, "Copper", "Peru", "USA")

	require.Equal(t, StatusCompleted, exec.Status)
	assert.Equal(t, extraction.MethodHeuristic, finding.Method)
	assert.InDelta(t, 6.4, finding.Score, 1e-9)
	assert.Equal(t, []string{"Analysis completed - see full report for details"}, finding.Insights)
	assert.Equal(t, ConfidenceLow, finding.Confidence, "one factor only: successful research")
}

func TestEvaluateDegradedResearchCompletes(t *testing.T) {
	search := &scriptedSearch{fn: func(int, string, int) (providers.Value, error) {
		return providers.Value{}, assert.AnError
	}}
	gen := &scriptedGenerate{fn: func(_ int, req providers.GenerateRequest) (providers.Value, error) {
		assert.Contains(t, req.Prompt, "Failed to execute web_search")
		return providers.Text("Score: 6 given the notable supply chain strength in the region."), nil
	}}

	expert := newExpert(t, search, gen)
	finding, exec := expert.Evaluate(context.Background(), scoring.DimensionStability, "Cocoa Beans", "Ghana", "Germany")

	require.Equal(t, StatusCompletedWithErrors, exec.Status)
	assert.Equal(t, 6.0, finding.Score)
	assert.Zero(t, finding.Searches)
	assert.Equal(t, 4, exec.Faults, "every degraded search counts")
}

func TestEvaluateUnknownDimensionFails(t *testing.T) {
	expert := newExpert(t, &scriptedSearch{fn: func(int, string, int) (providers.Value, error) {
		return providers.Text("x"), nil
	}}, &scriptedGenerate{fn: func(int, providers.GenerateRequest) (providers.Value, error) {
		return providers.Text("x"), nil
	}})

	finding, exec := expert.Evaluate(context.Background(), "velocity", "Copper", "Peru", "USA")

	assert.True(t, exec.Failed())
	assert.Contains(t, exec.Error, "dimension")
	assert.Zero(t, finding.Score)
}

func TestResearchQueriesPerDimension(t *testing.T) {
	cases := []struct {
		dimension string
		focuses   []string
	}{
		{scoring.DimensionEco, []string{"environmental_impact", "certifications", "practices", "risks"}},
		{scoring.DimensionProfitability, []string{"production_costs", "market_pricing", "logistics_costs", "economic_factors"}},
		{scoring.DimensionStability, []string{"political_factors", "trade_environment", "infrastructure", "risk_assessment"}},
	}

	for _, tc := range cases {
		t.Run(tc.dimension, func(t *testing.T) {
			qs := researchQueries(tc.dimension, "Copper", "Peru", "USA")
			require.Len(t, qs, 4)
			for i, q := range qs {
				assert.True(t, strings.HasPrefix(q.query, "Peru Copper "), q.query)
				assert.Equal(t, tc.focuses[i], q.focus)
			}
		})
	}
}

func TestKeyInsightsCapsAtFive(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 8; i++ {
		b.WriteString("This is a critical observation about the region's noteworthy supply capacity. ")
	}
	insights := keyInsights(b.String())
	assert.Len(t, insights, 5)
}

func TestKeyInsightsFallbackLine(t *testing.T) {
	insights := keyInsights("Short text. Nothing here is long enough or flagged.")
	assert.Equal(t, []string{"Analysis completed - see full report for details"}, insights)
}

func TestAssessConfidenceBoundaries(t *testing.T) {
	longPlain := strings.Repeat("zz ", 200)

	// Two factors: enough research plus a substantive analysis.
	got := assessConfidence(scoring.DimensionEco, &researchSet{successes: 3}, longPlain)
	assert.Equal(t, ConfidenceMedium, got)

	// No factors at all.
	got = assessConfidence(scoring.DimensionEco, &researchSet{successes: 1}, "thin")
	assert.Equal(t, ConfidenceLow, got)

	// Research, length, data terms, and domain terms together.
	rich := longPlain + " The statistics show water usage is falling."
	got = assessConfidence(scoring.DimensionEco, &researchSet{successes: 4}, rich)
	assert.Equal(t, ConfidenceHigh, got)
}

func TestExpertPromptStructure(t *testing.T) {
	p := expertPrompt(scoring.DimensionEco, "Cocoa Beans", "Ghana", "Germany", "RESEARCH-SUMMARY")

	assert.Contains(t, p, "As a senior expert in eco-friendly")
	assert.Contains(t, p, "sourcing of Cocoa Beans from Ghana to Germany")
	assert.Contains(t, p, "RESEARCH-SUMMARY")
	assert.Contains(t, p, "Key Factors: Carbon footprint")
	assert.Contains(t, p, "score from 1-10 (10 being most eco-friendly/sustainable)")
}

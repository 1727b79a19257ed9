package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilesSumToOne(t *testing.T) {
	for _, p := range []Priority{PriorityProfitability, PriorityStability, PriorityEco, PriorityBalanced} {
		t.Run(string(p), func(t *testing.T) {
			w := ProfileFor(p)
			require.NoError(t, w.Validate())
			var sum float64
			for _, v := range w {
				sum += v
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
		})
	}
}

func TestProfileWeights(t *testing.T) {
	w := ProfileFor(PriorityProfitability)
	assert.Equal(t, 0.6, w[DimensionProfitability])
	assert.Equal(t, 0.2, w[DimensionStability])
	assert.Equal(t, 0.2, w[DimensionEco])

	w = ProfileFor(PriorityBalanced)
	assert.Equal(t, 0.4, w[DimensionProfitability])
	assert.Equal(t, 0.3, w[DimensionStability])
	assert.Equal(t, 0.3, w[DimensionEco])
}

func TestProfileForReturnsCopy(t *testing.T) {
	w := ProfileFor(PriorityBalanced)
	w[DimensionProfitability] = 0.9
	assert.Equal(t, 0.4, ProfileFor(PriorityBalanced)[DimensionProfitability])
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("eco-friendly")
	require.NoError(t, err)
	assert.Equal(t, PriorityEco, p)

	p, err = ParsePriority("")
	require.NoError(t, err)
	assert.Equal(t, PriorityBalanced, p)

	_, err = ParsePriority("cheapest")
	assert.Error(t, err)
}

func TestCompositeProfitabilityScenario(t *testing.T) {
	w := ProfileFor(PriorityProfitability)

	a := w.Composite(map[string]float64{
		DimensionProfitability: 8,
		DimensionStability:     6,
		DimensionEco:           7,
	})
	b := w.Composite(map[string]float64{
		DimensionProfitability: 6,
		DimensionStability:     8,
		DimensionEco:           8,
	})

	assert.InDelta(t, 7.4, a, 1e-9)
	assert.InDelta(t, 6.8, b, 1e-9)

	records := []ScoreRecord{
		{Country: "A", Composite: a, Order: 0},
		{Country: "B", Composite: b, Order: 1},
	}
	ranked := Rank(records)
	require.Equal(t, "A", ranked[0].Country)
	require.Equal(t, "B", ranked[1].Country)
	// Gap of 0.6 sits in the MODERATE band.
	assert.Equal(t, ConfidenceModerate, ConfidenceFor(ranked))
}

func TestCompositeSkipsMissingDimensions(t *testing.T) {
	w := ProfileFor(PriorityBalanced)
	got := w.Composite(map[string]float64{DimensionProfitability: 8})
	// Only the profitability weight participates: 8*0.4/0.4 = 8.
	assert.InDelta(t, 8.0, got, 1e-9)
}

func TestCompositeEmptyScoresIsNeutral(t *testing.T) {
	w := ProfileFor(PriorityBalanced)
	assert.Equal(t, NeutralScore, w.Composite(nil))
}

func TestRankStableTieBreakByDiscoveryOrder(t *testing.T) {
	records := []ScoreRecord{
		{Country: "First", Composite: 7.0, Order: 0},
		{Country: "Second", Composite: 7.0, Order: 1},
		{Country: "Third", Composite: 7.0, Order: 2},
	}
	ranked := Rank(records)
	assert.Equal(t, []string{"First", "Second", "Third"}, countries(ranked))

	// Shuffled input still ranks by discovery order on ties.
	shuffled := []ScoreRecord{records[2], records[0], records[1]}
	ranked = Rank(shuffled)
	assert.Equal(t, []string{"First", "Second", "Third"}, countries(ranked))
}

func TestRankDoesNotModifyInput(t *testing.T) {
	records := []ScoreRecord{
		{Country: "Low", Composite: 3.0},
		{Country: "High", Composite: 9.0},
	}
	_ = Rank(records)
	assert.Equal(t, "Low", records[0].Country)
}

func TestConfidenceBands(t *testing.T) {
	mk := func(a, b float64) []ScoreRecord {
		return []ScoreRecord{{Composite: a}, {Composite: b}}
	}
	assert.Equal(t, ConfidenceHigh, ConfidenceFor(mk(8.0, 7.0)))
	assert.Equal(t, ConfidenceHigh, ConfidenceFor(mk(8.5, 7.0)))
	assert.Equal(t, ConfidenceModerate, ConfidenceFor(mk(8.0, 7.5)))
	assert.Equal(t, ConfidenceLow, ConfidenceFor(mk(8.0, 7.9)))
	assert.Equal(t, ConfidenceModerate, ConfidenceFor([]ScoreRecord{{Composite: 9.0}}))
	assert.Equal(t, ConfidenceModerate, ConfidenceFor(nil))
}

func TestRiskLevels(t *testing.T) {
	assert.Equal(t, "LOW", RiskLevel(8.0))
	assert.Equal(t, "MEDIUM", RiskLevel(7.9))
	assert.Equal(t, "MEDIUM", RiskLevel(6.5))
	assert.Equal(t, "HIGH", RiskLevel(6.4))
	assert.Equal(t, "HIGH", RiskLevel(5.0))
	assert.Equal(t, "CRITICAL", RiskLevel(4.9))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(0.2))
	assert.Equal(t, 10.0, Clamp(12.0))
	assert.Equal(t, 5.5, Clamp(5.5))
}

func countries(records []ScoreRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Country
	}
	return out
}

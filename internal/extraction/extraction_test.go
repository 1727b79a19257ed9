package extraction

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newExtractor() *ScoreExtractor {
	return NewScoreExtractor(JitterConfig{}, zap.NewNop())
}

func TestExtractExplicitScorePatterns(t *testing.T) {
	e := newExtractor()
	cases := []struct {
		name string
		text string
		want float64
	}{
		{"score colon", "Overall score: 7.5 based on the data", 7.5},
		{"score no colon", "score 8 for this country", 8.0},
		{"slash ten", "We assess this at 6.5/10 overall", 6.5},
		{"out of ten", "This country earns 9 out of 10", 9.0},
		{"rating", "rating: 4.2 due to instability", 4.2},
		{"points", "The region scored 7 points for logistics", 7.0},
		{"uppercase", "SCORE: 3.5", 3.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := e.Extract("profitability", tc.text)
			assert.Equal(t, MethodPattern, got.Method)
			assert.Equal(t, tc.want, got.Value)
		})
	}
}

func TestExplicitScoreBeatsSentiment(t *testing.T) {
	e := newExtractor()
	text := "Excellent outlook, strong and reliable suppliers, very favorable. score: 7.5"
	got := e.Extract("profitability", text)
	assert.Equal(t, MethodPattern, got.Method)
	assert.Equal(t, 7.5, got.Value)

	// Same with negative sentiment surrounding the explicit score.
	text = "Risky, volatile and problematic environment. score: 7.5. Poor infrastructure."
	got = e.Extract("stability", text)
	assert.Equal(t, 7.5, got.Value)
}

func TestPatternOrderIsDeterministic(t *testing.T) {
	e := newExtractor()
	// Both "score:" and "/10" appear; the score pattern is tried first.
	got := e.Extract("profitability", "score: 6 which maps to 8/10 on their scale")
	assert.Equal(t, 6.0, got.Value)
}

func TestOutOfRangeMatchFallsThrough(t *testing.T) {
	e := newExtractor()
	// "score: 85" is outside [1,10]; the rating pattern then matches.
	got := e.Extract("profitability", "score: 85 on the percentile index, rating: 7")
	assert.Equal(t, MethodPattern, got.Method)
	assert.Equal(t, 7.0, got.Value)
}

func TestSentimentPositive(t *testing.T) {
	e := newExtractor()
	got := e.Extract("profitability", "strong and competitive market with efficient logistics")
	require.Equal(t, MethodHeuristic, got.Method)
	// 3 positive terms, 0 negative: 5.5 + 0.3*3 = 6.4
	assert.Equal(t, 6.4, got.Value)
}

func TestSentimentNegative(t *testing.T) {
	e := newExtractor()
	got := e.Extract("profitability", "weak demand and volatile pricing, overall concerning")
	require.Equal(t, MethodHeuristic, got.Method)
	// 3 negative terms, 0 positive: 5.5 - 0.3*3 = 4.6
	assert.Equal(t, 4.6, got.Value)
}

func TestSentimentNeutralTie(t *testing.T) {
	e := newExtractor()
	got := e.Extract("profitability", "an average market with acceptable margins")
	require.Equal(t, MethodHeuristic, got.Method)
	// tie with 2 neutral terms: 5.5 + 0.2*2 = 5.9
	assert.Equal(t, 5.9, got.Value)
}

func TestSentimentClampsToRange(t *testing.T) {
	e := newExtractor()
	heavy := ""
	for _, w := range []string{"poor", "weak", "concerning", "risky", "unstable", "expensive", "problematic", "insufficient", "inadequate", "volatile", "uncertain", "unsustainable", "unprofitable"} {
		heavy += w + " "
	}
	got := e.Extract("stability", heavy)
	assert.GreaterOrEqual(t, got.Value, 1.0)
	assert.LessOrEqual(t, got.Value, 10.0)
}

func TestDimensionLexiconExtensions(t *testing.T) {
	e := newExtractor()
	// "renewable" counts only through the eco_friendliness lexicon.
	eco := e.Extract("eco_friendliness", "renewable energy mix")
	other := e.Extract("stability", "renewable energy mix")
	assert.Greater(t, eco.Value, other.Value)
}

func TestJitterSeededIsReproducible(t *testing.T) {
	text := "strong and competitive market"
	a := NewScoreExtractor(JitterConfig{Enabled: true, Seed: 42}, zap.NewNop())
	b := NewScoreExtractor(JitterConfig{Enabled: true, Seed: 42}, zap.NewNop())

	var first []float64
	for i := 0; i < 5; i++ {
		first = append(first, a.Extract("profitability", text).Value)
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, first[i], b.Extract("profitability", text).Value)
	}
}

func TestJitterStaysWithinRange(t *testing.T) {
	e := NewScoreExtractor(JitterConfig{Enabled: true, Seed: 7}, zap.NewNop())
	for i := 0; i < 200; i++ {
		got := e.Extract("profitability", fmt.Sprintf("strong option %d", i))
		assert.GreaterOrEqual(t, got.Value, 1.0)
		assert.LessOrEqual(t, got.Value, 10.0)
	}
}

func TestJitterDisabledIsDeterministic(t *testing.T) {
	e := newExtractor()
	text := "strong and competitive market"
	want := e.Extract("profitability", text).Value
	for i := 0; i < 10; i++ {
		assert.Equal(t, want, e.Extract("profitability", text).Value)
	}
}

func TestJitterNeverTouchesPatternPath(t *testing.T) {
	e := NewScoreExtractor(JitterConfig{Enabled: true, Seed: 99}, zap.NewNop())
	for i := 0; i < 20; i++ {
		got := e.Extract("profitability", "score: 7.5")
		assert.Equal(t, 7.5, got.Value)
	}
}

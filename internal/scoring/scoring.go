// Package scoring implements weighted composite scoring, ranking with
// stable tie-breaks, and confidence estimation over per-dimension expert
// scores.
package scoring

import (
	"fmt"
	"math"
	"sort"
)

// Priority selects one of the four fixed weight profiles.
type Priority string

const (
	PriorityProfitability Priority = "profitability"
	PriorityStability     Priority = "stability"
	PriorityEco           Priority = "eco-friendly"
	PriorityBalanced      Priority = "balanced"
)

// ParsePriority validates a caller-supplied priority, defaulting empty
// input to balanced.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityProfitability, PriorityStability, PriorityEco, PriorityBalanced:
		return Priority(s), nil
	case "":
		return PriorityBalanced, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// The three fixed evaluation dimensions.
const (
	DimensionProfitability = "profitability"
	DimensionStability     = "stability"
	DimensionEco           = "eco_friendliness"
)

// Dimensions lists the evaluation dimensions in canonical order.
var Dimensions = []string{DimensionProfitability, DimensionStability, DimensionEco}

// NeutralScore is substituted when a dimension evaluation fails or times
// out.
const NeutralScore = 5.0

// weightTolerance bounds the floating error allowed in a profile sum.
const weightTolerance = 1e-9

// Weights maps dimension name to its share of the composite.
type Weights map[string]float64

var profiles = map[Priority]Weights{
	PriorityProfitability: {DimensionProfitability: 0.6, DimensionStability: 0.2, DimensionEco: 0.2},
	PriorityStability:     {DimensionProfitability: 0.2, DimensionStability: 0.6, DimensionEco: 0.2},
	PriorityEco:           {DimensionProfitability: 0.2, DimensionStability: 0.2, DimensionEco: 0.6},
	PriorityBalanced:      {DimensionProfitability: 0.4, DimensionStability: 0.3, DimensionEco: 0.3},
}

// ProfileFor returns a copy of the weight profile for the priority.
// Unknown priorities fall back to the balanced profile.
func ProfileFor(p Priority) Weights {
	src, ok := profiles[p]
	if !ok {
		src = profiles[PriorityBalanced]
	}
	w := make(Weights, len(src))
	for k, v := range src {
		w[k] = v
	}
	return w
}

// Validate checks that the weights sum to 1.0 within tolerance.
func (w Weights) Validate() error {
	var sum float64
	for _, v := range w {
		sum += v
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("weights sum to %v, want 1.0", sum)
	}
	return nil
}

// Composite computes the weighted average over the dimensions present in
// scores: sum(score*weight) / sum(weight), rounded to two decimals.
// Dimensions missing from scores do not contribute their weight. An empty
// intersection yields the neutral score.
func (w Weights) Composite(scores map[string]float64) float64 {
	var total, weightSum float64
	for dim, weight := range w {
		score, ok := scores[dim]
		if !ok {
			continue
		}
		total += score * weight
		weightSum += weight
	}
	if weightSum == 0 {
		return NeutralScore
	}
	return round2(total / weightSum)
}

// Clamp bounds a score to the valid [1,10] range.
func Clamp(v float64) float64 {
	return math.Max(1.0, math.Min(10.0, v))
}

// ScoreRecord holds the scored outcome for one (material, country) pair.
// Order is the country's discovery index within its material and breaks
// composite ties so ranking stays stable.
type ScoreRecord struct {
	Material        string             `json:"material"`
	Country         string             `json:"country"`
	DimensionScores map[string]float64 `json:"dimension_scores"`
	Weights         Weights            `json:"weights"`
	Composite       float64            `json:"composite_score"`
	Order           int                `json:"-"`
}

// Rank orders records descending by composite score; equal composites keep
// discovery order. The input slice is not modified.
func Rank(records []ScoreRecord) []ScoreRecord {
	ranked := make([]ScoreRecord, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Composite != ranked[j].Composite {
			return ranked[i].Composite > ranked[j].Composite
		}
		return ranked[i].Order < ranked[j].Order
	})
	return ranked
}

// Confidence grades how certain a ranking is.
type Confidence string

const (
	ConfidenceHigh     Confidence = "HIGH"
	ConfidenceModerate Confidence = "MODERATE"
	ConfidenceLow      Confidence = "LOW"
)

// ConfidenceFor derives ranking certainty from the gap between the top two
// composites. A single scored candidate is MODERATE by convention.
func ConfidenceFor(ranked []ScoreRecord) Confidence {
	if len(ranked) < 2 {
		return ConfidenceModerate
	}
	gap := ranked[0].Composite - ranked[1].Composite
	switch {
	case gap >= 1.0:
		return ConfidenceHigh
	case gap >= 0.5:
		return ConfidenceModerate
	default:
		return ConfidenceLow
	}
}

// RiskLevel grades sourcing risk from a composite score.
func RiskLevel(score float64) string {
	switch {
	case score >= 8.0:
		return "LOW"
	case score >= 6.5:
		return "MEDIUM"
	case score >= 5.0:
		return "HIGH"
	default:
		return "CRITICAL"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

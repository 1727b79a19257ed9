package scoring

import (
	"fmt"
	"sort"
)

// MaterialRecommendation is the ranked outcome for one material across its
// candidate countries.
type MaterialRecommendation struct {
	Material           string        `json:"material"`
	RecommendedCountry string        `json:"recommended_country"`
	RecommendedScore   float64       `json:"recommended_score"`
	Rankings           []ScoreRecord `json:"country_rankings"`
	Confidence         Confidence    `json:"confidence"`
	RiskLevel          string        `json:"risk_level"`
	KeyInsights        []string      `json:"key_insights"`
}

// Opportunity is one cross-material sourcing highlight.
type Opportunity struct {
	Material string  `json:"material"`
	Country  string  `json:"country"`
	Score    float64 `json:"score"`
	Rating   string  `json:"opportunity_rating"`
}

// Recommend ranks the records for one material and derives confidence,
// risk and insight summaries. Returns nil when no country was scored.
func Recommend(material string, records []ScoreRecord, priority Priority) *MaterialRecommendation {
	if len(records) == 0 {
		return nil
	}
	ranked := Rank(records)
	top := ranked[0]

	return &MaterialRecommendation{
		Material:           material,
		RecommendedCountry: top.Country,
		RecommendedScore:   top.Composite,
		Rankings:           ranked,
		Confidence:         ConfidenceFor(ranked),
		RiskLevel:          RiskLevel(top.Composite),
		KeyInsights:        insights(ranked, priority),
	}
}

// TopOpportunities collects recommendations scoring at least 7.0 across all
// materials, rated HIGH from 8.0 up, sorted descending and capped at five.
func TopOpportunities(recs []*MaterialRecommendation) []Opportunity {
	var out []Opportunity
	for _, rec := range recs {
		if rec == nil || rec.RecommendedCountry == "" || rec.RecommendedScore < 7.0 {
			continue
		}
		rating := "MEDIUM"
		if rec.RecommendedScore >= 8.0 {
			rating = "HIGH"
		}
		out = append(out, Opportunity{
			Material: rec.Material,
			Country:  rec.RecommendedCountry,
			Score:    rec.RecommendedScore,
			Rating:   rating,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

// priorityDimension maps a caller priority to the dimension it emphasizes.
func priorityDimension(p Priority) string {
	switch p {
	case PriorityProfitability:
		return DimensionProfitability
	case PriorityStability:
		return DimensionStability
	case PriorityEco:
		return DimensionEco
	default:
		return ""
	}
}

func insights(ranked []ScoreRecord, priority Priority) []string {
	top := ranked[0]
	var out []string

	switch {
	case top.Composite >= 8.0:
		out = append(out, fmt.Sprintf("Excellent sourcing opportunity with %s", top.Country))
	case top.Composite >= 7.0:
		out = append(out, fmt.Sprintf("Good sourcing potential with %s", top.Country))
	default:
		out = append(out, fmt.Sprintf("Limited sourcing options - best available: %s", top.Country))
	}

	if dim := priorityDimension(priority); dim != "" {
		if score, ok := top.DimensionScores[dim]; ok {
			out = append(out, fmt.Sprintf("Priority focus (%s): %.1f/10", priority, score))
		}
	}

	if len(top.DimensionScores) > 0 {
		high, low := extremes(top.DimensionScores)
		out = append(out, fmt.Sprintf("Strongest in %s (%.1f/10)", high, top.DimensionScores[high]))
		if top.DimensionScores[low] < 6.0 {
			out = append(out, fmt.Sprintf("Requires attention in %s (%.1f/10)", low, top.DimensionScores[low]))
		}
	}

	if len(out) > 4 {
		out = out[:4]
	}
	return out
}

// extremes returns the highest and lowest scoring dimensions, walking the
// canonical dimension order so results do not depend on map iteration.
func extremes(scores map[string]float64) (high, low string) {
	for _, dim := range Dimensions {
		v, ok := scores[dim]
		if !ok {
			continue
		}
		if high == "" || v > scores[high] {
			high = dim
		}
		if low == "" || v < scores[low] {
			low = dim
		}
	}
	if high == "" {
		for dim := range scores {
			high, low = dim, dim
			break
		}
	}
	return high, low
}

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/altai-labs/magellan/internal/scoring"
	"github.com/altai-labs/magellan/internal/workflows"
)

// writeReport renders the analysis result as a terminal report.
func writeReport(w io.Writer, res *workflows.Result) {
	if res.Status != workflows.StateCompleted {
		fmt.Fprintf(w, "Analysis failed: %s\n", res.Error)
		if res.Partial != nil && len(res.Partial.Materials) > 0 {
			fmt.Fprintf(w, "Partial results: materials identified: %s\n",
				strings.Join(res.Partial.Materials, ", "))
		}
		return
	}

	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "RAW MATERIAL SOURCING ANALYSIS")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Industry Context:  %s\n", res.IndustryContext)
	fmt.Fprintf(w, "Destination:       %s\n", res.DestinationCountry)
	fmt.Fprintf(w, "Execution Time:    %.2fs\n", res.ExecutionTime)
	fmt.Fprintf(w, "Status:            %s\n", res.Status)

	recs := res.Recommendations
	if recs != nil {
		fmt.Fprintf(w, "\nPriority: %s\n", strings.ToUpper(string(recs.PriorityFocus)))
		fmt.Fprintf(w, "Weights:  profitability=%.0f%%  stability=%.0f%%  eco-friendliness=%.0f%%\n",
			recs.WeightsUsed[scoring.DimensionProfitability]*100,
			recs.WeightsUsed[scoring.DimensionStability]*100,
			recs.WeightsUsed[scoring.DimensionEco]*100)
	}

	fmt.Fprintf(w, "\nRaw materials identified (%d):\n", len(res.Materials))
	for i, material := range res.Materials {
		fmt.Fprintf(w, "  %d. %s\n", i+1, material)
	}

	writeDetailedAnalysis(w, res)

	if recs != nil {
		writeRecommendations(w, recs)
	}

	perf := res.Performance
	fmt.Fprintln(w, "\nPerformance:")
	fmt.Fprintf(w, "  Agent executions: %d (%d ok, %d failed)\n",
		perf.AgentExecutions, perf.SuccessfulAgents, perf.FailedAgents)
	fmt.Fprintf(w, "  Provider calls:   %d (%d searches, %d database queries)\n",
		perf.TotalAPICalls, perf.SearchQueries, perf.DatabaseQueries)
	if perf.AgentExecutions > 0 {
		fmt.Fprintf(w, "  Success rate:     %.1f%%\n",
			float64(perf.SuccessfulAgents)/float64(perf.AgentExecutions)*100)
	}
}

func writeDetailedAnalysis(w io.Writer, res *workflows.Result) {
	byMaterial := make(map[string][]workflows.CountryAnalysis)
	for _, ca := range res.CountryAnalyses {
		byMaterial[ca.Material] = append(byMaterial[ca.Material], ca)
	}

	fmt.Fprintln(w, "\nDetailed analysis:")
	for _, material := range res.Materials {
		fmt.Fprintf(w, "\n  %s\n  %s\n", strings.ToUpper(material), strings.Repeat("-", 40))
		countries := byMaterial[material]
		if len(countries) == 0 {
			fmt.Fprintln(w, "    no analysis available")
			continue
		}
		sort.SliceStable(countries, func(i, j int) bool {
			return countries[i].OverallScore > countries[j].OverallScore
		})
		for rank, ca := range countries {
			fmt.Fprintf(w, "    %d. %s - overall %.2f/10\n", rank+1, ca.Country, ca.OverallScore)
			for _, d := range ca.Dimensions {
				note := ""
				if d.Status != workflows.BranchSuccess {
					note = fmt.Sprintf("  (%s, neutral default)", d.Status)
				}
				fmt.Fprintf(w, "       %-17s %.1f/10%s\n", d.Dimension+":", d.Score, note)
			}
		}
	}
}

func writeRecommendations(w io.Writer, recs *workflows.Recommendations) {
	fmt.Fprintln(w, "\nRecommendations:")
	for _, rec := range recs.Materials {
		fmt.Fprintf(w, "\n  %s\n", rec.Material)
		if rec.RecommendedCountry == "" {
			fmt.Fprintln(w, "    no suitable country identified")
			continue
		}
		fmt.Fprintf(w, "    Recommended: %s (%.2f/10)\n", rec.RecommendedCountry, rec.RecommendedScore)
		fmt.Fprintf(w, "    Confidence:  %s   Risk: %s\n", rec.Confidence, rec.RiskLevel)
		for _, insight := range rec.KeyInsights {
			fmt.Fprintf(w, "    - %s\n", insight)
		}
	}

	if len(recs.TopOpportunities) > 0 {
		fmt.Fprintln(w, "\nTop sourcing opportunities:")
		for i, opp := range recs.TopOpportunities {
			fmt.Fprintf(w, "  %d. %s from %s (%.2f/10, %s potential)\n",
				i+1, opp.Material, opp.Country, opp.Score, opp.Rating)
		}
	}

	if recs.ExecutiveSummary != "" {
		fmt.Fprintf(w, "\n%s\n", recs.ExecutiveSummary)
	}
}

package agents

import (
	"fmt"
	"strings"

	"github.com/altai-labs/magellan/internal/scoring"
)

// expertPrompt builds the full analysis prompt for one dimension: the
// shared context with the research summary and domain factors, the
// dimension's section outline, then the scoring instruction.
func expertPrompt(dimension, material, country, destination, researchSummary string) string {
	label := dimensionLabels[dimension]
	var b strings.Builder
	fmt.Fprintf(&b, `As a senior expert in %s, analyze the sourcing of %s from %s to %s.

Research Data:
%s

Domain Knowledge:
Key Factors: %s
`, label, material, country, destination, researchSummary, strings.Join(keyFactors[dimension], ", "))

	switch dimension {
	case scoring.DimensionEco:
		b.WriteString(ecoPromptBody)
	case scoring.DimensionProfitability:
		b.WriteString(profitabilityPromptBody)
	case scoring.DimensionStability:
		b.WriteString(stabilityPromptBody)
	default:
		b.WriteString("\nProvide expert analysis with a score from 1-10 and detailed justification.\n")
	}
	return b.String()
}

const ecoPromptBody = `
Provide a comprehensive environmental and sustainability analysis covering:

1. Environmental Impact Assessment:
   - Carbon footprint of production and transportation
   - Water usage and pollution impact
   - Biodiversity and ecosystem effects
   - Soil health and land use practices

2. Sustainability Practices:
   - Current sustainable farming/production methods
   - Certification status (Organic, Fair Trade, Rainforest Alliance, etc.)
   - Environmental management systems
   - Waste reduction and circular economy practices

3. Long-term Sustainability:
   - Climate change resilience
   - Resource conservation initiatives
   - Community and social impact
   - Future sustainability commitments

4. Risk Assessment:
   - Environmental compliance risks
   - Reputation risks related to sustainability
   - Regulatory changes and requirements
   - Consumer perception and market trends

Provide a score from 1-10 (10 being most eco-friendly/sustainable) with detailed justification.
Consider both current practices and future sustainability potential.
`

const profitabilityPromptBody = `
Provide a comprehensive financial and economic analysis covering:

1. Cost Structure Analysis:
   - Production costs (labor, materials, processing)
   - Transportation and logistics costs
   - Customs, duties, and regulatory costs
   - Quality assurance and compliance costs

2. Market Economics:
   - Current market prices and trends
   - Price volatility and seasonality
   - Volume discounts and pricing tiers
   - Competition and market positioning

3. Financial Risk Assessment:
   - Currency exchange rate risks
   - Inflation and economic stability
   - Payment terms and credit risks
   - Insurance and hedging requirements

4. Profit Potential:
   - Gross margin analysis
   - Break-even analysis
   - ROI projections
   - Long-term profitability outlook

Provide a score from 1-10 (10 being most profitable/cost-effective) with detailed justification.
Consider both immediate costs and long-term financial viability.
`

const stabilityPromptBody = `
Provide a comprehensive stability and risk analysis covering:

1. Political Stability:
   - Government stability and policy continuity
   - Political risk indicators
   - Regulatory environment and changes
   - International relations and trade policies

2. Economic Stability:
   - GDP growth and economic indicators
   - Inflation and currency stability
   - Financial system strength
   - Economic diversification

3. Operational Stability:
   - Infrastructure quality and reliability
   - Supply chain robustness
   - Labor market stability
   - Logistics and transportation reliability

4. Risk Mitigation:
   - Available insurance and hedging options
   - Diversification opportunities
   - Contingency planning requirements
   - Early warning systems

Provide a score from 1-10 (10 being most stable/lowest risk) with detailed justification.
Consider both current stability and future risk trajectory.
`

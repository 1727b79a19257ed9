package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/altai-labs/magellan/internal/extraction"
	"github.com/altai-labs/magellan/internal/gateway"
	"github.com/altai-labs/magellan/internal/providers"
)

// CountryShortlist is the outcome of country discovery for one raw
// material.
type CountryShortlist struct {
	Material     string   `json:"raw_material"`
	Countries    []string `json:"countries"`
	Source       string   `json:"source"`
	Requirements string   `json:"business_requirements,omitempty"`
}

// ScoutConfig tunes the country scout.
type ScoutConfig struct {
	// Limit caps the shortlist size. <= 0 defaults to 3.
	Limit int
	// LookupRequirements queries the business_requirement store for the
	// shortlisted countries and attaches the rows to the result.
	LookupRequirements bool
}

// CountryScout discovers the top producing countries for one raw
// material: a production-statistics search, a generate call over the
// search results, then strict-JSON extraction with the static producer
// table as the parse fallback.
type CountryScout struct {
	gw     *gateway.Gateway
	tables TableSource
	cfg    ScoutConfig
	logger *zap.Logger
}

// NewCountryScout creates the scout.
func NewCountryScout(gw *gateway.Gateway, tables TableSource, cfg ScoutConfig, logger *zap.Logger) *CountryScout {
	if cfg.Limit <= 0 {
		cfg.Limit = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CountryScout{gw: gw, tables: tables, cfg: cfg, logger: logger}
}

// Discover runs one discovery agent for the material.
func (s *CountryScout) Discover(ctx context.Context, material string) (CountryShortlist, Execution) {
	agent := New(KindCountryScout,
		fmt.Sprintf("Raw Material Sourcing Leader for %s", material),
		fmt.Sprintf("Identify and evaluate the top producing countries for %s", material),
		s.logger)
	return Run[CountryShortlist](ctx, agent, &discoveryTask{scout: s, material: material})
}

type discoveryTask struct {
	scout    *CountryScout
	material string
}

func (t *discoveryTask) Validate() error {
	if strings.TrimSpace(t.material) == "" {
		return &providers.ValidationError{Field: "raw_material", Reason: "cannot be empty"}
	}
	return nil
}

func (t *discoveryTask) Execute(ctx context.Context, a *Agent) (CountryShortlist, error) {
	s := t.scout
	list := CountryShortlist{Material: t.material, Source: SourceProvider}

	query := fmt.Sprintf("top %s producing countries world largest producers statistics", t.material)
	searchInv, err := s.gw.Search(ctx, ProviderIDSearch, query, 8)
	if err != nil {
		return list, err
	}
	a.Memory.Remember(MemoryResearch, "search_results", searchInv.Text)
	if searchInv.Degraded() {
		a.NoteFault()
	}

	genInv, err := s.gw.Generate(ctx, ProviderIDGenerate, providers.GenerateRequest{
		Prompt:      discoveryPrompt(t.material, searchInv.Text, s.cfg.Limit),
		MaxTokens:   1500,
		Temperature: 0.3,
	})
	if err != nil {
		return list, err
	}
	a.Memory.Remember(MemoryResearch, "producer_analysis", genInv.Text)
	if genInv.Degraded() {
		a.NoteFault()
	}

	countries, perr := extraction.CountryList(genInv.Text, s.cfg.Limit)
	if perr != nil {
		a.NoteFault()
		a.logger.Warn("Producer analysis unparseable, using producer table", zap.Error(perr))
		countries = s.tables.Tables().CountriesFor(t.material)
		if len(countries) > s.cfg.Limit {
			countries = countries[:s.cfg.Limit]
		}
		list.Source = SourceFallback
	}

	list.Countries = dedupeTrim(countries)
	if len(list.Countries) == 0 {
		return list, &providers.ValidationError{Field: "countries", Reason: "no producing countries identified"}
	}
	a.Memory.Remember(MemoryCountries, "identified_countries", strings.Join(list.Countries, ", "))

	if s.cfg.LookupRequirements {
		t.lookupRequirements(ctx, a, &list)
	}

	a.logger.Info("Producing countries identified",
		zap.String("material", t.material),
		zap.Strings("countries", list.Countries),
		zap.String("source", list.Source))
	return list, nil
}

// lookupRequirements attaches stored business requirements for the
// shortlisted countries. The lookup is best-effort: a failure marks a
// fault but never fails the discovery.
func (t *discoveryTask) lookupRequirements(ctx context.Context, a *Agent, list *CountryShortlist) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(list.Countries)), ", ")
	query := fmt.Sprintf("SELECT * FROM business_requirement WHERE country IN (%s)", placeholders)
	params := make([]any, len(list.Countries))
	for i, c := range list.Countries {
		params[i] = c
	}

	inv, err := t.scout.gw.Query(ctx, ProviderIDQuery, query, params)
	if err != nil {
		a.NoteFault()
		a.logger.Warn("Business requirement lookup failed", zap.Error(err))
		return
	}
	if inv.Degraded() {
		a.NoteFault()
		return
	}
	list.Requirements = inv.Text
	a.Memory.Remember(MemoryAnalysis, "business_requirements", inv.Text)
}

func discoveryPrompt(material, searchResults string, limit int) string {
	return fmt.Sprintf(`Based on the following search results about %[1]s production, identify the top %[3]d countries that are best known for producing %[1]s.

Search Results:
%[2]s

Consider factors like:
- Production volume and capacity
- Quality and reputation
- Global market share
- Export capabilities
- Established supply chains

Provide your response in the following JSON format:
{
    "countries": ["Country1", "Country2", "Country3"],
    "reasoning": "Brief explanation of why these countries were selected",
    "production_insights": {
        "Country1": "Brief insight about Country1's production",
        "Country2": "Brief insight about Country2's production",
        "Country3": "Brief insight about Country3's production"
    }
}

Focus on actual country names and provide exactly %[3]d countries.`, material, searchResults, limit)
}

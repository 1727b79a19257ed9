package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/altai-labs/magellan/internal/providers"
)

func TestDiscoverHappyPath(t *testing.T) {
	search := &scriptedSearch{fn: func(_ int, query string, _ int) (providers.Value, error) {
		return providers.Text("Search Results for: '" + query + "'\nBrazil leads global output."), nil
	}}
	gen := &scriptedGenerate{fn: func(_ int, req providers.GenerateRequest) (providers.Value, error) {
		return providers.Text(`{"countries": ["Brazil", "Vietnam", "Colombia"], "reasoning": "volume and reputation"}`), nil
	}}
	q := &scriptedQuery{fn: func(string, []any) (providers.Value, error) {
		return providers.Text("3 rows"), nil
	}}

	gw := newTestGateway(t)
	gw.RegisterSearch(ProviderIDSearch, search)
	gw.RegisterGenerate(ProviderIDGenerate, gen)
	gw.RegisterQuery(ProviderIDQuery, q)

	scout := NewCountryScout(gw, defaultTables(), ScoutConfig{}, zaptest.NewLogger(t))
	list, exec := scout.Discover(context.Background(), "Coffee Beans")

	require.Equal(t, StatusCompleted, exec.Status)
	assert.Equal(t, []string{"Brazil", "Vietnam", "Colombia"}, list.Countries)
	assert.Equal(t, SourceProvider, list.Source)
	assert.Equal(t, "Coffee Beans", list.Material)
	assert.Empty(t, list.Requirements, "lookup disabled by default")

	queries := search.seenQueries()
	require.Len(t, queries, 1)
	assert.Equal(t, "top Coffee Beans producing countries world largest producers statistics", queries[0])
	assert.Equal(t, []int{8}, search.seenMaxResults())

	req := gen.lastRequest()
	assert.Equal(t, 1500, req.MaxTokens)
	assert.InDelta(t, 0.3, req.Temperature, 1e-9)
	assert.Contains(t, req.Prompt, "Brazil leads global output.")
	assert.Contains(t, req.Prompt, "JSON format")

	calls, _, _ := q.captured()
	assert.Zero(t, calls)
}

func TestDiscoverFallbackOnProseAnalysis(t *testing.T) {
	search := &scriptedSearch{fn: func(int, string, int) (providers.Value, error) {
		return providers.Text("production statistics"), nil
	}}
	gen := &scriptedGenerate{fn: func(int, providers.GenerateRequest) (providers.Value, error) {
		return providers.Text("Several countries grow coffee, it depends on the season."), nil
	}}

	gw := newTestGateway(t)
	gw.RegisterSearch(ProviderIDSearch, search)
	gw.RegisterGenerate(ProviderIDGenerate, gen)

	scout := NewCountryScout(gw, defaultTables(), ScoutConfig{}, zaptest.NewLogger(t))
	list, exec := scout.Discover(context.Background(), "Coffee Beans")

	require.Equal(t, StatusCompletedWithErrors, exec.Status)
	assert.Equal(t, []string{"Brazil", "Colombia", "Ethiopia"}, list.Countries)
	assert.Equal(t, SourceFallback, list.Source)
	assert.Equal(t, 1, gen.callCount())
}

func TestDiscoverRecoversBulletList(t *testing.T) {
	search := &scriptedSearch{fn: func(int, string, int) (providers.Value, error) {
		return providers.Text("production statistics"), nil
	}}
	gen := &scriptedGenerate{fn: func(int, providers.GenerateRequest) (providers.Value, error) {
		return providers.Text("Top producers:\n1. Brazil\n2. Vietnam\n3. Colombia\n"), nil
	}}

	gw := newTestGateway(t)
	gw.RegisterSearch(ProviderIDSearch, search)
	gw.RegisterGenerate(ProviderIDGenerate, gen)

	scout := NewCountryScout(gw, defaultTables(), ScoutConfig{}, zaptest.NewLogger(t))
	list, exec := scout.Discover(context.Background(), "Coffee Beans")

	require.Equal(t, StatusCompleted, exec.Status)
	assert.Equal(t, []string{"Brazil", "Vietnam", "Colombia"}, list.Countries)
	assert.Equal(t, SourceProvider, list.Source, "a recovered list still counts as provider output")
}

func TestDiscoverRequirementsLookup(t *testing.T) {
	search := &scriptedSearch{fn: func(int, string, int) (providers.Value, error) {
		return providers.Text("production statistics"), nil
	}}
	gen := &scriptedGenerate{fn: func(int, providers.GenerateRequest) (providers.Value, error) {
		return providers.Text(`{"countries": ["Brazil", "Vietnam", "Colombia"]}`), nil
	}}
	q := &scriptedQuery{fn: func(string, []any) (providers.Value, error) {
		return providers.Text("Query executed successfully. 3 rows."), nil
	}}

	gw := newTestGateway(t)
	gw.RegisterSearch(ProviderIDSearch, search)
	gw.RegisterGenerate(ProviderIDGenerate, gen)
	gw.RegisterQuery(ProviderIDQuery, q)

	scout := NewCountryScout(gw, defaultTables(), ScoutConfig{LookupRequirements: true}, zaptest.NewLogger(t))
	list, exec := scout.Discover(context.Background(), "Coffee Beans")

	require.Equal(t, StatusCompleted, exec.Status)
	assert.Equal(t, "Query executed successfully. 3 rows.", list.Requirements)

	calls, query, params := q.captured()
	assert.Equal(t, 1, calls)
	assert.Equal(t, "SELECT * FROM business_requirement WHERE country IN (?, ?, ?)", query)
	assert.Equal(t, []any{"Brazil", "Vietnam", "Colombia"}, params)
}

func TestDiscoverRequirementsLookupIsBestEffort(t *testing.T) {
	search := &scriptedSearch{fn: func(int, string, int) (providers.Value, error) {
		return providers.Text("production statistics"), nil
	}}
	gen := &scriptedGenerate{fn: func(int, providers.GenerateRequest) (providers.Value, error) {
		return providers.Text(`{"countries": ["Brazil", "Vietnam", "Colombia"]}`), nil
	}}
	q := &scriptedQuery{fn: func(string, []any) (providers.Value, error) {
		return providers.Value{}, errors.New("db unreachable")
	}}

	gw := newTestGateway(t)
	gw.RegisterSearch(ProviderIDSearch, search)
	gw.RegisterGenerate(ProviderIDGenerate, gen)
	gw.RegisterQuery(ProviderIDQuery, q)

	scout := NewCountryScout(gw, defaultTables(), ScoutConfig{LookupRequirements: true}, zaptest.NewLogger(t))
	list, exec := scout.Discover(context.Background(), "Coffee Beans")

	require.Equal(t, StatusCompletedWithErrors, exec.Status)
	assert.Equal(t, []string{"Brazil", "Vietnam", "Colombia"}, list.Countries)
	assert.Empty(t, list.Requirements)
}

func TestDiscoverDegradedSearchStillCompletes(t *testing.T) {
	search := &scriptedSearch{fn: func(int, string, int) (providers.Value, error) {
		return providers.Value{}, errors.New("search offline")
	}}
	gen := &scriptedGenerate{fn: func(_ int, req providers.GenerateRequest) (providers.Value, error) {
		// The degraded search payload still reaches the analysis prompt.
		assert.Contains(t, req.Prompt, "Failed to execute web_search")
		return providers.Text(`{"countries": ["Brazil", "Vietnam", "Colombia"]}`), nil
	}}

	gw := newTestGateway(t)
	gw.RegisterSearch(ProviderIDSearch, search)
	gw.RegisterGenerate(ProviderIDGenerate, gen)

	scout := NewCountryScout(gw, defaultTables(), ScoutConfig{}, zaptest.NewLogger(t))
	list, exec := scout.Discover(context.Background(), "Coffee Beans")

	require.Equal(t, StatusCompletedWithErrors, exec.Status)
	assert.Equal(t, []string{"Brazil", "Vietnam", "Colombia"}, list.Countries)
	assert.Equal(t, 1, exec.Faults)
}

func TestDiscoverEmptyMaterialFails(t *testing.T) {
	scout := NewCountryScout(newTestGateway(t), defaultTables(), ScoutConfig{}, zaptest.NewLogger(t))
	list, exec := scout.Discover(context.Background(), "")

	assert.True(t, exec.Failed())
	assert.Contains(t, exec.Error, "raw_material")
	assert.Empty(t, list.Countries)
}

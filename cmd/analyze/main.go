// Command analyze runs one sourcing analysis from the command line and
// prints a formatted report, or writes the raw result JSON with -json.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/altai-labs/magellan/internal/agents"
	"github.com/altai-labs/magellan/internal/circuitbreaker"
	"github.com/altai-labs/magellan/internal/config"
	"github.com/altai-labs/magellan/internal/extraction"
	"github.com/altai-labs/magellan/internal/gateway"
	"github.com/altai-labs/magellan/internal/providers/anthropic"
	"github.com/altai-labs/magellan/internal/providers/relational"
	"github.com/altai-labs/magellan/internal/providers/websearch"
	"github.com/altai-labs/magellan/internal/tracing"
	"github.com/altai-labs/magellan/internal/workflows"
)

func main() {
	industry := flag.String("industry", "cotton t-shirts", "industry context to analyze")
	destination := flag.String("destination", "USA", "destination country")
	priority := flag.String("priority", "balanced", "scoring priority: profitability, stability, eco-friendly or balanced")
	jsonOut := flag.Bool("json", false, "write the raw result JSON instead of the report")
	timeout := flag.Duration("timeout", 0, "overall analysis timeout (0 uses the configured default)")
	flag.Parse()

	if err := run(*industry, *destination, *priority, *jsonOut, *timeout); err != nil {
		log.Fatalf("analyze: %v", err)
	}
}

func run(industry, destination, priority string, jsonOut bool, timeout time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if timeout > 0 {
		cfg.Workflow.OverallTimeout = timeout
	}

	logger, err := cfg.Logging.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()
	if !jsonOut {
		// The report goes to stdout; keep logs out of its way unless
		// the operator asked for them.
		if os.Getenv("LOG_LEVEL") == "" {
			logger = zap.NewNop()
		}
	}
	_ = tracing.Initialize(tracing.Config{Enabled: false}, logger)

	engine, cleanup, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := engine.Analyze(context.Background(), workflows.Request{
		IndustryContext:    industry,
		DestinationCountry: destination,
		Priority:           priority,
	})
	if err != nil && result == nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	writeReport(os.Stdout, result)
	return err
}

// buildEngine wires the same pipeline the service runs, minus the HTTP
// surfaces.
func buildEngine(cfg *config.Config, logger *zap.Logger) (*workflows.Engine, func(), error) {
	gwCfg := gateway.Config{
		SearchTTL:      cfg.Gateway.SearchTTL,
		GenerateTTL:    cfg.Gateway.GenerateTTL,
		QueryTTL:       cfg.Gateway.QueryTTL,
		MaxRetries:     cfg.Gateway.MaxRetries,
		RetryBaseDelay: cfg.Gateway.RetryBaseDelay,
		CacheCapacity:  cfg.Gateway.CacheCapacity,
	}
	if cfg.Gateway.Breaker.Enabled {
		gwCfg.Breaker = &circuitbreaker.Config{
			MaxRequests:      cfg.Gateway.Breaker.MaxRequests,
			Interval:         cfg.Gateway.Breaker.Interval,
			Timeout:          cfg.Gateway.Breaker.Timeout,
			FailureThreshold: cfg.Gateway.Breaker.FailureThreshold,
			SuccessThreshold: cfg.Gateway.Breaker.SuccessThreshold,
		}
	}
	gw := gateway.New(gwCfg, logger.Named("gateway"))

	generate, err := anthropic.New(cfg.Providers.Anthropic, logger.Named("anthropic"))
	if err != nil {
		return nil, nil, fmt.Errorf("generate provider: %w", err)
	}
	gw.RegisterGenerate(agents.ProviderIDGenerate, generate)
	gw.RegisterSearch(agents.ProviderIDSearch, websearch.New(cfg.Providers.WebSearch, logger.Named("websearch")))

	cleanup := func() {}
	lookupRequirements := false
	if cfg.Providers.Relational.Enabled {
		queryStore, err := relational.New(cfg.Providers.Relational, logger.Named("relational"))
		if err != nil {
			return nil, nil, fmt.Errorf("query provider: %w", err)
		}
		gw.RegisterQuery(agents.ProviderIDQuery, queryStore)
		cleanup = func() { queryStore.Close() }
		lookupRequirements = true
	}

	tables, err := config.LoadFallbackTables()
	if err != nil {
		tables = config.DefaultFallbackTables()
	}
	store := config.NewFallbackStore(tables)

	jitter := extraction.JitterConfig{
		Enabled: cfg.Extraction.JitterEnabled,
		Seed:    cfg.Extraction.JitterSeed,
	}
	if jitter.Enabled && jitter.Seed == 0 {
		jitter.Seed = time.Now().UnixNano()
	}
	extractor := extraction.NewScoreExtractor(jitter, logger.Named("extraction"))

	engine := workflows.NewEngine(workflows.Deps{
		Identifier: agents.NewMaterialIdentifier(gw, store, cfg.Workflow.Materials, logger.Named("agents")),
		Scout: agents.NewCountryScout(gw, store, agents.ScoutConfig{
			Limit:              cfg.Workflow.CountriesPerMaterial,
			LookupRequirements: lookupRequirements,
		}, logger.Named("agents")),
		Expert: agents.NewDimensionExpert(gw, extractor, logger.Named("agents")),
		Tables: store,
	}, cfg.Workflow, logger.Named("workflows"))
	return engine, cleanup, nil
}

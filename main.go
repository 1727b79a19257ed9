// Command magellan serves the raw-material sourcing analysis engine
// over HTTP: a synchronous analysis endpoint, a websocket progress
// stream, health endpoints and Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/altai-labs/magellan/internal/agents"
	"github.com/altai-labs/magellan/internal/circuitbreaker"
	"github.com/altai-labs/magellan/internal/config"
	"github.com/altai-labs/magellan/internal/extraction"
	"github.com/altai-labs/magellan/internal/gateway"
	"github.com/altai-labs/magellan/internal/health"
	"github.com/altai-labs/magellan/internal/httpapi"
	_ "github.com/altai-labs/magellan/internal/metrics" // collector registration
	"github.com/altai-labs/magellan/internal/providers/anthropic"
	"github.com/altai-labs/magellan/internal/providers/relational"
	"github.com/altai-labs/magellan/internal/providers/websearch"
	"github.com/altai-labs/magellan/internal/streaming"
	"github.com/altai-labs/magellan/internal/tracing"
	"github.com/altai-labs/magellan/internal/workflows"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("magellan: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := cfg.Logging.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
	}, logger); err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	// Provider gateway with the local cache tier; Redis attaches below
	// when configured.
	var breakerCfg *circuitbreaker.Config
	if cfg.Gateway.Breaker.Enabled {
		breakerCfg = &circuitbreaker.Config{
			MaxRequests:      cfg.Gateway.Breaker.MaxRequests,
			Interval:         cfg.Gateway.Breaker.Interval,
			Timeout:          cfg.Gateway.Breaker.Timeout,
			FailureThreshold: cfg.Gateway.Breaker.FailureThreshold,
			SuccessThreshold: cfg.Gateway.Breaker.SuccessThreshold,
		}
	}
	gw := gateway.New(gateway.Config{
		SearchTTL:      cfg.Gateway.SearchTTL,
		GenerateTTL:    cfg.Gateway.GenerateTTL,
		QueryTTL:       cfg.Gateway.QueryTTL,
		MaxRetries:     cfg.Gateway.MaxRetries,
		RetryBaseDelay: cfg.Gateway.RetryBaseDelay,
		CacheCapacity:  cfg.Gateway.CacheCapacity,
		Breaker:        breakerCfg,
	}, logger.Named("gateway"))

	hm := health.NewManager(cfg.Health.CheckInterval, cfg.Health.Timeout, logger.Named("health"))

	if cfg.Redis.Enabled {
		var breaker *circuitbreaker.CircuitBreaker
		if breakerCfg != nil {
			breaker = circuitbreaker.New("redis", *breakerCfg, logger.Named("breaker"))
		}
		shared, err := gateway.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, breaker)
		if err != nil {
			// The engine runs on the local tier alone; losing Redis
			// only costs cross-process cache hits.
			logger.Warn("Redis cache unavailable, continuing with local tier",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			defer shared.Close()
			gw.SetSharedCache(shared)
			hm.Register(health.NewRedisChecker(shared.Client()))
		}
	}

	// Capability providers.
	generate, err := anthropic.New(cfg.Providers.Anthropic, logger.Named("anthropic"))
	if err != nil {
		return fmt.Errorf("generate provider: %w", err)
	}
	gw.RegisterGenerate(agents.ProviderIDGenerate, generate)
	gw.RegisterSearch(agents.ProviderIDSearch, websearch.New(cfg.Providers.WebSearch, logger.Named("websearch")))

	lookupRequirements := false
	if cfg.Providers.Relational.Enabled {
		queryStore, err := relational.New(cfg.Providers.Relational, logger.Named("relational"))
		if err != nil {
			return fmt.Errorf("query provider: %w", err)
		}
		defer queryStore.Close()
		gw.RegisterQuery(agents.ProviderIDQuery, queryStore)
		hm.Register(health.NewDatabaseChecker(queryStore.DB(), false))
		lookupRequirements = true
	}
	hm.Register(health.NewGatewayChecker(gw, 2))

	// Fallback tables, hot-reloadable when CONFIG_DIR is set.
	tables, err := config.LoadFallbackTables()
	if err != nil {
		logger.Warn("Fallback tables invalid, using built-in defaults", zap.Error(err))
		tables = config.DefaultFallbackTables()
	}
	store := config.NewFallbackStore(tables)
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		mgr, err := config.NewManager(dir, logger.Named("config"))
		if err != nil {
			return fmt.Errorf("config manager: %w", err)
		}
		mgr.RegisterHandler("fallback.yaml", store.HandleChange)
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("start config manager: %w", err)
		}
		defer mgr.Stop()
	}

	events := streaming.NewManager(cfg.Streaming.RingCapacity, logger.Named("streaming"))

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
		Events: events,
	}, cfg.Workflow, logger.Named("workflows"))

	// API server.
	mux := http.NewServeMux()
	httpapi.NewAnalysesHandler(engine, logger.Named("httpapi")).RegisterRoutes(mux)
	httpapi.NewEventsHandler(events, logger.Named("httpapi")).RegisterRoutes(mux)
	health.NewHandler(hm, logger.Named("health")).RegisterRoutes(mux)

	if cfg.Health.Enabled {
		go hm.Start(ctx)
	}

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Service.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Service.ReadTimeout,
		WriteTimeout: cfg.Service.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Service.MetricsPort),
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Service.Port))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		logger.Info("Metrics server listening", zap.Int("port", cfg.Service.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.GracefulTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown failed", zap.Error(err))
	}
	return nil
}

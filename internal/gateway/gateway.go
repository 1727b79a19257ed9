// Package gateway mediates every provider invocation: response caching
// with per-class TTLs, in-flight deduplication, bounded retry with
// exponential backoff, and degraded textual payloads once retries are
// exhausted. Callers receive one canonical text form regardless of the
// provider's native response shape.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/altai-labs/magellan/internal/circuitbreaker"
	"github.com/altai-labs/magellan/internal/metrics"
	"github.com/altai-labs/magellan/internal/providers"
)

// Status of a finished invocation.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusRetrying Status = "retrying"
	StatusDegraded Status = "degraded"
	StatusCached   Status = "cached"
)

// Invocation is the record of one gateway call.
type Invocation struct {
	Provider string            `json:"provider_id"`
	Class    providers.Class   `json:"class"`
	Args     map[string]string `json:"arguments,omitempty"`
	CacheKey string            `json:"cache_key"`
	Attempts int               `json:"attempt_count"`
	Failures []AttemptFailure  `json:"failures,omitempty"`
	Status   Status            `json:"status"`
	Text     string            `json:"text"`
	Elapsed  time.Duration     `json:"-"`
}

// Degraded reports whether the payload is a failure description rather
// than real provider output.
func (inv *Invocation) Degraded() bool { return inv.Status == StatusDegraded }

// AttemptFailure records one failed try against the underlying provider.
type AttemptFailure struct {
	Attempt int           `json:"attempt"`
	Err     string        `json:"error"`
	Backoff time.Duration `json:"backoff"` // delay applied before the next try, 0 on the last
}

// Config holds the gateway tuning knobs.
type Config struct {
	SearchTTL      time.Duration
	GenerateTTL    time.Duration
	QueryTTL       time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	CacheCapacity  int

	// Breaker, when non-nil, guards every registered provider with its
	// own circuit breaker.
	Breaker *circuitbreaker.Config
}

type invokeFunc func(ctx context.Context, args map[string]string) (providers.Value, error)

type registration struct {
	class   providers.Class
	invoke  invokeFunc
	breaker *circuitbreaker.CircuitBreaker
}

// Gateway routes invocations to registered providers.
type Gateway struct {
	cfg    Config
	local  *LocalLRU
	shared ResponseCache
	group  singleflight.Group
	logger *zap.Logger

	mu        sync.RWMutex
	providers map[string]*registration
}

// New creates a gateway with the local cache tier only. Attach a shared
// tier with SetSharedCache.
func New(cfg Config, logger *zap.Logger) *Gateway {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.SearchTTL <= 0 {
		cfg.SearchTTL = 5 * time.Minute
	}
	if cfg.GenerateTTL <= 0 {
		cfg.GenerateTTL = 30 * time.Minute
	}
	if cfg.QueryTTL <= 0 {
		cfg.QueryTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		cfg:       cfg,
		local:     NewLocalLRU(cfg.CacheCapacity),
		logger:    logger,
		providers: make(map[string]*registration),
	}
}

// SetSharedCache attaches the shared cache tier, checked after the local
// one and backfilled on hit.
func (g *Gateway) SetSharedCache(c ResponseCache) {
	g.shared = c
}

// RegisterSearch registers a search provider under the given id.
func (g *Gateway) RegisterSearch(id string, p providers.SearchProvider) {
	g.register(id, providers.ClassSearch, func(ctx context.Context, args map[string]string) (providers.Value, error) {
		maxResults, _ := strconv.Atoi(args["max_results"])
		if maxResults <= 0 {
			maxResults = 5
		}
		return p.Search(ctx, args["query"], maxResults)
	})
}

// RegisterGenerate registers a generation provider under the given id.
func (g *Gateway) RegisterGenerate(id string, p providers.GenerateProvider) {
	g.register(id, providers.ClassGenerate, func(ctx context.Context, args map[string]string) (providers.Value, error) {
		req := providers.GenerateRequest{
			Prompt: args["prompt"],
			Format: providers.ResponseFormat(args["format"]),
		}
		if v := args["max_tokens"]; v != "" {
			req.MaxTokens, _ = strconv.Atoi(v)
		}
		if v := args["temperature"]; v != "" {
			req.Temperature, _ = strconv.ParseFloat(v, 64)
		}
		return p.Generate(ctx, req)
	})
}

// RegisterQuery registers a structured-store provider under the given id.
func (g *Gateway) RegisterQuery(id string, p providers.QueryProvider) {
	g.register(id, providers.ClassQuery, func(ctx context.Context, args map[string]string) (providers.Value, error) {
		var params []any
		if raw := args["params"]; raw != "" {
			if err := json.Unmarshal([]byte(raw), &params); err != nil {
				return providers.Value{}, &providers.ValidationError{Field: "params", Reason: "not valid JSON"}
			}
		}
		return p.Query(ctx, args["query"], params)
	})
}

func (g *Gateway) register(id string, class providers.Class, fn invokeFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	reg := &registration{class: class, invoke: fn}
	if g.cfg.Breaker != nil {
		reg.breaker = circuitbreaker.New(id, *g.cfg.Breaker, g.logger.Named("breaker"))
	}
	g.providers[id] = reg
	g.logger.Info("Provider registered",
		zap.String("provider", id),
		zap.String("class", string(class)),
	)
}

// Providers lists the registered provider ids.
func (g *Gateway) Providers() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.providers))
	for id := range g.providers {
		ids = append(ids, id)
	}
	return ids
}

// Search invokes a search provider.
func (g *Gateway) Search(ctx context.Context, providerID, query string, maxResults int) (*Invocation, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &providers.ValidationError{Field: "query", Reason: "cannot be empty"}
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return g.Invoke(ctx, providerID, map[string]string{
		"query":       query,
		"max_results": strconv.Itoa(maxResults),
	})
}

// Generate invokes a generation provider.
func (g *Gateway) Generate(ctx context.Context, providerID string, req providers.GenerateRequest) (*Invocation, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &providers.ValidationError{Field: "prompt", Reason: "cannot be empty"}
	}
	args := map[string]string{
		"prompt":      req.Prompt,
		"temperature": strconv.FormatFloat(req.Temperature, 'g', -1, 64),
	}
	if req.MaxTokens > 0 {
		args["max_tokens"] = strconv.Itoa(req.MaxTokens)
	}
	if req.Format != "" {
		args["format"] = string(req.Format)
	}
	return g.Invoke(ctx, providerID, args)
}

// Query invokes a structured-store provider.
func (g *Gateway) Query(ctx context.Context, providerID, storeQuery string, params []any) (*Invocation, error) {
	if strings.TrimSpace(storeQuery) == "" {
		return nil, &providers.ValidationError{Field: "query", Reason: "cannot be empty"}
	}
	args := map[string]string{"query": storeQuery}
	if len(params) > 0 {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, &providers.ValidationError{Field: "params", Reason: err.Error()}
		}
		args["params"] = string(b)
	}
	return g.Invoke(ctx, providerID, args)
}

// Invoke runs one provider call through the cache, the in-flight group
// and the retry loop. Identical concurrent invocations share a single
// underlying call; identical invocations within the TTL hit the cache.
//
// A degraded result is returned with a nil error so callers can fall back
// to defaults; only validation failures and context cancellation surface
// as errors.
func (g *Gateway) Invoke(ctx context.Context, providerID string, args map[string]string) (*Invocation, error) {
	g.mu.RLock()
	reg, ok := g.providers[providerID]
	g.mu.RUnlock()
	if !ok {
		return nil, &providers.ValidationError{Field: "provider", Reason: fmt.Sprintf("unknown provider %q", providerID)}
	}

	key := MakeKey(providerID, args)
	if text, ok := g.cacheGet(ctx, key, reg.class); ok {
		metrics.ProviderCalls.WithLabelValues(providerID, string(StatusCached)).Inc()
		g.logger.Debug("Cache hit", zap.String("provider", providerID), zap.String("cache_key", key))
		return &Invocation{
			Provider: providerID,
			Class:    reg.class,
			Args:     args,
			CacheKey: key,
			Status:   StatusCached,
			Text:     text,
		}, nil
	}

	v, err, shared := g.group.Do(key, func() (interface{}, error) {
		return g.callWithRetry(ctx, providerID, reg, key, args)
	})
	if shared {
		metrics.InflightDeduped.Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(*Invocation), nil
}

func (g *Gateway) callWithRetry(ctx context.Context, providerID string, reg *registration, key string, args map[string]string) (*Invocation, error) {
	inv := &Invocation{Provider: providerID, Class: reg.class, Args: args, CacheKey: key}
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt < g.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			metrics.ProviderCalls.WithLabelValues(providerID, "error").Inc()
			return nil, providers.NewProviderError(providerID, "invoke", err)
		}

		inv.Attempts++
		callStart := time.Now()
		value, err := g.call(ctx, reg, args)
		metrics.ProviderCallDuration.WithLabelValues(providerID).Observe(time.Since(callStart).Seconds())

		if err == nil {
			inv.Status = StatusSuccess
			inv.Text = value.Normalize()
			inv.Elapsed = time.Since(start)
			g.cacheSet(ctx, key, inv.Text, reg.class)
			metrics.ProviderCalls.WithLabelValues(providerID, string(StatusSuccess)).Inc()
			return inv, nil
		}
		lastErr = err

		// Bad arguments will not improve with retries.
		var vErr *providers.ValidationError
		if errors.As(err, &vErr) {
			metrics.ProviderCalls.WithLabelValues(providerID, "error").Inc()
			return nil, err
		}

		// An open circuit will not close within this retry budget.
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			inv.Failures = append(inv.Failures, AttemptFailure{Attempt: attempt, Err: err.Error()})
			break
		}

		// Failures the provider marked permanent skip the remaining
		// attempts and degrade at once.
		if !providers.IsRetryable(err) {
			inv.Failures = append(inv.Failures, AttemptFailure{Attempt: attempt, Err: err.Error()})
			break
		}

		failure := AttemptFailure{Attempt: attempt, Err: err.Error()}
		if attempt < g.cfg.MaxRetries-1 {
			delay := g.cfg.RetryBaseDelay << attempt
			failure.Backoff = delay
			inv.Failures = append(inv.Failures, failure)
			metrics.ProviderRetries.WithLabelValues(providerID).Inc()
			g.logger.Warn("Provider call failed, backing off",
				zap.String("provider", providerID),
				zap.String("status", string(StatusRetrying)),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", g.cfg.MaxRetries),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				metrics.ProviderCalls.WithLabelValues(providerID, "error").Inc()
				return nil, providers.NewProviderError(providerID, "invoke", ctx.Err())
			}
			continue
		}
		inv.Failures = append(inv.Failures, failure)
	}

	inv.Status = StatusDegraded
	inv.Text = fmt.Sprintf("Failed to execute %s after %d attempts: %s", providerID, g.cfg.MaxRetries, lastErr)
	inv.Elapsed = time.Since(start)
	metrics.ProviderCalls.WithLabelValues(providerID, string(StatusDegraded)).Inc()
	metrics.DegradedResponses.WithLabelValues(providerID).Inc()
	g.logger.Error("Provider exhausted retries, returning degraded payload",
		zap.String("provider", providerID),
		zap.Int("attempts", inv.Attempts),
		zap.Error(lastErr),
	)
	return inv, nil
}

// call runs the provider through its breaker when one is configured.
func (g *Gateway) call(ctx context.Context, reg *registration, args map[string]string) (providers.Value, error) {
	if reg.breaker == nil {
		return reg.invoke(ctx, args)
	}
	var value providers.Value
	err := reg.breaker.Execute(ctx, func() error {
		v, err := reg.invoke(ctx, args)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	return value, err
}

func (g *Gateway) cacheGet(ctx context.Context, key string, class providers.Class) (string, bool) {
	if text, ok := g.local.Get(ctx, key); ok {
		metrics.CacheHits.WithLabelValues("local").Inc()
		return text, true
	}
	if g.shared != nil {
		if text, ok := g.shared.Get(ctx, key); ok {
			metrics.CacheHits.WithLabelValues("shared").Inc()
			g.local.Set(ctx, key, text, g.ttl(class))
			return text, true
		}
	}
	metrics.CacheMisses.Inc()
	return "", false
}

func (g *Gateway) cacheSet(ctx context.Context, key, text string, class providers.Class) {
	ttl := g.ttl(class)
	g.local.Set(ctx, key, text, ttl)
	if g.shared != nil {
		g.shared.Set(ctx, key, text, ttl)
	}
}

func (g *Gateway) ttl(class providers.Class) time.Duration {
	switch class {
	case providers.ClassSearch:
		return g.cfg.SearchTTL
	case providers.ClassGenerate:
		return g.cfg.GenerateTTL
	default:
		return g.cfg.QueryTTL
	}
}

// Package config holds the typed configuration tree for the sourcing
// analysis service, loaded from YAML with environment overrides, plus a
// file-watching manager for hot-reloadable tables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the root configuration for the service.
type Config struct {
	Service    ServiceConfig    `yaml:"service" mapstructure:"service"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Tracing    TracingConfig    `yaml:"tracing" mapstructure:"tracing"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Providers  ProvidersConfig  `yaml:"providers" mapstructure:"providers"`
	Gateway    GatewayConfig    `yaml:"gateway" mapstructure:"gateway"`
	Workflow   WorkflowConfig   `yaml:"workflow" mapstructure:"workflow"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Streaming  StreamingConfig  `yaml:"streaming" mapstructure:"streaming"`
	Health     HealthConfig     `yaml:"health" mapstructure:"health"`
}

// ServiceConfig contains HTTP server settings.
type ServiceConfig struct {
	Port            int           `yaml:"port" mapstructure:"port"`
	MetricsPort     int           `yaml:"metrics_port" mapstructure:"metrics_port"`
	GracefulTimeout time.Duration `yaml:"graceful_timeout" mapstructure:"graceful_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level       string `yaml:"level" mapstructure:"level"`
	Development bool   `yaml:"development" mapstructure:"development"`
	Encoding    string `yaml:"encoding" mapstructure:"encoding"` // "json" or "console"
}

// Build constructs a zap logger from the logging settings.
func (l LoggingConfig) Build() (*zap.Logger, error) {
	var zc zap.Config
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", l.Level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if l.Encoding != "" {
		zc.Encoding = l.Encoding
	}
	return zc.Build()
}

// TracingConfig contains OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" mapstructure:"enabled"`
	ServiceName  string  `yaml:"service_name" mapstructure:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" mapstructure:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// RedisConfig contains settings for the shared response cache tier.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// ProvidersConfig groups the capability provider settings.
type ProvidersConfig struct {
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	WebSearch  WebSearchConfig  `yaml:"web_search" mapstructure:"web_search"`
	Relational RelationalConfig `yaml:"relational" mapstructure:"relational"`
}

// AnthropicConfig contains settings for the generation provider.
type AnthropicConfig struct {
	Model     string        `yaml:"model" mapstructure:"model"`
	APIKeyEnv string        `yaml:"api_key_env" mapstructure:"api_key_env"`
	MaxTokens int64         `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// WebSearchConfig contains settings for the web search provider.
type WebSearchConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	MaxResults  int           `yaml:"max_results" mapstructure:"max_results"`
	MinInterval time.Duration `yaml:"min_interval" mapstructure:"min_interval"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// RelationalConfig contains settings for the relational query provider.
type RelationalConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Driver          string        `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite3"
	DSN             string        `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// GatewayConfig contains settings for the provider gateway: cache TTLs
// per provider class, retry policy, and the breaker guarding Redis.
type GatewayConfig struct {
	SearchTTL      time.Duration        `yaml:"search_ttl" mapstructure:"search_ttl"`
	GenerateTTL    time.Duration        `yaml:"generate_ttl" mapstructure:"generate_ttl"`
	QueryTTL       time.Duration        `yaml:"query_ttl" mapstructure:"query_ttl"`
	MaxRetries     int                  `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseDelay time.Duration        `yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
	CacheCapacity  int                  `yaml:"cache_capacity" mapstructure:"cache_capacity"`
	Breaker        CircuitBreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// CircuitBreakerConfig represents circuit breaker settings.
type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" mapstructure:"max_requests"`
	Interval         time.Duration `yaml:"interval" mapstructure:"interval"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	SuccessThreshold uint32        `yaml:"success_threshold" mapstructure:"success_threshold"`
	Enabled          bool          `yaml:"enabled" mapstructure:"enabled"`
}

// WorkflowConfig controls workflow fan-out and phase deadlines.
type WorkflowConfig struct {
	Materials            int           `yaml:"materials" mapstructure:"materials"`
	CountriesPerMaterial int           `yaml:"countries_per_material" mapstructure:"countries_per_material"`
	DiscoveryConcurrency int           `yaml:"discovery_concurrency" mapstructure:"discovery_concurrency"`
	ExpertConcurrency    int           `yaml:"expert_concurrency" mapstructure:"expert_concurrency"`
	MaterialTimeout      time.Duration `yaml:"material_timeout" mapstructure:"material_timeout"`
	DiscoveryTimeout     time.Duration `yaml:"discovery_timeout" mapstructure:"discovery_timeout"`
	ExpertTimeout        time.Duration `yaml:"expert_timeout" mapstructure:"expert_timeout"`
	OverallTimeout       time.Duration `yaml:"overall_timeout" mapstructure:"overall_timeout"`
}

// ExtractionConfig controls the heuristic score jitter.
type ExtractionConfig struct {
	JitterEnabled bool  `yaml:"jitter_enabled" mapstructure:"jitter_enabled"`
	JitterSeed    int64 `yaml:"jitter_seed" mapstructure:"jitter_seed"` // 0 seeds from the clock
}

// StreamingConfig contains event streaming settings.
type StreamingConfig struct {
	RingCapacity int `yaml:"ring_capacity" mapstructure:"ring_capacity"`
}

// HealthConfig contains health check settings.
type HealthConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	CheckInterval time.Duration `yaml:"check_interval" mapstructure:"check_interval"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Port:            8080,
			MetricsPort:     2112,
			GracefulTimeout: 30 * time.Second,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			ServiceName:  "magellan",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		Providers: ProvidersConfig{
			Anthropic: AnthropicConfig{
				Model:     "claude-sonnet-4-20250514",
				APIKeyEnv: "ANTHROPIC_API_KEY",
				MaxTokens: 1024,
				Timeout:   60 * time.Second,
			},
			WebSearch: WebSearchConfig{
				BaseURL:     "https://api.duckduckgo.com",
				MaxResults:  5,
				MinInterval: 1 * time.Second,
				Timeout:     10 * time.Second,
			},
			Relational: RelationalConfig{
				Enabled:         false,
				Driver:          "sqlite3",
				DSN:             "file:magellan.db?_journal=WAL",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
			},
		},
		Gateway: GatewayConfig{
			SearchTTL:      5 * time.Minute,
			GenerateTTL:    30 * time.Minute,
			QueryTTL:       10 * time.Minute,
			MaxRetries:     3,
			RetryBaseDelay: 1 * time.Second,
			CacheCapacity:  2048,
			Breaker: CircuitBreakerConfig{
				MaxRequests:      3,
				Interval:         60 * time.Second,
				Timeout:          15 * time.Second,
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Enabled:          true,
			},
		},
		Workflow: WorkflowConfig{
			Materials:            3,
			CountriesPerMaterial: 3,
			DiscoveryConcurrency: 3,
			ExpertConcurrency:    3,
			MaterialTimeout:      60 * time.Second,
			DiscoveryTimeout:     120 * time.Second,
			ExpertTimeout:        120 * time.Second,
			OverallTimeout:       10 * time.Minute,
		},
		Extraction: ExtractionConfig{
			JitterEnabled: true,
		},
		Streaming: StreamingConfig{
			RingCapacity: 256,
		},
		Health: HealthConfig{
			Enabled:       true,
			CheckInterval: 30 * time.Second,
			Timeout:       5 * time.Second,
		},
	}
}

// Load reads the file named by CONFIG_PATH when set, merging it over the
// defaults, then applies environment overrides and validates the result.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variables on top of file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Service.Port = x
		}
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Service.MetricsPort = x
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ENABLE_TRACING"); v != "" {
		cfg.Tracing.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.OTLPEndpoint = v
	}
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ANTHROPIC_MODEL"); v != "" {
		cfg.Providers.Anthropic.Model = v
	}
	if v := os.Getenv("SEARCH_BASE_URL"); v != "" {
		cfg.Providers.WebSearch.BaseURL = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Providers.Relational.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Providers.Relational.DSN = v
		cfg.Providers.Relational.Enabled = true
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("service port must be between 1 and 65535, got %d", c.Service.Port)
	}
	if c.Service.MetricsPort < 1 || c.Service.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1 and 65535, got %d", c.Service.MetricsPort)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown log encoding %q", c.Logging.Encoding)
	}
	if c.Gateway.SearchTTL <= 0 || c.Gateway.GenerateTTL <= 0 || c.Gateway.QueryTTL <= 0 {
		return fmt.Errorf("gateway cache TTLs must be positive")
	}
	if c.Gateway.MaxRetries < 0 {
		return fmt.Errorf("gateway max retries cannot be negative, got %d", c.Gateway.MaxRetries)
	}
	if c.Gateway.CacheCapacity < 1 {
		return fmt.Errorf("gateway cache capacity must be at least 1, got %d", c.Gateway.CacheCapacity)
	}
	if c.Workflow.Materials < 1 {
		return fmt.Errorf("workflow materials must be at least 1, got %d", c.Workflow.Materials)
	}
	if c.Workflow.CountriesPerMaterial < 1 {
		return fmt.Errorf("countries per material must be at least 1, got %d", c.Workflow.CountriesPerMaterial)
	}
	if c.Workflow.DiscoveryConcurrency < 1 || c.Workflow.ExpertConcurrency < 1 {
		return fmt.Errorf("workflow concurrency limits must be at least 1")
	}
	return nil
}

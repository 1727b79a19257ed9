package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// RedisChecker probes the shared cache tier. Losing Redis only costs
// cache hits, so it is non-critical.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates the checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string   { return "redis" }
func (c *RedisChecker) Critical() bool { return false }

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	res := CheckResult{Status: StatusHealthy}
	if err := c.client.Ping(ctx).Err(); err != nil {
		res.Status = StatusDegraded
		res.Error = err.Error()
	}
	res.Duration = time.Since(start)
	return res
}

// DatabaseChecker probes the relational query store.
type DatabaseChecker struct {
	db       *sqlx.DB
	critical bool
}

// NewDatabaseChecker creates the checker.
func NewDatabaseChecker(db *sqlx.DB, critical bool) *DatabaseChecker {
	return &DatabaseChecker{db: db, critical: critical}
}

func (c *DatabaseChecker) Name() string   { return "database" }
func (c *DatabaseChecker) Critical() bool { return c.critical }

func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	res := CheckResult{Status: StatusHealthy}
	if err := c.db.PingContext(ctx); err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
	}
	res.Duration = time.Since(start)
	return res
}

// ProviderRegistry is the part of the gateway the checker needs.
type ProviderRegistry interface {
	Providers() []string
}

// GatewayChecker verifies that the analysis pipeline has providers to
// call. An empty registry means every execution would run on fallback
// tables alone.
type GatewayChecker struct {
	registry ProviderRegistry
	want     int
}

// NewGatewayChecker creates the checker expecting at least want
// registered providers.
func NewGatewayChecker(registry ProviderRegistry, want int) *GatewayChecker {
	if want <= 0 {
		want = 1
	}
	return &GatewayChecker{registry: registry, want: want}
}

func (c *GatewayChecker) Name() string   { return "gateway" }
func (c *GatewayChecker) Critical() bool { return true }

func (c *GatewayChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	res := CheckResult{Status: StatusHealthy}
	if n := len(c.registry.Providers()); n < c.want {
		res.Status = StatusUnhealthy
		res.Error = fmt.Sprintf("%d of %d required providers registered", n, c.want)
	}
	res.Duration = time.Since(start)
	return res
}

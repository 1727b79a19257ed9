// Package relational adapts a SQL database to the engine's query
// contract. Rows come back as a sequence of column→value records so the
// gateway's normalization applies uniformly.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite driver for local mode
	"go.uber.org/zap"

	"github.com/altai-labs/magellan/internal/config"
	"github.com/altai-labs/magellan/internal/providers"
)

// Provider implements providers.QueryProvider over sqlx.
type Provider struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// New opens the configured database and verifies connectivity.
func New(cfg config.RelationalConfig, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "postgres", "sqlite3":
	default:
		return nil, fmt.Errorf("relational: unsupported driver %q", cfg.Driver)
	}
	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("relational: open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("relational: ping %s: %w", cfg.Driver, err)
	}
	logger.Info("Relational store connected", zap.String("driver", cfg.Driver))
	return &Provider{db: db, logger: logger}, nil
}

// NewFromDB wraps an existing connection, used by tests.
func NewFromDB(db *sqlx.DB, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{db: db, logger: logger}
}

// Close releases the connection pool.
func (p *Provider) Close() error { return p.db.Close() }

// DB exposes the pool for health checks.
func (p *Provider) DB() *sqlx.DB { return p.db }

// Query executes one parameterized SELECT and returns the rows as a
// list of column→value maps. Only read statements are admitted; the
// engine has no business writing through this provider.
func (p *Provider) Query(ctx context.Context, storeQuery string, params []any) (providers.Value, error) {
	storeQuery = strings.TrimSpace(storeQuery)
	if storeQuery == "" {
		return providers.Value{}, &providers.ValidationError{Field: "query", Reason: "cannot be empty"}
	}
	if !readOnly(storeQuery) {
		return providers.Value{}, &providers.ValidationError{Field: "query", Reason: "only SELECT statements are allowed"}
	}

	start := time.Now()
	rows, err := p.db.QueryxContext(ctx, p.db.Rebind(storeQuery), params...)
	if err != nil {
		return providers.Value{}, providers.NewProviderError("database", "query", err)
	}
	defer rows.Close()

	var records []providers.Value
	for rows.Next() {
		row := map[string]interface{}{}
		if err := rows.MapScan(row); err != nil {
			return providers.Value{}, providers.NewProviderError("database", "scan", err)
		}
		rec := make(map[string]providers.Value, len(row))
		for col, v := range row {
			rec[col] = columnValue(v)
		}
		records = append(records, providers.Map(rec))
	}
	if err := rows.Err(); err != nil {
		return providers.Value{}, providers.NewProviderError("database", "query", err)
	}

	p.logger.Debug("Query executed",
		zap.Int("rows", len(records)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return providers.List(records...), nil
}

func readOnly(q string) bool {
	head := strings.ToUpper(q)
	return strings.HasPrefix(head, "SELECT") || strings.HasPrefix(head, "WITH")
}

// columnValue converts a driver value into the provider union. Byte
// slices are text: both drivers surface string columns that way.
func columnValue(v any) providers.Value {
	switch t := v.(type) {
	case nil:
		return providers.Text("")
	case []byte:
		return providers.Text(string(t))
	case string:
		return providers.Text(t)
	case time.Time:
		return providers.Text(t.Format(time.RFC3339))
	case int64:
		return providers.Text(fmt.Sprintf("%d", t))
	case float64:
		return providers.FromAny(t)
	case bool:
		return providers.FromAny(t)
	case sql.RawBytes:
		return providers.Text(string(t))
	default:
		return providers.Text(fmt.Sprintf("%v", t))
	}
}

package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-receivables/internal/analytics"
	"github.com/odyssey-erp/odyssey-receivables/internal/ingest"
	"github.com/odyssey-erp/odyssey-receivables/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-receivables/internal/platform/db"
)

// Runtime holds the dependencies shared by the server, the worker and the CLI.
type Runtime struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Cache   *ingest.Cache
	Loader  *ingest.Loader
	Service *analytics.Service

	closers []func()
}

// BootstrapOptions tunes Bootstrap.
type BootstrapOptions struct {
	// Registerer receives the analytics counters. Nil skips them.
	Registerer prometheus.Registerer
	// RequireRedis fails startup when Redis does not answer instead of
	// running without the dataset cache.
	RequireRedis bool
}

// Bootstrap connects the configured sources, cache and analytics service.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger, opts BootstrapOptions) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config required")
	}
	if logger == nil {
		logger = NewLogger(cfg)
	}
	rt := &Runtime{Config: cfg, Logger: logger}

	var querier ingest.Querier
	if cfg.UsesPostgres() {
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, Schema: cfg.PGSchema})
		if err != nil {
			return nil, err
		}
		rt.Pool = pool
		rt.closers = append(rt.closers, pool.Close)
		querier = pool
	}

	client, err := cache.New(ctx, cfg.RedisAddr)
	switch {
	case err == nil:
		rt.Redis = client
		rt.closers = append(rt.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		})
	case opts.RequireRedis:
		rt.Close()
		return nil, err
	default:
		logger.Warn("redis unavailable, dataset cache disabled", slog.Any("error", err))
	}
	rt.Cache = ingest.NewCache(rt.Redis, cfg.DatasetTTL)

	schemas := cfg.Schemas()
	openItems, err := ingest.NewSource(cfg.OpenItemsSource, "open_items", cfg.Delimiter(), querier, ingest.OpenItemsRelation, schemas.OpenItems)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("app: open items source: %w", err)
	}
	sales, err := ingest.NewSource(cfg.SalesSource, "sales", cfg.Delimiter(), querier, ingest.SalesRelation, schemas.Sales)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("app: sales source: %w", err)
	}
	rt.Loader = ingest.NewLoader(openItems, sales, rt.Cache, logger)

	rt.Service = analytics.NewService(rt.Loader, schemas, logger)
	if opts.Registerer != nil {
		rt.Service.WithMetrics(analytics.NewServiceMetrics(opts.Registerer))
	}
	logger.Info("receivables runtime ready",
		slog.String("open_items", openItems.String()),
		slog.String("sales", sales.String()),
		slog.String("layout", cfg.DatasetLayout),
		slog.Bool("cache", rt.Redis != nil),
	)
	return rt, nil
}

// Close releases connections in reverse order of acquisition.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

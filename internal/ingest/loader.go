package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-receivables/internal/analytics"
)

// Loader fetches both ledgers and serves them from the cache until refreshed.
type Loader struct {
	openItems Source
	sales     Source
	cache     *Cache
	logger    *slog.Logger
	group     singleflight.Group
	now       func() time.Time
}

// NewLoader wires the two sources with a cache. cache may be nil.
func NewLoader(openItems, sales Source, cache *Cache, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{openItems: openItems, sales: sales, cache: cache, logger: logger, now: time.Now}
}

// RefreshResult describes one refresh.
type RefreshResult struct {
	Fingerprint string `json:"fingerprint"`
	Previous    string `json:"previous,omitempty"`
	Changed     bool   `json:"changed"`
	Version     int64  `json:"version"`
	Rows        int    `json:"rows"`
}

func (l *Loader) key(ctx context.Context) (string, error) {
	return l.cache.Key(ctx, "receivables", "dataset", sourceID(l.openItems, l.sales))
}

// Load returns the cached dataset or fetches it on a miss. Concurrent misses
// share a single fetch.
func (l *Loader) Load(ctx context.Context) (analytics.Dataset, error) {
	key, err := l.key(ctx)
	if err != nil {
		return analytics.Dataset{}, err
	}
	var ds analytics.Dataset
	hit, err := l.cache.Get(ctx, key, &ds)
	if err != nil {
		l.logger.Warn("dataset cache read failed", slog.String("key", key), slog.Any("error", err))
	}
	if hit {
		return ds, nil
	}

	v, err, shared := l.do(ctx, "load:"+key, func(ctx context.Context) (any, error) {
		fresh, err := l.fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := l.cache.Set(ctx, key, fresh); err != nil {
			l.logger.Warn("dataset cache write failed", slog.String("key", key), slog.Any("error", err))
		}
		return fresh, nil
	})
	if err != nil {
		return analytics.Dataset{}, err
	}
	if shared {
		l.logger.Debug("dataset load shared", slog.String("key", key))
	}
	return v.(analytics.Dataset), nil
}

// Refresh fetches both sources again. When the fingerprint differs from the
// cached one the cache version is bumped so every reader sees the new data.
func (l *Loader) Refresh(ctx context.Context) (RefreshResult, error) {
	v, err, _ := l.do(ctx, "refresh", func(ctx context.Context) (any, error) {
		return l.refresh(ctx)
	})
	if err != nil {
		return RefreshResult{}, err
	}
	return v.(RefreshResult), nil
}

func (l *Loader) refresh(ctx context.Context) (RefreshResult, error) {
	fresh, err := l.fetch(ctx)
	if err != nil {
		return RefreshResult{}, err
	}
	key, err := l.key(ctx)
	if err != nil {
		return RefreshResult{}, err
	}
	var previous analytics.Dataset
	hit, err := l.cache.Get(ctx, key, &previous)
	if err != nil {
		return RefreshResult{}, err
	}

	result := RefreshResult{
		Fingerprint: fresh.Fingerprint,
		Previous:    previous.Fingerprint,
		Rows:        len(fresh.OpenItems.Rows) + len(fresh.Sales.Rows),
	}
	result.Changed = !hit || previous.Fingerprint != fresh.Fingerprint
	if result.Changed && hit {
		if _, err := l.cache.Invalidate(ctx); err != nil {
			return RefreshResult{}, err
		}
		if key, err = l.key(ctx); err != nil {
			return RefreshResult{}, err
		}
	}
	if err := l.cache.Set(ctx, key, fresh); err != nil {
		return RefreshResult{}, err
	}
	if result.Version, err = l.cache.Version(ctx); err != nil {
		return RefreshResult{}, err
	}
	l.logger.Info("dataset refreshed",
		slog.String("fingerprint", result.Fingerprint),
		slog.Bool("changed", result.Changed),
		slog.Int("rows", result.Rows),
	)
	return result, nil
}

// fetch reads both sources concurrently.
func (l *Loader) fetch(ctx context.Context) (analytics.Dataset, error) {
	var openItems, sales analytics.RawTable
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		openItems, err = l.openItems.Fetch(gctx)
		if err != nil {
			return fmt.Errorf("open items from %s: %w", l.openItems, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		sales, err = l.sales.Fetch(gctx)
		if err != nil {
			return fmt.Errorf("sales from %s: %w", l.sales, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return analytics.Dataset{}, err
	}
	return analytics.Dataset{
		OpenItems:   openItems,
		Sales:       sales,
		Fingerprint: Fingerprint(openItems, sales),
		LoadedAt:    l.now().UTC(),
	}, nil
}

func (l *Loader) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	ch := l.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-ch:
		return res.Val, res.Err, res.Shared
	}
}

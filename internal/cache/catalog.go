package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/companion/api"
	"github.com/BaSui01/companion/internal/metrics"
	"github.com/BaSui01/companion/types"
)

// Catalog names used as cache keys and metric labels.
const (
	CatalogPredefined   = "predefined"
	CatalogInstructions = "instructions"
)

// CatalogClient is an api.Client whose catalog listings are read through
// Redis. Every other call goes straight to the wrapped client.
type CatalogClient struct {
	api.Client

	cache   *Manager
	ttl     time.Duration
	metrics *metrics.Collector
	logger  *zap.Logger
	loads   singleflight.Group
}

var _ api.Client = (*CatalogClient)(nil)

// NewCatalogClient wraps next. A zero ttl uses the manager's default.
func NewCatalogClient(next api.Client, cache *Manager, ttl time.Duration, collector *metrics.Collector, logger *zap.Logger) *CatalogClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogClient{
		Client:  next,
		cache:   cache,
		ttl:     ttl,
		metrics: collector,
		logger:  logger.With(zap.String("component", "catalog_cache")),
	}
}

// ListPredefinedMessages serves the predefined catalog from cache when present.
func (c *CatalogClient) ListPredefinedMessages(ctx context.Context) ([]types.PredefinedEntry, error) {
	return readThrough(ctx, c, CatalogPredefined, c.Client.ListPredefinedMessages)
}

// ListInstructions serves the instruction catalog from cache when present.
func (c *CatalogClient) ListInstructions(ctx context.Context) ([]types.InstructionEntry, error) {
	return readThrough(ctx, c, CatalogInstructions, c.Client.ListInstructions)
}

// Invalidate drops both cached catalogs.
func (c *CatalogClient) Invalidate(ctx context.Context) error {
	return c.cache.Invalidate(ctx, catalogKey(CatalogPredefined), catalogKey(CatalogInstructions))
}

func catalogKey(name string) string {
	return "catalog:v1:" + name
}

// readThrough returns the cached listing or loads, stores and returns it.
// Concurrent misses share one backend load. Cache failures degrade to a
// direct load; backend failures are never cached.
func readThrough[T any](ctx context.Context, c *CatalogClient, name string, load func(context.Context) ([]T, error)) ([]T, error) {
	key := catalogKey(name)

	if c.cache.Healthy() {
		var cached []T
		err := c.cache.Load(ctx, key, &cached)
		switch {
		case err == nil:
			c.metrics.RecordCacheLookup(name, true)
			return cached, nil
		case IsCacheMiss(err):
		default:
			c.logger.Warn("catalog cache read failed", zap.String("catalog", name), zap.Error(err))
		}
	}
	c.metrics.RecordCacheLookup(name, false)

	v, err, shared := c.loads.Do(key, func() (any, error) {
		entries, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if c.cache.Healthy() {
			if err := c.cache.Store(ctx, key, entries, c.ttl); err != nil {
				c.logger.Warn("catalog cache write failed", zap.String("catalog", name), zap.Error(err))
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("catalog load shared", zap.String("catalog", name))
	}
	return v.([]T), nil
}

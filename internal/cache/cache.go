package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MaTriXy/stagehand/api/schemas"
	"github.com/MaTriXy/stagehand/internal/config"
)

// Store is the durable half of the cache. Implementations persist entries
// per namespace and must make a successful Write durable before returning.
// Load returns the full contents of one namespace.
type Store interface {
	Load(ctx context.Context, ns schemas.Namespace) (map[schemas.CacheKey]schemas.CacheEntry, error)
	Write(ctx context.Context, ns schemas.Namespace, key schemas.CacheKey, entry schemas.CacheEntry) error
	Clear(ctx context.Context, ns schemas.Namespace) error
	Close() error
}

// Cache fronts a Store with an in-memory mirror of every namespace. Both
// namespaces are loaded in full when the cache is constructed; lookups are
// served from the mirror without touching the store. Writes go to the store
// first and only reach the mirror once the store has accepted them, so a
// failed write never leaves a phantom hit behind.
type Cache struct {
	store  Store
	logger *zap.Logger

	mu     sync.RWMutex
	mirror map[schemas.Namespace]map[schemas.CacheKey]schemas.CacheEntry

	enabled bool
}

// New loads every namespace from the store and returns the ready cache.
// A load failure is fatal: running with a partial mirror would silently
// re-resolve instructions that already have persisted answers.
func New(ctx context.Context, store Store, logger *zap.Logger) (*Cache, error) {
	if store == nil {
		return nil, errors.New("cache store is nil")
	}
	c := &Cache{
		store:   store,
		logger:  logger.Named("cache"),
		mirror:  make(map[schemas.Namespace]map[schemas.CacheKey]schemas.CacheEntry, len(schemas.Namespaces())),
		enabled: true,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, ns := range schemas.Namespaces() {
		g.Go(func() error {
			entries, err := store.Load(gctx, ns)
			if err != nil {
				return fmt.Errorf("load %s namespace: %w", ns, err)
			}
			if entries == nil {
				entries = make(map[schemas.CacheKey]schemas.CacheEntry)
			}
			mu.Lock()
			c.mirror[ns] = entries
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Info("cache mirror loaded",
		zap.Int("observations", len(c.mirror[schemas.NamespaceObservations])),
		zap.Int("actions", len(c.mirror[schemas.NamespaceActions])),
	)
	return c, nil
}

// NewDisabled returns a cache that resolves every lookup to a miss and
// accepts writes without storing anything. Callers can treat it exactly
// like an enabled cache.
func NewDisabled() *Cache {
	return &Cache{
		logger:  zap.NewNop(),
		mirror:  map[schemas.Namespace]map[schemas.CacheKey]schemas.CacheEntry{},
		enabled: false,
	}
}

// Open builds the cache described by cfg, connecting whichever backend it
// selects. With caching disabled it returns the no-op cache and never
// touches a backend.
func Open(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (*Cache, error) {
	if !cfg.Enabled {
		return NewDisabled(), nil
	}
	store, err := NewStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c, err := New(ctx, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

// NewStore connects the backend selected by cfg.Backend.
func NewStore(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	case config.BackendPostgres:
		pool, err := NewPostgresPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		store, err := NewPostgresStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case config.BackendRedis:
		return NewRedisStore(ctx, cfg.Redis, logger)
	case config.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", string(cfg.Backend))
	}
}

// Enabled reports whether lookups and writes reach a real store.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Lookup returns the entry stored under key in the given namespace. It only
// consults the in-memory mirror; the store is never read after startup.
func (c *Cache) Lookup(ns schemas.Namespace, key schemas.CacheKey) (schemas.CacheEntry, bool) {
	if !c.enabled {
		return schemas.CacheEntry{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.mirror[ns][key]
	return entry, ok
}

// Write upserts one entry. The store write happens synchronously and the
// mirror is only updated after it succeeds. On a disabled cache this is a
// no-op returning nil.
func (c *Cache) Write(ctx context.Context, ns schemas.Namespace, key schemas.CacheKey, entry schemas.CacheEntry) error {
	if !c.enabled {
		return nil
	}
	if !ns.Valid() {
		return fmt.Errorf("unknown cache namespace %q", string(ns))
	}
	if err := c.store.Write(ctx, ns, key, entry); err != nil {
		return fmt.Errorf("persist %s entry: %w", ns, err)
	}
	c.mu.Lock()
	c.mirror[ns][key] = entry
	c.mu.Unlock()
	c.logger.Debug("cache entry written",
		zap.String("namespace", string(ns)),
		zap.String("key", string(key)),
	)
	return nil
}

// Clear wipes one namespace from the store and the mirror.
func (c *Cache) Clear(ctx context.Context, ns schemas.Namespace) error {
	if !c.enabled {
		return nil
	}
	if !ns.Valid() {
		return fmt.Errorf("unknown cache namespace %q", string(ns))
	}
	if err := c.store.Clear(ctx, ns); err != nil {
		return fmt.Errorf("clear %s namespace: %w", ns, err)
	}
	c.mu.Lock()
	c.mirror[ns] = make(map[schemas.CacheKey]schemas.CacheEntry)
	c.mu.Unlock()
	c.logger.Info("cache namespace cleared", zap.String("namespace", string(ns)))
	return nil
}

// Len reports how many entries the mirror holds for one namespace.
func (c *Cache) Len(ns schemas.Namespace) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mirror[ns])
}

// Close releases the backing store. Safe on a disabled cache.
func (c *Cache) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

// Package app assembles the cardex services from configuration. It is the
// composition root shared by the API server and the seeder CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/config"
	"github.com/kailas-cloud/cardex/internal/db"
	dbBadger "github.com/kailas-cloud/cardex/internal/db/badger"
	"github.com/kailas-cloud/cardex/internal/db/memory"
	dbRedis "github.com/kailas-cloud/cardex/internal/db/redis"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
	searchconfig "github.com/kailas-cloud/cardex/internal/domain/search/config"
	"github.com/kailas-cloud/cardex/internal/fixtures"
	"github.com/kailas-cloud/cardex/internal/index"
	"github.com/kailas-cloud/cardex/internal/metrics"
	catalogrepo "github.com/kailas-cloud/cardex/internal/repository/catalog"
	"github.com/kailas-cloud/cardex/internal/repository/searchcache"
	chiTransport "github.com/kailas-cloud/cardex/internal/transport/chi"
	cataloguc "github.com/kailas-cloud/cardex/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/cardex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/cardex/internal/usecase/search"
)

// App holds the wired services.
type App struct {
	Store   db.Store
	Repo    *catalogrepo.Repo
	Index   *index.Manager
	Cache   *searchcache.Cache // nil when the cache backend is "none"
	Search  *searchuc.Unified
	Catalog *cataloguc.Service
	Health  *healthuc.Service

	cacheAdmin chiTransport.CacheAdmin
	cfg        config.Config
	logger     *zap.Logger
	closer     func()
}

// New opens the store and builds every service. The index is left
// uninitialized; call BuildIndex.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	store, err := OpenStore(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, readiness); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}

	if err := seedMemory(ctx, cfg.Database, store, logger); err != nil {
		store.Close()
		return nil, err
	}

	metrics.RegisterSearchMetrics()
	metrics.RegisterHTTPMetrics()

	cache, closeCache, err := OpenCache(cfg.Cache, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &App{Store: store, cfg: cfg, logger: logger}
	a.closer = func() {
		closeCache()
		store.Close()
	}
	a.Cache = cache
	a.Repo = catalogrepo.New(store)
	a.Index = index.New(a.Repo, metrics.Search{}, logger)

	// Avoid handing typed nil pointers to the interface-typed parameters.
	var (
		searchCache searchuc.Cache
		invalidator cataloguc.CacheInvalidator
	)
	if cache != nil {
		searchCache, invalidator, a.cacheAdmin = cache, cache, cache
	}

	exec := searchuc.NewExecutor(a.Index, searchCache, metrics.Search{}, logger)
	services := make([]*searchuc.EntityService, 0, entity.Count())
	for _, t := range entity.All() {
		svc, err := searchuc.NewEntityService(t, a.Repo.Collection(t), exec, a.Index, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create %s search: %w", t, err)
		}
		services = append(services, svc)
	}
	a.Search = searchuc.NewUnified(logger, services...)
	a.Catalog = cataloguc.New(a.Repo, a.Index, invalidator, logger)
	a.Health = healthuc.New(store, a.Index)
	return a, nil
}

// BuildIndex builds every index from the store within the configured timeout.
func (a *App) BuildIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.Search.BuildTimeoutSec)*time.Second)
	defer cancel()
	if err := a.Index.Initialize(ctx); err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	return nil
}

// Handler returns the HTTP API with its middleware stack.
func (a *App) Handler() http.Handler {
	server := chiTransport.NewServer(a.Search, a.Catalog, a.Health, a.cacheAdmin, a.logger)
	return chiTransport.NewRouter(server, chiTransport.RouterConfig{
		RequestTimeout: time.Duration(a.cfg.HTTP.RequestTimeoutSec) * time.Second,
	})
}

// Close releases the cache codecs and the store connection.
func (a *App) Close() {
	if a.closer != nil {
		a.closer()
		a.closer = nil
	}
}

// OpenStore connects the configured document store.
func OpenStore(cfg config.DatabaseConfig, logger *zap.Logger) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.NewStore(), nil
	case config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Addrs,
			Username:  cfg.Username,
			Password:  cfg.Password,
			DB:        cfg.DB,
			KeyPrefix: cfg.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		return s, nil
	case config.DriverBadger:
		s, err := dbBadger.Open(cfg.BadgerDir, logger)
		if err != nil {
			return nil, fmt.Errorf("create badger store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// OpenCache builds the search cache on the configured backend. It returns a
// nil cache for the "none" backend. The returned func releases the cache and
// is always safe to call.
func OpenCache(cfg config.CacheConfig, store db.Store, logger *zap.Logger) (*searchcache.Cache, func(), error) {
	noop := func() {}
	closeKV := noop
	var kv db.KVStore
	switch cfg.Backend {
	case config.CacheNone:
		return nil, noop, nil
	case config.CacheMemory:
		m, err := memory.NewKV(memory.KVConfig{
			MaxCostBytes: cfg.MaxCostBytes,
			NumCounters:  cfg.NumCounters,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("create memory cache: %w", err)
		}
		kv, closeKV = m, m.Close
	case config.CacheRedis:
		rs, ok := store.(*dbRedis.Store)
		if !ok {
			return nil, noop, errors.New("redis cache requires the redis store")
		}
		kv = rs.KV(cfg.Namespace)
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}

	c, err := searchcache.New(kv, searchcache.Config{
		TTL:               time.Duration(cfg.TTLSec) * time.Second,
		CompressThreshold: cfg.CompressThresholdBytes,
	}, metrics.SearchCacheTotal, logger)
	if err != nil {
		closeKV()
		return nil, noop, fmt.Errorf("create search cache: %w", err)
	}
	return c, func() {
		c.Close()
		closeKV()
	}, nil
}

// seedMemory loads the seed file into a memory store. Persistent stores are
// populated with the seeder CLI instead.
func seedMemory(ctx context.Context, cfg config.DatabaseConfig, store db.Store, logger *zap.Logger) error {
	if cfg.Driver != config.DriverMemory || cfg.SeedFile == "" {
		return nil
	}
	c, err := fixtures.Load(cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("load seed file: %w", err)
	}
	if err := fixtures.Seed(ctx, store, searchconfig.CollectionOf, c); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}
	logger.Info("Memory store seeded", zap.String("file", cfg.SeedFile), zap.Int("documents", c.Len()))
	return nil
}

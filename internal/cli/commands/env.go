package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/bidsflow/bidsflow/internal/cache"
	"github.com/bidsflow/bidsflow/internal/cli/config"
	"github.com/bidsflow/bidsflow/internal/index"
	"github.com/bidsflow/bidsflow/internal/logging"
)

// env is what a command needs to reach the index and cache
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *index.Store
	cache  *cache.DatasetCache
}

func (g *globals) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// open loads the configuration and opens the index. The dataset cache is
// only opened when withCache is set.
func (g *globals) open(ctx context.Context, withCache bool) (*env, error) {
	cfg, logger, err := g.load()
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg.Index, logger)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger, store: store}

	if withCache {
		e.cache, err = openCache(ctx, cfg.Cache, logger)
		if err != nil {
			store.Close()
			return nil, err
		}
	}
	return e, nil
}

func (e *env) Close() {
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			e.logger.Warn("failed to close cache", zap.Error(err))
		}
	}
	if err := e.store.Close(); err != nil {
		e.logger.Warn("failed to close index", zap.Error(err))
	}
	_ = e.logger.Sync()
}

func openStore(ctx context.Context, cfg config.IndexConfig, logger *zap.Logger) (*index.Store, error) {
	if cfg.Driver == "" || cfg.Driver == index.DriverSQLite {
		if dir := sqliteDir(cfg.DSN); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create index directory: %w", err)
			}
		}
	}
	return index.Open(ctx, index.Config{Driver: cfg.Driver, DSN: cfg.DSN}, logger)
}

// sqliteDir returns the directory holding a file-backed sqlite database
func sqliteDir(dsn string) string {
	if dsn == "" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return ""
	}
	return filepath.Dir(dsn)
}

func openCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (*cache.DatasetCache, error) {
	settings := cache.DefaultConfig()
	switch cfg.Backend {
	case "", config.CacheNone:
		return nil, nil
	case config.CacheMemory:
		return cache.NewDatasetCache(cache.NewMemoryCacheWithConfig(settings), cfg.TTL, logger), nil
	case config.CacheRedis:
		backend, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.RedisAddr, Cache: settings})
		if err != nil {
			return nil, err
		}
		return cache.NewDatasetCache(backend, cfg.TTL, logger), nil
	}
	return nil, fmt.Errorf("unknown cache backend: %q", cfg.Backend)
}

// Package app assembles stores, engines and background tasks from configuration
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fadedpez/ebucks/internal/config"
	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/fadedpez/ebucks/pkg/catalog"
	"github.com/fadedpez/ebucks/pkg/ebucks"
	"github.com/fadedpez/ebucks/pkg/random"
	"github.com/fadedpez/ebucks/pkg/repositories/audit"
	"github.com/fadedpez/ebucks/pkg/scheduler"
	"github.com/fadedpez/ebucks/pkg/services/challenges"
	"github.com/fadedpez/ebucks/pkg/services/wallet"
	"github.com/fadedpez/ebucks/pkg/storage"
	"github.com/fadedpez/ebucks/pkg/storage/file"
	"github.com/fadedpez/ebucks/pkg/storage/memory"
	"github.com/fadedpez/ebucks/pkg/storage/redis"
	"github.com/fadedpez/ebucks/pkg/storage/sqlite"
)

// NewLogger builds the process logger for cfg
func NewLogger(cfg *config.Config) *logging.Logger {
	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.IsDevelopment() {
		return logging.NewConsoleLogger(level)
	}
	return logging.NewLogger(level)
}

// OpenStore opens the store selected by cfg.StorageType. A SQLite store
// starts polling for writes from other processes until ctx ends.
func OpenStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (storage.Store, error) {
	opts := storage.NewOptions()
	opts.Path = cfg.StorePath()
	opts.PollInterval = cfg.WatchInterval

	switch cfg.StorageType {
	case "memory":
		return memory.New(), nil
	case "file":
		return file.New(opts)
	case "sqlite":
		s, err := sqlite.New(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		s.Watch(ctx, opts.PollInterval)
		return s, nil
	case "redis":
		return redis.New(ctx, redis.Options{
			URL:     cfg.RedisURL,
			Channel: cfg.RedisChannel,
			Origin:  opts.Origin,
		}, logger)
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
}

// EngineOptions maps cfg onto engine options
func EngineOptions(cfg *config.Config, logger *logging.Logger) (ebucks.Options, error) {
	opts := ebucks.Options{
		Rotation:          challenges.RotationFor(cfg.DailyChallengeCount),
		EnableDebugResets: cfg.EnableDebugResets,
		Logger:            logger,
	}
	if cfg.ChallengeCatalog != "" {
		list, err := catalog.LoadChallenges(cfg.ChallengeCatalog)
		if err != nil {
			return opts, err
		}
		opts.Challenges = list
	}
	if cfg.RandomSeed != 0 {
		opts.Random = random.NewSeeded(cfg.RandomSeed)
	}
	return opts, nil
}

// Runtime is everything a surface needs to serve users
type Runtime struct {
	Store    storage.Store
	Registry *ebucks.Registry
	Audit    *audit.ElasticsearchSink

	maintenance *scheduler.ElasticsearchMaintenanceScheduler
	logger      *logging.Logger
}

// New opens the configured store and builds the user registry. With ES_URL
// set every committed transaction is also indexed for audit.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Runtime, error) {
	opts, err := EngineOptions(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StorageType, err)
	}

	rt := &Runtime{Store: store, logger: logger.WithComponent("app")}

	if cfg.ESURL != "" {
		esCfg := audit.DefaultConfig()
		esCfg.URL = cfg.ESURL
		esCfg.Username = cfg.ESUsername
		esCfg.Password = cfg.ESPassword
		esCfg.IndexPrefix = cfg.ESIndexPrefix

		sink, err := audit.NewElasticsearchSink(esCfg, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create audit sink: %w", err)
		}
		rt.Audit = sink
		opts.UserHooks = func(userID string) []wallet.Hook {
			return []wallet.Hook{sink.Hook(userID)}
		}

		rt.maintenance = scheduler.NewElasticsearchMaintenanceScheduler(sink, esCfg.RotationPeriod, 0, logger)
		rt.maintenance.Start(ctx)
		rt.logger.Info("Auditing ledger to %s", cfg.ESURL)
	}

	rt.Registry = ebucks.NewRegistry(store, opts)
	if cfg.IdleTimeout > 0 {
		rt.Registry.WatchIdle(ctx, evictionInterval(cfg.IdleTimeout), cfg.IdleTimeout)
	}
	rt.logger.Info("Using %s store", cfg.StorageType)
	return rt, nil
}

// evictionInterval checks a few times per idle period, at most once a minute
func evictionInterval(idle time.Duration) time.Duration {
	if interval := idle / 4; interval < time.Minute {
		return interval
	}
	return time.Minute
}

// Close stops background tasks, closes every engine and then the store
func (rt *Runtime) Close() error {
	if rt.maintenance != nil {
		rt.maintenance.Stop()
	}
	return errors.Join(rt.Registry.Close(), rt.Store.Close())
}

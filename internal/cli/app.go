package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/activity/sqlite"
	"github.com/rshade/adcarbon/internal/config"
	"github.com/rshade/adcarbon/internal/conversion"
	"github.com/rshade/adcarbon/internal/emission"
	"github.com/rshade/adcarbon/internal/engine"
	"github.com/rshade/adcarbon/internal/engine/cache"
	"github.com/rshade/adcarbon/internal/logging"
	"github.com/rshade/adcarbon/internal/totals"
)

// app is the set of components a command works with, built from config.
type app struct {
	cfg       *config.Config
	table     *conversion.Table
	estimator *emission.FactorTable
	store     activity.Store
	results   *cache.FileStore
	orch      *engine.Orchestrator
	tracker   *engine.Tracker
}

// openApp loads the tables, opens the activity store and result cache and
// wires an orchestrator. The caller must call close.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logging.FromContext(ctx)

	table, est, err := loadTables(cfg)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, table: table, estimator: est, store: store}

	opts := []engine.Option{
		engine.WithTimeout(cfg.Compute.TimeoutDuration()),
		engine.WithMaxConcurrency(cfg.Compute.MaxConcurrency),
	}
	if a.results, err = openResultCache(cfg); err != nil {
		log.Warn().Ctx(ctx).Err(err).Msg("result cache unavailable, continuing without it")
	} else if a.results.IsEnabled() {
		opts = append(opts, engine.WithResultStore(engine.NewCacheStore(a.results)))
	}

	var computer engine.Computer
	if cfg.Compute.Enabled() {
		computer = engine.NewHTTPComputer(cfg.Compute.Endpoint, nil)
	}
	a.orch = engine.New(computer, est, opts...)
	a.tracker = engine.NewTracker(store, a.orch, totals.NewAggregator(cfg.Output.TotalPrecision))

	log.Debug().Ctx(ctx).
		Str("store", cfg.Store.Driver).
		Bool("remote_compute", cfg.Compute.Enabled()).
		Int("channels", len(table.Channels())).
		Msg("application wired")
	return a, nil
}

// loadTables loads the configured conversion and emission factor tables.
func loadTables(cfg *config.Config) (*conversion.Table, *emission.FactorTable, error) {
	table, err := conversion.Load(cfg.Tables.Conversion)
	if err != nil {
		return nil, nil, err
	}
	est, err := emission.Load(cfg.Tables.EmissionFactors)
	if err != nil {
		return nil, nil, err
	}
	return table, est, nil
}

func openStore(cfg *config.Config) (activity.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		return activity.NewMemoryStore(), nil
	case config.StoreSQLite, "":
		dsn, err := cfg.StoreDSN()
		if err != nil {
			return nil, err
		}
		if cfg.Store.DSN == "" {
			if err = config.EnsureConfigDir(); err != nil {
				return nil, err
			}
		}
		return sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openResultCache(cfg *config.Config) (*cache.FileStore, error) {
	dir, err := cfg.CacheDir()
	if err != nil {
		return nil, err
	}
	return cache.NewFileStore(dir, cfg.Cache.Enabled, cfg.Cache.TTLSeconds())
}

// close waits for background calculations and releases the store.
func (a *app) close() error {
	a.orch.Close()
	return a.store.Close()
}

// withApp opens the app from the global config, runs fn and closes it.
func withApp(ctx context.Context, fn func(a *app) error) (err error) {
	a, err := openApp(ctx, config.GetGlobalConfig())
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.close())
	}()
	return fn(a)
}

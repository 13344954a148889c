package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mmcdole/anikino/internal/adapter"
	"github.com/mmcdole/anikino/internal/adapter/source"
	"github.com/mmcdole/anikino/internal/admin"
	"github.com/mmcdole/anikino/internal/catalog"
	"github.com/mmcdole/anikino/internal/metrics"
	"github.com/mmcdole/anikino/internal/search"
	"github.com/mmcdole/anikino/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

// app holds the wired services shared by the commands
type app struct {
	cfg     *adapter.Config
	logger  *slog.Logger
	backend source.Backend
	store   *store.CatalogStore
	cache   *search.Cache
	catalog *catalog.Service
	queries *catalog.Queries
	engine  *search.Engine
	admin   *admin.Service

	logCloser io.Closer
	stop      context.CancelFunc
}

// loadConfig loads the config and sets up the file logger
func loadConfig(g *Globals) (*adapter.Config, *slog.Logger, io.Closer, error) {
	cfg, err := adapter.LoadConfig(g.Config)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, closer, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger, closer = adapter.NullLogger(), io.NopCloser(nil)
	}
	slog.SetDefault(logger)
	return cfg, logger, closer, nil
}

// newApp loads the config and wires the services
func newApp(g *Globals) (*app, error) {
	cfg, logger, closer, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	return wireApp(cfg, logger, closer)
}

// wireApp creates the backend client, caches and services from the config.
// closer is owned by the returned app, or closed on error.
func wireApp(cfg *adapter.Config, logger *slog.Logger, closer io.Closer) (*app, error) {
	if !cfg.IsConfigured() {
		closer.Close()
		return nil, fmt.Errorf("backend is not configured, run \"anikino setup\" first")
	}

	backend, err := source.NewClientFromConfig(cfg, logger)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	st, err := store.NewCatalogStore(cfg.Cache.Dir, cfg.Backend.URL)
	if err != nil {
		// Another instance may hold the cache lock; run without persistence
		logger.Warn("catalog store unavailable, using memory", "dir", cfg.Cache.Dir, "error", err)
		st, err = store.NewCatalogStore("", cfg.Backend.URL)
		if err != nil {
			closer.Close()
			return nil, fmt.Errorf("failed to open catalog store: %w", err)
		}
	}

	cache := search.NewCache()
	catalogSvc := catalog.NewService(backend, st, cache, logger, catalog.Options{
		RecentLimit:  cfg.Home.RecentLimit,
		PopularLimit: cfg.Home.PopularLimit,
		DetailSize:   cfg.Cache.DetailSize,
		DetailTTL:    cfg.Cache.DetailTTL,
	})
	engine := search.NewEngine(cache, backend, logger,
		search.WithResultLimit(cfg.Search.ResultLimit),
		search.WithMinQueryLength(cfg.Search.MinQueryLength),
	)
	adminSvc := admin.NewService(backend, backend.AdminRepository, adapter.NewSessionStore(cfg),
		st, cache, catalogSvc, logger)

	a := &app{
		cfg:       cfg,
		logger:    logger,
		backend:   backend,
		store:     st,
		cache:     cache,
		catalog:   catalogSvc,
		queries:   catalog.NewQueries(st, cache),
		engine:    engine,
		admin:     adminSvc,
		logCloser: closer,
		stop:      func() {},
	}
	a.serveMetrics()
	return a, nil
}

// serveMetrics starts the Prometheus listener when one is configured
func (a *app) serveMetrics() {
	if a.cfg.Metrics.Listen == "" {
		return
	}

	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	ctx, cancel := context.WithCancel(context.Background())
	a.stop = cancel
	go func() {
		if err := metrics.Serve(ctx, a.cfg.Metrics.Listen, reg, a.logger); err != nil {
			a.logger.Error("metrics listener failed", "addr", a.cfg.Metrics.Listen, "error", err)
		}
	}()
}

func (a *app) Close() {
	a.stop()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close catalog store", "error", err)
	}
	a.logger.Info("shutting down")
	a.logCloser.Close()
}

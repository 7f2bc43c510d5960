package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/BaSui01/companion/api"
	"github.com/BaSui01/companion/catalog"
	"github.com/BaSui01/companion/config"
	"github.com/BaSui01/companion/flow"
	"github.com/BaSui01/companion/internal/cache"
	"github.com/BaSui01/companion/internal/database"
	"github.com/BaSui01/companion/internal/metrics"
	"github.com/BaSui01/companion/llm/openai"
	"github.com/BaSui01/companion/rag"
	"github.com/BaSui01/companion/schedule"
	"github.com/BaSui01/companion/store/sqlstore"
)

// app is the wired orchestrator plus the resources that must be released
// on exit.
type app struct {
	orch      *flow.Orchestrator
	registry  *prometheus.Registry
	collector *metrics.Collector
	closers   []func() error
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// buildApp wires the collaborators selected by cfg into an orchestrator.
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if cfg.Metrics.Enabled {
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.collector = metrics.NewCollector(cfg.Metrics.Namespace, a.registry, logger)
	}

	client, err := a.buildBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Schedule.Location()
	if err != nil {
		return nil, err
	}

	deps := flow.Dependencies{
		Client:       client,
		AI:           buildAI(cfg.LLM, logger),
		Predefined:   catalog.NewPredefined(client, logger, catalog.WithWelcomeText(cfg.Flow.WelcomeText)),
		Instructions: catalog.NewInstructions(client, logger),
		Scheduler:    schedule.New(schedule.WithLocation(loc)),
		Metrics:      a.collector,
		Logger:       logger,
	}
	if cfg.Retrieval.Enabled {
		deps.Retriever = rag.NewHTTPRetriever(rag.HTTPConfig{
			BaseURL: cfg.Retrieval.BaseURL,
			APIKey:  cfg.Retrieval.APIKey,
			TopK:    cfg.Retrieval.TopK,
			Timeout: cfg.Retrieval.Timeout,
		}, logger)
	}

	a.orch, err = flow.New(flow.Config{
		UserID:        cfg.Flow.UserID,
		BootstrapID:   cfg.Flow.BootstrapID,
		OffTopicAgent: cfg.Flow.OffTopicAgent,
		OffTopicID:    cfg.Flow.OffTopicID,
		CharacterName: cfg.Flow.CharacterName,
		UserName:      cfg.Flow.UserName,
		Organisation:  cfg.Flow.Organisation,
	}, deps)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// buildBackend returns the remote client or the local database store,
// wrapped in the Redis catalog cache when enabled.
func (a *app) buildBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (api.Client, error) {
	var client api.Client
	switch cfg.Backend.Mode {
	case config.BackendRemote:
		client = api.NewHTTPClient(api.HTTPConfig{
			BaseURL:   cfg.Backend.BaseURL,
			APIKey:    cfg.Backend.APIKey,
			Timeout:   cfg.Backend.Timeout,
			RateLimit: cfg.Backend.RateLimit,
			Burst:     cfg.Backend.Burst,
		}, logger)
	case config.BackendLocal:
		pool, err := database.Open(cfg.Database.Driver, cfg.Database.DSN(), database.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)

		store, err := sqlstore.New(ctx, pool, a.collector, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Database.SeedPath != "" {
			if err := store.SeedIfEmpty(ctx, cfg.Database.SeedPath); err != nil {
				return nil, fmt.Errorf("seed catalog: %w", err)
			}
		}
		client = store
	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Backend.Mode)
	}

	if !cfg.Redis.Enabled {
		return client, nil
	}
	mgr, err := cache.NewManager(cache.FromRedisConfig(cfg.Redis, cfg.Backend.CatalogTTL), logger)
	if err != nil {
		// 缓存不可用时直连后端
		logger.Warn("catalog cache disabled", zap.Error(err))
		return client, nil
	}
	a.closers = append(a.closers, mgr.Close)
	return cache.NewCatalogClient(client, mgr, cfg.Backend.CatalogTTL, a.collector, logger), nil
}

func buildAI(cfg config.LLMConfig, logger *zap.Logger) *openai.Service {
	var temperature *float32
	if cfg.Temperature > 0 {
		t := float32(cfg.Temperature)
		temperature = &t
	}
	return openai.New(openai.Config{
		BaseURL:          cfg.BaseURL,
		APIKey:           cfg.APIKey,
		Model:            cfg.Model,
		RouterModel:      cfg.RouterModel,
		ProfileModel:     cfg.ProfileModel,
		Timeout:          cfg.Timeout,
		StreamTimeout:    cfg.StreamTimeout,
		MaxHistoryTokens: cfg.MaxHistoryTokens,
		Temperature:      temperature,
	}, logger)
}

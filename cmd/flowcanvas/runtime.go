// ABOUTME: Shared wiring for subcommands: config, logger, metrics, document repository, and the generator.
// ABOUTME: Builds canvas stores and generation machines from the loaded configuration.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/2389-research/flowcanvas/canvas"
	"github.com/2389-research/flowcanvas/config"
	"github.com/2389-research/flowcanvas/generation"
	"github.com/2389-research/flowcanvas/generation/openaigen"
	"github.com/2389-research/flowcanvas/logging"
	"github.com/2389-research/flowcanvas/metrics"
	"github.com/2389-research/flowcanvas/persist"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const metricsNamespace = "flowcanvas"

// runtime holds the process-wide dependencies of a subcommand.
type runtime struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Collector
	repo    persist.Repository
	gen     generation.Generator
}

// loadRuntime reads the config named by the persistent flags. logOutput is a
// zap sink path; an empty value discards logs.
func loadRuntime(cmd *cobra.Command, logOutput string) (*runtime, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	logger := zap.NewNop()
	if logOutput != "" {
		logger, err = logging.NewTo(cfg.Log.Level, cfg.Log.Development, logOutput)
		if err != nil {
			return nil, err
		}
	}

	repo, err := openRepository(cmd.Context(), cfg.Storage)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector(metricsNamespace),
		repo:    repo,
	}
	rt.gen = newGenerator(cfg, logger)
	return rt, nil
}

// openRepository returns nil for the "none" driver.
func openRepository(ctx context.Context, cfg config.StorageConfig) (persist.Repository, error) {
	switch cfg.Driver {
	case config.StorageFile:
		repo, err := persist.NewFileRepository(cfg.Path)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.StorageSqlite:
		repo, err := persist.OpenSqlite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.StorageRedis:
		repo := persist.NewRedis(cfg.RedisAddr, "", cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := repo.Ping(pingCtx); err != nil {
			_ = repo.Close()
			return nil, err
		}
		return repo, nil
	case config.StorageMemory:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unknown storage driver %q", config.ErrInvalid, cfg.Driver)
}

func newGenerator(cfg config.Config, logger *zap.Logger) generation.Generator {
	if cfg.Generation.Generator == config.GeneratorOpenAI {
		return openaigen.New(openaigen.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			Size:       cfg.OpenAI.Size,
			MaxRetries: cfg.OpenAI.MaxRetries,
		}, logger.Named("openai"))
	}
	return generation.Simulated{}
}

// newCanvas builds one store and its machine. It has the editor.Factory shape.
func (rt *runtime) newCanvas() (*canvas.Store, *generation.Machine) {
	store := canvas.New(
		canvas.WithLogger(rt.logger.Named("canvas")),
		canvas.WithHistoryLimit(rt.cfg.History.Limit),
		canvas.WithMetrics(rt.metrics),
	)
	machine := generation.New(store, rt.gen,
		generation.WithTicks(rt.cfg.Generation.Ticks),
		generation.WithTickInterval(rt.cfg.Generation.TickInterval),
		generation.WithLogger(rt.logger.Named("generation")),
		generation.WithMetrics(rt.metrics),
	)
	return store, machine
}

// openDocument loads id into store, logging dropped parts.
func (rt *runtime) openDocument(ctx context.Context, store *canvas.Store, id string) (persist.Document, error) {
	if rt.repo == nil {
		return persist.Document{}, fmt.Errorf("open document %s: storage is disabled", id)
	}
	doc, err := rt.repo.Load(ctx, id)
	if err != nil {
		return persist.Document{}, fmt.Errorf("open document %s: %w", id, err)
	}
	for _, d := range persist.Hydrate(store, doc) {
		rt.logger.Warn("document repaired on load", zap.String("document", id), zap.String("diagnostic", d.String()))
	}
	return doc, nil
}

func (rt *runtime) Close() {
	if rt.repo != nil {
		if err := rt.repo.Close(); err != nil {
			rt.logger.Warn("close repository", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}

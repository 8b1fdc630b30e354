package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hurttlocker/scout/internal/config"
	"github.com/hurttlocker/scout/internal/imagegen"
	"github.com/hurttlocker/scout/internal/llm"
	"github.com/hurttlocker/scout/internal/observe"
	"github.com/hurttlocker/scout/internal/session"
	"github.com/hurttlocker/scout/internal/store"
)

// app is everything a command needs, built from the resolved config.
type app struct {
	cfg     config.ResolvedConfig
	logger  *zap.Logger
	metrics *observe.Collector
	store   store.Store // nil unless requested
	images  *imagegen.Client
	manager *session.Manager
}

type appOptions struct {
	withStore bool
	metrics   bool
}

func resolve(flags *globalFlags) (config.ResolvedConfig, error) {
	return config.ResolveConfig(config.ResolveOptions{
		ConfigPath:  flags.configPath,
		CLIDBPath:   flags.dbPath,
		CLIProvider: flags.provider,
		CLIBaseURL:  flags.baseURL,
		CLILogLevel: flags.logLevel,
	})
}

func newApp(flags *globalFlags, opts appOptions) (*app, error) {
	cfg, err := resolve(flags)
	if err != nil {
		return nil, err
	}
	return buildApp(cfg, flags.offline, opts)
}

func buildApp(cfg config.ResolvedConfig, offline bool, opts appOptions) (*app, error) {
	logger, err := observe.NewLogger(cfg.LogLevel.Value, cfg.JSONLogs())
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	if opts.metrics {
		a.metrics = observe.NewCollector()
	}

	var gw llm.Gateway
	if !offline {
		gw, err = llm.NewGateway(cfg.Gateway())
		if err != nil {
			// no key or bad provider: keep going on the deterministic paths
			logger.Warn("completion gateway unavailable, running offline", zap.Error(err))
			gw = nil
		}
	}

	if opts.withStore {
		a.store, err = store.NewStore(store.StoreConfig{DBPath: cfg.DBPath.Value})
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
	}

	a.images = imagegen.NewClient(imagegen.Config{
		BaseURL: cfg.ImageBaseURL.Value,
		Logger:  logger,
	})

	scfg := session.Config{
		Gateway:        gw,
		MinInterval:    cfg.Gateway().MinInterval,
		Models:         cfg.Models(),
		TotalRounds:    cfg.Rounds(),
		MemoryCapacity: cfg.Memory(),
		Metrics:        a.metrics,
		Logger:         logger,
	}
	if a.store != nil {
		scfg.Store = a.store
	}
	a.manager = session.NewManager(scfg)
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	a.logger.Sync()
}

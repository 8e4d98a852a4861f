package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bookRa/ragpipe/internal/batch"
	"github.com/bookRa/ragpipe/internal/config"
	"github.com/bookRa/ragpipe/internal/home"
	"github.com/bookRa/ragpipe/internal/pages"
	"github.com/bookRa/ragpipe/internal/pipeline"
	"github.com/bookRa/ragpipe/internal/providers"
	"github.com/bookRa/ragpipe/internal/render"
	"github.com/bookRa/ragpipe/internal/runs"
	"github.com/bookRa/ragpipe/internal/svcctx"
)

// buildReadServices wires only the stores, for commands that inspect state
// without running the pipeline.
func buildReadServices() (*svcctx.Services, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	batchStore, err := batch.NewFSStore(h)
	if err != nil {
		return nil, err
	}
	runStore, err := runs.NewFSStore(h)
	if err != nil {
		return nil, err
	}

	return &svcctx.Services{
		BatchStore: batchStore,
		Runs:       runs.NewRegistry(runStore),
		Logger:     logger,
		Home:       h,
	}, nil
}

// buildServices wires the full pipeline from configuration: providers,
// renderer, page processor, runner, stores, and the batch coordinator.
func buildServices(providerName string) (*svcctx.Services, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	cfgPath := cfgFile
	if cfgPath == "" && h.ConfigExists() {
		cfgPath = h.ConfigPath()
	}
	cm, err := config.NewManager(cfgPath)
	if err != nil {
		return nil, err
	}
	cfg := cm.Get()

	registry, err := providers.NewRegistry(cfg.ToRegistryConfig(logger))
	if err != nil {
		return nil, err
	}

	entry := registry.Default()
	if providerName != "" {
		e, ok := registry.Get(providerName)
		if !ok {
			return nil, fmt.Errorf("unknown provider %q (configured: %v)", providerName, registry.Names())
		}
		entry = e
	}

	renderer := render.New(render.Config{
		Logger:         logger,
		Workers:        cfg.Render.Workers,
		DPI:            cfg.Render.DPI,
		MaxWidth:       cfg.Render.MaxWidth,
		MaxHeight:      cfg.Render.MaxHeight,
		TimeoutPerPage: cfg.Render.TimeoutPerPage,
	})

	processor, err := pages.NewProcessor(pages.Config{
		Logger:      logger,
		Parser:      entry.Parser,
		Cleaner:     entry.Cleaner,
		Limiter:     entry.Limiter,
		Renderer:    renderer,
		ArtifactDir: h.ArtifactsDir,
		MaxWorkers:  cfg.Pipeline.MaxPageWorkers,
		Parallel:    cfg.Pipeline.ParallelPages,
		Visual:      cfg.Pipeline.VisualParsing,
		Retries:     uint(cfg.Pipeline.Retries),
		RetryDelay:  cfg.Pipeline.RetryDelay,
	})
	if err != nil {
		return nil, err
	}

	runner, err := pipeline.NewRunner(pipeline.RunnerConfig{
		Logger:     logger,
		Ingestor:   providers.NewFileIngestor(logger),
		Processor:  processor,
		Chunker:    providers.NewTextChunker(),
		Summarizer: entry.Summarizer,
		Embedder:   entry.Embedder,
		Limiter:    entry.Limiter,
	})
	if err != nil {
		return nil, err
	}

	batchStore, err := batch.NewFSStore(h)
	if err != nil {
		return nil, err
	}
	runStore, err := runs.NewFSStore(h)
	if err != nil {
		return nil, err
	}
	runReg := runs.NewRegistry(runStore)

	coordinator, err := batch.NewCoordinator(batch.CoordinatorConfig{
		Logger:                 logger,
		Store:                  batchStore,
		Runner:                 runner,
		Runs:                   runReg,
		MaxConcurrentDocuments: cfg.Batch.MaxConcurrentDocuments,
		MaxFiles:               cfg.Batch.MaxFiles,
	})
	if err != nil {
		return nil, err
	}

	// Rate limits follow config edits without a restart.
	cm.OnChange(func(next *config.Config) {
		for name, pc := range next.Providers {
			if e, ok := registry.Get(name); ok {
				e.Limiter.SetRate(pc.RPM, pc.Burst)
				logger.Info("rate limit updated", "provider", name, "rpm", pc.RPM)
			}
		}
	})
	cm.WatchConfig()

	return &svcctx.Services{
		Coordinator: coordinator,
		BatchStore:  batchStore,
		Runs:        runReg,
		Registry:    registry,
		Config:      cm,
		Logger:      logger,
		Home:        h,
	}, nil
}

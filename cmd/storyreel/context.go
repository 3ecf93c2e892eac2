package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"storyreel/internal/compiler"
	"storyreel/internal/config"
	"storyreel/internal/logging"
	"storyreel/internal/preflight"
	"storyreel/internal/project"
	"storyreel/internal/renderjob"
	"storyreel/internal/services/renderer"
	"storyreel/internal/timing"
)

// commandContext lazily loads config and wires shared services so every
// command builds the same stack.
type commandContext struct {
	configFlag *string
	cfg        *config.Config
	logger     *slog.Logger
	store      *renderjob.Store
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: filepath.Join(cfg.Paths.LogDir, "storyreel.log"),
	})
	if err != nil {
		return nil, err
	}
	c.logger = logger
	return logger, nil
}

func (c *commandContext) openStore() (*renderjob.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	store, err := renderjob.Open(cfg.JobDBPath())
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	c.store = store
	return store, nil
}

func (c *commandContext) newManager() (*renderjob.Manager, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	store, err := c.openStore()
	if err != nil {
		return nil, err
	}

	comp := compiler.New(timing.Options{
		TrailingPadMS: int64(cfg.Timing.TrailingPadMS),
		MSPerChar:     int64(cfg.Timing.MSPerChar),
		MinEstimateMS: int64(cfg.Timing.MinEstimateMS),
		DefaultMS:     int64(cfg.Timing.DefaultSceneMS),
	}, logger)

	source := project.DirSource{Dir: cfg.Paths.SnapshotDir}
	client := renderer.NewClient(cfg.Renderer.BaseURL, cfg.Renderer.APIKey, &http.Client{
		Timeout: time.Duration(cfg.Renderer.TimeoutSeconds) * time.Second,
	})
	prober := preflight.NewHTTPProber(time.Duration(cfg.Preflight.ProbeTimeoutSeconds) * time.Second)

	return renderjob.NewManager(store, comp, source, client, prober, renderjob.Options{
		MaxAttempts: cfg.Jobs.MaxAttempts,
		Backoff:     time.Duration(cfg.Jobs.RetryBackoffSeconds) * time.Second,
		MaxBackoff:  time.Duration(cfg.Jobs.MaxBackoffSeconds) * time.Second,
		ProbeFanout: cfg.Preflight.ProbeFanout,
	}, logger), nil
}

func (c *commandContext) close() {
	if c.store != nil {
		_ = c.store.Close()
		c.store = nil
	}
}

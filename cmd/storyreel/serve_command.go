package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"storyreel/internal/renderjob"
	"storyreel/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the render job worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			// One process owns the worker and job store at a time.
			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire instance lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another storyreel instance holds %s", cfg.LockPath())
			}
			defer func() { _ = lock.Unlock() }()

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			manager, err := ctx.newManager()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			worker := renderjob.NewWorker(manager, time.Duration(cfg.Jobs.PollIntervalSeconds)*time.Second, logger)
			workerDone := make(chan error, 1)
			go func() {
				workerDone <- worker.Run(runCtx)
			}()

			srv := server.New(manager, logger)
			serveErr := srv.Run(runCtx, cfg.Paths.APIBind)

			stop()
			<-workerDone
			return serveErr
		},
	}
}

package renderjob

import (
	"context"
	"log/slog"
	"time"

	"storyreel/internal/logging"
)

// Worker drives the lifecycle manager: it picks up runnable jobs, submits
// them, and refreshes in-flight ones. Status refresh stays pull-based; the
// worker is just a client that pulls on a timer.
type Worker struct {
	manager      *Manager
	logger       *slog.Logger
	pollInterval time.Duration
}

// NewWorker constructs the polling worker.
func NewWorker(manager *Manager, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		manager:      manager,
		logger:       logger.With(logging.String("component", "renderjob-worker")),
		pollInterval: pollInterval,
	}
}

// Run loops until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.Tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick performs one poll pass. Exposed so tests can step the worker without
// timers.
func (w *Worker) Tick(ctx context.Context) {
	store := w.manager.Store()

	if job, err := store.NextRunnable(ctx, time.Now().UTC()); err != nil {
		w.logger.Error("runnable job lookup failed", logging.Error(err))
	} else if job != nil {
		if err := w.manager.Process(ctx, job); err != nil {
			w.logger.Error("job processing failed", logging.JobID(job.ID), logging.Error(err))
		}
	}

	inflight, err := store.InFlight(ctx)
	if err != nil {
		w.logger.Error("in-flight job lookup failed", logging.Error(err))
		return
	}
	for _, job := range inflight {
		if _, err := w.manager.Refresh(ctx, job.ID); err != nil {
			w.logger.Error("job refresh failed", logging.JobID(job.ID), logging.Error(err))
		}
	}
}

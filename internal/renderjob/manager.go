package renderjob

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storyreel/internal/compiler"
	"storyreel/internal/logging"
	"storyreel/internal/preflight"
	"storyreel/internal/project"
	"storyreel/internal/services"
	"storyreel/internal/services/renderer"
)

// Options bounds the retry policy and the preflight probe fan-out.
type Options struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
	ProbeFanout int
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 30 * time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 10 * time.Minute
	}
	return o
}

// Manager owns the job lifecycle: creation with per-project exclusivity,
// compile-and-submit, pull-based refresh, cancel, and explicit retry.
type Manager struct {
	store    *Store
	compiler *compiler.Compiler
	source   project.Source
	renderer renderer.Client
	prober   preflight.Prober
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager wires the lifecycle manager.
func NewManager(store *Store, comp *compiler.Compiler, source project.Source, client renderer.Client, prober preflight.Prober, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		store:    store,
		compiler: comp,
		source:   source,
		renderer: client,
		prober:   prober,
		opts:     opts.withDefaults(),
		logger:   logger.With(logging.String("component", "renderjob")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Preflight compiles the project's current snapshot without side effects.
// Safe to call repeatedly; identical state yields identical findings.
func (m *Manager) Preflight(ctx context.Context, projectID string, checkReachability bool) (compiler.Result, error) {
	snap, err := m.source.Snapshot(ctx, projectID)
	if err != nil {
		return compiler.Result{}, services.Wrap(services.ErrNotFound, "renderjob", "preflight", fmt.Sprintf("project %s", projectID), err)
	}
	opts := preflight.Options{}
	if checkReachability {
		opts.CheckReachability = true
		opts.Prober = m.prober
		opts.ProbeConcurrency = m.opts.ProbeFanout
	}
	return m.compiler.Compile(ctx, snap, opts)
}

// StartBuild creates a queued job for the project. While a non-terminal job
// exists the request is rejected with the in-flight job's id; a second rapid
// build therefore observes the first job instead of creating a duplicate.
func (m *Manager) StartBuild(ctx context.Context, projectID string) (*Job, error) {
	if _, err := m.source.Snapshot(ctx, projectID); err != nil {
		return nil, services.Wrap(services.ErrNotFound, "renderjob", "build", fmt.Sprintf("project %s", projectID), err)
	}

	job, err := m.store.Create(ctx, projectID, "")
	if err != nil {
		return nil, err
	}
	m.logger.Info("render job queued", logging.JobID(job.ID), logging.ProjectID(projectID))
	return job, nil
}

// Process advances one runnable job: validate and compile the snapshot, then
// submit the spec to the renderer. Validation failures are permanent; only
// transient renderer failures enter the retry path.
func (m *Manager) Process(ctx context.Context, job *Job) error {
	if job.Status == StatusRetryWait {
		var err error
		if job, err = m.store.Transition(ctx, job.ID, StatusQueued, nil); err != nil {
			return err
		}
	}
	job, err := m.store.Transition(ctx, job.ID, StatusValidating, nil)
	if err != nil {
		return err
	}

	snap, err := m.source.Snapshot(ctx, job.ProjectID)
	if err != nil {
		return m.failPermanently(ctx, job, services.Wrap(services.ErrNotFound, "renderjob", "process", "load snapshot", err))
	}

	result, err := m.compiler.Compile(ctx, snap, preflight.Options{})
	if err != nil {
		return m.failPermanently(ctx, job, err)
	}
	if !result.Report.CanBuild {
		return m.failPermanently(ctx, job, services.Wrap(services.ErrValidation, "renderjob", "process", validationSummary(result.Report), nil))
	}

	remoteID, err := m.renderer.Submit(ctx, result.Spec)
	if err != nil {
		return m.handleFailure(ctx, job, err)
	}

	_, err = m.store.Transition(ctx, job.ID, StatusSubmitted, func(j *Job) {
		j.SpecHash = result.Spec.Hash
		j.RemoteID = remoteID
		j.ErrorMessage = ""
	})
	if err != nil {
		return err
	}
	m.logger.Info("render job submitted", logging.JobID(job.ID), slog.String("remote_id", remoteID), slog.String("spec_hash", result.Spec.Hash))
	return nil
}

// Refresh pulls the renderer's view of an in-flight job and advances the
// local state. Refresh is idempotent: terminal jobs are returned unchanged
// and a stale renderer answer never walks the status backwards.
func (m *Manager) Refresh(ctx context.Context, jobID string) (*Job, error) {
	job, err := m.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return job, nil
	}
	if job.RemoteID == "" {
		return job, nil
	}

	status, err := m.renderer.Status(ctx, job.RemoteID)
	if err != nil {
		m.logger.Warn("renderer status poll failed", logging.JobID(job.ID), logging.Error(err))
		return job, nil
	}

	switch status.Phase {
	case renderer.PhaseCompleted:
		return m.store.Transition(ctx, job.ID, StatusCompleted, func(j *Job) {
			j.OutputURL = status.OutputURL
			j.Progress = 100
			j.NextRetryAt = nil
		})
	case renderer.PhaseFailed:
		if err := m.handleFailure(ctx, job, services.Wrap(services.ErrTransient, "renderer", "render", status.Message, nil)); err != nil {
			return nil, err
		}
		return m.store.GetByID(ctx, job.ID)
	case renderer.PhaseCancelled:
		return m.store.Transition(ctx, job.ID, StatusCancelled, nil)
	case renderer.PhaseRendering, renderer.PhaseUploading:
		target := StatusRendering
		if status.Phase == renderer.PhaseUploading {
			target = StatusUploading
		}
		if target == job.Status {
			if err := m.store.UpdateProgress(ctx, job.ID, status.Progress); err != nil {
				return nil, err
			}
			return m.store.GetByID(ctx, job.ID)
		}
		if Regresses(job.Status, target) {
			return job, nil
		}
		return m.store.Transition(ctx, job.ID, target, func(j *Job) {
			j.Progress = status.Progress
		})
	default:
		return job, nil
	}
}

// Cancel stops a non-terminal job and releases the project's exclusivity
// slot immediately.
func (m *Manager) Cancel(ctx context.Context, jobID string) (*Job, error) {
	job, err := m.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return nil, services.Wrap(services.ErrConflict, "renderjob", "cancel", fmt.Sprintf("job %s is already %s", jobID, job.Status), nil)
	}
	if job.RemoteID != "" {
		if err := m.renderer.Cancel(ctx, job.RemoteID); err != nil {
			m.logger.Warn("renderer cancel failed", logging.JobID(job.ID), logging.Error(err))
		}
	}
	return m.store.Transition(ctx, job.ID, StatusCancelled, nil)
}

// Retry creates a brand-new job for a permanently failed one, sharing its
// idempotency key. The failed job itself stays immutable.
func (m *Manager) Retry(ctx context.Context, jobID string) (*Job, error) {
	job, err := m.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusFailed {
		return nil, services.Wrap(services.ErrConflict, "renderjob", "retry", fmt.Sprintf("job %s is %s, only failed jobs can be retried", jobID, job.Status), nil)
	}
	replacement, err := m.store.Create(ctx, job.ProjectID, job.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	m.logger.Info("render job retried", logging.JobID(replacement.ID), slog.String("replaces", job.ID))
	return replacement, nil
}

// handleFailure routes an error through the retry policy: transient errors
// enter retry_wait with exponential backoff until attempts are exhausted,
// everything else fails permanently. The renderer's raw error is preserved
// on the job for triage.
func (m *Manager) handleFailure(ctx context.Context, job *Job, cause error) error {
	if services.Retryable(cause) && job.Attempt < m.opts.MaxAttempts {
		delay := m.backoff(job.Attempt)
		next := m.now().Add(delay)
		_, err := m.store.Transition(ctx, job.ID, StatusRetryWait, func(j *Job) {
			j.Attempt++
			j.ErrorMessage = cause.Error()
			j.NextRetryAt = &next
			j.RemoteID = ""
			j.Progress = 0
		})
		if err != nil {
			return err
		}
		m.logger.Warn("render job entering retry cooldown",
			logging.JobID(job.ID),
			slog.Int("attempt", job.Attempt),
			slog.Duration("cooldown", delay),
			logging.Error(cause))
		return nil
	}
	return m.failPermanently(ctx, job, cause)
}

func (m *Manager) failPermanently(ctx context.Context, job *Job, cause error) error {
	_, err := m.store.Transition(ctx, job.ID, StatusFailed, func(j *Job) {
		j.ErrorMessage = cause.Error()
		j.NextRetryAt = nil
	})
	if err != nil {
		return err
	}
	m.logger.Error("render job failed", logging.JobID(job.ID), logging.Error(cause))
	return nil
}

func (m *Manager) backoff(attempt int) time.Duration {
	delay := m.opts.Backoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= m.opts.MaxBackoff {
			return m.opts.MaxBackoff
		}
	}
	if delay > m.opts.MaxBackoff {
		delay = m.opts.MaxBackoff
	}
	return delay
}

// Store exposes the backing store for read paths (CLI tables, HTTP views).
func (m *Manager) Store() *Store {
	return m.store
}

func validationSummary(report preflight.Report) string {
	codes := make([]string, 0, len(report.Errors))
	for _, finding := range report.Errors {
		codes = append(codes, string(finding.Code))
	}
	return "preflight blocked build: " + strings.Join(codes, ", ")
}

package renderjob_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storyreel/internal/compiler"
	"storyreel/internal/project"
	"storyreel/internal/renderjob"
	"storyreel/internal/services"
	"storyreel/internal/services/renderer"
	"storyreel/internal/testsupport"
	"storyreel/internal/timing"
)

type fakeSource struct {
	snapshots map[string]*project.Snapshot
}

func (s *fakeSource) Snapshot(_ context.Context, projectID string) (*project.Snapshot, error) {
	snap, ok := s.snapshots[projectID]
	if !ok {
		return nil, project.ErrSnapshotNotFound
	}
	return snap, nil
}

type fakeRenderer struct {
	mu sync.Mutex

	submitErr error
	submits   int
	remoteID  string

	status    renderer.Status
	statusErr error

	cancelled []string
}

func (f *fakeRenderer) Submit(context.Context, *compiler.RenderSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	if f.remoteID == "" {
		f.remoteID = "remote-1"
	}
	return f.remoteID, nil
}

func (f *fakeRenderer) Status(context.Context, string) (renderer.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

func (f *fakeRenderer) Cancel(_ context.Context, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, remoteID)
	return nil
}

type fixture struct {
	store    *renderjob.Store
	source   *fakeSource
	renderer *fakeRenderer
	manager  *renderjob.Manager
}

func newFixture(t *testing.T, opts renderjob.Options) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	source := &fakeSource{snapshots: map[string]*project.Snapshot{
		"p1": testsupport.NewSnapshot("p1", testsupport.NarratedScene("hello", 2000)),
	}}
	fake := &fakeRenderer{}
	comp := compiler.New(timing.Options{}, nil)
	manager := renderjob.NewManager(store, comp, source, fake, nil, opts, nil)
	return &fixture{store: store, source: source, renderer: fake, manager: manager}
}

func TestStartBuildRejectsSecondRequest(t *testing.T) {
	f := newFixture(t, renderjob.Options{})
	ctx := context.Background()

	first, err := f.manager.StartBuild(ctx, "p1")
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}

	_, err = f.manager.StartBuild(ctx, "p1")
	var conflict *renderjob.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("second build err = %v, want ConflictError", err)
	}
	if conflict.ExistingJobID != first.ID {
		t.Fatalf("conflict points at %s, want %s", conflict.ExistingJobID, first.ID)
	}
}

func TestStartBuildUnknownProject(t *testing.T) {
	f := newFixture(t, renderjob.Options{})
	if _, err := f.manager.StartBuild(context.Background(), "ghost"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestProcessSubmitsValidProject(t *testing.T) {
	f := newFixture(t, renderjob.Options{})
	ctx := context.Background()

	job, err := f.manager.StartBuild(ctx, "p1")
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}
	if err := f.manager.Process(ctx, job); err != nil {
		t.Fatalf("Process: %v", err)
	}

	loaded, err := f.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != renderjob.StatusSubmitted {
		t.Fatalf("status = %s, want submitted", loaded.Status)
	}
	if loaded.RemoteID != "remote-1" || loaded.SpecHash == "" {
		t.Fatalf("submission fields not recorded: %+v", loaded)
	}
}

func TestProcessFailsPermanentlyOnPreflightErrors(t *testing.T) {
	f := newFixture(t, renderjob.Options{})
	f.source.snapshots["p1"] = testsupport.NewSnapshot("p1", project.Scene{Mode: project.ModeVideo})
	ctx := context.Background()

	job, err := f.manager.StartBuild(ctx, "p1")
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}
	if err := f.manager.Process(ctx, job); err != nil {
		t.Fatalf("Process: %v", err)
	}

	loaded, _ := f.store.GetByID(ctx, job.ID)
	if loaded.Status != renderjob.StatusFailed {
		t.Fatalf("status = %s, want failed", loaded.Status)
	}
	if loaded.ErrorMessage == "" {
		t.Fatal("failure reason not recorded")
	}
	if f.renderer.submits != 0 {
		t.Fatalf("renderer called %d times for an unbuildable project", f.renderer.submits)
	}

	// A permanent failure frees the exclusivity slot.
	if _, err := f.manager.StartBuild(ctx, "p1"); err != nil {
		t.Fatalf("build after failure: %v", err)
	}
}

func TestProcessRetriesTransientSubmitFailures(t *testing.T) {
	f := newFixture(t, renderjob.Options{MaxAttempts: 3, Backoff: time.Second, MaxBackoff: 4 * time.Second})
	f.renderer.submitErr = services.Wrap(services.ErrTransient, "renderer", "submit", "renderer returned 503", nil)
	ctx := context.Background()

	job, err := f.manager.StartBuild(ctx, "p1")
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}

	if err := f.manager.Process(ctx, job); err != nil {
		t.Fatalf("Process attempt 1: %v", err)
	}
	loaded, _ := f.store.GetByID(ctx, job.ID)
	if loaded.Status != renderjob.StatusRetryWait {
		t.Fatalf("status = %s, want retry_wait", loaded.Status)
	}
	if loaded.Attempt != 2 {
		t.Fatalf("attempt = %d, want 2", loaded.Attempt)
	}
	if loaded.NextRetryAt == nil {
		t.Fatal("cooldown deadline not set")
	}

	if err := f.manager.Process(ctx, loaded); err != nil {
		t.Fatalf("Process attempt 2: %v", err)
	}
	loaded, _ = f.store.GetByID(ctx, job.ID)
	if loaded.Status != renderjob.StatusRetryWait || loaded.Attempt != 3 {
		t.Fatalf("after attempt 2: status=%s attempt=%d", loaded.Status, loaded.Attempt)
	}

	// Final attempt exhausts the allowed retries and fails permanently.
	if err := f.manager.Process(ctx, loaded); err != nil {
		t.Fatalf("Process attempt 3: %v", err)
	}
	loaded, _ = f.store.GetByID(ctx, job.ID)
	if loaded.Status != renderjob.StatusFailed {
		t.Fatalf("status = %s, want failed after exhausted retries", loaded.Status)
	}
	if f.renderer.submits != 3 {
		t.Fatalf("renderer called %d times, want 3", f.renderer.submits)
	}
}

func submitJob(t *testing.T, f *fixture) *renderjob.Job {
	t.Helper()
	ctx := context.Background()
	job, err := f.manager.StartBuild(ctx, "p1")
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}
	if err := f.manager.Process(ctx, job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	loaded, err := f.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return loaded
}

func TestRefreshAdvancesThroughRendererPhases(t *testing.T) {
	f := newFixture(t, renderjob.Options{})
	ctx := context.Background()
	job := submitJob(t, f)

	f.renderer.status = renderer.Status{Phase: renderer.PhaseRendering, Progress: 40}
	refreshed, err := f.manager.Refresh(ctx, job.ID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.Status != renderjob.StatusRendering || refreshed.Progress != 40 {
		t.Fatalf("after rendering poll: %+v", refreshed)
	}

	// Same phase again only updates progress.
	f.renderer.status = renderer.Status{Phase: renderer.PhaseRendering, Progress: 70}
	refreshed, err = f.manager.Refresh(ctx, job.ID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.Status != renderjob.StatusRendering || refreshed.Progress != 70 {
		t.Fatalf("after second rendering poll: %+v", refreshed)
	}

	f.renderer.status = renderer.Status{Phase: renderer.PhaseCompleted, OutputURL: "https://cdn.example.com/out.mp4"}
	refreshed, err = f.manager.Refresh(ctx, job.ID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.Status != renderjob.StatusCompleted {
		t.Fatalf("status = %s, want completed", refreshed.Status)
	}
	if refreshed.OutputURL != "https://cdn.example.com/out.mp4" || refreshed.Progress != 100 {
		t.Fatalf("completion fields: %+v", refreshed)
	}
}

func TestRefreshNeverRegresses(t *testing.T) {
	f := newFixture(t, renderjob.Options{})
	ctx := context.Background()
	job := submitJob(t, f)

	f.renderer.status = renderer.Status{Phase: renderer.PhaseUploading, Progress: 90}
	if _, err := f.manager.Refresh(ctx, job.ID); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// A stale poll reporting an earlier phase is ignored.
	f.renderer.status = renderer.Status{Phase: renderer.PhaseRendering, Progress: 50}
	refreshed, err := f.manager.Refresh(ctx, job.ID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.Status != renderjob.StatusUploading {
		t.Fatalf("status walked back to %s", refreshed.Status)
	}
}

func TestRefreshTerminalJobUnchanged(t *testing.T) {
	f := newFixture(t, renderjob.Options{})
	ctx := context.Background()
	job := submitJob(t, f)

	f.renderer.status = renderer.Status{Phase: renderer.PhaseCompleted, OutputURL: "https://cdn.example.com/out.mp4"}
	if _, err := f.manager.Refresh(ctx, job.ID); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	f.renderer.status = renderer.Status{Phase: renderer.PhaseFailed, Message: "late failure"}
	refreshed, err := f.manager.Refresh(ctx, job.ID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.Status != renderjob.StatusCompleted {
		t.Fatalf("terminal job changed to %s", refreshed.Status)
	}
}

func TestRefreshPollFailureKeepsJob(t *testing.T) {
	f := newFixture(t, renderjob.Options{})
	ctx := context.Background()
	job := submitJob(t, f)

	f.renderer.statusErr = services.Wrap(services.ErrTransient, "renderer", "status", "renderer returned 502", nil)
	refreshed, err := f.manager.Refresh(ctx, job.ID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.Status != renderjob.StatusSubmitted {
		t.Fatalf("status = %s, want unchanged submitted", refreshed.Status)
	}
}

func TestCancelReleasesSlotAndNotifiesRenderer(t *testing.T) {
	f := newFixture(t, renderjob.Options{})
	ctx := context.Background()
	job := submitJob(t, f)

	cancelled, err := f.manager.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != renderjob.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}
	if len(f.renderer.cancelled) != 1 || f.renderer.cancelled[0] != job.RemoteID {
		t.Fatalf("renderer cancels = %v", f.renderer.cancelled)
	}

	// The slot is free immediately.
	if _, err := f.manager.StartBuild(ctx, "p1"); err != nil {
		t.Fatalf("build after cancel: %v", err)
	}

	if _, err := f.manager.Cancel(ctx, job.ID); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("cancel of terminal job err = %v, want ErrConflict", err)
	}
}

func TestRetryCreatesReplacementJob(t *testing.T) {
	f := newFixture(t, renderjob.Options{})
	f.source.snapshots["p1"] = testsupport.NewSnapshot("p1", project.Scene{Mode: project.ModeVideo})
	ctx := context.Background()

	job, err := f.manager.StartBuild(ctx, "p1")
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}
	if err := f.manager.Process(ctx, job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	failed, _ := f.store.GetByID(ctx, job.ID)
	if failed.Status != renderjob.StatusFailed {
		t.Fatalf("status = %s, want failed", failed.Status)
	}

	replacement, err := f.manager.Retry(ctx, job.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if replacement.ID == job.ID {
		t.Fatal("retry reused the failed job id")
	}
	if replacement.IdempotencyKey != failed.IdempotencyKey {
		t.Fatal("retry did not carry the idempotency key")
	}
	if replacement.Status != renderjob.StatusQueued || replacement.Attempt != 1 {
		t.Fatalf("replacement = %+v", replacement)
	}

	// The original stays failed.
	original, _ := f.store.GetByID(ctx, job.ID)
	if original.Status != renderjob.StatusFailed {
		t.Fatalf("original status = %s", original.Status)
	}
}

func TestRetryRejectsNonFailedJobs(t *testing.T) {
	f := newFixture(t, renderjob.Options{})
	ctx := context.Background()

	job, err := f.manager.StartBuild(ctx, "p1")
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}
	if _, err := f.manager.Retry(ctx, job.ID); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("retry of queued job err = %v, want ErrConflict", err)
	}
}

func TestPreflightWithoutJob(t *testing.T) {
	f := newFixture(t, renderjob.Options{})

	result, err := f.manager.Preflight(context.Background(), "p1", false)
	if err != nil {
		t.Fatalf("Preflight: %v", err)
	}
	if !result.Report.CanBuild {
		t.Fatalf("CanBuild = false, errors: %v", result.Report.Errors)
	}

	jobs, err := f.store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("preflight created %d jobs", len(jobs))
	}
}

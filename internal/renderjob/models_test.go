package renderjob

import (
	"testing"
	"time"
)

func TestCanTransitionHappyPath(t *testing.T) {
	path := []Status{StatusQueued, StatusValidating, StatusSubmitted, StatusRendering, StatusUploading, StatusCompleted}
	for i := 0; i+1 < len(path); i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Errorf("%s -> %s rejected", path[i], path[i+1])
		}
	}
}

func TestCanTransitionSkipsAllowed(t *testing.T) {
	// Short renders can jump straight past intermediate phases.
	if !CanTransition(StatusSubmitted, StatusCompleted) {
		t.Error("submitted -> completed rejected")
	}
	if !CanTransition(StatusRendering, StatusCompleted) {
		t.Error("rendering -> completed rejected")
	}
}

func TestCanTransitionFailureReachableFromNonTerminal(t *testing.T) {
	for _, from := range []Status{StatusQueued, StatusValidating, StatusSubmitted, StatusRendering, StatusUploading, StatusRetryWait} {
		for _, to := range []Status{StatusFailed, StatusCancelled, StatusRetryWait} {
			if !CanTransition(from, to) {
				t.Errorf("%s -> %s rejected", from, to)
			}
		}
	}
}

func TestTerminalStatusesAreImmutable(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		for _, to := range AllStatuses() {
			if CanTransition(from, to) {
				t.Errorf("terminal %s -> %s permitted", from, to)
			}
		}
	}
}

func TestCanTransitionRejectsBackwardSteps(t *testing.T) {
	if CanTransition(StatusRendering, StatusValidating) {
		t.Error("rendering -> validating permitted")
	}
	if CanTransition(StatusUploading, StatusRendering) {
		t.Error("uploading -> rendering permitted")
	}
}

func TestRegresses(t *testing.T) {
	if !Regresses(StatusUploading, StatusRendering) {
		t.Error("uploading -> rendering not flagged as regression")
	}
	if Regresses(StatusRendering, StatusUploading) {
		t.Error("rendering -> uploading flagged as regression")
	}
	if Regresses(StatusRendering, StatusRendering) {
		t.Error("same status flagged as regression")
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ParseStatus("  Retry_Wait "); !ok || status != StatusRetryWait {
		t.Fatalf("ParseStatus = %q, %v", status, ok)
	}
	if _, ok := ParseStatus("nonsense"); ok {
		t.Fatal("unknown status parsed")
	}
}

func TestRetryDue(t *testing.T) {
	now := time.Now().UTC()
	later := now.Add(time.Minute)

	job := &Job{Status: StatusRetryWait, NextRetryAt: &later}
	if job.RetryDue(now) {
		t.Error("cooldown not elapsed but due")
	}
	if !job.RetryDue(later) {
		t.Error("cooldown elapsed but not due")
	}

	noDeadline := &Job{Status: StatusRetryWait}
	if !noDeadline.RetryDue(now) {
		t.Error("retry_wait without deadline not due")
	}

	queued := &Job{Status: StatusQueued}
	if queued.RetryDue(now) {
		t.Error("queued job reported retry due")
	}
}

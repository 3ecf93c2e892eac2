package renderjob

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a render job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusValidating Status = "validating"
	StatusSubmitted  Status = "submitted"
	StatusRendering  Status = "rendering"
	StatusUploading  Status = "uploading"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRetryWait  Status = "retry_wait"
)

var allStatuses = []Status{
	StatusQueued,
	StatusValidating,
	StatusSubmitted,
	StatusRendering,
	StatusUploading,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
	StatusRetryWait,
}

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// transitions is the forward edge set of the state machine. Failed,
// cancelled, and retry_wait are additionally reachable from every
// non-terminal state.
var transitions = map[Status][]Status{
	StatusQueued:     {StatusValidating},
	StatusValidating: {StatusSubmitted},
	StatusSubmitted:  {StatusRendering, StatusUploading, StatusCompleted},
	StatusRendering:  {StatusUploading, StatusCompleted},
	StatusUploading:  {StatusCompleted},
	StatusRetryWait:  {StatusQueued},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether a status is final. Terminal jobs never change
// again; a refresh must not move them back to non-terminal.
func IsTerminal(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// CanTransition reports whether the state machine permits moving from one
// status to another.
func CanTransition(from, to Status) bool {
	if IsTerminal(from) {
		return false
	}
	switch to {
	case StatusFailed, StatusCancelled, StatusRetryWait:
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// statusRank orders statuses along the happy path so a stale renderer poll
// can never move a job backwards.
var statusRank = map[Status]int{
	StatusQueued:     0,
	StatusRetryWait:  0,
	StatusValidating: 1,
	StatusSubmitted:  2,
	StatusRendering:  3,
	StatusUploading:  4,
	StatusCompleted:  5,
}

// Regresses reports whether moving from one status to another would walk
// backwards along the happy path.
func Regresses(from, to Status) bool {
	return statusRank[to] < statusRank[from]
}

// Job is one render submission.
type Job struct {
	ID             string
	ProjectID      string
	IdempotencyKey string
	Status         Status
	Attempt        int
	SpecHash       string
	RemoteID       string
	OutputURL      string
	ErrorMessage   string
	Progress       float64
	NextRetryAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsTerminal reports whether the job has reached a final status.
func (j *Job) IsTerminal() bool {
	return IsTerminal(j.Status)
}

// RetryDue reports whether a retry_wait job's cooldown has elapsed.
func (j *Job) RetryDue(now time.Time) bool {
	if j.Status != StatusRetryWait {
		return false
	}
	return j.NextRetryAt == nil || !now.Before(*j.NextRetryAt)
}

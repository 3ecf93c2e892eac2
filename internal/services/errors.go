package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks input-incompleteness failures the user can fix.
	ErrValidation = errors.New("validation error")
	// ErrInternal marks invariant violations that are not user-fixable.
	ErrInternal = errors.New("internal invariant violation")
	// ErrConfiguration marks unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks missing projects, snapshots, or jobs.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks rejected duplicates, e.g. a second build while a
	// job is already in flight.
	ErrConflict = errors.New("conflict")
	// ErrTransient marks renderer failures worth retrying.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message with component context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether an error should trigger automatic retry rather
// than a permanent failure.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

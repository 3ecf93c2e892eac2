package renderjob

import (
	"testing"
	"time"
)

func TestBackoffDoublesPerFailedAttempt(t *testing.T) {
	m := &Manager{opts: Options{
		MaxAttempts: 5,
		Backoff:     30 * time.Second,
		MaxBackoff:  10 * time.Minute,
	}}

	// The cooldown after the nth failed attempt doubles each time until the
	// cap: 30s, 1m, 2m, 4m, 8m, then 10m.
	want := []time.Duration{
		30 * time.Second,
		time.Minute,
		2 * time.Minute,
		4 * time.Minute,
		8 * time.Minute,
		10 * time.Minute,
		10 * time.Minute,
	}
	for i, expected := range want {
		attempt := i + 1
		if got := m.backoff(attempt); got != expected {
			t.Errorf("backoff(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

// Package testsupport provides shared fixtures: temp-dir configs, job
// stores, and snapshot builders used across package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"storyreel/internal/config"
)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SnapshotDir = filepath.Join(base, "projects")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

package project

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrSnapshotNotFound indicates no snapshot exists for the requested project.
var ErrSnapshotNotFound = errors.New("project snapshot not found")

// Source provides per-project snapshots to the compiler. Implementations
// must return a fresh snapshot per call; the compiler never mutates it.
type Source interface {
	Snapshot(ctx context.Context, projectID string) (*Snapshot, error)
}

// DecodeSnapshot parses a snapshot document. Unknown fields are rejected so
// misspelled or ad hoc settings fail loudly instead of being ignored.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	var snap Snapshot
	if err := decoder.Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := snap.normalize(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// LoadSnapshot reads a snapshot document from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, path)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return DecodeSnapshot(bytes.NewReader(data))
}

// DirSource resolves snapshots from a directory of <project_id>.json files.
// It backs the CLI and the default server wiring; other persistence layers
// implement Source directly.
type DirSource struct {
	Dir string
}

// Snapshot implements Source.
func (d DirSource) Snapshot(_ context.Context, projectID string) (*Snapshot, error) {
	trimmed := strings.TrimSpace(projectID)
	if trimmed == "" || strings.ContainsAny(trimmed, `/\`) {
		return nil, fmt.Errorf("invalid project id %q", projectID)
	}
	return LoadSnapshot(filepath.Join(d.Dir, trimmed+".json"))
}

func (s *Snapshot) normalize() error {
	if strings.TrimSpace(s.ProjectID) == "" {
		return errors.New("snapshot missing project_id")
	}
	if len(s.Scenes) == 0 {
		return errors.New("snapshot has no scenes")
	}

	sort.SliceStable(s.Scenes, func(i, j int) bool {
		return s.Scenes[i].Ordinal < s.Scenes[j].Ordinal
	})
	for i, scene := range s.Scenes {
		if scene.Ordinal != i+1 {
			return fmt.Errorf("scene ordinals must be contiguous from 1, found %d at position %d", scene.Ordinal, i+1)
		}
		if _, ok := ParseVisualMode(string(scene.Mode)); !ok {
			return fmt.Errorf("scene %d: unknown visual mode %q", scene.Ordinal, scene.Mode)
		}
	}

	if s.Settings.BackgroundVolume <= 0 {
		s.Settings.BackgroundVolume = 1.0
	}
	return nil
}

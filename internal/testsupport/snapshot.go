package testsupport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"storyreel/internal/config"
	"storyreel/internal/project"
)

// NewSnapshot builds a minimal valid snapshot around the given scenes.
func NewSnapshot(projectID string, scenes ...project.Scene) *project.Snapshot {
	for i := range scenes {
		scenes[i].Ordinal = i + 1
	}
	return &project.Snapshot{
		ProjectID: projectID,
		Settings: project.Settings{
			Width:            1080,
			Height:           1920,
			FrameRate:        30,
			Codec:            "h264",
			BackgroundVolume: 1,
		},
		Scenes: scenes,
	}
}

// ImageScene builds an image-mode scene with an active image asset.
func ImageScene(narration string) project.Scene {
	return project.Scene{
		Mode:      project.ModeImage,
		Narration: narration,
		Visuals: []project.VisualAsset{{
			ID:     "img-1",
			Kind:   project.ModeImage,
			URL:    "https://assets.example.com/img-1.png",
			Active: true,
			Status: project.AssetCompleted,
		}},
	}
}

// VideoScene builds a video-mode scene with a completed clip.
func VideoScene(durationMS int64) project.Scene {
	return project.Scene{
		Mode: project.ModeVideo,
		Visuals: []project.VisualAsset{{
			ID:         "vid-1",
			Kind:       project.ModeVideo,
			URL:        "https://assets.example.com/vid-1.mp4",
			Active:     true,
			Status:     project.AssetCompleted,
			DurationMS: durationMS,
		}},
	}
}

// ComicScene builds a comic-mode scene with one voice clip per duration.
func ComicScene(clipDurations ...int64) project.Scene {
	scene := project.Scene{
		Mode: project.ModeComic,
		Visuals: []project.VisualAsset{{
			ID:     "panel-1",
			Kind:   project.ModeComic,
			URL:    "https://assets.example.com/panel-1.png",
			Active: true,
			Status: project.AssetCompleted,
		}},
	}
	for i, duration := range clipDurations {
		scene.Utterances = append(scene.Utterances, project.Utterance{
			ID:   fmt.Sprintf("utt-%d", i+1),
			Text: fmt.Sprintf("line %d", i+1),
			Clips: []project.AudioClip{{
				ID:         fmt.Sprintf("voice-%d", i+1),
				URL:        fmt.Sprintf("https://assets.example.com/voice-%d.mp3", i+1),
				DurationMS: duration,
				Active:     true,
				Status:     project.AssetCompleted,
			}},
		})
	}
	return scene
}

// NarratedScene attaches a completed narration clip to an image scene.
func NarratedScene(narration string, clipDurationMS int64) project.Scene {
	scene := ImageScene(narration)
	scene.NarrationClips = []project.AudioClip{{
		ID:         "narr-1",
		URL:        "https://assets.example.com/narr-1.mp3",
		DurationMS: clipDurationMS,
		Active:     true,
		Status:     project.AssetCompleted,
	}}
	return scene
}

// WriteSnapshot persists a snapshot into the config's snapshot directory so
// DirSource can load it.
func WriteSnapshot(t testing.TB, cfg *config.Config, snap *project.Snapshot) {
	t.Helper()

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	path := filepath.Join(cfg.Paths.SnapshotDir, snap.ProjectID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
}

package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"storyreel/internal/automation"
	"storyreel/internal/project"
)

// SpecVersion is bumped whenever the document shape changes incompatibly.
const SpecVersion = 1

// OutputParams are the global render output settings.
type OutputParams struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FrameRate int    `json:"frame_rate"`
	Codec     string `json:"codec"`
}

// VisualRef points the renderer at one scene's resolved visual.
type VisualRef struct {
	Kind project.VisualMode `json:"kind"`
	URL  string             `json:"url"`
}

// VoiceClip places one narration or dialogue clip on the absolute timeline.
type VoiceClip struct {
	URL        string  `json:"url"`
	StartMS    int64   `json:"start_ms"`
	DurationMS int64   `json:"duration_ms"`
	Volume     float64 `json:"volume"`
}

// EffectCue places one sound effect on the absolute timeline. Effects are
// independent of background ducking.
type EffectCue struct {
	URL     string  `json:"url"`
	StartMS int64   `json:"start_ms"`
	EndMS   int64   `json:"end_ms"`
	Volume  float64 `json:"volume"`
}

// SpecScene is one compiled scene.
type SpecScene struct {
	Index      int         `json:"index"`
	StartMS    int64       `json:"start_ms"`
	DurationMS int64       `json:"duration_ms"`
	Visual     VisualRef   `json:"visual"`
	Voices     []VoiceClip `json:"voices,omitempty"`
	Effects    []EffectCue `json:"effects,omitempty"`
}

// AudioChannel is one background channel with its composed volume function
// in closed form. The renderer reconstructs per-frame values from the
// envelope; nothing is pre-sampled.
type AudioChannel struct {
	ID       string              `json:"id"`
	URL      string              `json:"url"`
	Loop     bool                `json:"loop"`
	StartMS  int64               `json:"start_ms"`
	EndMS    int64               `json:"end_ms"`
	Envelope automation.Envelope `json:"envelope"`
}

// RenderSpec is the self-contained document submitted to the render service.
// The renderer performs no independent lookups.
type RenderSpec struct {
	Version         int            `json:"version"`
	ProjectID       string         `json:"project_id"`
	Hash            string         `json:"hash,omitempty"`
	Output          OutputParams   `json:"output"`
	TotalDurationMS int64          `json:"total_duration_ms"`
	Scenes          []SpecScene    `json:"scenes"`
	Channels        []AudioChannel `json:"channels,omitempty"`
}

// ComputeHash content-addresses the spec: SHA-256 over the canonical JSON
// form with the hash field cleared. Identical inputs always hash
// identically, which is what makes resubmission idempotent.
func ComputeHash(spec *RenderSpec) (string, error) {
	clone := *spec
	clone.Hash = ""
	payload, err := json.Marshal(&clone)
	if err != nil {
		return "", fmt.Errorf("marshal spec for hashing: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

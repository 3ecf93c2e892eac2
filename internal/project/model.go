package project

import "strings"

// VisualMode declares which kind of visual a scene renders with.
type VisualMode string

const (
	ModeImage VisualMode = "image"
	ModeComic VisualMode = "comic"
	ModeVideo VisualMode = "video"
)

var visualModes = map[VisualMode]struct{}{
	ModeImage: {},
	ModeComic: {},
	ModeVideo: {},
}

// ParseVisualMode converts a string into a known VisualMode.
func ParseVisualMode(value string) (VisualMode, bool) {
	normalized := VisualMode(strings.ToLower(strings.TrimSpace(value)))
	_, ok := visualModes[normalized]
	return normalized, ok
}

// AssetStatus tracks the generation lifecycle of a produced asset.
type AssetStatus string

const (
	AssetPending    AssetStatus = "pending"
	AssetGenerating AssetStatus = "generating"
	AssetCompleted  AssetStatus = "completed"
	AssetFailed     AssetStatus = "failed"
)

// VisualAsset is one visual candidate for a scene. At most one candidate per
// scene per kind carries the active flag.
type VisualAsset struct {
	ID         string      `json:"id"`
	Kind       VisualMode  `json:"kind"`
	URL        string      `json:"url"`
	Active     bool        `json:"active"`
	Status     AssetStatus `json:"status"`
	DurationMS int64       `json:"duration_ms,omitempty"`
}

// Eligible reports whether the asset can represent a scene in the given mode.
// Video assets must additionally be completed with a known locator because
// pending generations have no playable clip yet.
func (a VisualAsset) Eligible(mode VisualMode) bool {
	if a.Kind != mode || !a.Active {
		return false
	}
	if a.Kind == ModeVideo {
		return a.Status == AssetCompleted && strings.TrimSpace(a.URL) != ""
	}
	return true
}

// AudioClip is a narration or dialogue voice clip.
type AudioClip struct {
	ID          string      `json:"id"`
	UtteranceID string      `json:"utterance_id,omitempty"`
	URL         string      `json:"url"`
	DurationMS  int64       `json:"duration_ms"`
	Active      bool        `json:"active"`
	Status      AssetStatus `json:"status"`
}

// Usable reports whether the clip may contribute audio and timing.
func (c AudioClip) Usable() bool {
	return c.Active && c.Status == AssetCompleted && c.DurationMS > 0
}

// BackgroundTrack is a music bed, either project-scoped (one active per
// project) or scene-scoped (overriding the project track for that scene).
type BackgroundTrack struct {
	ID        string  `json:"id"`
	URL       string  `json:"url"`
	Volume    float64 `json:"volume"`
	Loop      bool    `json:"loop"`
	FadeInMS  int64   `json:"fade_in_ms,omitempty"`
	FadeOutMS int64   `json:"fade_out_ms,omitempty"`
	Active    bool    `json:"active"`

	// Optional ducking defaults applied by the renderer when voices overlap.
	DuckTo        *float64 `json:"duck_to,omitempty"`
	DuckAttackMS  int64    `json:"duck_attack_ms,omitempty"`
	DuckReleaseMS int64    `json:"duck_release_ms,omitempty"`
}

// SoundEffectCue is a one-shot effect placed relative to its scene start.
// Cues do not participate in background ducking.
type SoundEffectCue struct {
	ID      string  `json:"id"`
	URL     string  `json:"url"`
	StartMS int64   `json:"start_ms"`
	EndMS   int64   `json:"end_ms"`
	Volume  float64 `json:"volume"`
}

// AutomationKind distinguishes the two authoring gestures for timeline
// automation. Both compile to the same envelope shape.
type AutomationKind string

const (
	AutomationDuck      AutomationKind = "duck"
	AutomationSetVolume AutomationKind = "set_volume"
)

// AutomationEntry is a user-authored volume adjustment over an absolute
// window of the compiled timeline. Entries may overlap.
type AutomationEntry struct {
	ID           string         `json:"id"`
	Kind         AutomationKind `json:"kind"`
	StartMS      int64          `json:"start_ms"`
	EndMS        int64          `json:"end_ms"`
	TargetVolume float64        `json:"target_volume"`
	FadeInMS     int64          `json:"fade_in_ms,omitempty"`
	FadeOutMS    int64          `json:"fade_out_ms,omitempty"`
}

// Utterance is one ordered dialogue line inside a comic-mode scene. Each
// utterance owns its voice clip candidates.
type Utterance struct {
	ID    string      `json:"id"`
	Text  string      `json:"text"`
	Clips []AudioClip `json:"clips,omitempty"`
}

// ActiveClip returns the usable voice clip for the utterance, if any.
func (u Utterance) ActiveClip() (AudioClip, bool) {
	for _, clip := range u.Clips {
		if clip.Usable() {
			return clip, true
		}
	}
	return AudioClip{}, false
}

// Scene is one ordered segment of the output video.
type Scene struct {
	Ordinal          int              `json:"ordinal"`
	Mode             VisualMode       `json:"mode"`
	Narration        string           `json:"narration,omitempty"`
	ManualDurationMS int64            `json:"manual_duration_ms,omitempty"`
	Utterances       []Utterance      `json:"utterances,omitempty"`
	Visuals          []VisualAsset    `json:"visuals,omitempty"`
	NarrationClips   []AudioClip      `json:"narration_clips,omitempty"`
	Background       *BackgroundTrack `json:"background,omitempty"`
	Effects          []SoundEffectCue `json:"effects,omitempty"`
}

// NarrationClip returns the scene's usable narration clip, if any. When the
// snapshot carries more than one usable clip the first wins; preflight flags
// the duplicate activation separately.
func (s Scene) NarrationClip() (AudioClip, bool) {
	for _, clip := range s.NarrationClips {
		if clip.Usable() {
			return clip, true
		}
	}
	return AudioClip{}, false
}

// SceneBackground returns the scene-scoped background track when one is
// active. An active scene track silences the project channel for the scene.
func (s Scene) SceneBackground() *BackgroundTrack {
	if s.Background != nil && s.Background.Active {
		return s.Background
	}
	return nil
}

// Settings is the closed set of project-level output and audio defaults.
// Unknown fields in a snapshot document are rejected at load time.
type Settings struct {
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	FrameRate        int     `json:"frame_rate"`
	Codec            string  `json:"codec"`
	BackgroundWanted bool    `json:"background_wanted"`
	BackgroundVolume float64 `json:"background_volume"`
}

// Snapshot is the immutable input to one compile attempt.
type Snapshot struct {
	ProjectID  string            `json:"project_id"`
	Title      string            `json:"title,omitempty"`
	Settings   Settings          `json:"settings"`
	Scenes     []Scene           `json:"scenes"`
	Background *BackgroundTrack  `json:"background,omitempty"`
	Automation []AutomationEntry `json:"automation,omitempty"`
}

// ProjectBackground returns the active project-level background track, if any.
func (s *Snapshot) ProjectBackground() *BackgroundTrack {
	if s.Background != nil && s.Background.Active {
		return s.Background
	}
	return nil
}

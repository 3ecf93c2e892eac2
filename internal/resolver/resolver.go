package resolver

import (
	"fmt"

	"storyreel/internal/project"
)

// VisualMissingError reports a scene with no eligible visual for its mode.
type VisualMissingError struct {
	Ordinal int
	Mode    project.VisualMode
}

func (e *VisualMissingError) Error() string {
	return fmt.Sprintf("scene %d: no eligible %s asset", e.Ordinal, e.Mode)
}

// ResolvedAudio collects the audio layers eligible for one scene.
type ResolvedAudio struct {
	// Narration is the scene-level voice clip (image and video modes).
	Narration *project.AudioClip
	// UtteranceClips are the ordered per-utterance voice clips (comic mode).
	UtteranceClips []project.AudioClip
	// Background is the scene-scoped track overriding the project channel.
	Background *project.BackgroundTrack
	Effects    []project.SoundEffectCue
}

// ResolvedScene pairs a scene with its resolved visual and audio. VisualErr
// carries the missing-asset error so downstream stages can keep working on
// the remaining scenes and preflight can report all failures at once.
type ResolvedScene struct {
	Scene     project.Scene
	Visual    project.VisualAsset
	Audio     ResolvedAudio
	VisualErr error
}

// Resolve selects the declared mode's eligible visual for a scene. Exactly
// one asset is returned; an empty eligible set is an error, never a silent
// fallback to another kind.
func Resolve(scene project.Scene) (project.VisualAsset, error) {
	for _, asset := range scene.Visuals {
		if asset.Eligible(scene.Mode) {
			return asset, nil
		}
	}
	return project.VisualAsset{}, &VisualMissingError{Ordinal: scene.Ordinal, Mode: scene.Mode}
}

// ResolveAudio gathers the scene's eligible audio layers for its mode.
// Comic scenes draw dialogue from utterance clips; other modes use the
// scene-level narration clip.
func ResolveAudio(scene project.Scene) ResolvedAudio {
	audio := ResolvedAudio{
		Background: scene.SceneBackground(),
		Effects:    scene.Effects,
	}

	if scene.Mode == project.ModeComic {
		for _, utterance := range scene.Utterances {
			if clip, ok := utterance.ActiveClip(); ok {
				audio.UtteranceClips = append(audio.UtteranceClips, clip)
			}
		}
		return audio
	}

	if clip, ok := scene.NarrationClip(); ok {
		audio.Narration = &clip
	}
	return audio
}

// ResolveScene resolves both visual and audio layers for one scene.
func ResolveScene(scene project.Scene) ResolvedScene {
	resolved := ResolvedScene{Scene: scene, Audio: ResolveAudio(scene)}
	visual, err := Resolve(scene)
	if err != nil {
		resolved.VisualErr = err
		return resolved
	}
	resolved.Visual = visual
	return resolved
}

// ResolveAll resolves every scene in snapshot order.
func ResolveAll(scenes []project.Scene) []ResolvedScene {
	resolved := make([]ResolvedScene, 0, len(scenes))
	for _, scene := range scenes {
		resolved = append(resolved, ResolveScene(scene))
	}
	return resolved
}

// ConflictingKinds returns the visual kinds, other than the declared mode,
// with an eligible asset on the scene. A non-empty result means an upstream
// generation flow activated an asset it should not have; the resolver still
// returns only the declared mode's asset.
func ConflictingKinds(scene project.Scene) []project.VisualMode {
	seen := map[project.VisualMode]bool{}
	var kinds []project.VisualMode
	for _, asset := range scene.Visuals {
		if asset.Kind == scene.Mode || seen[asset.Kind] {
			continue
		}
		if asset.Eligible(asset.Kind) {
			seen[asset.Kind] = true
			kinds = append(kinds, asset.Kind)
		}
	}
	return kinds
}

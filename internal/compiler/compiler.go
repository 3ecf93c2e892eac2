package compiler

import (
	"context"
	"fmt"
	"log/slog"

	"storyreel/internal/automation"
	"storyreel/internal/logging"
	"storyreel/internal/preflight"
	"storyreel/internal/project"
	"storyreel/internal/resolver"
	"storyreel/internal/timing"
)

// Compiler runs the build stages in order over one snapshot.
type Compiler struct {
	timing timing.Options
	logger *slog.Logger
}

// New constructs a compiler. A nil logger is replaced with a no-op one.
func New(timingOpts timing.Options, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Compiler{timing: timingOpts, logger: logger.With(logging.String("component", "compiler"))}
}

// Result carries every stage's output. Spec is nil unless the preflight
// report allows building; the intermediate data stays available either way
// so callers can show preview timings for partially broken projects.
type Result struct {
	Resolved   []resolver.ResolvedScene
	Timings    []timing.SceneTiming
	TotalMS    int64
	Background automation.Envelope
	Report     preflight.Report
	Spec       *RenderSpec
}

// Compile resolves, times, composes, and validates the snapshot, then emits
// the render spec when every blocking check passes.
func (c *Compiler) Compile(ctx context.Context, snap *project.Snapshot, opts preflight.Options) (Result, error) {
	if snap == nil {
		return Result{}, fmt.Errorf("compile: snapshot is nil")
	}

	resolved := resolver.ResolveAll(snap.Scenes)
	timings := timing.Plan(resolved, c.timing)
	total := timing.TotalDuration(timings)

	envelope := c.composeBackground(snap, resolved, timings, total)
	report := preflight.Validate(ctx, snap, resolved, timings, opts)

	result := Result{
		Resolved:   resolved,
		Timings:    timings,
		TotalMS:    total,
		Background: envelope,
		Report:     report,
	}

	c.logger.Debug("compile pass finished",
		slog.String("project", snap.ProjectID),
		slog.Int("scenes", len(resolved)),
		slog.Int64("total_ms", total),
		slog.Bool("can_build", report.CanBuild),
		slog.Int("errors", len(report.Errors)),
		slog.Int("warnings", len(report.Warnings)))

	if !report.CanBuild {
		return result, nil
	}

	spec, err := c.buildSpec(snap, result)
	if err != nil {
		return result, err
	}
	result.Spec = spec
	return result, nil
}

// composeBackground derives the project channel envelope: scene-scoped
// background spans force zero, automation entries duck, base volume holds
// elsewhere.
func (c *Compiler) composeBackground(snap *project.Snapshot, resolved []resolver.ResolvedScene, timings []timing.SceneTiming, total int64) automation.Envelope {
	if snap.ProjectBackground() == nil || total <= 0 {
		return automation.Envelope{}
	}

	var overrides []automation.Window
	for i, scene := range resolved {
		if scene.Audio.Background == nil {
			continue
		}
		overrides = append(overrides, automation.Window{
			StartMS: timings[i].StartMS,
			EndMS:   timings[i].StartMS + timings[i].DurationMS,
		})
	}

	base := snap.ProjectBackground().Volume
	if base <= 0 {
		base = snap.Settings.BackgroundVolume
	}

	return automation.Compose(automation.Input{
		TotalMS:    total,
		BaseVolume: base,
		Overrides:  overrides,
		Entries:    snap.Automation,
	})
}

func (c *Compiler) buildSpec(snap *project.Snapshot, result Result) (*RenderSpec, error) {
	spec := &RenderSpec{
		Version:   SpecVersion,
		ProjectID: snap.ProjectID,
		Output: OutputParams{
			Width:     snap.Settings.Width,
			Height:    snap.Settings.Height,
			FrameRate: snap.Settings.FrameRate,
			Codec:     snap.Settings.Codec,
		},
		TotalDurationMS: result.TotalMS,
	}

	for i, scene := range result.Resolved {
		t := result.Timings[i]
		compiled := SpecScene{
			Index:      t.Ordinal,
			StartMS:    t.StartMS,
			DurationMS: t.DurationMS,
			Visual:     VisualRef{Kind: scene.Visual.Kind, URL: scene.Visual.URL},
			Voices:     sceneVoices(scene, t),
			Effects:    sceneEffects(scene, t),
		}
		spec.Scenes = append(spec.Scenes, compiled)
	}

	spec.Channels = c.buildChannels(snap, result)

	hash, err := ComputeHash(spec)
	if err != nil {
		return nil, err
	}
	spec.Hash = hash
	return spec, nil
}

// sceneVoices places the scene's voice clips absolutely: the narration clip
// at scene start, comic utterance clips back-to-back from scene start.
func sceneVoices(scene resolver.ResolvedScene, t timing.SceneTiming) []VoiceClip {
	if scene.Audio.Narration != nil {
		clip := scene.Audio.Narration
		return []VoiceClip{{URL: clip.URL, StartMS: t.StartMS, DurationMS: clip.DurationMS, Volume: 1}}
	}

	var voices []VoiceClip
	cursor := t.StartMS
	for _, clip := range scene.Audio.UtteranceClips {
		voices = append(voices, VoiceClip{URL: clip.URL, StartMS: cursor, DurationMS: clip.DurationMS, Volume: 1})
		cursor += clip.DurationMS
	}
	return voices
}

func sceneEffects(scene resolver.ResolvedScene, t timing.SceneTiming) []EffectCue {
	var cues []EffectCue
	for _, cue := range scene.Audio.Effects {
		cues = append(cues, EffectCue{
			URL:     cue.URL,
			StartMS: t.StartMS + cue.StartMS,
			EndMS:   t.StartMS + cue.EndMS,
			Volume:  cue.Volume,
		})
	}
	return cues
}

// buildChannels emits the project background channel with its composed
// envelope plus one constant-volume channel per scene-scoped track.
func (c *Compiler) buildChannels(snap *project.Snapshot, result Result) []AudioChannel {
	var channels []AudioChannel

	if track := snap.ProjectBackground(); track != nil {
		channels = append(channels, AudioChannel{
			ID:       "background_project",
			URL:      track.URL,
			Loop:     track.Loop,
			StartMS:  0,
			EndMS:    result.TotalMS,
			Envelope: result.Background,
		})
	}

	for i, scene := range result.Resolved {
		track := scene.Audio.Background
		if track == nil {
			continue
		}
		t := result.Timings[i]
		volume := track.Volume
		if volume <= 0 {
			volume = 1
		}
		channels = append(channels, AudioChannel{
			ID:       fmt.Sprintf("background_scene_%d", t.Ordinal),
			URL:      track.URL,
			Loop:     track.Loop,
			StartMS:  t.StartMS,
			EndMS:    t.StartMS + t.DurationMS,
			Envelope: automation.Constant(t.DurationMS, volume),
		})
	}

	return channels
}

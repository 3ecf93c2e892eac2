package timing

import (
	"golang.org/x/text/unicode/norm"

	"storyreel/internal/project"
	"storyreel/internal/resolver"
)

// DurationSource identifies which precedence tier decided a scene's duration.
type DurationSource string

const (
	SourceVideoClip  DurationSource = "video_clip"
	SourceUtterances DurationSource = "utterances"
	SourceNarration  DurationSource = "narration_clip"
	SourceManual     DurationSource = "manual"
	SourceEstimate   DurationSource = "estimate"
	SourceDefault    DurationSource = "default"
)

// Options tunes the duration tiers. Zero values fall back to defaults.
type Options struct {
	TrailingPadMS int64
	MSPerChar     int64
	MinEstimateMS int64
	DefaultMS     int64
}

const (
	defaultTrailingPadMS = 500
	defaultMSPerChar     = 300
	defaultMinEstimateMS = 2000
	defaultSceneMS       = 3000
)

func (o Options) withDefaults() Options {
	if o.TrailingPadMS <= 0 {
		o.TrailingPadMS = defaultTrailingPadMS
	}
	if o.MSPerChar <= 0 {
		o.MSPerChar = defaultMSPerChar
	}
	if o.MinEstimateMS <= 0 {
		o.MinEstimateMS = defaultMinEstimateMS
	}
	if o.DefaultMS <= 0 {
		o.DefaultMS = defaultSceneMS
	}
	return o
}

// SceneTiming is one scene's placement on the absolute timeline.
type SceneTiming struct {
	Ordinal    int
	StartMS    int64
	DurationMS int64
	Source     DurationSource
}

// Plan assigns a duration and start offset to every resolved scene. Scenes
// are laid back-to-back in declared order with no gaps. Scenes whose visual
// failed to resolve still get a duration from the lower tiers so preflight
// can show a complete preview timeline.
func Plan(scenes []resolver.ResolvedScene, opts Options) []SceneTiming {
	opts = opts.withDefaults()

	timings := make([]SceneTiming, 0, len(scenes))
	var cursor int64
	for _, scene := range scenes {
		duration, source := Duration(scene, opts)
		timings = append(timings, SceneTiming{
			Ordinal:    scene.Scene.Ordinal,
			StartMS:    cursor,
			DurationMS: duration,
			Source:     source,
		})
		cursor += duration
	}
	return timings
}

// TotalDuration sums the planned durations.
func TotalDuration(timings []SceneTiming) int64 {
	var total int64
	for _, t := range timings {
		total += t.DurationMS
	}
	return total
}

// Duration resolves one scene's duration under the ranked precedence:
// video clip length, comic utterance sum, narration clip length, manual
// override, narration-text estimate, fixed default. Voice and video lengths
// outrank the manual override because a clip must never be truncated.
func Duration(scene resolver.ResolvedScene, opts Options) (int64, DurationSource) {
	opts = opts.withDefaults()

	if scene.Scene.Mode == project.ModeVideo && scene.VisualErr == nil && scene.Visual.DurationMS > 0 {
		return scene.Visual.DurationMS, SourceVideoClip
	}

	if scene.Scene.Mode == project.ModeComic && len(scene.Audio.UtteranceClips) > 0 {
		var sum int64
		for _, clip := range scene.Audio.UtteranceClips {
			sum += clip.DurationMS
		}
		return sum + opts.TrailingPadMS, SourceUtterances
	}

	if scene.Audio.Narration != nil {
		return scene.Audio.Narration.DurationMS + opts.TrailingPadMS, SourceNarration
	}

	if scene.Scene.ManualDurationMS > 0 {
		return scene.Scene.ManualDurationMS, SourceManual
	}

	if chars := narrationLength(scene.Scene.Narration); chars > 0 {
		estimate := int64(chars) * opts.MSPerChar
		if estimate < opts.MinEstimateMS {
			estimate = opts.MinEstimateMS
		}
		return estimate, SourceEstimate
	}

	return opts.DefaultMS, SourceDefault
}

// narrationLength counts characters on the NFC-normalized narration so
// decomposed combining marks do not inflate the estimate.
func narrationLength(text string) int {
	count := 0
	for range norm.NFC.String(text) {
		count++
	}
	return count
}

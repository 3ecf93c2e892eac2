package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"storyreel/internal/project"
	"storyreel/internal/resolver"
	"storyreel/internal/timing"
)

// Options controls optional validation behavior.
type Options struct {
	// CheckReachability enables network probing of resolved visual
	// locators. Without it, reachability problems surface at render time.
	CheckReachability bool
	// Prober performs the probes; required when CheckReachability is set.
	Prober Prober
	// ProbeConcurrency bounds the probe fan-out; zero means the default.
	ProbeConcurrency int
}

// Validate checks a resolved and timed snapshot for completeness. All scenes
// are examined even after the first failure so one preflight run reports
// everything the user must fix. The same input always yields the same
// findings in the same order.
func Validate(ctx context.Context, snap *project.Snapshot, scenes []resolver.ResolvedScene, timings []timing.SceneTiming, opts Options) Report {
	report := Report{CanBuild: true}

	sourceByOrdinal := make(map[int]timing.DurationSource, len(timings))
	for _, t := range timings {
		sourceByOrdinal[t.Ordinal] = t.Source
	}

	var probeTargets []probeTarget
	for _, scene := range scenes {
		ordinal := scene.Scene.Ordinal

		if scene.VisualErr != nil {
			var missing *resolver.VisualMissingError
			if errors.As(scene.VisualErr, &missing) {
				report.addError(Finding{
					Code:         missingCode(missing.Mode),
					SceneOrdinal: ordinal,
					Message:      fmt.Sprintf("scene %d has no eligible %s asset", ordinal, missing.Mode),
					Hint:         missingHint(missing.Mode),
				})
			} else {
				report.addError(Finding{
					Code:         CodeVisualURLInvalid,
					SceneOrdinal: ordinal,
					Message:      scene.VisualErr.Error(),
				})
			}
		} else {
			if !validLocator(scene.Visual.URL) {
				report.addError(Finding{
					Code:         CodeVisualURLInvalid,
					SceneOrdinal: ordinal,
					Message:      fmt.Sprintf("scene %d visual locator %q is empty or malformed", ordinal, scene.Visual.URL),
					Hint:         "regenerate the asset so storage records a valid locator",
				})
			} else if opts.CheckReachability {
				probeTargets = append(probeTargets, probeTarget{ordinal: ordinal, url: scene.Visual.URL})
			}
		}

		// An eligible asset of another kind alongside the declared mode is
		// an upstream activation bug, not something the user can edit away.
		if kinds := resolver.ConflictingKinds(scene.Scene); len(kinds) > 0 {
			report.addError(Finding{
				Code:         CodeVisualConflict,
				SceneOrdinal: ordinal,
				Message:      fmt.Sprintf("scene %d declares %s but also carries eligible %s", ordinal, scene.Scene.Mode, joinKinds(kinds)),
				Hint:         "internal asset-activation inconsistency; report this instead of editing the scene",
			})
		}

		if source := sourceByOrdinal[ordinal]; warnMissingNarration(scene, source) {
			report.addWarning(Finding{
				Code:         CodeNarrationAudioMissing,
				SceneOrdinal: ordinal,
				Message:      fmt.Sprintf("scene %d has narration text but no completed voice clip; %s", ordinal, narrationFallbackNote(source)),
				Hint:         "generate narration audio to lock the scene duration to the voice track",
			})
		}
	}

	if snap.Settings.BackgroundWanted && snap.ProjectBackground() == nil {
		report.addWarning(Finding{
			Code:    CodeBackgroundMissing,
			Message: "background music is enabled but no active project track exists",
			Hint:    "generate or activate a background track, or disable background music",
		})
	}

	if opts.CheckReachability && len(probeTargets) > 0 {
		for _, failure := range probeAll(ctx, opts.Prober, probeTargets, opts.ProbeConcurrency) {
			report.addError(Finding{
				Code:         CodeVisualURLUnreachable,
				SceneOrdinal: failure.ordinal,
				Message:      fmt.Sprintf("scene %d visual is unreachable: %v", failure.ordinal, failure.err),
				Hint:         "regenerate the asset or wait for storage replication, then retry",
			})
		}
	}

	return report
}

func missingCode(mode project.VisualMode) Code {
	switch mode {
	case project.ModeComic:
		return CodeVisualComicMissing
	case project.ModeVideo:
		return CodeVisualVideoMissing
	default:
		return CodeVisualImageMissing
	}
}

func missingHint(mode project.VisualMode) string {
	switch mode {
	case project.ModeVideo:
		return "wait for video generation to complete, or regenerate the clip"
	case project.ModeComic:
		return "generate a comic panel for this scene, or switch the scene mode"
	default:
		return "generate an image for this scene, or switch the scene mode"
	}
}

// warnMissingNarration flags non-comic scenes that will render with estimated
// timing because no voice clip exists for their narration text.
func warnMissingNarration(scene resolver.ResolvedScene, source timing.DurationSource) bool {
	if scene.Scene.Mode == project.ModeComic {
		return false
	}
	if strings.TrimSpace(scene.Scene.Narration) == "" {
		return false
	}
	return source == timing.SourceEstimate || source == timing.SourceDefault || source == timing.SourceManual
}

// narrationFallbackNote explains how the scene will be timed without a voice
// clip, which depends on where the duration actually came from.
func narrationFallbackNote(source timing.DurationSource) string {
	if source == timing.SourceManual {
		return "the manual duration override applies"
	}
	return "duration falls back to a text estimate"
}

func validLocator(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return false
	}
	switch parsed.Scheme {
	case "http", "https", "gs", "s3":
		return parsed.Host != ""
	default:
		return false
	}
}

func joinKinds(kinds []project.VisualMode) string {
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, string(kind))
	}
	return strings.Join(parts, ", ")
}

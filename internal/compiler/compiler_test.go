package compiler_test

import (
	"context"
	"testing"

	"storyreel/internal/compiler"
	"storyreel/internal/preflight"
	"storyreel/internal/project"
	"storyreel/internal/testsupport"
	"storyreel/internal/timing"
)

func newCompiler() *compiler.Compiler {
	return compiler.New(timing.Options{}, nil)
}

func TestCompileEmitsSpecForCleanProject(t *testing.T) {
	snap := testsupport.NewSnapshot("p1",
		testsupport.NarratedScene("first scene", 2000),
		testsupport.VideoScene(5000),
	)

	result, err := newCompiler().Compile(context.Background(), snap, preflight.Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !result.Report.CanBuild {
		t.Fatalf("CanBuild = false, errors: %v", result.Report.Errors)
	}
	if result.Spec == nil {
		t.Fatal("spec not emitted for a buildable project")
	}
	if result.Spec.Hash == "" {
		t.Fatal("spec hash not computed")
	}
	if result.Spec.TotalDurationMS != 7500 {
		t.Fatalf("total = %d, want 7500 (2500 narration+pad, 5000 video)", result.Spec.TotalDurationMS)
	}
	if len(result.Spec.Scenes) != 2 {
		t.Fatalf("got %d spec scenes, want 2", len(result.Spec.Scenes))
	}
	if result.Spec.Scenes[1].StartMS != 2500 {
		t.Fatalf("scene 2 starts at %d, want 2500", result.Spec.Scenes[1].StartMS)
	}
	voices := result.Spec.Scenes[0].Voices
	if len(voices) != 1 || voices[0].StartMS != 0 || voices[0].DurationMS != 2000 {
		t.Fatalf("scene 1 voices = %+v, want one narration clip at scene start", voices)
	}
}

func TestCompileEndToEndBrokenThirdScene(t *testing.T) {
	// Image scene with narration text but no voice clip, a comic scene with
	// two dialogue lines, and a video scene whose clip never completed.
	sceneOne := testsupport.ImageScene("a short opening line here")
	sceneTwo := testsupport.ComicScene(2000, 1500)
	sceneThree := project.Scene{Mode: project.ModeVideo}
	snap := testsupport.NewSnapshot("p1", sceneOne, sceneTwo, sceneThree)

	result, err := newCompiler().Compile(context.Background(), snap, preflight.Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if result.Report.CanBuild {
		t.Fatal("CanBuild = true with a missing video clip")
	}
	if result.Spec != nil {
		t.Fatal("spec emitted despite a blocking error")
	}
	if len(result.Report.Errors) != 1 || result.Report.Errors[0].Code != preflight.CodeVisualVideoMissing {
		t.Fatalf("errors = %+v, want one VISUAL_VIDEO_MISSING", result.Report.Errors)
	}
	if result.Report.Errors[0].SceneOrdinal != 3 {
		t.Fatalf("error attributed to scene %d, want 3", result.Report.Errors[0].SceneOrdinal)
	}
	if len(result.Report.Warnings) != 1 || result.Report.Warnings[0].Code != preflight.CodeNarrationAudioMissing {
		t.Fatalf("warnings = %+v, want one NARRATION_AUDIO_MISSING", result.Report.Warnings)
	}

	// The first two scenes still carry valid preview timings.
	if len(result.Timings) != 3 {
		t.Fatalf("got %d timings, want 3", len(result.Timings))
	}
	if result.Timings[0].Source != timing.SourceEstimate {
		t.Fatalf("scene 1 source = %s, want %s", result.Timings[0].Source, timing.SourceEstimate)
	}
	if result.Timings[1].DurationMS != 4000 {
		t.Fatalf("scene 2 duration = %d, want 4000 (2000+1500+500 pad)", result.Timings[1].DurationMS)
	}
	if result.Timings[1].StartMS != result.Timings[0].DurationMS {
		t.Fatalf("scene 2 start = %d, want %d", result.Timings[1].StartMS, result.Timings[0].DurationMS)
	}
	for i := 1; i < len(result.Timings); i++ {
		if result.Timings[i].StartMS != result.Timings[i-1].StartMS+result.Timings[i-1].DurationMS {
			t.Fatalf("timeline not contiguous at scene %d", i+1)
		}
	}
}

func TestCompileBackgroundChannelAndOverrides(t *testing.T) {
	sceneOne := testsupport.NarratedScene("first", 2000)
	sceneTwo := testsupport.ImageScene("")
	sceneTwo.ManualDurationMS = 3000
	sceneTwo.Background = &project.BackgroundTrack{
		ID:     "scene-bgm",
		URL:    "https://assets.example.com/scene.mp3",
		Volume: 0.6,
		Active: true,
	}
	snap := testsupport.NewSnapshot("p1", sceneOne, sceneTwo)
	snap.Background = &project.BackgroundTrack{
		ID:     "project-bgm",
		URL:    "https://assets.example.com/project.mp3",
		Volume: 0.3,
		Loop:   true,
		Active: true,
	}

	result, err := newCompiler().Compile(context.Background(), snap, preflight.Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if result.Spec == nil {
		t.Fatalf("spec not emitted, errors: %v", result.Report.Errors)
	}

	if len(result.Spec.Channels) != 2 {
		t.Fatalf("got %d channels, want project + scene", len(result.Spec.Channels))
	}
	projectChannel := result.Spec.Channels[0]
	if projectChannel.ID != "background_project" || !projectChannel.Loop {
		t.Fatalf("project channel = %+v", projectChannel)
	}

	// Scene 2 spans [2500, 5500]; the project channel is forced silent there.
	if got := result.Background.At(2400); got != 0.3 {
		t.Errorf("At(2400) = %v, want base 0.3 before the override", got)
	}
	if got := result.Background.At(3000); got != 0 {
		t.Errorf("At(3000) = %v, want 0 while the scene track plays", got)
	}

	sceneChannel := result.Spec.Channels[1]
	if sceneChannel.ID != "background_scene_2" {
		t.Fatalf("scene channel id = %s", sceneChannel.ID)
	}
	if sceneChannel.StartMS != 2500 || sceneChannel.EndMS != 5500 {
		t.Fatalf("scene channel spans [%d, %d], want [2500, 5500]", sceneChannel.StartMS, sceneChannel.EndMS)
	}
	if got := sceneChannel.Envelope.At(0); got != 0.6 {
		t.Fatalf("scene channel volume = %v, want 0.6", got)
	}
}

func TestCompileHashStability(t *testing.T) {
	build := func() *compiler.RenderSpec {
		snap := testsupport.NewSnapshot("p1", testsupport.NarratedScene("stable", 2000))
		result, err := newCompiler().Compile(context.Background(), snap, preflight.Options{})
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		if result.Spec == nil {
			t.Fatalf("spec not emitted, errors: %v", result.Report.Errors)
		}
		return result.Spec
	}

	first := build()
	second := build()
	if first.Hash != second.Hash {
		t.Fatalf("hash changed between identical compiles: %s vs %s", first.Hash, second.Hash)
	}

	changed := testsupport.NewSnapshot("p1", testsupport.NarratedScene("stable", 2500))
	result, err := newCompiler().Compile(context.Background(), changed, preflight.Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if result.Spec.Hash == first.Hash {
		t.Fatal("hash unchanged after a timing change")
	}
}

func TestCompileEffectsPlacedAbsolutely(t *testing.T) {
	sceneOne := testsupport.NarratedScene("first", 2000)
	sceneTwo := testsupport.ImageScene("")
	sceneTwo.ManualDurationMS = 3000
	sceneTwo.Effects = []project.SoundEffectCue{{
		ID:      "whoosh",
		URL:     "https://assets.example.com/whoosh.mp3",
		StartMS: 500,
		EndMS:   900,
		Volume:  0.8,
	}}
	snap := testsupport.NewSnapshot("p1", sceneOne, sceneTwo)

	result, err := newCompiler().Compile(context.Background(), snap, preflight.Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	effects := result.Spec.Scenes[1].Effects
	if len(effects) != 1 {
		t.Fatalf("got %d effects, want 1", len(effects))
	}
	// Scene 2 starts at 2500; the cue shifts from scene-relative to absolute.
	if effects[0].StartMS != 3000 || effects[0].EndMS != 3400 {
		t.Fatalf("effect spans [%d, %d], want [3000, 3400]", effects[0].StartMS, effects[0].EndMS)
	}
}

func TestCompileComicVoicesBackToBack(t *testing.T) {
	snap := testsupport.NewSnapshot("p1",
		testsupport.NarratedScene("first", 2000),
		testsupport.ComicScene(1000, 1500),
	)

	result, err := newCompiler().Compile(context.Background(), snap, preflight.Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	voices := result.Spec.Scenes[1].Voices
	if len(voices) != 2 {
		t.Fatalf("got %d voices, want 2", len(voices))
	}
	if voices[0].StartMS != 2500 || voices[1].StartMS != 3500 {
		t.Fatalf("voices start at %d and %d, want 2500 and 3500", voices[0].StartMS, voices[1].StartMS)
	}
}

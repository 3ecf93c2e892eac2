// Package automation composes the volume-over-time function for the
// project-level background channel. Three ranked sources contribute
// candidates at every instant - scene-level background overrides (forced
// zero), user-authored automation entries (faded envelopes), and the base
// volume - and the minimum candidate always wins, so a duck is never undone
// by a looser constraint. The result is a closed-form piecewise-linear
// envelope the renderer re-samples per frame.
package automation

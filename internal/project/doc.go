// Package project defines the immutable per-build snapshot of a project:
// scenes, their candidate visual and audio assets, background tracks, sound
// effect cues, and user-authored timeline automation entries. The snapshot is
// owned by the asset-generation subsystems; the compiler only reads it.
package project

// Package resolver selects, per scene, the single visual asset matching the
// scene's declared mode and the audio layers eligible for that mode. It is a
// pure stage: selection never mutates the snapshot and never substitutes a
// default when an asset is missing.
package resolver

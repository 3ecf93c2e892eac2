// Package compiler sequences the build stages - asset resolution, timing,
// audio automation composition, preflight validation - and emits the
// versioned, self-contained render specification handed to the external
// render service. The whole pass is a pure computation over one snapshot;
// no I/O happens between stages.
package compiler

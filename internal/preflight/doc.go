// Package preflight validates a resolved, timed snapshot before a render job
// is created. It collects every blocking error in one pass rather than
// stopping at the first, attributes each finding to a scene ordinal with a
// remediation hint, and never substitutes a default asset for a missing one.
// Reachability probing is optional and bounded; a probe timeout counts as
// unreachable, never as success.
package preflight

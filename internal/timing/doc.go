// Package timing computes scene durations under a single ranked precedence
// and lays scenes back-to-back on the absolute timeline. All callers route
// through Plan so no fallback chain is duplicated at call sites.
package timing

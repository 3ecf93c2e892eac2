// Package config loads, defaults, and validates the storyreel configuration
// file. All tunable behavior lives here as a closed set of typed fields;
// there are no ad hoc settings objects downstream.
package config

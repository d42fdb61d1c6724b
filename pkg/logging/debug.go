//go:build debug
// +build debug

package logging

// DefaultLevel is used when the configuration leaves log_level empty.
const DefaultLevel = LevelDebug

package search

import "errors"

// Sentinel errors surfaced by the orchestrator for non-configuration
// failure kinds (spec §7).
var (
	// ErrPathNotFound is returned when a supplied root does not exist.
	ErrPathNotFound = errors.New("search path does not exist")

	// ErrPathNotReadable is returned when a supplied root cannot be read.
	ErrPathNotReadable = errors.New("search path is not readable")
)

// ErrCancelled is returned when the caller's context is cancelled before
// Search completes. Partial results are discarded in this case.
var ErrCancelled = errors.New("search cancelled")

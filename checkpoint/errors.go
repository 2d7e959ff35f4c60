package checkpoint

import "errors"

// Common checkpoint errors.
var (
	// ErrNotFound is returned when no snapshot exists at a location.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrBadLocation is returned for malformed or foreign locations.
	ErrBadLocation = errors.New("invalid checkpoint location")
)

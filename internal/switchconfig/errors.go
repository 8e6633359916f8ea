package switchconfig

import "errors"

// Domain errors for the switchconfig package.
var (
	// ErrInvalidConfig is returned when a mapping document cannot be decoded,
	// and by Mapping.Resolve when some entries fail validation.
	ErrInvalidConfig = errors.New("switchconfig: invalid config")

	// ErrInvalidEntry is returned by Entry.Resolve for a malformed entry.
	ErrInvalidEntry = errors.New("switchconfig: invalid entry")

	// ErrNoSnapshot is returned by a Repository that holds no saved mapping.
	ErrNoSnapshot = errors.New("switchconfig: no snapshot")
)

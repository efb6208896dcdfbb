package manager

import "errors"

var (
	// ErrHasDependents is returned when deleting an entity that others still reference
	ErrHasDependents = errors.New("has dependents")

	// ErrInvalidToken is returned when a registration token cannot admit a node
	ErrInvalidToken = errors.New("invalid registration token")

	// ErrVolumeInUse is returned when a volume is attached to another VM
	ErrVolumeInUse = errors.New("volume in use")
)

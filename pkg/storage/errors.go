package storage

import (
	"errors"
	"fmt"

	"github.com/cuemby/virtplane/pkg/metrics"
)

var (
	// ErrNotFound is returned when no entity has the requested ID or key
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when an ID or unique key is already taken
	ErrAlreadyExists = errors.New("already exists")
)

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

func keyNotFound(kind, index string, key Key) error {
	return fmt.Errorf("%s with %s %s: %w", kind, index, key, ErrNotFound)
}

func idConflict(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrAlreadyExists)
}

func keyConflict(kind, index string, key Key) error {
	return fmt.Errorf("%s with %s %s: %w", kind, index, key, ErrAlreadyExists)
}

// resultOf classifies an error for store operation metrics
func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, ErrAlreadyExists):
		return metrics.ResultConflict
	default:
		return metrics.ResultError
	}
}

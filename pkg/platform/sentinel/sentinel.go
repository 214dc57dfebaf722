// Package sentinel defines the errors infrastructure layers report upward.
// Stores and cache tiers return these, optionally wrapped; services translate
// them into coded domain errors before anything reaches a handler.
package sentinel

import "errors"

var (
	// ErrNotFound reports that the entity does not exist in the store or tier.
	ErrNotFound = errors.New("not found")

	// ErrConflict reports that a concurrent writer won; the caller may retry
	// the whole transaction.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable reports that the store or tier is temporarily
	// unreachable.
	ErrUnavailable = errors.New("unavailable")
)

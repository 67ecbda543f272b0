package store

import "errors"

var (
	// ErrNotFound is returned when no document matches the
	// owner-scoped identifier.
	ErrNotFound = errors.New("document not found")

	// ErrNoValidUpdates is returned when an update request carries no
	// field from the mutable allow-list.
	ErrNoValidUpdates = errors.New("no valid fields to update")

	// ErrStorageWriteFailed is returned when rendered bytes could not
	// be placed on disk. No metadata row exists in that case.
	ErrStorageWriteFailed = errors.New("storage write failed")
)

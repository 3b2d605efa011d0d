package store

import "errors"

var (
	// ErrUnchanged is returned by AddSnapshot when the content matches the
	// newest stored snapshot of the policy.
	ErrUnchanged = errors.New("store: content unchanged")

	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("store: not found")
)

// Package apperr defines sentinel errors shared across packages.
package apperr

import "errors"

var (
	// ErrNotFound maps to a 404 from the tracker.
	ErrNotFound = errors.New("not found")
	// ErrAuth maps to a 401/403 from the tracker.
	ErrAuth = errors.New("authentication failed")
	// ErrRejected maps to any other 4xx: the tracker understood the
	// request and refused it (bad field, unknown type, schema mismatch).
	ErrRejected = errors.New("rejected by tracker")
)

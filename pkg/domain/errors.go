package domain

import "errors"

var (
	// ErrValidation indicates a missing or malformed client-supplied field.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a chat that is absent or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate chat title for the same owner.
	ErrConflict = errors.New("conflict")
)

package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrAlreadyConsumed indicates a single-use artifact was consumed by a
	// concurrent caller before this operation committed.
	ErrAlreadyConsumed = errors.New("repository: already consumed")
)

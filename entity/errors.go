package entity

import "errors"

var (
	// ErrStorageExhausted is returned when the object store reports it is out of space.
	ErrStorageExhausted = errors.New("object storage is full")

	// ErrAlreadyExists is returned when a file record violates a uniqueness constraint.
	ErrAlreadyExists = errors.New("file already exists")

	// ErrNotFound is returned when a stored object does not exist.
	ErrNotFound = errors.New("file not found")

	ErrInvalidSortField = errors.New("invalid sort field")
	ErrInvalidTags      = errors.New("invalid object tags")

	// ErrReconcileInProgress is returned when another sweep holds the bucket lock.
	ErrReconcileInProgress = errors.New("reconciliation already running")
)

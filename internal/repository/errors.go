package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStaleState is returned by conditional writes when the stored status
	// no longer matches the expected one.
	ErrStaleState = errors.New("entity state changed")

	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("entity already exists")
)

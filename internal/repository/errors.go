package repository

import "errors"

var (
	// ErrNotFound no matching row
	ErrNotFound = errors.New("not found")

	// ErrInvalidData malformed identifier or payload
	ErrInvalidData = errors.New("invalid data")

	// ErrDuplicate uniqueness violation
	ErrDuplicate = errors.New("duplicate record")
)

package store

import "errors"

var (
	ErrNotFound    = errors.New("task not found")
	ErrConflict    = errors.New("task was modified concurrently")
	ErrIDMismatch  = errors.New("task id does not match")
	ErrInvalidPage = errors.New("page and page size must be at least 1")
)

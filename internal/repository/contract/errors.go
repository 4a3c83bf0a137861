package contract

import "errors"

var (
	// ErrDuplicate is returned by Create methods when a unique constraint rejects the row.
	ErrDuplicate = errors.New("duplicate record")
	ErrNotFound  = errors.New("record not found")
)

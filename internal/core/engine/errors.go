package engine

import "errors"

// Engine-specific errors
var (
	ErrCapacityExceeded = errors.New("entity capacity exceeded")
	ErrNotFound         = errors.New("entity not found")
	ErrDuplicateID      = errors.New("entity ID already exists")
	ErrLayerNotFound    = errors.New("layer not found")
	ErrDuplicateLayer   = errors.New("layer ID already exists")
	ErrInvalidSpec      = errors.New("invalid entity spec")
	ErrInvalidConfig    = errors.New("invalid engine configuration")
	ErrBatchExhausted   = errors.New("batch cursor already completed")
)

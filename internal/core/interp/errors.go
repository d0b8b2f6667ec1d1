package interp

import "errors"

// Interpolator-specific errors
var (
	ErrInvalidSampleOrder = errors.New("sample timestamp is not after the last sample")
	ErrUnknownMethod      = errors.New("unknown interpolation method")
	ErrUnknownPolicy      = errors.New("unknown extrapolation policy")
)

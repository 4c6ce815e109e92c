package thread

import "errors"

var (
	// ErrInvalidConfig indicates the detection parameters are inconsistent.
	ErrInvalidConfig = errors.New("invalid detector config")
)

package engine

import "errors"

var (
	// ErrValidation indicates a request was rejected before any side effect.
	ErrValidation = errors.New("validation failed")

	// ErrNoBranch indicates the working tree is not on a branch to publish.
	ErrNoBranch = errors.New("no branch to publish")
)

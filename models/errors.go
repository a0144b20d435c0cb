package models

import "errors"

// ErrInvalidInput flags structurally malformed input: negative prices or
// quantities, or a range grammar broken beyond the documented fallback.
// Callers recover by correcting the input; it is never fatal to the process.
var ErrInvalidInput = errors.New("invalid input")

// ErrUpstreamUnavailable flags a failed call to the external platform API.
// Geographic enrichment is additive, so callers degrade to an empty tree
// instead of failing the whole aggregate.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

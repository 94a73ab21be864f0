package domain

import "errors"

// ErrInvalidRequest indicates that an evaluation request contains invalid data.
var ErrInvalidRequest = errors.New("invalid evaluation request")

// ErrInvalidResult indicates that an evaluation result violates a bound invariant.
var ErrInvalidResult = errors.New("invalid evaluation result")

// ErrInvalidConfig indicates that the service configuration is invalid.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrEvaluationFailed indicates that no usable signal could be produced,
// not even by the coarse fallback. This is the only hard failure an
// evaluation can surface.
var ErrEvaluationFailed = errors.New("evaluation failed: no signal could be produced")

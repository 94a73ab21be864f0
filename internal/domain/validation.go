package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance used for struct validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of any domain value and wraps failures
// in ErrInvalidResult so callers can test with errors.Is.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	return nil
}

// ValidateInput checks the struct tags of an inbound value and wraps
// failures in ErrInvalidRequest, marking them as client errors.
func ValidateInput(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Validate checks the bound invariants of a finished evaluation:
// similarity and confidence in [0,1], score in [0,6].
func (r EvaluationResult) Validate() error {
	return Validate(r)
}

package election

import (
	"errors"
	"fmt"
)

// ValidationError is returned for malformed or out-of-range input. It is
// always detected before any algorithm runs.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.Message, e.Field)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// AlgorithmError is returned when a named algorithm variant could not
// produce a result.
type AlgorithmError struct {
	Algorithm AlgorithmKind
	Message   string
}

func (e *AlgorithmError) Error() string {
	return fmt.Sprintf("algorithm error: %s (algorithm: %s)", e.Message, e.Algorithm)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAlgorithmError reports whether err is (or wraps) an AlgorithmError.
func IsAlgorithmError(err error) bool {
	var ae *AlgorithmError
	return errors.As(err, &ae)
}

package batch

import (
	"errors"
	"fmt"
)

// ErrConfiguration indicates an invalid packing limit or policy.
// It is fatal: retrying with the same configuration cannot succeed.
var ErrConfiguration = errors.New("invalid batch configuration")

// ConfigurationError describes which setting was rejected.
type ConfigurationError struct {
	Field string
	Value any
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %s = %v", ErrConfiguration, e.Field, e.Value)
}

// Unwrap returns ErrConfiguration so callers can use errors.Is.
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

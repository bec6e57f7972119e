package optim

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrInvalidConfiguration = errors.New("invalid optimizer configuration")
	ErrSparseUnsupported    = errors.New("sparse gradient not supported")
	ErrShapeMismatch        = errors.New("shape mismatch")
	ErrIncompleteState      = errors.New("incomplete optimizer state")
	ErrOptimizerMismatch    = errors.New("checkpoint belongs to a different optimizer")
)

// ConfigError reports a hyperparameter outside its valid range.
//
// errors.Is(err, ErrInvalidConfiguration) holds for every ConfigError.
type ConfigError struct {
	Field  string // Offending setting (e.g., "learning rate")
	Value  any    // Rejected value
	Reason string // Constraint that was violated
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s: %s", ErrInvalidConfiguration, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s %v: %s", ErrInvalidConfiguration, e.Field, e.Value, e.Reason)
}

// Is reports whether target is ErrInvalidConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// SparseUnsupportedError reports a sparse gradient combined with a setting
// that needs dense gradients.
//
// errors.Is(err, ErrSparseUnsupported) holds for every SparseUnsupportedError.
type SparseUnsupportedError struct {
	Optimizer string // Optimizer name (e.g., "MADGRAD")
	Param     string // Parameter name
	Note      string // Setting that requires a dense gradient
}

// Error implements the error interface.
func (e *SparseUnsupportedError) Error() string {
	msg := fmt.Sprintf("%s does not support sparse gradient", e.Optimizer)
	if e.Param != "" {
		msg += fmt.Sprintf(" for parameter %q", e.Param)
	}
	if e.Note != "" {
		msg += fmt.Sprintf(" (%s)", e.Note)
	}
	return msg
}

// Is reports whether target is ErrSparseUnsupported.
func (e *SparseUnsupportedError) Is(target error) bool {
	return target == ErrSparseUnsupported
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every NotFoundError via errors.Is.
	ErrNotFound = errors.New("not found")

	// ErrConfigIncomplete marks a rule that cannot produce a date yet.
	// It is informational: the rule stays dormant and no failure is logged.
	ErrConfigIncomplete = errors.New("rule configuration incomplete")

	// ErrDateOverflow is returned when date arithmetic leaves the supported range.
	ErrDateOverflow = errors.New("date overflow")
)

// ValidationError rejects input before any mutation happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing schedule, rule, event or deadline.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, ErrNotFound)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// EvaluationFailure wraps an error raised while evaluating a single rule.
type EvaluationFailure struct {
	RuleID string
	Cause  error
}

func (e *EvaluationFailure) Error() string {
	return fmt.Sprintf("evaluating rule %s: %v", e.RuleID, e.Cause)
}

func (e *EvaluationFailure) Unwrap() error {
	return e.Cause
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

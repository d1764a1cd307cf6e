package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing job, candidate or session.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks a request with a bad parameter shape.
	ErrValidation = errors.New("validation failed")

	// ErrIterationLimit is returned when the agent loop exhausts its step budget.
	ErrIterationLimit = errors.New("iteration limit exceeded")
)

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

func Validation(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

// ProviderError wraps a failure from an embedding, LLM or vector index call.
type ProviderError struct {
	Provider  string
	Op        string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// EvaluationParseError is returned when the scorer output cannot be read as an evaluation.
type EvaluationParseError struct {
	Raw string
	Err error
}

func (e *EvaluationParseError) Error() string {
	return fmt.Sprintf("failed to parse evaluation response: %v", e.Err)
}

func (e *EvaluationParseError) Unwrap() error {
	return e.Err
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

func IsParse(err error) bool {
	var pe *EvaluationParseError
	return errors.As(err, &pe)
}

// IsRetryable reports whether err is a provider failure worth another attempt.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

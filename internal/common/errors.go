// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Gate errors.
	ErrInsufficientFunds = errors.New("insufficient token balance")

	// Resolution errors.
	ErrEmptyQuery              = errors.New("empty diagnosis query")
	ErrAllProvidersUnavailable = errors.New("no AI provider available")
	ErrMalformedResponse       = errors.New("provider response could not be parsed")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// RetryableError wraps a provider failure with its classification. Retryable
// failures (timeouts, 429, 5xx, a text-only backend handed an image request)
// let the router fall through to the next adapter; non-retryable failures
// abort the whole route.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a failure should move the router to the next
// adapter. Unclassified errors are treated as retryable: a broken provider
// must not prevent a healthy one from answering.
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}
	return true
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

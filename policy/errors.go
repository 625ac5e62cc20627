package policy

import (
	"errors"
	"fmt"
)

// Sentinel errors for evaluation requests.
var (
	// ErrUnauthorized indicates the API key was rejected.
	ErrUnauthorized = errors.New("policy API rejected credentials")

	// ErrRateLimited indicates the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable indicates the policy service is unavailable.
	ErrUnavailable = errors.New("policy service unavailable")

	// ErrInvalidRequest indicates the request was malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrPayloadTooLarge indicates the batch exceeded the service's size limit.
	ErrPayloadTooLarge = errors.New("request exceeds size limit")

	// ErrTimeout indicates the request timed out.
	ErrTimeout = errors.New("request timed out")

	// ErrMalformedResponse indicates the service returned a body that could
	// not be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// Error wraps evaluation failures with context.
type Error struct {
	Op        string // Operation that failed ("evaluate")
	RequestID string // Request id sent to the service
	Status    int    // HTTP status, 0 if no response was received
	Err       error  // Underlying error
	Retryable bool   // Whether the error is likely transient
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.RequestID, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.RequestID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var polErr *Error
	if errors.As(err, &polErr) {
		return polErr.Retryable
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsAuthError checks if an error is authentication-related.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

package errors

import (
	stdErrors "errors"
	"fmt"
	"time"
)

// RateLimitError is returned when the API kept answering 429 after every retry.
type RateLimitError struct {
	Message    string
	Attempts   int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// NewRateLimitError creates a new RateLimitError with the given message
func NewRateLimitError(message string) *RateLimitError {
	return &RateLimitError{Message: message}
}

// NewRateLimitErrorWithRetry creates a RateLimitError that records how many attempts
// were made and the last server-declared wait.
func NewRateLimitErrorWithRetry(message string, attempts int, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Message: message, Attempts: attempts, RetryAfter: retryAfter}
}

// IsRateLimitError checks if error is a RateLimitError
func IsRateLimitError(err error) bool {
	var rateErr *RateLimitError
	return stdErrors.As(err, &rateErr)
}

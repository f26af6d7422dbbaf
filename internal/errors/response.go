package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrNoResults is returned when a search succeeded but matched nothing.
// It is a normal outcome, not a failure.
var ErrNoResults = stdErrors.New("no results")

// ErrDisabled is returned when no Discogs credential is configured.
var ErrDisabled = stdErrors.New("discogs disabled: no credentials configured")

// UnauthorizedError represents a rejected or expired credential (HTTP 401).
type UnauthorizedError struct {
	// Credential is a redacted description of the credential that was rejected.
	Credential string
}

func (e *UnauthorizedError) Error() string {
	if e.Credential != "" {
		return fmt.Sprintf("unauthorized: credential %s rejected", e.Credential)
	}
	return "unauthorized"
}

// NewUnauthorizedError creates an UnauthorizedError for a redacted credential.
func NewUnauthorizedError(redacted string) *UnauthorizedError {
	return &UnauthorizedError{Credential: redacted}
}

// IsUnauthorized reports whether err is an UnauthorizedError (even when wrapped).
func IsUnauthorized(err error) bool {
	var authErr *UnauthorizedError
	return stdErrors.As(err, &authErr)
}

// InvalidResponseError is an unexpected status code or an undecodable body.
type InvalidResponseError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *InvalidResponseError) Error() string {
	msg := "invalid response"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidResponseError) Unwrap() error {
	return e.Err
}

// NewInvalidStatusError creates an InvalidResponseError for an unexpected status code.
func NewInvalidStatusError(statusCode int, body string) *InvalidResponseError {
	return &InvalidResponseError{StatusCode: statusCode, Reason: body}
}

// NewDecodeError creates an InvalidResponseError for a body that could not be decoded.
func NewDecodeError(err error) *InvalidResponseError {
	return &InvalidResponseError{Reason: "decode body", Err: err}
}

// IsInvalidResponse reports whether err is an InvalidResponseError.
func IsInvalidResponse(err error) bool {
	var respErr *InvalidResponseError
	return stdErrors.As(err, &respErr)
}

// NetworkError wraps a transport-level failure (DNS, TLS, connection).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError wraps cause as a NetworkError.
func NewNetworkError(cause error) *NetworkError {
	return &NetworkError{Err: cause}
}

// IsNetworkError reports whether err is a NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return stdErrors.As(err, &netErr)
}

// IsNoResults reports whether err is (or wraps) ErrNoResults.
func IsNoResults(err error) bool {
	return stdErrors.Is(err, ErrNoResults)
}

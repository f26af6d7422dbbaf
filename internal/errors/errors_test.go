package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
	"time"
)

func TestRateLimitError(t *testing.T) {
	err := NewRateLimitError("slow down")

	if err.Error() != "slow down" {
		t.Fatalf("Error message = %q, want %q", err.Error(), "slow down")
	}

	if !IsRateLimitError(err) {
		t.Fatalf("IsRateLimitError returned false for RateLimitError")
	}

	wrapped := fmt.Errorf("search: %w", err)
	if !IsRateLimitError(wrapped) {
		t.Fatalf("IsRateLimitError returned false for wrapped RateLimitError")
	}
}

func TestRateLimitErrorWithRetry(t *testing.T) {
	tests := []struct {
		name     string
		wait     time.Duration
		expected string
	}{
		{name: "zero wait", wait: 0, expected: "rate limited"},
		{name: "1 second", wait: time.Second, expected: "rate limited (retry after 1s)"},
		{name: "1 minute", wait: time.Minute, expected: "rate limited (retry after 1m0s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRateLimitErrorWithRetry("rate limited", 4, tt.wait)
			if err.Error() != tt.expected {
				t.Fatalf("Error message = %q, want %q", err.Error(), tt.expected)
			}
			if err.Attempts != 4 {
				t.Fatalf("Attempts = %d, want 4", err.Attempts)
			}
		})
	}
}

func TestUnauthorizedError(t *testing.T) {
	err := NewUnauthorizedError("abcd…")

	if err.Error() != "unauthorized: credential abcd… rejected" {
		t.Fatalf("Error message = %q", err.Error())
	}
	if !IsUnauthorized(stdErrors.Join(err, stdErrors.New("context"))) {
		t.Fatalf("IsUnauthorized returned false for joined UnauthorizedError")
	}
	if IsUnauthorized(NewRateLimitError("x")) {
		t.Fatalf("IsUnauthorized returned true for RateLimitError")
	}
}

func TestInvalidResponseError(t *testing.T) {
	statusErr := NewInvalidStatusError(500, "oops")
	if statusErr.Error() != "invalid response (HTTP 500): oops" {
		t.Fatalf("Error message = %q", statusErr.Error())
	}

	cause := stdErrors.New("unexpected EOF")
	decodeErr := NewDecodeError(cause)
	if !stdErrors.Is(decodeErr, cause) {
		t.Fatalf("decode error should unwrap to its cause")
	}
	if !IsInvalidResponse(fmt.Errorf("release 1: %w", decodeErr)) {
		t.Fatalf("IsInvalidResponse returned false for wrapped decode error")
	}
}

func TestNetworkError(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := NewNetworkError(cause)

	if !IsNetworkError(err) {
		t.Fatalf("IsNetworkError returned false")
	}
	if !stdErrors.Is(err, cause) {
		t.Fatalf("NetworkError should unwrap to its cause")
	}
	if err.Error() != "network error: connection refused" {
		t.Fatalf("Error message = %q", err.Error())
	}
}

func TestIsNoResults(t *testing.T) {
	if !IsNoResults(fmt.Errorf("barcode 123: %w", ErrNoResults)) {
		t.Fatalf("IsNoResults returned false for wrapped ErrNoResults")
	}
	if IsNoResults(ErrDisabled) {
		t.Fatalf("IsNoResults returned true for ErrDisabled")
	}
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestIsConfigurationError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ConfigurationError{Key: "nope", Reason: "not registered"})
	if !IsConfigurationError(err) {
		t.Error("Expected IsConfigurationError to return true for wrapped configuration error")
	}

	if IsConfigurationError(NewUpstreamError("bad", 500, nil)) {
		t.Error("Expected IsConfigurationError to return false for upstream error")
	}
}

func TestIsRetryableError(t *testing.T) {
	if !IsRetryableError(NewUpstreamError("server error", 503, nil)) {
		t.Error("Expected 5xx upstream error to be retryable")
	}
	if IsRetryableError(NewUpstreamError("bad request", 400, nil)) {
		t.Error("Expected 4xx upstream error to not be retryable")
	}
}

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{name: "deadline", err: fmt.Errorf("post: %w", context.DeadlineExceeded), want: ErrorTypeTimeout},
		{name: "dial", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, want: ErrorTypeNetwork},
		{name: "typed passthrough", err: NewCircuitOpenError("chat", nil), want: ErrorTypeCircuitOpen},
		{name: "other", err: errors.New("boom"), want: ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTransportError(tt.err)
			if got.Type != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got.Type)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := NewUpstreamError("wrapped", 502, originalErr)
	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Expected error to unwrap to original error")
	}
	if wrappedErr.Error() != "wrapped: original error" {
		t.Errorf("Unexpected message %q", wrappedErr.Error())
	}
}

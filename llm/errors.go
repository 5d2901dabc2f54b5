package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error represents a failed call against the inference backend.
// It never escapes the transport boundary as a Go error; it is flattened into
// GenerationResult.Error instead.
type Error struct {
	Type        ErrorType
	Message     string
	Retryable   bool
	StatusCode  int
	ProviderErr error // Original transport or backend error
}

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeUpstream    ErrorType = "upstream"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeCircuitOpen ErrorType = "circuit_open"
	ErrorTypeRateLimited ErrorType = "rate_limited"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ProviderErr != nil {
		return e.Message + ": " + e.ProviderErr.Error()
	}
	return e.Message
}

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error {
	return e.ProviderErr
}

// ConfigurationError reports a programmer error such as an unregistered model key.
// It is the only error the transport layer returns to callers.
type ConfigurationError struct {
	Key    string
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: model %q: %s", e.Key, e.Reason)
}

// IsConfigurationError checks if an error is a configuration error.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// ErrorTypeOf returns the category of err, or ErrorTypeUnknown.
func ErrorTypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// NewUpstreamError creates an error for a non-success backend response.
func NewUpstreamError(message string, statusCode int, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeUpstream,
		Message:     message,
		Retryable:   statusCode >= 500,
		StatusCode:  statusCode,
		ProviderErr: providerErr,
	}
}

// NewCircuitOpenError creates an error for a call rejected by an open circuit breaker.
func NewCircuitOpenError(modelKey string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeCircuitOpen,
		Message:     fmt.Sprintf("backend for %q temporarily unavailable", modelKey),
		Retryable:   true,
		ProviderErr: providerErr,
	}
}

// NewRateLimitedError creates an error for a call that could not acquire a rate limit token.
func NewRateLimitedError(providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeRateLimited,
		Message:     "rate limit wait aborted",
		Retryable:   true,
		ProviderErr: providerErr,
	}
}

// ClassifyTransportError maps a raw transport error onto a typed Error.
func ClassifyTransportError(err error) *Error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Type: ErrorTypeTimeout, Message: "backend request timed out", Retryable: true, ProviderErr: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &Error{Type: ErrorTypeTimeout, Message: "backend request timed out", Retryable: true, ProviderErr: err}
		}
		return &Error{Type: ErrorTypeNetwork, Message: "backend unreachable", Retryable: true, ProviderErr: err}
	}
	return &Error{Type: ErrorTypeUnknown, Message: "backend request failed", ProviderErr: err}
}

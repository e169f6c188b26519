package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind buckets provider failures into the retry taxonomy.
type ErrorKind string

const (
	// KindAuth marks invalid credentials. Fatal for that provider's cycle
	// until re-authenticated; never retried automatically.
	KindAuth ErrorKind = "auth"

	// KindTransient marks rate limits, timeouts and network failures.
	// Retried with exponential backoff under the attempts budget.
	KindTransient ErrorKind = "transient"

	// KindValidation marks a payload the remote rejected. Isolated to the
	// offending record; does not block the rest of the batch.
	KindValidation ErrorKind = "validation"
)

// ProviderError is a structured error from a provider operation. It carries
// the operation name, the retry classification, and HTTP context when the
// failure came off the wire.
type ProviderError struct {
	Operation  string    // e.g. "Pull", "Push", "Delete"
	Kind       ErrorKind // retry classification
	StatusCode int       // HTTP status (0 if not an HTTP error)
	Message    string
	RecordID   string // optional: affected record
	Body       string // optional: response body for debugging
	Err        error  // optional: underlying error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsAuth returns true for credential failures.
func (e *ProviderError) IsAuth() bool { return e.Kind == KindAuth }

// IsTransient returns true for retryable failures.
func (e *ProviderError) IsTransient() bool { return e.Kind == KindTransient }

// IsValidation returns true for remote payload rejections.
func (e *ProviderError) IsValidation() bool { return e.Kind == KindValidation }

// IsNotFound returns true if the remote reported 404.
func (e *ProviderError) IsNotFound() bool { return e.StatusCode == 404 }

// NewProviderError creates a new ProviderError.
func NewProviderError(operation string, kind ErrorKind, message string) *ProviderError {
	return &ProviderError{
		Operation: operation,
		Kind:      kind,
		Message:   message,
	}
}

// WithStatus attaches the HTTP status code.
func (e *ProviderError) WithStatus(code int) *ProviderError {
	e.StatusCode = code
	return e
}

// WithRecordID attaches the affected record for context.
func (e *ProviderError) WithRecordID(id string) *ProviderError {
	e.RecordID = id
	return e
}

// WithBody attaches the response body for debugging.
func (e *ProviderError) WithBody(body string) *ProviderError {
	e.Body = body
	return e
}

// WithError wraps an underlying error.
func (e *ProviderError) WithError(err error) *ProviderError {
	e.Err = err
	return e
}

// KindFromStatus maps an HTTP status code to the retry taxonomy.
func KindFromStatus(code int) ErrorKind {
	switch {
	case code == 401 || code == 403:
		return KindAuth
	case code == 408 || code == 429 || code >= 500:
		return KindTransient
	case code == 400 || code == 404 || code == 409 || code == 422:
		return KindValidation
	default:
		return KindTransient
	}
}

// Classify buckets an arbitrary error from a provider call. Structured
// provider errors keep their kind; timeouts, cancellations and network
// failures are transient so the attempts counter governs retry.
func Classify(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindTransient
	}

	return KindTransient
}

// IsAuthErr reports whether err is an auth failure from any provider.
func IsAuthErr(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.IsAuth()
}

// IsValidationErr reports whether err is a per-record payload rejection.
func IsValidationErr(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.IsValidation()
}

// IsNotFoundErr reports whether err is a remote 404.
func IsNotFoundErr(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.IsNotFound()
}

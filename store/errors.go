package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinel errors for store operations.
var (
	// ErrConnection indicates a transport-level failure (dial, reset,
	// per-attempt timeout). Connection errors are retryable.
	ErrConnection = errors.New("store: connection failed")

	// ErrValidation indicates a malformed request, rejected either
	// locally or by the remote store. Never retried.
	ErrValidation = errors.New("store: invalid request")

	// ErrRejected indicates the store refused an ingestion batch
	// without acking it. Never retried.
	ErrRejected = errors.New("store: request rejected")
)

// RemoteError is a non-2xx response from the remote store.
type RemoteError struct {
	// Status is the HTTP status code.
	Status int

	// Message is the response body, truncated.
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("store: remote error: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("store: remote error %d: %s", e.Status, e.Message)
}

// Retryable reports whether the response class is transient. 5xx and 408
// are transient; other 4xx are rejections.
func (e *RemoteError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusRequestTimeout
}

// Retryable classifies an error as worth re-attempting.
//
// Retryable: connection failures, per-attempt timeouts, 5xx and 408
// responses. Not retryable: validation errors, other 4xx responses,
// and context cancellation or deadline expiry (the overall call budget
// is spent, so another attempt cannot help).
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrRejected) {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	if errors.Is(err, ErrConnection) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

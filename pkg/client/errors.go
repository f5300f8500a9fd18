package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/Sternrassler/space-sync/pkg/pagination"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNetworkTimeout matches any request that timed out.
	ErrNetworkTimeout = errors.New("network timeout")

	// ErrAuthExpired is returned when the hub rejects the access token.
	ErrAuthExpired = errors.New("auth expired")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"
)

// NetworkError is a failed hub request. Status is 0 for transport errors.
type NetworkError struct {
	Status  int
	URL     string
	Tag     string
	Timeout bool
	Err     error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	msg := fmt.Sprintf("%s request to %s", e.Tag, e.URL)
	if e.Status != 0 {
		msg += fmt.Sprintf(" failed with status %d", e.Status)
	} else {
		msg += " failed"
	}
	if e.Timeout {
		msg += " (timeout)"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is matches ErrNetworkTimeout for timeouts and pagination.ErrNoData for
// responses without content.
func (e *NetworkError) Is(target error) bool {
	switch target {
	case ErrNetworkTimeout:
		return e.Timeout
	case pagination.ErrNoData:
		return e.Status == http.StatusNotFound || e.Status == http.StatusNoContent
	}
	return false
}

// Class returns the error classification.
func (e *NetworkError) Class() ErrorClass {
	switch {
	case e.Status == 0:
		return ErrorClassNetwork
	case e.Status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case e.Status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// Retryable reports whether a smaller or later request may succeed. Server
// errors and transport failures qualify; client errors do not.
func (e *NetworkError) Retryable() bool {
	return e.Class() != ErrorClassClient
}

// AuthenticationError is returned when re-authentication did not help.
type AuthenticationError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed after %d re-auth attempts: %v", e.Attempts, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// shouldRetry reports whether the client itself retries an error class with
// backoff. Server errors are left to the caller, which can shrink the page.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// classify returns the class of a request error, or "" for errors that are
// not hub responses.
func classify(err error) ErrorClass {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Class()
	}
	return ""
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

package flagdeck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

var (
	// ErrInvalidConfig is returned by New when the SDK key or base URL
	// is malformed. Construction errors are never retried.
	ErrInvalidConfig = errors.New("flagdeck: invalid client configuration")

	// ErrCacheUnavailable is returned when an offline fallback was
	// attempted before the cache was ever initialized. There is no safe
	// default to serve.
	ErrCacheUnavailable = errors.New("flagdeck: cache not initialized")

	// ErrClientClosed is returned by every call made after Close.
	ErrClientClosed = errors.New("flagdeck: client closed")
)

// AuthenticationError means the server rejected the SDK key. It is
// fatal and never triggers a cache fallback.
type AuthenticationError struct {
	msg string
}

func (e AuthenticationError) Error() string {
	return e.msg
}

// FlagNotFoundError means the server does not know the requested flag
// key. The cache cannot resolve it either, so it never falls back.
type FlagNotFoundError struct {
	FlagKey string
}

func (e FlagNotFoundError) Error() string {
	return fmt.Sprintf("flag %q not found", e.FlagKey)
}

// APIError is a non-2xx server response that is not an authentication
// or not-found condition. RetryAfter is set from the Retry-After header
// on rate-limited responses, when the server sent one.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

// protocolError is a response the client could not decode. Treated as
// recoverable, but always logged as a mismatch before any fallback.
type protocolError struct {
	err error
}

func (e protocolError) Error() string {
	return "malformed server response: " + e.err.Error()
}

func (e protocolError) Unwrap() error {
	return e.err
}

// isRecoverable reports whether an evaluation error may be answered
// from the cache instead of propagated. It is the single gate for
// every offline-fallback decision.
func isRecoverable(err error) bool {
	var authErr AuthenticationError
	if errors.As(err, &authErr) {
		return false
	}
	var notFound FlagNotFoundError
	if errors.As(err, &notFound) {
		return false
	}
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError ||
			apiErr.StatusCode == http.StatusTooManyRequests
	}
	var protoErr protocolError
	if errors.As(err, &protoErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// resty wraps transport failures in *url.Error, which implements
	// net.Error, so connect failures land in the branch above. Anything
	// unclassified propagates.
	return false
}

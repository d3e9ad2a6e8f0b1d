package flagdeck

import (
	"log/slog"
	"time"
)

// Option configures a Client during New.
type Option func(c *Client)

var _ = []Option{
	WithBaseURL(""),
	WithInitTimeout(0),
	WithRequestTimeout(0),
	WithStreaming(false),
	WithOfflineMode(false),
	WithRetries(3, 1*time.Second),
	WithExposureHook(nil),
	WithLogger(nil),
}

// WithBaseURL sets the server base URL. Required.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.config.baseURL = url
	}
}

// WithInitTimeout bounds the initial bulk evaluation that seeds the
// cache.
func WithInitTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.config.initTimeout = timeout
	}
}

// WithRequestTimeout bounds each evaluation call.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.config.requestTimeout = timeout
	}
}

// WithStreaming enables or disables the streaming synchronizer.
// Enabled by default.
func WithStreaming(enabled bool) Option {
	return func(c *Client) {
		c.config.streaming = enabled
	}
}

// WithOfflineMode enables or disables cache fallback on recoverable
// evaluation errors. Enabled by default.
func WithOfflineMode(enabled bool) Option {
	return func(c *Client) {
		c.config.offline = enabled
	}
}

// WithRetries sets the transport-level retry policy for evaluation
// calls.
func WithRetries(count int, waitTime time.Duration) Option {
	return func(c *Client) {
		c.rest.SetRetryCount(count)
		c.rest.SetRetryWaitTime(waitTime)
	}
}

// WithExposureHook installs the analytics hook that receives one
// exposure record per successful evaluation. The default is a no-op.
func WithExposureHook(hook ExposureHook) Option {
	return func(c *Client) {
		if hook != nil {
			c.hook = hook
		}
	}
}

// WithLogger sets the client logger. The default discards everything.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithInactivityTimeout sets how long the streaming connection may stay
// silent before it is reconnected.
func WithInactivityTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.config.inactivityTimeout = timeout
	}
}

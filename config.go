package flagdeck

import "time"

const (
	// DefaultRequestTimeout bounds each evaluation call to the server.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultInitTimeout bounds the initial bulk evaluation that seeds
	// the cache during New.
	DefaultInitTimeout = 10 * time.Second

	// DefaultInactivityTimeout is how long the streaming connection may
	// stay silent (no events, no heartbeats) before it is treated as
	// dead and reconnected.
	DefaultInactivityTimeout = 60 * time.Second

	// minServerVersion is the oldest server this client is known to
	// work against. Older servers trigger a startup warning only.
	minServerVersion = "1.0.0"
)

type config struct {
	baseURL           string
	initTimeout       time.Duration
	requestTimeout    time.Duration
	inactivityTimeout time.Duration
	streaming         bool
	offline           bool
}

func defaultConfig() config {
	return config{
		initTimeout:       DefaultInitTimeout,
		requestTimeout:    DefaultRequestTimeout,
		inactivityTimeout: DefaultInactivityTimeout,
		streaming:         true,
		offline:           true,
	}
}

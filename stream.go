package flagdeck

import (
	"bufio"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/flagdeck/flagdeck/events"
)

// maxFrameSize bounds a single event line read from the stream.
const maxFrameSize = 16 << 20

// ConnState is the streaming synchronizer's connection state.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// stream keeps the client cache consistent with the server by reading
// the event stream and applying events in receipt order. It runs as an
// independent goroutine and reconnects with exponential backoff; while
// disconnected the cache keeps serving its last known state.
type stream struct {
	url        string
	sdkKey     string
	cache      *flagCache
	log        *slog.Logger
	httpClient *http.Client
	inactivity time.Duration
	backoff    *backoff
	state      atomic.Int32
}

func newStream(url, sdkKey string, cache *flagCache, log *slog.Logger, inactivity time.Duration) *stream {
	return &stream{
		url:        url,
		sdkKey:     sdkKey,
		cache:      cache,
		log:        log.With(slog.String("worker", "stream"), slog.String("url", url)),
		httpClient: &http.Client{},
		inactivity: inactivity,
		backoff:    newBackoff(),
	}
}

func (s *stream) State() ConnState {
	return ConnState(s.state.Load())
}

func (s *stream) setState(st ConnState) {
	s.state.Store(int32(st))
}

// run connects and reconnects until ctx is cancelled.
func (s *stream) run(ctx context.Context) {
	defer s.setState(StateDisconnected)
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.connect(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("stream disconnected", "error", err)
		}
		s.setState(StateDisconnected)
		if ctx.Err() != nil {
			return
		}
		s.backoff.wait(ctx)
	}
}

// connect establishes one SSE connection and consumes it until it
// breaks or goes silent past the inactivity timeout.
func (s *stream) connect(ctx context.Context) error {
	s.setState(StateConnecting)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+s.sdkKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return APIError{StatusCode: resp.StatusCode, Message: "stream rejected"}
	}

	s.setState(StateConnected)
	s.backoff.reset()
	s.log.Info("stream connected")

	// A silent connection is indistinguishable from a dead one.
	// Cancelling the request context aborts the blocked read below.
	watchdog := time.AfterFunc(s.inactivity, cancel)
	defer watchdog.Stop()

	var data strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	// The init event carries the whole flag universe on one data line,
	// which can be far larger than bufio's default token limit.
	scanner.Buffer(make([]byte, 64<<10), maxFrameSize)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case line == "":
			if data.Len() > 0 {
				s.handleEvent(data.String())
				data.Reset()
				watchdog.Reset(s.inactivity)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return nil
}

// handleEvent decodes one frame and applies it to the cache. Unknown
// or malformed events are logged and skipped so one bad frame cannot
// wedge the stream.
func (s *stream) handleEvent(data string) {
	ev, err := events.Unmarshal([]byte(data))
	if err != nil {
		s.log.Error("skipping undecodable event", "error", err, "data", data)
		return
	}
	s.cache.Apply(ev)
	if ev.EventType() != events.TypeHeartbeat {
		s.log.Debug("applied event", "type", string(ev.EventType()))
	}
}

package flagdeck

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagdeck/flagdeck/events"
)

func writeFrame(t *testing.T, w http.ResponseWriter, e events.Event) {
	t.Helper()
	data, err := events.Marshal(e)
	require.NoError(t, err)
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.EventType(), data)
	require.NoError(t, err)
	w.(http.Flusher).Flush()
}

func initEvent() events.Init {
	return events.Init{
		ETag: `W/"abc"`,
		Flags: []events.FlagSnapshot{
			{Key: "checkout.flow", ID: "f-1", Enabled: true, DefaultVariant: "off", DefaultValue: false},
		},
	}
}

func testStream(t *testing.T, handler http.HandlerFunc, inactivity time.Duration) (*stream, *flagCache, context.CancelFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cache := newFlagCache()
	s := newStream(srv.URL, testSDKKey, cache, slog.New(slog.DiscardHandler), inactivity)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.run(ctx)
	return s, cache, cancel
}

func TestStreamAppliesEventsInOrder(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testSDKKey, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		writeFrame(t, w, initEvent())
		writeFrame(t, w, events.FlagUpdated{FlagKey: "checkout.flow", Enabled: true, DefaultVariant: "on", Value: true})
		writeFrame(t, w, events.KillSwitchActivated{Key: "payments_incident", LinkedFlagKeys: []string{"checkout.flow"}})
		<-r.Context().Done()
	}
	s, cache, cancel := testStream(t, handler, time.Minute)

	assert.Eventually(t, func() bool {
		if !cache.IsInitialized() {
			return false
		}
		state, ok := cache.GetFlag("checkout.flow")
		if !ok || state.DefaultVariant != "on" {
			return false
		}
		_, killed := cache.IsFlagKilled("checkout.flow")
		return killed
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, StateConnected, s.State())

	cancel()
	assert.Eventually(t, func() bool {
		return s.State() == StateDisconnected
	}, 3*time.Second, 10*time.Millisecond)
}

func TestStreamHandlesLargeInitFrame(t *testing.T) {
	// A full flag universe arrives as a single data line well past
	// bufio's default token limit.
	init := events.Init{ETag: `W/"bulk"`}
	for i := 0; i < 2000; i++ {
		init.Flags = append(init.Flags, events.FlagSnapshot{
			Key:            fmt.Sprintf("bulk.flag_%04d", i),
			ID:             fmt.Sprintf("f-%04d", i),
			Enabled:        true,
			DefaultVariant: "on",
			DefaultValue:   fmt.Sprintf("payload-%04d-0123456789012345678901234567890123456789", i),
		})
	}
	data, err := events.Marshal(init)
	require.NoError(t, err)
	require.Greater(t, len(data), 128<<10, "frame must exceed the default scanner limit")

	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", init.EventType(), data)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}
	_, cache, _ := testStream(t, handler, time.Minute)

	assert.Eventually(t, func() bool {
		if !cache.IsInitialized() {
			return false
		}
		_, ok := cache.GetFlag("bulk.flag_1999")
		return ok
	}, 5*time.Second, 25*time.Millisecond)
}

func TestStreamReconnectsAfterClose(t *testing.T) {
	var conns atomic.Int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		conns.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		writeFrame(t, w, initEvent())
		// Returning closes the connection; the client must come back.
	}
	_, cache, _ := testStream(t, handler, time.Minute)

	assert.Eventually(t, func() bool {
		return conns.Load() >= 2
	}, 10*time.Second, 50*time.Millisecond)
	assert.True(t, cache.IsInitialized(), "cache keeps its last state between connections")
}

func TestStreamInactivityTriggersReconnect(t *testing.T) {
	var conns atomic.Int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		conns.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		writeFrame(t, w, initEvent())
		// Go silent; no heartbeats. The watchdog should kill us.
		<-r.Context().Done()
	}
	testStream(t, handler, 200*time.Millisecond)

	assert.Eventually(t, func() bool {
		return conns.Load() >= 2
	}, 10*time.Second, 50*time.Millisecond)
}

func TestStreamSkipsMalformedFrames(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: {not json}\n\n")
		w.(http.Flusher).Flush()
		writeFrame(t, w, initEvent())
		<-r.Context().Done()
	}
	_, cache, _ := testStream(t, handler, time.Minute)

	assert.Eventually(t, cache.IsInitialized, 3*time.Second, 10*time.Millisecond,
		"a bad frame must not wedge the stream")
}

func TestStreamRejectedConnection(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}
	s, cache, _ := testStream(t, handler, time.Minute)

	// The stream keeps retrying but never reaches Connected.
	time.Sleep(300 * time.Millisecond)
	assert.NotEqual(t, StateConnected, s.State())
	assert.False(t, cache.IsInitialized())
}

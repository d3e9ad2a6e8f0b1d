package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/flagdeck/flagdeck/events"
	"github.com/flagdeck/flagdeck/internal/snapshot"
	"github.com/flagdeck/flagdeck/internal/telemetry"
)

// handleStream serves GET /v1/stream: an SSE connection that opens with
// an init event carrying the full flag universe, then delivers
// incremental typed events as admin mutations happen, with heartbeats
// in between.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		internalError(w, r, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub, unsub := s.cache.Subscribe()
	defer unsub()

	telemetry.SSEClients.Inc()
	defer telemetry.SSEClients.Dec()

	snap := s.cache.Load()
	if err := writeEvent(w, initEvent(snap)); err != nil {
		return
	}
	flusher.Flush()

	s.log.Debug("sse client connected", "etag", snap.ETag)

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.log.Debug("sse client disconnected")
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			if err := writeEvent(w, e); err != nil {
				return
			}
			flusher.Flush()
			ticker.Reset(s.heartbeat)
		case <-ticker.C:
			if err := writeEvent(w, events.Heartbeat{}); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent emits one SSE frame: an event: line naming the type and a
// data: line carrying the JSON envelope.
func writeEvent(w http.ResponseWriter, e events.Event) error {
	data, err := events.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.EventType(), data)
	return err
}

// initEvent converts a snapshot into the init event that seeds client
// caches.
func initEvent(snap *snapshot.Snapshot) events.Init {
	init := events.Init{
		ETag:  snap.ETag,
		Flags: make([]events.FlagSnapshot, 0, len(snap.Flags)),
	}
	for _, rec := range snap.Flags {
		fs := events.FlagSnapshot{
			Key:            rec.Flag.Key,
			ID:             rec.Flag.ID,
			Environment:    snap.Environment,
			DefaultVariant: rec.Flag.DefaultVariant,
			DefaultValue:   rec.Flag.DefaultValue(),
			Archived:       rec.Flag.Archived(),
		}
		if rec.Config != nil {
			fs.Enabled = rec.Config.Enabled
		}
		init.Flags = append(init.Flags, fs)
	}
	for _, ks := range snap.KillSwitches {
		if !ks.IsActive {
			continue
		}
		init.KillSwitches = append(init.KillSwitches, events.KillSwitchSnapshot{
			Key:            ks.Key,
			LinkedFlagKeys: ks.LinkedFlagKeys,
			Reason:         ks.Reason,
		})
	}
	return init
}

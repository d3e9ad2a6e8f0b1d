package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flagdeck/flagdeck/events"
	"github.com/flagdeck/flagdeck/flags"
	"github.com/flagdeck/flagdeck/internal/snapshot"
	"github.com/flagdeck/flagdeck/internal/store"
	"github.com/flagdeck/flagdeck/internal/telemetry"
)

type upsertFlagRequest struct {
	Flag     flags.Flag      `json:"flag"`
	Enabled  *bool           `json:"enabled,omitempty"`
	Strategy *flags.Strategy `json:"strategy,omitempty"`
}

type adminResponse struct {
	OK   bool   `json:"ok"`
	ETag string `json:"etag"`
}

type flagListResponse struct {
	Flags []store.FlagRecord `json:"flags"`
	ETag  string             `json:"etag"`
}

func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListFlags(r.Context(), s.env)
	if err != nil {
		internalError(w, r, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, flagListResponse{
		Flags: recs,
		ETag:  s.cache.Load().ETag,
	})
}

func (s *Server) handleGetFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	rec, err := s.store.GetFlag(r.Context(), key, s.env)
	if errors.Is(err, store.ErrFlagNotFound) {
		notFoundError(w, r, "flag "+key+" not found")
		return
	}
	if err != nil {
		internalError(w, r, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpsertFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req upsertFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}
	if req.Flag.Key == "" {
		req.Flag.Key = key
	}
	if req.Flag.Key != key {
		badRequestError(w, r, ErrCodeInvalidKey, "flag key does not match URL")
		return
	}
	if err := req.Flag.Validate(); err != nil {
		badRequestError(w, r, ErrCodeValidation, err.Error())
		return
	}

	rec := store.FlagRecord{Flag: req.Flag}
	if req.Enabled != nil {
		rec.Config = &flags.FlagConfig{Enabled: *req.Enabled}
		if req.Strategy != nil {
			if err := req.Strategy.Validate(); err != nil {
				badRequestError(w, r, ErrCodeValidation, err.Error())
				return
			}
			rec.Strategy = req.Strategy
			rec.Config.StrategyID = &req.Strategy.ID
		}
	}

	if err := s.store.UpsertFlag(r.Context(), s.env, rec); err != nil {
		s.log.Error("flag upsert failed", "flag_key", key, "err", err)
		internalError(w, r, "flag upsert failed")
		return
	}

	snap, err := s.rebuild(r)
	if err != nil {
		internalError(w, r, "snapshot rebuild failed")
		return
	}

	// The event is built from the rebuilt snapshot, not the request.
	// A metadata-only upsert leaves the stored config untouched, so the
	// snapshot is the only source that reflects what clients should see.
	e := events.FlagUpdated{
		FlagKey:     key,
		Environment: s.env,
	}
	if cur := snap.Flag(key); cur != nil {
		e.DefaultVariant = cur.Flag.DefaultVariant
		e.Value = cur.Flag.DefaultValue()
		if cur.Config != nil {
			e.Enabled = cur.Config.Enabled
		}
	}
	s.cache.Publish(e)

	s.log.Info("flag upserted", "flag_key", key, "etag", snap.ETag)
	writeJSON(w, http.StatusOK, adminResponse{OK: true, ETag: snap.ETag})
}

func (s *Server) handleArchiveFlag(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, true)
}

func (s *Server) handleRestoreFlag(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, false)
}

func (s *Server) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	key := chi.URLParam(r, "key")

	if err := s.store.SetFlagArchived(r.Context(), key, archived); err != nil {
		if errors.Is(err, store.ErrFlagNotFound) {
			notFoundError(w, r, "unknown flag: "+key)
			return
		}
		s.log.Error("archive update failed", "flag_key", key, "err", err)
		internalError(w, r, "archive update failed")
		return
	}

	snap, err := s.rebuild(r)
	if err != nil {
		internalError(w, r, "snapshot rebuild failed")
		return
	}

	if archived {
		s.cache.Publish(events.FlagArchived{FlagKey: key})
	} else {
		e := events.FlagRestored{FlagKey: key, Environment: s.env}
		if rec := snap.Flag(key); rec != nil && rec.Config != nil {
			e.Enabled = rec.Config.Enabled
		}
		s.cache.Publish(e)
	}

	s.log.Info("flag archive state changed", "flag_key", key, "archived", archived)
	writeJSON(w, http.StatusOK, adminResponse{OK: true, ETag: snap.ETag})
}

type killSwitchRequest struct {
	LinkedFlagKeys []string `json:"linked_flag_keys,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	ActivatedBy    string   `json:"activated_by,omitempty"`
}

func (s *Server) handleActivateKillSwitch(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req killSwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}

	linked := req.LinkedFlagKeys
	if len(linked) == 0 {
		// Reuse the existing linkage when re-activating a known switch.
		for _, ks := range s.cache.Load().KillSwitches {
			if ks.Key == key {
				linked = ks.LinkedFlagKeys
				break
			}
		}
	}

	now := time.Now().UTC()
	ks := flags.KillSwitch{
		Key:            key,
		LinkedFlagKeys: linked,
		IsActive:       true,
		ActivatedAt:    &now,
		ActivatedBy:    req.ActivatedBy,
		Reason:         req.Reason,
	}
	if err := s.store.UpsertKillSwitch(r.Context(), ks); err != nil {
		s.log.Error("kill switch activation failed", "kill_switch", key, "err", err)
		internalError(w, r, "kill switch activation failed")
		return
	}

	snap, err := s.rebuild(r)
	if err != nil {
		internalError(w, r, "snapshot rebuild failed")
		return
	}
	s.cache.Publish(events.KillSwitchActivated{
		Key:            key,
		LinkedFlagKeys: linked,
		Reason:         req.Reason,
	})

	s.log.Warn("kill switch activated",
		"kill_switch", key,
		"linked_flags", linked,
		"reason", req.Reason,
		"activated_by", req.ActivatedBy,
	)
	writeJSON(w, http.StatusOK, adminResponse{OK: true, ETag: snap.ETag})
}

func (s *Server) handleDeactivateKillSwitch(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var existing *flags.KillSwitch
	for _, ks := range s.cache.Load().KillSwitches {
		if ks.Key == key {
			existing = &ks
			break
		}
	}
	if existing == nil {
		notFoundError(w, r, "unknown kill switch: "+key)
		return
	}

	ks := *existing
	ks.IsActive = false
	ks.ActivatedAt = nil
	ks.ActivatedBy = ""
	if err := s.store.UpsertKillSwitch(r.Context(), ks); err != nil {
		s.log.Error("kill switch deactivation failed", "kill_switch", key, "err", err)
		internalError(w, r, "kill switch deactivation failed")
		return
	}

	snap, err := s.rebuild(r)
	if err != nil {
		internalError(w, r, "snapshot rebuild failed")
		return
	}
	s.cache.Publish(events.KillSwitchDeactivated{
		Key:            key,
		LinkedFlagKeys: ks.LinkedFlagKeys,
	})

	s.log.Info("kill switch deactivated", "kill_switch", key)
	writeJSON(w, http.StatusOK, adminResponse{OK: true, ETag: snap.ETag})
}

// rebuild refreshes the snapshot after a mutation and keeps the flag
// gauge in step.
func (s *Server) rebuild(r *http.Request) (*snapshot.Snapshot, error) {
	snap, err := s.cache.Rebuild(r.Context(), s.store)
	if err != nil {
		s.log.Error("snapshot rebuild failed", "err", err)
		return nil, err
	}
	telemetry.SnapshotFlags.Set(float64(len(snap.Flags)))
	return snap, nil
}

package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flagdeck/flagdeck/flags"
	"github.com/flagdeck/flagdeck/internal/store"
	"github.com/flagdeck/flagdeck/internal/telemetry"
)

// evaluateRequest is the body of POST /v1/evaluate and
// POST /v1/flags/{key}/evaluate. The context's environment defaults to
// the server's environment when omitted.
type evaluateRequest struct {
	Context flags.EvaluationContext `json:"context"`
	Keys    []string                `json:"keys,omitempty"`
}

type evaluateResponse struct {
	Flags       []flags.EvaluationResult `json:"flags"`
	ETag        string                   `json:"etag"`
	EvaluatedAt string                   `json:"evaluated_at"`
}

func (s *Server) handleEvaluateAll(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeEvaluateRequest(w, r)
	if !ok {
		return
	}

	snap := s.cache.Load()
	res := newResolver(snap, &req.Context)

	keys := req.Keys
	if len(keys) == 0 {
		keys = make([]string, 0, len(snap.Flags))
		for k := range snap.Flags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	results := make([]flags.EvaluationResult, 0, len(keys))
	for _, key := range keys {
		result := res.evaluate(key)
		s.recordEvaluation(snap.Flag(key), &req.Context, result)
		results = append(results, result)
	}

	writeJSON(w, http.StatusOK, evaluateResponse{
		Flags:       results,
		ETag:        snap.ETag,
		EvaluatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleEvaluateFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	req, ok := s.decodeEvaluateRequest(w, r)
	if !ok {
		return
	}

	snap := s.cache.Load()
	rec := snap.Flag(key)
	if rec == nil {
		notFoundError(w, r, "unknown flag: "+key)
		return
	}

	result := newResolver(snap, &req.Context).evaluate(key)
	s.recordEvaluation(rec, &req.Context, result)

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) decodeEvaluateRequest(w http.ResponseWriter, r *http.Request) (*evaluateRequest, bool) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return nil, false
	}
	if req.Context.Environment == "" {
		req.Context.Environment = s.env
	}
	return &req, true
}

// recordEvaluation counts the evaluation and emits an exposure log for
// flags with exposure tracking enabled.
func (s *Server) recordEvaluation(rec *store.FlagRecord, ctx *flags.EvaluationContext, result flags.EvaluationResult) {
	telemetry.Evaluations.WithLabelValues(string(result.Reason)).Inc()
	if rec == nil || !rec.Flag.ExposureTrackingEnabled {
		return
	}
	exp := flags.NewExposureLog(rec.Flag.ID, ctx, result)
	s.log.Info("exposure",
		"flag_key", exp.FlagKey,
		"variant", exp.Variant,
		"reason", exp.Reason,
		"context_hash", exp.ContextHash,
		"exposure_id", exp.ID,
	)
}

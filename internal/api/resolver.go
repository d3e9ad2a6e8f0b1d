package api

import (
	"github.com/flagdeck/flagdeck/engine"
	"github.com/flagdeck/flagdeck/flags"
	"github.com/flagdeck/flagdeck/internal/snapshot"
)

// resolver evaluates flags against one snapshot and one context,
// resolving prerequisite chains recursively. Results are memoized per
// request so a flag shared by several prerequisite chains is evaluated
// once. A cycle yields an empty prerequisite variant, which fails the
// dependent flag's prerequisite check rather than recursing forever.
type resolver struct {
	snap     *snapshot.Snapshot
	ctx      *flags.EvaluationContext
	memo     map[string]flags.EvaluationResult
	inFlight map[string]bool
}

func newResolver(snap *snapshot.Snapshot, ctx *flags.EvaluationContext) *resolver {
	return &resolver{
		snap:     snap,
		ctx:      ctx,
		memo:     make(map[string]flags.EvaluationResult),
		inFlight: make(map[string]bool),
	}
}

func (r *resolver) evaluate(key string) flags.EvaluationResult {
	if result, ok := r.memo[key]; ok {
		return result
	}
	if r.inFlight[key] {
		return flags.EvaluationResult{
			FlagKey: key,
			Reason:  flags.ReasonError,
			Error:   "Prerequisite cycle",
		}
	}

	rec := r.snap.Flag(key)
	if rec == nil {
		result := flags.EvaluationResult{
			FlagKey: key,
			Reason:  flags.ReasonError,
			Error:   "Unknown flag",
		}
		r.memo[key] = result
		return result
	}

	r.inFlight[key] = true
	var prereqs []engine.PrerequisiteResult
	for _, p := range rec.Flag.Prerequisites {
		dep := r.evaluate(p.FlagKey)
		prereqs = append(prereqs, engine.PrerequisiteResult{
			FlagKey: p.FlagKey,
			Variant: dep.Variant,
		})
	}
	delete(r.inFlight, key)

	result := engine.Evaluate(&rec.Flag, rec.Config, rec.Strategy, r.snap.KillSwitches, prereqs, r.ctx)
	r.memo[key] = result
	return result
}

// Package engine implements the flag evaluation pipeline: a pure,
// total decision function over read-only domain snapshots. The engine
// never performs I/O, never mutates its inputs, and never panics on
// well-typed input; abnormal conditions surface as an ERROR reason on
// the result rather than as a Go error.
package engine

import (
	"time"

	"github.com/flagdeck/flagdeck/flags"
	"github.com/flagdeck/flagdeck/rollout"
)

// PrerequisiteResult is a precomputed evaluation outcome for a
// prerequisite flag, supplied by the caller.
type PrerequisiteResult struct {
	FlagKey string
	Variant string
}

type options struct {
	now           time.Time
	failClosedKey bool
}

// Option adjusts evaluation behavior.
type Option func(*options)

// At fixes the evaluation time used to resolve rollout schedules.
// Defaults to time.Now().
func At(t time.Time) Option {
	return func(o *options) { o.now = t }
}

// FailClosedOnMissingRolloutKey makes the percentage gate exclude a
// context whose rollout key value cannot be resolved. The default is
// the permissive policy: a missing key passes the gate.
func FailClosedOnMissingRolloutKey() Option {
	return func(o *options) { o.failClosedKey = true }
}

// Evaluate decides which variant of flag the given context receives.
//
// The pipeline is evaluated in strict order, first matching rule wins:
// archived flag, missing environment config, disabled config, active
// kill switch, unmet prerequisite, no strategy, strategy conditions,
// percentage rollout, variant selection. Kill switches are checked in
// the order supplied by the caller; prerequisites in declaration order
// on the flag.
func Evaluate(
	flag *flags.Flag,
	config *flags.FlagConfig,
	strategy *flags.Strategy,
	killSwitches []flags.KillSwitch,
	prereqResults []PrerequisiteResult,
	ctx *flags.EvaluationContext,
	opts ...Option,
) flags.EvaluationResult {
	o := options{now: time.Now()}
	for _, opt := range opts {
		opt(&o)
	}

	if flag == nil {
		return flags.EvaluationResult{Reason: flags.ReasonError, Error: "Flag is nil"}
	}

	result := flags.EvaluationResult{
		FlagKey: flag.Key,
		Variant: flag.DefaultVariant,
		Value:   flag.DefaultValue(),
	}

	if ctx == nil {
		result.Reason = flags.ReasonError
		result.Error = "Missing evaluation context"
		return result
	}

	if flag.Archived() {
		result.Reason = flags.ReasonError
		result.Error = "Flag is archived"
		return result
	}

	if config == nil {
		result.Reason = flags.ReasonError
		result.Error = "No configuration for this environment"
		return result
	}

	if !config.Enabled {
		result.Reason = flags.ReasonDisabled
		return result
	}

	for i := range killSwitches {
		if killSwitches[i].AffectsFlag(flag.Key) {
			result.Reason = flags.ReasonKillSwitch
			result.KillSwitchKey = killSwitches[i].Key
			return result
		}
	}

	if missing, ok := firstUnmetPrerequisite(flag, prereqResults); ok {
		result.Reason = flags.ReasonPrerequisite
		result.MissingPrerequisite = missing
		return result
	}

	if strategy == nil {
		result.Reason = flags.ReasonDefault
		return result
	}

	for i := range strategy.Conditions {
		if !evalCondition(&strategy.Conditions[i], ctx) {
			result.Reason = flags.ReasonDefault
			return result
		}
	}

	percentage := effectivePercentage(strategy, o.now)
	if percentage < 100 {
		key, ok := rolloutKey(strategy, ctx)
		if !ok {
			// No resolvable rollout key. The documented default is to
			// pass the gate; FailClosedOnMissingRolloutKey flips it.
			if o.failClosedKey {
				result.Reason = flags.ReasonDefault
				return result
			}
		} else if !rollout.IsRolledOut(flag.Key, key, percentage) {
			result.Reason = flags.ReasonDefault
			return result
		}
	}

	result.Reason = flags.ReasonStrategy
	result.StrategyID = strategy.ID
	selectVariantInto(&result, flag, ctx)
	return result
}

func firstUnmetPrerequisite(flag *flags.Flag, results []PrerequisiteResult) (string, bool) {
	for _, p := range flag.Prerequisites {
		met := false
		for _, r := range results {
			if r.FlagKey == p.FlagKey && r.Variant == p.RequiredVariant {
				met = true
				break
			}
		}
		if !met {
			return p.FlagKey, true
		}
	}
	return "", false
}

// effectivePercentage resolves the rollout percentage: the last schedule
// step whose start time has passed, or the strategy's fixed percentage,
// or 100 when neither is set. Schedules are scanned in ascending
// declared order; validation of their monotonicity happens at
// construction, not here.
func effectivePercentage(strategy *flags.Strategy, now time.Time) int {
	if len(strategy.Schedule) > 0 {
		percentage := 0
		for _, step := range strategy.Schedule {
			if step.StartAt.After(now) {
				break
			}
			percentage = step.Percentage
		}
		return percentage
	}
	if strategy.Percentage != nil {
		return *strategy.Percentage
	}
	return 100
}

func rolloutKey(strategy *flags.Strategy, ctx *flags.EvaluationContext) (string, bool) {
	switch strategy.PercentageKey.Kind {
	case flags.PercentageKeyOrgID:
		return ctx.OrgID, ctx.OrgID != ""
	case flags.PercentageKeySessionID:
		return ctx.SessionID, ctx.SessionID != ""
	case flags.PercentageKeyAttribute:
		v, ok := ctx.Attribute(strategy.PercentageKey.Attribute)
		if !ok {
			return "", false
		}
		s, ok := toString(v)
		return s, ok && s != ""
	default:
		// PercentageKeyUserID, and the zero value.
		return ctx.UserID, ctx.UserID != ""
	}
}

// selectVariantInto fills the result's variant and value after a
// strategy match. A single non-default variant is selected outright;
// otherwise assignment is hashed over user, org or session id, falling
// back to the default variant when no identity is present or no variant
// carries weight.
func selectVariantInto(result *flags.EvaluationResult, flag *flags.Flag, ctx *flags.EvaluationContext) {
	var nonDefault []flags.Variant
	for _, v := range flag.Variants {
		if v.Name != flag.DefaultVariant {
			nonDefault = append(nonDefault, v)
		}
	}
	if len(nonDefault) == 1 {
		result.Variant = nonDefault[0].Name
		result.Value = nonDefault[0].Value
		return
	}

	key := ctx.UserID
	if key == "" {
		key = ctx.OrgID
	}
	if key == "" {
		key = ctx.SessionID
	}
	if key == "" {
		return
	}

	name, ok := rollout.SelectVariant(flag.Key, key, flag.Variants)
	if !ok {
		return
	}
	if v := flag.Variant(name); v != nil {
		result.Variant = v.Name
		result.Value = v.Value
	}
}

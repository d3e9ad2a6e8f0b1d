package flags

// Reason explains why an evaluation produced its variant.
type Reason string

const (
	// ReasonDefault means no strategy applied (or its conditions or
	// rollout gate excluded the context) and the default variant was
	// served.
	ReasonDefault Reason = "DEFAULT"
	// ReasonDisabled means the flag's environment config is disabled.
	ReasonDisabled Reason = "DISABLED"
	// ReasonKillSwitch means an active kill switch linked to the flag
	// forced the default variant.
	ReasonKillSwitch Reason = "KILL_SWITCH"
	// ReasonPrerequisite means a prerequisite flag was unmet.
	ReasonPrerequisite Reason = "PREREQUISITE"
	// ReasonStrategy means the strategy matched and selected a variant.
	ReasonStrategy Reason = "STRATEGY"
	// ReasonError means the flag could not be evaluated (archived, or
	// no configuration for the environment).
	ReasonError Reason = "ERROR"
)

// EvaluationResult is the outcome of evaluating one flag for one
// context. The companion fields qualify the reason: KillSwitchKey for
// KILL_SWITCH, MissingPrerequisite for PREREQUISITE, StrategyID for
// STRATEGY and Error for ERROR.
type EvaluationResult struct {
	FlagKey             string `json:"flag_key"`
	Variant             string `json:"variant"`
	Value               any    `json:"value"`
	Reason              Reason `json:"reason"`
	KillSwitchKey       string `json:"kill_switch_key,omitempty"`
	MissingPrerequisite string `json:"missing_prerequisite,omitempty"`
	StrategyID          string `json:"strategy_id,omitempty"`
	Error               string `json:"error,omitempty"`
}

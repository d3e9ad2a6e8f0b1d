package flags

import "time"

// KillSwitch is an operator-controlled override that forces its linked
// flags to their default/disabled state regardless of strategy. Platform
// operators activate switches during incidents; the engine only reads
// them.
type KillSwitch struct {
	Key            string     `json:"key" yaml:"key"`
	LinkedFlagKeys []string   `json:"linked_flag_keys" yaml:"linked_flag_keys"`
	IsActive       bool       `json:"is_active" yaml:"is_active"`
	ActivatedAt    *time.Time `json:"activated_at,omitempty" yaml:"activated_at,omitempty"`
	ActivatedBy    string     `json:"activated_by,omitempty" yaml:"activated_by,omitempty"`
	Reason         string     `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// AffectsFlag reports whether the switch is active and linked to the
// given flag key.
func (k *KillSwitch) AffectsFlag(flagKey string) bool {
	if !k.IsActive {
		return false
	}
	for _, linked := range k.LinkedFlagKeys {
		if linked == flagKey {
			return true
		}
	}
	return false
}

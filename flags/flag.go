// Package flags defines the feature-flag domain model: flags, variants,
// targeting strategies, kill switches, evaluation contexts and results.
// The types here are plain values with validation and construction logic
// only; evaluation behavior lives in the engine package.
package flags

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// keyPattern validates flag keys: lowercase dotted slugs where each
// segment starts with a letter and is at least three characters long,
// e.g. "checkout.flow" or "billing.invoice_v2".
var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{2,}(\.[a-z][a-z0-9_]{2,})*$`)

// ErrInvalidKey is returned when a flag key does not match the required
// dotted-slug format.
var ErrInvalidKey = errors.New("invalid flag key")

// ValidateKey checks that key is a valid dotted flag slug.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Variant is one possible output value of a flag. Value holds a bool,
// string, or any JSON-decodable value (map/slice/number). Weight is the
// relative weight used for deterministic assignment.
type Variant struct {
	Name   string `json:"name" yaml:"name"`
	Value  any    `json:"value" yaml:"value"`
	Weight uint32 `json:"weight" yaml:"weight"`
}

// Prerequisite requires another flag to evaluate to a specific variant
// before this flag's strategy is considered.
type Prerequisite struct {
	FlagKey         string `json:"flag_key" yaml:"flag_key"`
	RequiredVariant string `json:"required_variant" yaml:"required_variant"`
}

// Flag is a named feature toggle with one or more variants. Flags are
// created and mutated by the administrative system; the engine treats
// them as read-only snapshots.
type Flag struct {
	ID                      string         `json:"id" yaml:"id"`
	OrgID                   string         `json:"org_id,omitempty" yaml:"org_id,omitempty"`
	Key                     string         `json:"key" yaml:"key"`
	Name                    string         `json:"name" yaml:"name"`
	Description             string         `json:"description,omitempty" yaml:"description,omitempty"`
	Tags                    []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Variants                []Variant      `json:"variants" yaml:"variants"`
	DefaultVariant          string         `json:"default_variant" yaml:"default_variant"`
	Prerequisites           []Prerequisite `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
	ExposureTrackingEnabled bool           `json:"exposure_tracking_enabled" yaml:"exposure_tracking_enabled"`
	ArchivedAt              *time.Time     `json:"archived_at,omitempty" yaml:"archived_at,omitempty"`
}

// Archived reports whether the flag has been archived.
func (f *Flag) Archived() bool {
	return f.ArchivedAt != nil
}

// Variant returns the named variant, or nil if no variant has that name.
func (f *Flag) Variant(name string) *Variant {
	for i := range f.Variants {
		if f.Variants[i].Name == name {
			return &f.Variants[i]
		}
	}
	return nil
}

// DefaultValue returns the value of the flag's default variant, or nil
// if the default variant does not resolve (a validation failure).
func (f *Flag) DefaultValue() any {
	if v := f.Variant(f.DefaultVariant); v != nil {
		return v.Value
	}
	return nil
}

// Validate checks the flag's structural invariants: a valid key, at
// least one variant, unique variant names, and a default variant that
// names an existing variant.
func (f *Flag) Validate() error {
	if err := ValidateKey(f.Key); err != nil {
		return err
	}
	if len(f.Variants) == 0 {
		return fmt.Errorf("flag %q: at least one variant is required", f.Key)
	}
	seen := make(map[string]bool, len(f.Variants))
	for _, v := range f.Variants {
		if v.Name == "" {
			return fmt.Errorf("flag %q: variant name cannot be empty", f.Key)
		}
		if seen[v.Name] {
			return fmt.Errorf("flag %q: duplicate variant %q", f.Key, v.Name)
		}
		seen[v.Name] = true
	}
	if !seen[f.DefaultVariant] {
		return fmt.Errorf("flag %q: default variant %q does not resolve", f.Key, f.DefaultVariant)
	}
	for _, p := range f.Prerequisites {
		if err := ValidateKey(p.FlagKey); err != nil {
			return fmt.Errorf("flag %q: prerequisite: %w", f.Key, err)
		}
		if p.RequiredVariant == "" {
			return fmt.Errorf("flag %q: prerequisite %q: required variant cannot be empty", f.Key, p.FlagKey)
		}
	}
	return nil
}

// FlagConfig is the per-environment configuration of a flag. The absence
// of a FlagConfig for an environment is a distinct state from
// Enabled=false: the former is a configuration error at evaluation time,
// the latter a deliberate off switch.
type FlagConfig struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	StrategyID *string `json:"strategy_id,omitempty" yaml:"strategy_id,omitempty"`
}

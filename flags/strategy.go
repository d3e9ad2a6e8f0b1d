package flags

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PercentageKeyKind selects which per-context identifier feeds the
// rollout hash.
type PercentageKeyKind string

const (
	PercentageKeyUserID    PercentageKeyKind = "user_id"
	PercentageKeySessionID PercentageKeyKind = "session_id"
	PercentageKeyOrgID     PercentageKeyKind = "org_id"
	PercentageKeyAttribute PercentageKeyKind = "attribute"
)

// PercentageKey names the identifier hashed for rollout bucketing.
// Attribute is only consulted when Kind is PercentageKeyAttribute.
type PercentageKey struct {
	Kind      PercentageKeyKind `json:"kind" yaml:"kind"`
	Attribute string            `json:"attribute,omitempty" yaml:"attribute,omitempty"`
}

// ScheduleStep is one step of a progressive rollout schedule.
type ScheduleStep struct {
	Percentage int       `json:"percentage" yaml:"percentage"`
	StartAt    time.Time `json:"start_at" yaml:"start_at"`
}

// Strategy is the targeting rule set governing which contexts receive a
// flag's non-default variants: AND-combined conditions plus an optional
// percentage rollout or schedule.
type Strategy struct {
	ID            string         `json:"id" yaml:"id"`
	Conditions    []Condition    `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Percentage    *int           `json:"percentage,omitempty" yaml:"percentage,omitempty"`
	PercentageKey PercentageKey  `json:"percentage_key" yaml:"percentage_key"`
	Schedule      []ScheduleStep `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

// Validate checks strategy invariants: percentages in 0..100 and a
// schedule that is non-decreasing in both start time and percentage.
// The engine assumes but does not re-check these at evaluation time, so
// malformed schedules are rejected here.
func (s *Strategy) Validate() error {
	if s.Percentage != nil && (*s.Percentage < 0 || *s.Percentage > 100) {
		return fmt.Errorf("strategy %q: percentage must be 0..100, got %d", s.ID, *s.Percentage)
	}
	for i, step := range s.Schedule {
		if step.Percentage < 0 || step.Percentage > 100 {
			return fmt.Errorf("strategy %q: schedule step %d: percentage must be 0..100", s.ID, i)
		}
		if i > 0 {
			prev := s.Schedule[i-1]
			if step.StartAt.Before(prev.StartAt) {
				return fmt.Errorf("strategy %q: schedule step %d starts before step %d", s.ID, i, i-1)
			}
			if step.Percentage < prev.Percentage {
				return fmt.Errorf("strategy %q: schedule step %d decreases percentage", s.ID, i)
			}
		}
	}
	for i := range s.Conditions {
		if err := s.Conditions[i].Validate(); err != nil {
			return fmt.Errorf("strategy %q: condition %d: %w", s.ID, i, err)
		}
	}
	return nil
}

// ConditionKind discriminates the closed set of condition types.
type ConditionKind string

const (
	ConditionAttribute   ConditionKind = "attribute"
	ConditionGeographic  ConditionKind = "geographic"
	ConditionEnvironment ConditionKind = "environment"
	ConditionExpression  ConditionKind = "expression"
)

// AttributeOperator compares a context attribute against a configured
// JSON value.
type AttributeOperator string

const (
	OpEquals    AttributeOperator = "eq"
	OpNotEquals AttributeOperator = "neq"
	OpIn        AttributeOperator = "in"
	OpNotIn     AttributeOperator = "not_in"
)

// GeoField names the geographic context field a condition inspects.
type GeoField string

const (
	GeoCountry GeoField = "country"
	GeoRegion  GeoField = "region"
	GeoCity    GeoField = "city"
)

// GeoOperator is the membership test applied to a geographic field.
type GeoOperator string

const (
	GeoIn    GeoOperator = "in"
	GeoNotIn GeoOperator = "not_in"
)

// AttributeCondition matches a named custom attribute of the context.
type AttributeCondition struct {
	Attribute string            `json:"attribute" yaml:"attribute"`
	Operator  AttributeOperator `json:"operator" yaml:"operator"`
	Value     any               `json:"value" yaml:"value"`
}

// GeoCondition matches against the context's geographic fields.
type GeoCondition struct {
	Field    GeoField    `json:"field" yaml:"field"`
	Operator GeoOperator `json:"operator" yaml:"operator"`
	Values   []string    `json:"values" yaml:"values"`
}

// EnvCondition matches the evaluation environment against a set of
// environment names.
type EnvCondition struct {
	Environments []string `json:"environments" yaml:"environments"`
}

// Condition is a closed tagged union: exactly one of the payload fields
// is set, selected by Kind. The evaluator switches exhaustively on Kind
// so adding a new kind is a compile-checked exercise.
//
// Expression holds a JSON Logic document evaluated against the context
// attribute map; a malformed or non-truthy expression fails the
// condition rather than erroring.
type Condition struct {
	Kind       ConditionKind       `json:"kind" yaml:"kind"`
	Attribute  *AttributeCondition `json:"attribute_condition,omitempty" yaml:"attribute_condition,omitempty"`
	Geo        *GeoCondition       `json:"geo_condition,omitempty" yaml:"geo_condition,omitempty"`
	Env        *EnvCondition       `json:"env_condition,omitempty" yaml:"env_condition,omitempty"`
	Expression json.RawMessage     `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// Validate checks that the condition's kind tag and payload agree.
func (c *Condition) Validate() error {
	switch c.Kind {
	case ConditionAttribute:
		if c.Attribute == nil {
			return errors.New("attribute condition missing payload")
		}
		switch c.Attribute.Operator {
		case OpEquals, OpNotEquals, OpIn, OpNotIn:
		default:
			return fmt.Errorf("unknown attribute operator %q", c.Attribute.Operator)
		}
	case ConditionGeographic:
		if c.Geo == nil {
			return errors.New("geographic condition missing payload")
		}
		switch c.Geo.Field {
		case GeoCountry, GeoRegion, GeoCity:
		default:
			return fmt.Errorf("unknown geo field %q", c.Geo.Field)
		}
		switch c.Geo.Operator {
		case GeoIn, GeoNotIn:
		default:
			return fmt.Errorf("unknown geo operator %q", c.Geo.Operator)
		}
	case ConditionEnvironment:
		if c.Env == nil {
			return errors.New("environment condition missing payload")
		}
	case ConditionExpression:
		if len(c.Expression) == 0 {
			return errors.New("expression condition missing rule")
		}
		var v any
		if err := json.Unmarshal(c.Expression, &v); err != nil {
			return fmt.Errorf("expression condition is not valid JSON: %w", err)
		}
	default:
		return fmt.Errorf("unknown condition kind %q", c.Kind)
	}
	return nil
}

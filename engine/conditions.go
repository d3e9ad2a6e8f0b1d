package engine

import (
	"bytes"
	"encoding/json"

	"github.com/diegoholiveira/jsonlogic/v3"

	"github.com/flagdeck/flagdeck/flags"
)

// evalCondition evaluates a single strategy condition against the
// context. Unknown kinds and malformed payloads fail the condition;
// they are never an error.
func evalCondition(c *flags.Condition, ctx *flags.EvaluationContext) bool {
	switch c.Kind {
	case flags.ConditionAttribute:
		return evalAttribute(c.Attribute, ctx)
	case flags.ConditionGeographic:
		return evalGeo(c.Geo, ctx)
	case flags.ConditionEnvironment:
		return evalEnvironment(c.Env, ctx)
	case flags.ConditionExpression:
		return evalExpression(c.Expression, ctx)
	default:
		return false
	}
}

// evalAttribute looks up the named attribute in the context; an absent
// attribute is a failed condition, not an error.
func evalAttribute(c *flags.AttributeCondition, ctx *flags.EvaluationContext) bool {
	if c == nil {
		return false
	}
	value, ok := ctx.Attribute(c.Attribute)
	if !ok {
		return false
	}
	switch c.Operator {
	case flags.OpEquals:
		return jsonEqual(value, c.Value)
	case flags.OpNotEquals:
		return !jsonEqual(value, c.Value)
	case flags.OpIn:
		return jsonContains(c.Value, value)
	case flags.OpNotIn:
		return !jsonContains(c.Value, value)
	default:
		return false
	}
}

func evalGeo(c *flags.GeoCondition, ctx *flags.EvaluationContext) bool {
	if c == nil || ctx.Geo == nil {
		return false
	}
	var field string
	switch c.Field {
	case flags.GeoCountry:
		field = ctx.Geo.Country
	case flags.GeoRegion:
		field = ctx.Geo.Region
	case flags.GeoCity:
		field = ctx.Geo.City
	default:
		return false
	}
	if field == "" {
		return false
	}
	member := false
	for _, v := range c.Values {
		if v == field {
			member = true
			break
		}
	}
	switch c.Operator {
	case flags.GeoIn:
		return member
	case flags.GeoNotIn:
		return !member
	default:
		return false
	}
}

func evalEnvironment(c *flags.EnvCondition, ctx *flags.EvaluationContext) bool {
	if c == nil {
		return false
	}
	for _, env := range c.Environments {
		if env == ctx.Environment {
			return true
		}
	}
	return false
}

// evalExpression applies a JSON Logic rule against the context's
// attribute map plus the identity fields. Malformed rules and
// non-truthy results both fail the condition.
func evalExpression(rule json.RawMessage, ctx *flags.EvaluationContext) bool {
	if len(rule) == 0 {
		return false
	}

	data := make(map[string]any, len(ctx.Attributes)+4)
	for k, v := range ctx.Attributes {
		data[k] = v
	}
	data["environment"] = ctx.Environment
	if ctx.UserID != "" {
		data["user_id"] = ctx.UserID
	}
	if ctx.OrgID != "" {
		data["org_id"] = ctx.OrgID
	}
	if ctx.SessionID != "" {
		data["session_id"] = ctx.SessionID
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return false
	}

	var out bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(rule), bytes.NewReader(dataBytes), &out); err != nil {
		return false
	}

	var result any
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		return false
	}
	return isTruthy(result)
}

func isTruthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case nil:
		return false
	default:
		return true
	}
}

// jsonEqual compares two JSON-decoded scalar values with numeric
// coercion: ints and floats compare by value, strings and bools by
// identity. Composite values never compare equal.
func jsonEqual(a, b any) bool {
	if as, ok := toString(a); ok {
		bs, ok := toString(b)
		return ok && as == bs
	}
	if af, ok := toFloat64(a); ok {
		bf, ok := toFloat64(b)
		return ok && af == bf
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	return false
}

// jsonContains reports whether list (a JSON array value) contains item.
func jsonContains(list, item any) bool {
	items, ok := list.([]any)
	if !ok {
		if strs, isStrs := list.([]string); isStrs {
			for _, s := range strs {
				if jsonEqual(s, item) {
					return true
				}
			}
		}
		return false
	}
	for _, candidate := range items {
		if jsonEqual(candidate, item) {
			return true
		}
	}
	return false
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

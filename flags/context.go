package flags

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// GeoContext carries the caller's resolved geography.
type GeoContext struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}

// EvaluationContext describes the caller on whose behalf a flag is
// evaluated. Environment is required; everything else is optional.
// Contexts are immutable for the duration of an evaluation call.
type EvaluationContext struct {
	Environment string         `json:"environment"`
	UserID      string         `json:"user_id,omitempty"`
	OrgID       string         `json:"org_id,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	Geo         *GeoContext    `json:"geo,omitempty"`
}

// Attribute returns the named custom attribute and whether it is set.
func (c *EvaluationContext) Attribute(name string) (any, bool) {
	if c.Attributes == nil {
		return nil, false
	}
	v, ok := c.Attributes[name]
	return v, ok
}

// Hash returns a deterministic SHA-256 hex digest identifying the
// (context, flag key) pair for exposure deduplication and audit. The
// digest covers the identity fields only; equal
// (environment, user, org, session, flag key) tuples always hash
// equally.
func (c *EvaluationContext) Hash(flagKey string) string {
	parts := []string{c.Environment, c.UserID, c.OrgID, c.SessionID, flagKey}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

package flags

import (
	"time"

	"github.com/google/uuid"
)

// ExposureLog is an immutable audit record of one tracked evaluation:
// which context received which variant of which flag, and why. Records
// are append-only; the analytics collaborator owns them after creation.
type ExposureLog struct {
	ID            string    `json:"id"`
	FlagID        string    `json:"flag_id"`
	FlagKey       string    `json:"flag_key"`
	EnvironmentID string    `json:"environment_id"`
	UserID        string    `json:"user_id,omitempty"`
	OrgID         string    `json:"org_id,omitempty"`
	Variant       string    `json:"variant"`
	Reason        Reason    `json:"reason"`
	ContextHash   string    `json:"context_hash"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewExposureLog builds an exposure record for a completed evaluation.
// Every call generates a fresh ID, even for identical inputs.
func NewExposureLog(flagID string, ctx *EvaluationContext, result EvaluationResult) ExposureLog {
	return ExposureLog{
		ID:            uuid.NewString(),
		FlagID:        flagID,
		FlagKey:       result.FlagKey,
		EnvironmentID: ctx.Environment,
		UserID:        ctx.UserID,
		OrgID:         ctx.OrgID,
		Variant:       result.Variant,
		Reason:        result.Reason,
		ContextHash:   ctx.Hash(result.FlagKey),
		CreatedAt:     time.Now().UTC(),
	}
}

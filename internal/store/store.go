// Package store provides the flag-definition source behind the server:
// an interface over flag, strategy and kill-switch records with
// in-memory and PostgreSQL implementations. The evaluation engine never
// touches the store; it only sees snapshots built from it.
package store

import (
	"context"
	"errors"

	"github.com/flagdeck/flagdeck/flags"
)

// ErrFlagNotFound is returned when a flag key does not exist.
var ErrFlagNotFound = errors.New("flag not found")

// FlagRecord bundles a flag with its configuration and optional
// strategy for one environment, already resolved for evaluation.
// Config is nil when the flag has no configuration for the environment,
// which evaluation treats as distinct from disabled.
type FlagRecord struct {
	Flag     flags.Flag        `json:"flag" yaml:"flag"`
	Config   *flags.FlagConfig `json:"config,omitempty" yaml:"config,omitempty"`
	Strategy *flags.Strategy   `json:"strategy,omitempty" yaml:"strategy,omitempty"`
}

// Store is the flag-definition source. Implementations must be safe for
// concurrent use.
type Store interface {
	// ListFlags returns all flag records resolved for the given
	// environment, in stable key order.
	ListFlags(ctx context.Context, env string) ([]FlagRecord, error)

	// GetFlag returns one flag record resolved for the environment.
	// Returns ErrFlagNotFound for unknown keys.
	GetFlag(ctx context.Context, key, env string) (*FlagRecord, error)

	// ListKillSwitches returns all kill switches sorted by key.
	ListKillSwitches(ctx context.Context) ([]flags.KillSwitch, error)

	// UpsertFlag creates or replaces a flag and its state for one
	// environment. The record's flag is validated before storage.
	UpsertFlag(ctx context.Context, env string, rec FlagRecord) error

	// SetFlagArchived archives or restores a flag.
	SetFlagArchived(ctx context.Context, key string, archived bool) error

	// UpsertKillSwitch creates or replaces a kill switch.
	UpsertKillSwitch(ctx context.Context, ks flags.KillSwitch) error

	// Close releases any resources held by the store.
	Close() error
}

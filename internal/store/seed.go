package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flagdeck/flagdeck/flags"
)

// SeedFile is the YAML document loaded into a store at startup. It
// mirrors the export format of the CLI so an exported file can be fed
// straight back as a seed.
type SeedFile struct {
	Flags        []SeedFlag         `yaml:"flags"`
	KillSwitches []flags.KillSwitch `yaml:"kill_switches,omitempty"`
}

// SeedFlag is one flag with its state for a single environment.
type SeedFlag struct {
	Flag     flags.Flag      `yaml:"flag"`
	Enabled  *bool           `yaml:"enabled,omitempty"`
	Strategy *flags.Strategy `yaml:"strategy,omitempty"`
}

// LoadSeed reads a YAML seed file and upserts its contents into the
// store under the given environment. Validation failures abort the
// load; a partially applied seed is reported as an error.
func LoadSeed(ctx context.Context, s Store, path, env string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var doc SeedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	for _, sf := range doc.Flags {
		rec := FlagRecord{Flag: sf.Flag}
		if sf.Enabled != nil {
			rec.Config = &flags.FlagConfig{Enabled: *sf.Enabled}
			if sf.Strategy != nil {
				strat := *sf.Strategy
				rec.Strategy = &strat
				rec.Config.StrategyID = &strat.ID
			}
		}
		if err := s.UpsertFlag(ctx, env, rec); err != nil {
			return fmt.Errorf("seed flag %s: %w", sf.Flag.Key, err)
		}
	}

	for _, ks := range doc.KillSwitches {
		if err := s.UpsertKillSwitch(ctx, ks); err != nil {
			return fmt.Errorf("seed kill switch %s: %w", ks.Key, err)
		}
	}

	return nil
}

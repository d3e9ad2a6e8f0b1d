package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flagdeck/flagdeck/flags"
	"github.com/flagdeck/flagdeck/internal/cli"
	"github.com/flagdeck/flagdeck/internal/store"
)

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import flags from a seed file",
	Long: `Import flags from a YAML seed file, upserting each one through the
admin API. Active kill switches in the file are activated as well.

Examples:
  flagdeck import flags.yaml
  flagdeck import flags.yaml --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		var seed store.SeedFile
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return fmt.Errorf("failed to parse seed file: %w", err)
		}

		// Validate everything before touching the server.
		for i := range seed.Flags {
			if err := seed.Flags[i].Flag.Validate(); err != nil {
				return fmt.Errorf("invalid flag at index %d: %w", i, err)
			}
		}

		if importDryRun {
			if !quiet {
				fmt.Printf("Would import %d flags and %d kill switches\n",
					len(seed.Flags), len(seed.KillSwitches))
			}
			return nil
		}

		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := cli.NewClient(envCfg.BaseURL, envCfg.AdminKey)
		ctx := context.Background()

		for _, sf := range seed.Flags {
			rec := store.FlagRecord{Flag: sf.Flag, Strategy: sf.Strategy}
			if sf.Enabled != nil {
				rec.Config = &flags.FlagConfig{Enabled: *sf.Enabled}
			}
			if err := c.UpsertFlag(ctx, rec); err != nil {
				return fmt.Errorf("failed to import flag %q: %w", sf.Flag.Key, err)
			}
			if !quiet {
				fmt.Printf("Imported %s\n", sf.Flag.Key)
			}
		}

		for _, ks := range seed.KillSwitches {
			if !ks.IsActive {
				continue
			}
			if err := c.ActivateKillSwitch(ctx, ks.Key, ks.LinkedFlagKeys, ks.Reason, ks.ActivatedBy); err != nil {
				return fmt.Errorf("failed to activate kill switch %q: %w", ks.Key, err)
			}
			if !quiet {
				fmt.Printf("Activated kill switch %s\n", ks.Key)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate the file without importing")
}

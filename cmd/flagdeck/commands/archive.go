package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flagdeck/flagdeck/internal/cli"
)

var archiveCmd = &cobra.Command{
	Use:   "archive <flag-key>",
	Short: "Archive a feature flag",
	Long: `Archive a flag. Archived flags evaluate to an error result and are
hidden from list output by default.

Examples:
  flagdeck archive checkout.flow`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setArchived(args[0], true)
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <flag-key>",
	Short: "Restore an archived feature flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setArchived(args[0], false)
	},
}

func setArchived(key string, archived bool) error {
	envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	c := cli.NewClient(envCfg.BaseURL, envCfg.AdminKey)
	if err := c.SetArchived(context.Background(), key, archived); err != nil {
		return err
	}

	if !quiet {
		if archived {
			fmt.Printf("Flag %q archived\n", key)
		} else {
			fmt.Printf("Flag %q restored\n", key)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(restoreCmd)
}

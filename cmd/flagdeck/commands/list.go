package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flagdeck/flagdeck/internal/cli"
	"github.com/flagdeck/flagdeck/internal/store"
)

var (
	listEnabledOnly bool
	listArchived    bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all feature flags",
	Long: `List all feature flags known to the server.

Examples:
  flagdeck list
  flagdeck list --format json
  flagdeck list --enabled-only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := cli.NewClient(envCfg.BaseURL, envCfg.AdminKey)
		recs, err := c.ListFlags(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list flags: %w", err)
		}

		filtered := make([]store.FlagRecord, 0, len(recs))
		for _, rec := range recs {
			if listEnabledOnly && (rec.Config == nil || !rec.Config.Enabled) {
				continue
			}
			if !listArchived && rec.Flag.Archived() {
				continue
			}
			filtered = append(filtered, rec)
		}

		if quiet {
			return nil
		}
		if len(filtered) == 0 {
			fmt.Println("No flags found")
			return nil
		}
		return cli.PrintFlags(filtered, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&listEnabledOnly, "enabled-only", false, "Show only enabled flags")
	listCmd.Flags().BoolVar(&listArchived, "archived", false, "Include archived flags")
}

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flagdeck/flagdeck/internal/cli"
)

var getCmd = &cobra.Command{
	Use:   "get <flag-key>",
	Short: "Get a single feature flag",
	Long: `Get one feature flag with its environment state and strategy.

Examples:
  flagdeck get checkout.flow
  flagdeck get checkout.flow --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := cli.NewClient(envCfg.BaseURL, envCfg.AdminKey)
		rec, err := c.GetFlag(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get flag: %w", err)
		}

		if quiet {
			return nil
		}
		return cli.PrintFlag(rec, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}

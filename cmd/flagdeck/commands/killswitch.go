package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flagdeck/flagdeck/internal/cli"
)

var (
	ksFlags  []string
	ksReason string
	ksBy     string
)

var killswitchCmd = &cobra.Command{
	Use:   "killswitch",
	Short: "Manage kill switches",
}

var ksActivateCmd = &cobra.Command{
	Use:   "activate <switch-key>",
	Short: "Activate a kill switch",
	Long: `Activate a kill switch over one or more flags. Every linked flag
immediately serves its default variant for all contexts.

Examples:
  flagdeck killswitch activate payments_incident --flag checkout.flow --reason "sev1 incident"
  flagdeck killswitch activate payments_incident`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		by := ksBy
		if by == "" {
			by = os.Getenv("USER")
		}

		c := cli.NewClient(envCfg.BaseURL, envCfg.AdminKey)
		if err := c.ActivateKillSwitch(context.Background(), args[0], ksFlags, ksReason, by); err != nil {
			return err
		}

		if !quiet {
			fmt.Printf("Kill switch %q activated\n", args[0])
		}
		return nil
	},
}

var ksDeactivateCmd = &cobra.Command{
	Use:   "deactivate <switch-key>",
	Short: "Deactivate a kill switch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := cli.NewClient(envCfg.BaseURL, envCfg.AdminKey)
		if err := c.DeactivateKillSwitch(context.Background(), args[0]); err != nil {
			return err
		}

		if !quiet {
			fmt.Printf("Kill switch %q deactivated\n", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(killswitchCmd)
	killswitchCmd.AddCommand(ksActivateCmd)
	killswitchCmd.AddCommand(ksDeactivateCmd)

	ksActivateCmd.Flags().StringArrayVar(&ksFlags, "flag", nil, "Flag key to link (repeatable; empty reuses the existing linkage)")
	ksActivateCmd.Flags().StringVar(&ksReason, "reason", "", "Human-readable reason for the activation")
	ksActivateCmd.Flags().StringVar(&ksBy, "by", "", "Operator name (defaults to $USER)")
}

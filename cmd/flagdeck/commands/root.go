package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	sdkKey  string
	env     string
	format  string
	quiet   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flagdeck",
	Short: "CLI tool for managing feature flags",
	Long: `Flagdeck is a command-line tool for managing feature flags in the
flagdeck service.

It provides commands for creating, reading, archiving and evaluating
flags, activating kill switches, and importing and exporting flag
configurations.

Examples:
  flagdeck list --env production
  flagdeck get checkout.flow --format yaml
  flagdeck evaluate checkout.flow --user u-42
  flagdeck killswitch activate payments_incident --flag checkout.flow --reason "sev1"
  flagdeck export --output flags.yaml`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the flagdeck API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key for authentication")
	rootCmd.PersistentFlags().StringVar(&sdkKey, "sdk-key", "", "SDK key for evaluation calls")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Environment profile name")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
}

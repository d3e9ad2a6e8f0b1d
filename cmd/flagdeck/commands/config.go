package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flagdeck/flagdeck/internal/cli"
)

var (
	configSetBaseURL  string
	configSetAdminKey string
	configSetSDKKey   string
	configSetDefault  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI environment profiles",
}

var configSetCmd = &cobra.Command{
	Use:   "set <env-name>",
	Short: "Set a named environment profile",
	Long: `Store connection details for a named environment in
~/.flagdeck/config.yaml.

Examples:
  flagdeck config set production --set-base-url https://flags.example.com --set-api-key admin-... --default
  flagdeck config set staging --set-base-url http://localhost:8080`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return err
		}

		name := args[0]
		envCfg := cfg.Environments[name]
		if configSetBaseURL != "" {
			envCfg.BaseURL = configSetBaseURL
		}
		if configSetAdminKey != "" {
			envCfg.AdminKey = configSetAdminKey
		}
		if configSetSDKKey != "" {
			envCfg.SDKKey = configSetSDKKey
		}
		cfg.Environments[name] = envCfg
		if configSetDefault || cfg.DefaultEnv == "" {
			cfg.DefaultEnv = name
		}

		if err := cli.SaveConfig(cfg); err != nil {
			return err
		}
		if !quiet {
			fmt.Printf("Profile %q saved\n", name)
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show configured environment profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Default environment: %s\n", cfg.DefaultEnv)
		for name, envCfg := range cfg.Environments {
			fmt.Printf("  %s: %s", name, envCfg.BaseURL)
			if envCfg.AdminKey != "" {
				fmt.Print(" (admin key set)")
			}
			if envCfg.SDKKey != "" {
				fmt.Print(" (sdk key set)")
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)

	configSetCmd.Flags().StringVar(&configSetBaseURL, "set-base-url", "", "Base URL for the profile")
	configSetCmd.Flags().StringVar(&configSetAdminKey, "set-api-key", "", "Admin API key for the profile")
	configSetCmd.Flags().StringVar(&configSetSDKKey, "set-sdk-key", "", "SDK key for the profile")
	configSetCmd.Flags().BoolVar(&configSetDefault, "default", false, "Make this profile the default")
}

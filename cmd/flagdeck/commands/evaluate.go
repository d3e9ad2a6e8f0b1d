package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flagdeck/flagdeck/flags"
	"github.com/flagdeck/flagdeck/internal/cli"
)

var (
	evalUser    string
	evalOrg     string
	evalSession string
	evalEnv     string
	evalAttrs   []string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [flag-key]",
	Short: "Evaluate flags against a context",
	Long: `Evaluate one flag, or every flag when no key is given, for a
constructed evaluation context.

Examples:
  flagdeck evaluate checkout.flow --user u-42
  flagdeck evaluate checkout.flow --user u-42 --attr plan=enterprise
  flagdeck evaluate --org acme --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, effectiveEnv, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		key := sdkKey
		if key == "" {
			key = envCfg.SDKKey
		}

		ectx := flags.EvaluationContext{
			Environment: evalEnv,
			UserID:      evalUser,
			OrgID:       evalOrg,
			SessionID:   evalSession,
		}
		if ectx.Environment == "" {
			ectx.Environment = effectiveEnv
		}
		for _, attr := range evalAttrs {
			k, v, ok := strings.Cut(attr, "=")
			if !ok {
				return fmt.Errorf("invalid --attr %q, expected key=value", attr)
			}
			if ectx.Attributes == nil {
				ectx.Attributes = make(map[string]any)
			}
			ectx.Attributes[k] = v
		}

		c := cli.NewClient(envCfg.BaseURL, envCfg.AdminKey)
		ctx := context.Background()

		var results []flags.EvaluationResult
		if len(args) == 1 {
			result, err := c.Evaluate(ctx, key, args[0], ectx)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}
			results = []flags.EvaluationResult{*result}
		} else {
			results, err = c.EvaluateAll(ctx, key, ectx)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}
		}

		if quiet {
			return nil
		}
		return cli.PrintResults(results, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evalUser, "user", "", "User ID for the evaluation context")
	evaluateCmd.Flags().StringVar(&evalOrg, "org", "", "Organization ID for the evaluation context")
	evaluateCmd.Flags().StringVar(&evalSession, "session", "", "Session ID for the evaluation context")
	evaluateCmd.Flags().StringVar(&evalEnv, "context-env", "", "Environment for the evaluation context (defaults to the profile name)")
	evaluateCmd.Flags().StringArrayVar(&evalAttrs, "attr", nil, "Custom attribute as key=value (repeatable)")
}

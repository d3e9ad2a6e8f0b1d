package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flagdeck/flagdeck/internal/cli"
	"github.com/flagdeck/flagdeck/internal/store"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export flags to a file",
	Long: `Export all flags to a YAML or JSON file. The output matches the
server's seed file format, so it can be fed back with SEED_FILE or
flagdeck import.

Examples:
  flagdeck export --output flags.yaml
  flagdeck export --format json --output flags.json
  flagdeck export > backup.yaml`,
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

		seed := store.SeedFile{Flags: make([]store.SeedFlag, 0, len(recs))}
		for _, rec := range recs {
			sf := store.SeedFlag{Flag: rec.Flag, Strategy: rec.Strategy}
			if rec.Config != nil {
				enabled := rec.Config.Enabled
				sf.Enabled = &enabled
			}
			seed.Flags = append(seed.Flags, sf)
		}

		output := os.Stdout
		if exportOutput != "" && exportOutput != "-" {
			output, err = os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer output.Close()
		}

		switch format {
		case "json":
			encoder := json.NewEncoder(output)
			encoder.SetIndent("", "  ")
			return encoder.Encode(seed)
		default:
			// YAML is the export default, table makes no sense here.
			encoder := yaml.NewEncoder(output)
			defer encoder.Close()
			encoder.SetIndent(2)
			return encoder.Encode(seed)
		}
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportOutput, "output", "", "Output file (default stdout)")
}

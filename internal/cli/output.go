package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/flagdeck/flagdeck/flags"
	"github.com/flagdeck/flagdeck/internal/store"
)

// OutputFormat selects how CLI commands render their results.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintFlags renders flag records in the chosen format.
func PrintFlags(recs []store.FlagRecord, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(os.Stdout, map[string][]store.FlagRecord{"flags": recs})
	case FormatYAML:
		return printYAML(os.Stdout, map[string][]store.FlagRecord{"flags": recs})
	case FormatTable:
		return printFlagTable(os.Stdout, recs)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintFlag renders a single flag record.
func PrintFlag(rec *store.FlagRecord, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(os.Stdout, rec)
	case FormatYAML:
		return printYAML(os.Stdout, rec)
	case FormatTable:
		return printFlagTable(os.Stdout, []store.FlagRecord{*rec})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintResults renders evaluation results in the chosen format.
func PrintResults(results []flags.EvaluationResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(os.Stdout, map[string][]flags.EvaluationResult{"flags": results})
	case FormatYAML:
		return printYAML(os.Stdout, map[string][]flags.EvaluationResult{"flags": results})
	case FormatTable:
		return printResultTable(os.Stdout, results)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printFlagTable(w io.Writer, recs []store.FlagRecord) error {
	table := tablewriter.NewWriter(w)
	table.Header("Key", "Enabled", "Default", "Variants", "Strategy", "Archived")

	for _, rec := range recs {
		enabled := "-"
		if rec.Config != nil {
			enabled = strconv.FormatBool(rec.Config.Enabled)
		}
		strategy := "-"
		if rec.Strategy != nil {
			strategy = rec.Strategy.ID
			if rec.Strategy.Percentage != nil {
				strategy = fmt.Sprintf("%s (%d%%)", strategy, *rec.Strategy.Percentage)
			}
		}

		table.Append(
			rec.Flag.Key,
			enabled,
			rec.Flag.DefaultVariant,
			strconv.Itoa(len(rec.Flag.Variants)),
			strategy,
			strconv.FormatBool(rec.Flag.Archived()),
		)
	}

	return table.Render()
}

func printResultTable(w io.Writer, results []flags.EvaluationResult) error {
	table := tablewriter.NewWriter(w)
	table.Header("Flag", "Variant", "Value", "Reason", "Detail")

	for _, res := range results {
		detail := ""
		switch {
		case res.KillSwitchKey != "":
			detail = res.KillSwitchKey
		case res.MissingPrerequisite != "":
			detail = res.MissingPrerequisite
		case res.StrategyID != "":
			detail = res.StrategyID
		case res.Error != "":
			detail = res.Error
		}

		table.Append(
			res.FlagKey,
			res.Variant,
			fmt.Sprintf("%v", res.Value),
			string(res.Reason),
			detail,
		)
	}

	return table.Render()
}

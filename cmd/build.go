package cmd

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"bikegeo/internal/assembly"
	"bikegeo/internal/db"
)

var buildJSON bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the geometry dataset and export it as CSV",
	Long:  "Walks the source tree, inserts every leaf into a fresh bike_geometry table and writes the sentinel-resolved table to the output CSV. Any failure aborts the build without writing output.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ddl, err := db.LoadSchema(buildConfig.Schema)
		if err != nil {
			return err
		}

		result, err := assembly.Build(assembly.BuildOptions{
			DataDir:  buildConfig.DataDir,
			Output:   buildConfig.Output,
			Schema:   ddl,
			Database: buildConfig.Database,
			Sentinel: buildConfig.Sentinel,
		}, logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if buildJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Fprintf(out, "Built %s: %d row(s) from %d datasource(s) in %s\n",
			result.Output, result.Rows, result.Datasources, formatDurationShort(result.Duration.Milliseconds()))
		return nil
	},
}

func init() {
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "Output the build summary as JSON")
	rootCmd.AddCommand(buildCmd)
}

// formatDurationShort formats milliseconds into a compact human-readable string.
//
//	<1000ms  -> "0.Xs"
//	<60000ms -> "X.Xs"
//	<3600000 -> "XmYs"
//	else     -> "XhYm"
func formatDurationShort(ms int64) string {
	switch {
	case ms < 1000:
		return fmt.Sprintf("0.%ds", ms/100)
	case ms < 60000:
		return fmt.Sprintf("%d.%ds", ms/1000, (ms%1000)/100)
	case ms < 3600000:
		return fmt.Sprintf("%dm%ds", ms/60000, (ms%60000)/1000)
	default:
		return fmt.Sprintf("%dh%dm", ms/3600000, (ms%3600000)/60000)
	}
}

// truncCell shortens s to max bytes on a UTF-8 boundary, appending "...".
func truncCell(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}

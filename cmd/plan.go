package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"bikegeo/internal/assembly"
	"bikegeo/internal/db"
)

var (
	planSQL  bool
	planJSON bool
)

type planEntry struct {
	Dir     string   `json:"dir"`
	Source  string   `json:"source"`
	Columns []string `json:"columns,omitempty"`
	Query   string   `json:"query"`
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the extraction synthesized for every leaf, without building",
	Long:  "Walks the source tree and prints one extraction per leaf in build order. With --sql the exact INSERT statement is rendered from each geometry.csv header.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		queries, err := assembly.NewWalker(logger).Walk(buildConfig.DataDir)
		if err != nil {
			return err
		}

		entries := make([]planEntry, 0, len(queries))
		for _, q := range queries {
			e := planEntry{Dir: relTo(buildConfig.DataDir, q.Dir), Source: q.Path, Query: q.String()}
			if planSQL {
				header, err := db.ReadCSVHeader(q.Path)
				if err != nil {
					return err
				}
				if e.Columns, err = q.OutputColumns(header); err != nil {
					return err
				}
				if e.Query, err = db.InsertStatement(q, header); err != nil {
					return err
				}
			}
			entries = append(entries, e)
		}

		out := cmd.OutOrStdout()
		if planJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		if len(entries) == 0 {
			fmt.Fprintf(out, "No datasources found under %s\n", buildConfig.DataDir)
			return nil
		}
		for i, e := range entries {
			fmt.Fprintf(out, "%3d. %s\n     %s\n", i+1, e.Dir, e.Query)
		}
		fmt.Fprintf(out, "\n%d datasource(s)\n", len(entries))
		return nil
	},
}

func init() {
	planCmd.Flags().BoolVar(&planSQL, "sql", false, "Render the INSERT statements using each file's header")
	planCmd.Flags().BoolVar(&planJSON, "json", false, "JSON output")
	rootCmd.AddCommand(planCmd)
}

func relTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

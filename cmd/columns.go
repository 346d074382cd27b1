package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"bikegeo/internal/db"
)

var columnsJSON bool

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "List the canonical table's columns and their sentinel defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ddl, err := db.LoadSchema(buildConfig.Schema)
		if err != nil {
			return err
		}
		d, err := db.OpenDB(db.MemoryPath)
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.InitSchema(ddl); err != nil {
			return err
		}
		cols, err := d.TableColumns()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if columnsJSON {
			type column struct {
				db.Column
				Default  *string `json:"default"`
				Sentinel bool    `json:"sentinel"`
			}
			list := make([]column, len(cols))
			for i, c := range cols {
				list[i] = column{Column: c, Sentinel: c.HasDefault(buildConfig.Sentinel)}
				if c.Default.Valid {
					list[i].Default = &c.Default.String
				}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}

		for _, c := range cols {
			flags := ""
			if c.NotNull {
				flags += " NOT NULL"
			}
			if c.Default.Valid {
				flags += " DEFAULT " + c.Default.String
			}
			if c.HasDefault(buildConfig.Sentinel) {
				flags += "  [sentinel]"
			}
			fmt.Fprintf(out, "  %-18s %-8s%s\n", c.Name, c.Type, flags)
		}
		return nil
	},
}

func init() {
	columnsCmd.Flags().BoolVar(&columnsJSON, "json", false, "JSON output")
	rootCmd.AddCommand(columnsCmd)
}

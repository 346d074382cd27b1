package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	previewMaxRows  int
	previewMaxWidth int
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Build into the session database and print the resolved table",
	Long:  "Runs the same walk and inserts as build, then prints the sentinel-resolved bike_geometry table instead of writing the output CSV.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, leaves, err := openSession()
		if err != nil {
			return err
		}
		defer d.Close()

		total, err := d.CountRows()
		if err != nil {
			return err
		}

		var rows [][]string
		names, err := d.EachResolvedRow(buildConfig.Sentinel, previewMaxRows, func(row []string) error {
			for i := range row {
				row[i] = truncCell(row[i], previewMaxWidth)
			}
			rows = append(rows, row)
			return nil
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, renderTable(names, rows))
		if len(rows) < total {
			fmt.Fprintf(out, "… %d more rows not shown …\n", total-len(rows))
		}
		fmt.Fprintf(out, "%d row(s) from %d datasource(s)\n", total, leaves)
		return nil
	},
}

func init() {
	previewCmd.Flags().IntVar(&previewMaxRows, "max-rows", 20, "Maximum rows to print (0 = all)")
	previewCmd.Flags().IntVar(&previewMaxWidth, "max-width", 24, "Maximum cell width before truncation")
	rootCmd.AddCommand(previewCmd)
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	return t.Render()
}

package db

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

// TableName is the canonical destination table.
const TableName = "bike_geometry"

//go:embed schema.sql
var defaultSchema string

// DefaultSchema returns the embedded DDL for bike_geometry.
func DefaultSchema() string {
	return defaultSchema
}

// LoadSchema reads a DDL file, or returns the embedded schema when path is empty.
func LoadSchema(path string) (string, error) {
	if path == "" {
		return defaultSchema, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading schema: %w", err)
	}
	return string(data), nil
}

// InitSchema drops any existing bike_geometry, executes the DDL script and checks that
// it defined the canonical table, empty.
func (d *DB) InitSchema(ddl string) error {
	if _, err := d.conn.Exec("DROP TABLE IF EXISTS " + QuoteIdent(TableName)); err != nil {
		return fmt.Errorf("dropping %s: %w", TableName, err)
	}
	if _, err := d.conn.Exec(ddl); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	cols, err := d.TableColumns()
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return fmt.Errorf("initializing schema: table %s not defined", TableName)
	}
	n, err := d.CountRows()
	if err != nil {
		return err
	}
	if n != 0 {
		return fmt.Errorf("initializing schema: %s holds %d row(s) after init", TableName, n)
	}
	return nil
}

// TableColumns returns bike_geometry's columns in table order.
func (d *DB) TableColumns() ([]Column, error) {
	rows, err := d.conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdent(TableName)))
	if err != nil {
		return nil, fmt.Errorf("reading table info: %w", err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			c       Column
			cid     int
			notNull int
		)
		if err := rows.Scan(&cid, &c.Name, &c.Type, &notNull, &c.Default, &c.PK); err != nil {
			return nil, fmt.Errorf("scanning table info: %w", err)
		}
		c.NotNull = notNull != 0
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// QuoteIdent renders name as a double-quoted SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral renders s as a single-quoted SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

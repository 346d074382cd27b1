package db

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultSentinel is the placeholder default meaning "not supplied by the datasource".
const DefaultSentinel = "-1"

// SentinelColumns returns the columns whose declared default is the sentinel.
func (d *DB) SentinelColumns(sentinel string) ([]Column, error) {
	cols, err := d.TableColumns()
	if err != nil {
		return nil, err
	}
	var out []Column
	for _, c := range cols {
		if c.HasDefault(sentinel) {
			out = append(out, c)
		}
	}
	return out, nil
}

// ResolvedQuery builds the export projection: every column in table order, with
// sentinel-defaulted columns rewritten to NULL where they hold the sentinel.
// The comparison is "col = literal" so the column's affinity applies; NULLIF would
// miss a sentinel stored as -1 when the default was declared as '-1', or the reverse.
// Returns the column names and the SELECT.
func (d *DB) ResolvedQuery(sentinel string) ([]string, string, error) {
	cols, err := d.TableColumns()
	if err != nil {
		return nil, "", err
	}
	value := sentinelLiteral(sentinel)
	names := make([]string, len(cols))
	exprs := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		if c.HasDefault(sentinel) {
			col := QuoteIdent(c.Name)
			exprs[i] = fmt.Sprintf("CASE WHEN %s = %s THEN NULL ELSE %s END AS %s", col, value, col, col)
		} else {
			exprs[i] = QuoteIdent(c.Name)
		}
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(exprs, ", "), QuoteIdent(TableName))
	return names, query, nil
}

// sentinelLiteral renders the normalized sentinel as a numeric literal when it is a
// plain number, otherwise as a string literal.
func sentinelLiteral(sentinel string) string {
	s := normalizeDefault(sentinel)
	if _, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(strings.ToLower(s), "abcdfghijklmnopqrstuvwxyz_") {
		return s
	}
	return QuoteLiteral(s)
}

// EachResolvedRow streams the sentinel-resolved table, one row at a time, in insertion
// order. NULL values are rendered as empty strings. limit <= 0 means all rows.
func (d *DB) EachResolvedRow(sentinel string, limit int, fn func(row []string) error) ([]string, error) {
	names, query, err := d.ResolvedQuery(sentinel)
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := d.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", TableName, err)
	}
	defer rows.Close()

	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", TableName, err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		if err := fn(row); err != nil {
			return nil, err
		}
	}
	return names, rows.Err()
}

// ExportCSV writes the sentinel-resolved table to w with a header row.
// Returns the number of data rows written.
func (d *DB) ExportCSV(w io.Writer, sentinel string) (int, error) {
	names, _, err := d.ResolvedQuery(sentinel)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(names); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}
	n := 0
	_, err = d.EachResolvedRow(sentinel, 0, func(row []string) error {
		n++
		return cw.Write(row)
	})
	if err != nil {
		return n, fmt.Errorf("exporting %s: %w", TableName, err)
	}
	cw.Flush()
	return n, cw.Error()
}

// CountRows returns the number of rows in bike_geometry.
func (d *DB) CountRows() (int, error) {
	var n int
	err := d.conn.QueryRow("SELECT COUNT(*) FROM " + QuoteIdent(TableName)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", TableName, err)
	}
	return n, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

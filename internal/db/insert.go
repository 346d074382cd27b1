package db

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sourceTable is the temp virtual table a datasource is attached as while it is inserted.
const sourceTable = "temp.datasource"

// Extraction is one leaf datasource ready to be inserted into bike_geometry.
type Extraction interface {
	// SourcePath is the CSV file the extraction reads.
	SourcePath() string
	// OutputColumns returns the columns the extraction produces for the given CSV header.
	OutputColumns(header []string) ([]string, error)
	// SelectSQL renders the extraction as a SELECT over source.
	SelectSQL(source string, header []string) (string, error)
}

// InsertError is returned when a datasource cannot be inserted. Its message carries the
// full generated statement so the failing datasource is identifiable.
type InsertError struct {
	Source string
	SQL    string
	Err    error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("cannot insert bike geometry data from %s: %v\n%s", e.Source, e.Err, e.SQL)
}

func (e *InsertError) Unwrap() error { return e.Err }

// IsConstraint reports whether the insert failed on a table constraint
// (uniqueness, NOT NULL, CHECK, ...).
func (e *InsertError) IsConstraint() bool {
	var se *sqlite.Error
	if !errors.As(e.Err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

// InsertStatement renders the INSERT for x without executing it.
func InsertStatement(x Extraction, header []string) (string, error) {
	cols, err := x.OutputColumns(header)
	if err != nil {
		return "", err
	}
	sel, err := x.SelectSQL(sourceTable, header)
	if err != nil {
		return "", err
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) %s", QuoteIdent(TableName), strings.Join(quoted, ", "), sel), nil
}

// InsertDatasource inserts every row of x into bike_geometry, naming only the columns x
// produces so the table's declared defaults apply to the rest. Returns rows inserted.
func (d *DB) InsertDatasource(x Extraction) (int64, error) {
	path := x.SourcePath()
	header, err := ReadCSVHeader(path)
	if err != nil {
		return 0, err
	}
	stmt, err := InsertStatement(x, header)
	if err != nil {
		return 0, fmt.Errorf("building insert for %s: %w", path, err)
	}

	attach := fmt.Sprintf("CREATE VIRTUAL TABLE %s USING %s(%s)", sourceTable, CSVModule, QuoteLiteral(path))
	if _, err := d.conn.Exec(attach); err != nil {
		return 0, fmt.Errorf("attaching %s: %w", path, err)
	}
	defer d.conn.Exec("DROP TABLE IF EXISTS " + sourceTable)

	res, err := d.conn.Exec(stmt)
	if err != nil {
		return 0, &InsertError{Source: path, SQL: stmt, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting rows from %s: %w", path, err)
	}
	return n, nil
}

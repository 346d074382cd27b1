package db

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"modernc.org/sqlite/vtab"
)

// CSVModule is the virtual table module exposing one geometry.csv file as a read-only
// table: CREATE VIRTUAL TABLE temp.x USING geometry_csv('/path/geometry.csv').
// Every column is untyped; empty fields read as NULL.
const CSVModule = "geometry_csv"

func init() {
	if err := vtab.RegisterModule(nil, CSVModule, &csvModule{}); err != nil {
		panic(fmt.Sprintf("registering %s module: %v", CSVModule, err))
	}
}

// ReadCSVHeader returns the header row of a CSV file.
func ReadCSVHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading %s: empty file", path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return cleanHeader(path, header)
}

func readCSV(path string) ([]string, [][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("reading %s: empty file", path)
	}
	header, err := cleanHeader(path, records[0])
	if err != nil {
		return nil, nil, err
	}
	return header, records[1:], nil
}

func cleanHeader(path string, header []string) ([]string, error) {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("reading %s: column %d has an empty name", path, i+1)
		}
		out[i] = h
	}
	return out, nil
}

type csvModule struct{}

func (m *csvModule) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *csvModule) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *csvModule) connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	// args: [module, db, table, path]
	if len(args) != 4 {
		return nil, fmt.Errorf("%s: expected one file argument", CSVModule)
	}
	path := unquoteArg(args[3])

	header, records, err := readCSV(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", CSVModule, err)
	}

	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = QuoteIdent(h)
	}
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE x(%s)", strings.Join(cols, ", "))); err != nil {
		return nil, fmt.Errorf("%s: declaring %s: %w", CSVModule, path, err)
	}
	return &csvTable{path: path, header: header, rows: records}, nil
}

func unquoteArg(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		q := string(s[0])
		return strings.ReplaceAll(s[1:len(s)-1], q+q, q)
	}
	return s
}

type csvTable struct {
	path   string
	header []string
	rows   [][]string
}

// BestIndex: no pushdowns; full scan in file order.
func (t *csvTable) BestIndex(info *vtab.IndexInfo) error {
	info.EstimatedRows = int64(len(t.rows))
	return nil
}

func (t *csvTable) Open() (vtab.Cursor, error) {
	return &csvCursor{tbl: t, idx: -1}, nil
}

func (t *csvTable) Disconnect() error { return nil }
func (t *csvTable) Destroy() error    { return nil }

type csvCursor struct {
	tbl *csvTable
	idx int
}

func (c *csvCursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.idx = -1
	return c.Next()
}

func (c *csvCursor) Next() error {
	c.idx++
	return nil
}

func (c *csvCursor) Eof() bool {
	return c.idx >= len(c.tbl.rows)
}

func (c *csvCursor) Column(col int) (vtab.Value, error) {
	if c.idx < 0 || c.idx >= len(c.tbl.rows) {
		return nil, fmt.Errorf("%s: cursor out of range", CSVModule)
	}
	row := c.tbl.rows[c.idx]
	if col < 0 || col >= len(row) {
		return nil, fmt.Errorf("%s: invalid column %d", CSVModule, col)
	}
	v := strings.TrimSpace(row[col])
	if v == "" {
		return nil, nil
	}
	return v, nil
}

func (c *csvCursor) Rowid() (int64, error) {
	if c.idx < 0 || c.idx >= len(c.tbl.rows) {
		return 0, fmt.Errorf("%s: cursor out of range", CSVModule)
	}
	return int64(c.idx + 1), nil
}

func (c *csvCursor) Close() error { return nil }

package assembly

import (
	"fmt"
	"path/filepath"
	"strings"

	"bikegeo/internal/config"
	"bikegeo/internal/db"
)

// GeometryFile is the leaf payload that marks a directory as a datasource.
const GeometryFile = "geometry.csv"

// Rename maps a source metric column onto a canonical column name.
type Rename struct {
	From string
	To   string
}

// Literal is a constant column appended to every row of a datasource.
type Literal struct {
	Column string
	Value  string
}

// DatasourceQuery is the extraction for one leaf directory: which columns of its
// geometry.csv to drop or rename, and which inherited defaults to attach as constant
// columns. SQL is only rendered at the insert boundary.
type DatasourceQuery struct {
	Dir      string
	Path     string
	Exclude  []string
	Renames  []Rename
	Literals []Literal
}

// Synthesize builds the extraction for the leaf at dir from its inherited config.
func Synthesize(dir string, cfg InheritedConfig) DatasourceQuery {
	q := DatasourceQuery{
		Dir:  dir,
		Path: filepath.Join(dir, GeometryFile),
	}
	cfg.MetricMappings.Each(func(from, to string) {
		if to == config.ExcludeTarget {
			q.Exclude = append(q.Exclude, from)
		} else {
			q.Renames = append(q.Renames, Rename{From: from, To: to})
		}
	})
	cfg.Defaults.Each(func(k, v string) {
		q.Literals = append(q.Literals, Literal{Column: k, Value: v})
	})
	return q
}

// SourcePath implements db.Extraction.
func (q DatasourceQuery) SourcePath() string { return q.Path }

// projected is one output column: either a source column (possibly renamed) or a literal.
type projected struct {
	name    string
	source  string
	literal *Literal
}

func (q DatasourceQuery) projection(header []string) ([]projected, error) {
	var out []projected
	seen := make(map[string]string)
	add := func(p projected, origin string) error {
		key := strings.ToLower(p.name)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("%s: output column %q produced by both %s and %s", q.Path, p.name, prev, origin)
		}
		seen[key] = origin
		out = append(out, p)
		return nil
	}

	for _, col := range header {
		if q.excludes(col) {
			continue
		}
		name := col
		if to, ok := q.renameOf(col); ok {
			name = to
		}
		if err := add(projected{name: name, source: col}, fmt.Sprintf("column %q", col)); err != nil {
			return nil, err
		}
	}
	for i := range q.Literals {
		lit := &q.Literals[i]
		// The leaf's own data is more specific than an inherited default.
		if _, ok := seen[strings.ToLower(lit.Column)]; ok {
			continue
		}
		if err := add(projected{name: lit.Column, literal: lit}, fmt.Sprintf("default %q", lit.Column)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (q DatasourceQuery) excludes(col string) bool {
	for _, e := range q.Exclude {
		if strings.EqualFold(e, col) {
			return true
		}
	}
	return false
}

func (q DatasourceQuery) renameOf(col string) (string, bool) {
	for _, r := range q.Renames {
		if strings.EqualFold(r.From, col) {
			return r.To, true
		}
	}
	return "", false
}

// OutputColumns returns the columns the extraction yields for a CSV with the given header.
func (q DatasourceQuery) OutputColumns(header []string) ([]string, error) {
	proj, err := q.projection(header)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(proj))
	for i, p := range proj {
		cols[i] = p.name
	}
	return cols, nil
}

// SelectSQL renders the extraction as a SELECT over source.
func (q DatasourceQuery) SelectSQL(source string, header []string) (string, error) {
	proj, err := q.projection(header)
	if err != nil {
		return "", err
	}
	if len(proj) == 0 {
		return "", fmt.Errorf("%s: every column is excluded", q.Path)
	}
	exprs := make([]string, len(proj))
	for i, p := range proj {
		switch {
		case p.literal != nil:
			exprs[i] = fmt.Sprintf("%s AS %s", db.QuoteLiteral(p.literal.Value), db.QuoteIdent(p.name))
		case p.name != p.source:
			exprs[i] = fmt.Sprintf("%s AS %s", db.QuoteIdent(p.source), db.QuoteIdent(p.name))
		default:
			exprs[i] = db.QuoteIdent(p.source)
		}
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), source), nil
}

// String renders the extraction without a header, the way plan output shows it.
func (q DatasourceQuery) String() string {
	var b strings.Builder
	b.WriteString("SELECT *")
	if len(q.Exclude) > 0 {
		quoted := make([]string, len(q.Exclude))
		for i, e := range q.Exclude {
			quoted[i] = db.QuoteIdent(e)
		}
		fmt.Fprintf(&b, " EXCLUDE (%s)", strings.Join(quoted, ", "))
	}
	if len(q.Renames) > 0 {
		renames := make([]string, len(q.Renames))
		for i, r := range q.Renames {
			renames[i] = fmt.Sprintf("%s AS %s", db.QuoteIdent(r.From), db.QuoteIdent(r.To))
		}
		fmt.Fprintf(&b, " RENAME (%s)", strings.Join(renames, ", "))
	}
	for _, l := range q.Literals {
		fmt.Fprintf(&b, ", %s AS %s", db.QuoteLiteral(l.Value), db.QuoteIdent(l.Column))
	}
	fmt.Fprintf(&b, " FROM %s", db.QuoteLiteral(q.Path))
	return b.String()
}

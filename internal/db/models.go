package db

import (
	"database/sql"
	"strings"
)

// Column describes one column of bike_geometry as reported by PRAGMA table_info
type Column struct {
	Name    string         `json:"name"`
	Type    string         `json:"type"`    // declared type, e.g. "REAL"
	NotNull bool           `json:"not_null"`
	Default sql.NullString `json:"default"` // declared default as SQL text, e.g. "-1"
	PK      int            `json:"pk"`      // 1-based position in the primary key, 0 if none
}

// HasDefault reports whether the column's declared default equals value.
// Quotes, parentheses and surrounding whitespace are ignored, so DEFAULT -1,
// DEFAULT (-1) and DEFAULT '-1' all match "-1".
func (c Column) HasDefault(value string) bool {
	if !c.Default.Valid {
		return false
	}
	return normalizeDefault(c.Default.String) == normalizeDefault(value)
}

func normalizeDefault(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '(' && last == ')') || (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}
	return s
}

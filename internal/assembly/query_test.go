package assembly

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikegeo/internal/config"
)

func TestSynthesize_NoMappings(t *testing.T) {
	q := Synthesize("data/canyon", InheritedConfig{
		Defaults: config.NewMapping("brand", "Canyon", "model", "Endurace"),
	})

	assert.Equal(t, "data/canyon/geometry.csv", q.SourcePath())
	assert.Empty(t, q.Exclude)
	assert.Empty(t, q.Renames)

	cols, err := q.OutputColumns([]string{"size", "reach", "stack"})
	require.NoError(t, err)
	assert.Equal(t, []string{"size", "reach", "stack", "brand", "model"}, cols)

	sql, err := q.SelectSQL("src", []string{"size", "reach", "stack"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "size", "reach", "stack", 'Canyon' AS "brand", 'Endurace' AS "model" FROM src`, sql)
}

func TestSynthesize_ExcludeAndRename(t *testing.T) {
	q := Synthesize("leaf", InheritedConfig{
		MetricMappings: config.NewMapping("stack", "-", "reach", "wheelbase_reach"),
	})

	if diff := cmp.Diff([]string{"stack"}, q.Exclude); diff != "" {
		t.Errorf("Exclude mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Rename{{From: "reach", To: "wheelbase_reach"}}, q.Renames); diff != "" {
		t.Errorf("Renames mismatch (-want +got):\n%s", diff)
	}

	header := []string{"size", "reach", "stack", "wheelbase"}
	cols, err := q.OutputColumns(header)
	require.NoError(t, err)
	assert.Equal(t, []string{"size", "wheelbase_reach", "wheelbase"}, cols)
	assert.NotContains(t, cols, "stack")

	sql, err := q.SelectSQL("src", header)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "size", "reach" AS "wheelbase_reach", "wheelbase" FROM src`, sql)
}

func TestSynthesize_MappingKeysMatchCaseInsensitively(t *testing.T) {
	q := Synthesize("leaf", InheritedConfig{
		MetricMappings: config.NewMapping("stack", "-", "reach", "frame_reach"),
	})
	cols, err := q.OutputColumns([]string{"Size", "Reach", "STACK"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Size", "frame_reach"}, cols)
}

func TestSynthesize_UnmentionedMappingKeysIgnored(t *testing.T) {
	q := Synthesize("leaf", InheritedConfig{
		MetricMappings: config.NewMapping("trail", "-", "bb_drop", "drop"),
	})
	cols, err := q.OutputColumns([]string{"size", "reach"})
	require.NoError(t, err)
	assert.Equal(t, []string{"size", "reach"}, cols)
}

func TestSynthesize_LiteralOrderFollowsMergedDefaults(t *testing.T) {
	cfg := InheritedConfig{}.
		With(config.NewMapping("brand", "Canyon", "year", "2024"), config.Mapping{}).
		With(config.NewMapping("model", "Endurace", "year", "2025"), config.Mapping{})

	q := Synthesize("leaf", cfg)
	want := []Literal{
		{Column: "brand", Value: "Canyon"},
		{Column: "year", Value: "2025"},
		{Column: "model", Value: "Endurace"},
	}
	if diff := cmp.Diff(want, q.Literals); diff != "" {
		t.Errorf("Literals mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_DataColumnWinsOverDefault(t *testing.T) {
	q := Synthesize("leaf", InheritedConfig{
		Defaults: config.NewMapping("brand", "Canyon", "year", "2025"),
	})
	cols, err := q.OutputColumns([]string{"size", "year"})
	require.NoError(t, err)
	assert.Equal(t, []string{"size", "year", "brand"}, cols)
}

func TestSynthesize_RenameOntoDefaultColumn(t *testing.T) {
	q := Synthesize("leaf", InheritedConfig{
		Defaults:       config.NewMapping("year", "2025"),
		MetricMappings: config.NewMapping("model_year", "year"),
	})
	cols, err := q.OutputColumns([]string{"size", "model_year"})
	require.NoError(t, err)
	assert.Equal(t, []string{"size", "year"}, cols)
}

func TestSynthesize_DuplicateOutputColumn(t *testing.T) {
	q := Synthesize("leaf", InheritedConfig{
		MetricMappings: config.NewMapping("reach", "stack"),
	})
	_, err := q.OutputColumns([]string{"size", "reach", "stack"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"stack"`)
}

func TestSynthesize_EverythingExcluded(t *testing.T) {
	q := Synthesize("leaf", InheritedConfig{
		MetricMappings: config.NewMapping("size", "-"),
	})
	_, err := q.SelectSQL("src", []string{"size"})
	assert.ErrorContains(t, err, "every column is excluded")
}

func TestSynthesize_QuotesLiterals(t *testing.T) {
	q := Synthesize("leaf", InheritedConfig{
		Defaults: config.NewMapping("model", "Rock'n'Roll"),
	})
	sql, err := q.SelectSQL("src", []string{"size"})
	require.NoError(t, err)
	assert.Contains(t, sql, `'Rock''n''Roll' AS "model"`)
}

func TestDatasourceQuery_String(t *testing.T) {
	q := Synthesize("leaf", InheritedConfig{
		Defaults:       config.NewMapping("brand", "Canyon"),
		MetricMappings: config.NewMapping("stack", "-", "reach", "wheelbase_reach"),
	})
	assert.Equal(t,
		`SELECT * EXCLUDE ("stack") RENAME ("reach" AS "wheelbase_reach"), 'Canyon' AS "brand" FROM 'leaf/geometry.csv'`,
		q.String())
}

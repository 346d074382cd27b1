package assembly

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"bikegeo/internal/db"
)

func readExport(t *testing.T, path string) []map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)

	header := records[0]
	var rows []map[string]string
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, h := range header {
			row[h] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows
}

func canyonTree(t *testing.T) string {
	return makeTree(t, map[string]string{
		"canyon/defaults.ini":               "brand = Canyon\n",
		"canyon/endurace/defaults.ini":      "model = Endurace\n",
		"canyon/endurace/2025/defaults.ini": "year = 2025\n",
		"canyon/endurace/2025/geometry.csv": "size,reach,stack\nM,390,580\n",
	})
}

func TestBuild_EndToEnd(t *testing.T) {
	root := canyonTree(t)
	out := filepath.Join(t.TempDir(), "build", "database.csv")

	result, err := Build(BuildOptions{DataDir: root, Output: out}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Datasources)
	assert.Equal(t, 1, result.Rows)
	assert.NotEmpty(t, result.BuildID)

	rows := readExport(t, out)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "M", row["size"])
	assert.Equal(t, "390", row["reach"])
	assert.Equal(t, "580", row["stack"])
	assert.Equal(t, "Canyon", row["brand"])
	assert.Equal(t, "Endurace", row["model"])
	assert.Equal(t, "2025", row["year"])
	for col, v := range row {
		assert.NotEqual(t, db.DefaultSentinel, v, "column %s holds the sentinel", col)
	}

	// header follows the canonical schema's column order
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	header := strings.SplitN(string(data), "\n", 2)[0]
	assert.True(t, strings.HasPrefix(header, "size,reach,stack,"), header)
	assert.True(t, strings.HasSuffix(header, ",brand,model,year"), header)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestBuild_MissingYearExportedEmpty(t *testing.T) {
	root := makeTree(t, map[string]string{
		"defaults.ini":        "brand = Fairlight\nmodel = Strael\n",
		"strael/geometry.csv": "size,reach,stack\n52,380,560\n",
	})
	out := filepath.Join(t.TempDir(), "database.csv")

	_, err := Build(BuildOptions{DataDir: root, Output: out}, nil)
	require.NoError(t, err)

	rows := readExport(t, out)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0]["year"])
}

func TestBuild_RenameAndExclude(t *testing.T) {
	root := makeTree(t, map[string]string{
		"defaults.ini":        "brand = Giant\nmodel = TCR\nyear = 2025\n",
		"metric_mappings.ini": "frame_stack = stack\nnotes = -\n",
		"tcr/geometry.csv":    "size,reach,frame_stack,notes\nM,387,557,aero\n",
	})
	out := filepath.Join(t.TempDir(), "database.csv")

	_, err := Build(BuildOptions{DataDir: root, Output: out}, nil)
	require.NoError(t, err)

	rows := readExport(t, out)
	require.Len(t, rows, 1)
	assert.Equal(t, "557", rows[0]["stack"])
	assert.NotContains(t, rows[0], "notes")
	assert.NotContains(t, rows[0], "frame_stack")
}

func TestBuild_Deterministic(t *testing.T) {
	root := makeTree(t, map[string]string{
		"defaults.ini":               "brand = Canyon\n",
		"grail/defaults.ini":         "model = Grail\n",
		"grail/geometry.csv":         "size,reach\nS,370\nM,385\nL,400\n",
		"aeroad/defaults.ini":        "model = Aeroad\nyear = 2024\n",
		"aeroad/geometry.csv":        "size,reach\nM,395\nS,380\n",
		"endurace/defaults.ini":      "model = Endurace\n",
		"endurace/2025/defaults.ini": "year = 2025\n",
		"endurace/2025/geometry.csv": "size,reach\nM,390\n",
	})
	dir := t.TempDir()
	first := filepath.Join(dir, "first.csv")
	second := filepath.Join(dir, "second.csv")

	_, err := Build(BuildOptions{DataDir: root, Output: first}, nil)
	require.NoError(t, err)
	_, err = Build(BuildOptions{DataDir: root, Output: second}, nil)
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	var order []string
	for _, row := range readExport(t, first) {
		order = append(order, row["model"]+"/"+row["size"])
	}
	assert.Equal(t, []string{"Aeroad/M", "Aeroad/S", "Endurace/M", "Grail/S", "Grail/M", "Grail/L"}, order)
}

func TestBuild_ConstraintViolationAborts(t *testing.T) {
	root := makeTree(t, map[string]string{
		"defaults.ini":   "brand = Canyon\nmodel = Endurace\nyear = 2025\n",
		"a/geometry.csv": "size,reach\nM,390\n",
		"b/geometry.csv": "size,reach\nM,391\n",
	})
	out := filepath.Join(t.TempDir(), "database.csv")

	_, err := Build(BuildOptions{DataDir: root, Output: out}, nil)
	require.Error(t, err)

	var insertErr *db.InsertError
	require.True(t, errors.As(err, &insertErr))
	assert.True(t, insertErr.IsConstraint())
	assert.Equal(t, filepath.Join(root, "b", "geometry.csv"), insertErr.Source)
	assert.Contains(t, err.Error(), `INSERT INTO "bike_geometry"`)
	assert.Contains(t, err.Error(), `'Endurace' AS "model"`)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no output expected after a failed build")
	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Empty(t, entries, "temp export left behind")
}

func TestBuild_CustomSchemaAndSentinel(t *testing.T) {
	root := makeTree(t, map[string]string{
		"defaults.ini": "brand = Trek\n",
		"geometry.csv": "size,reach\n56,391\n",
	})
	schema := `
CREATE TABLE bike_geometry (
	brand TEXT NOT NULL,
	size  TEXT NOT NULL,
	reach REAL DEFAULT 0,
	year  INTEGER NOT NULL DEFAULT 0,
	model TEXT NOT NULL DEFAULT 'unknown'
);`
	out := filepath.Join(t.TempDir(), "database.csv")

	_, err := Build(BuildOptions{DataDir: root, Output: out, Schema: schema, Sentinel: "0"}, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "brand,size,reach,year,model\nTrek,56,391,,unknown\n", string(data))
}

func TestBuild_FileDatabase(t *testing.T) {
	root := canyonTree(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "session.db")

	for i := 0; i < 2; i++ {
		_, err := Build(BuildOptions{DataDir: root, Output: filepath.Join(dir, "out.csv"), Database: dbPath}, nil)
		require.NoError(t, err, "run %d", i)
	}
	rows := readExport(t, filepath.Join(dir, "out.csv"))
	assert.Len(t, rows, 1)
}

func TestBuild_Logging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	root := canyonTree(t)

	_, err := Build(BuildOptions{DataDir: root, Output: filepath.Join(t.TempDir(), "out.csv")}, zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("build started").Len())
	assert.Equal(t, 1, logs.FilterMessage("build finished").Len())
	assert.Equal(t, 1, logs.FilterMessage("inserted datasource").Len())
	assert.NotZero(t, logs.FilterMessage("merged config").Len())
}

func TestPopulate_StopsAtFirstFailure(t *testing.T) {
	root := makeTree(t, map[string]string{
		"defaults.ini":   "brand = Canyon\nmodel = Endurace\n",
		"a/geometry.csv": "size,reach\nM,390\n",
		"b/geometry.csv": "size,wheelbase_reach\nM,390\n",
		"c/geometry.csv": "size,reach\nL,400\n",
	})
	d, err := db.OpenDB(db.MemoryPath)
	require.NoError(t, err)
	defer d.Close()

	_, err = Populate(d, root, db.DefaultSchema(), nil)
	require.Error(t, err)

	count, err := d.CountRows()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

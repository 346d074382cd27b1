package assembly

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bikegeo/internal/db"
)

// BuildOptions configures one full rebuild.
type BuildOptions struct {
	DataDir  string
	Output   string
	Schema   string // DDL text
	Database string // ":memory:" or a SQLite file
	Sentinel string
}

// BuildResult summarizes a successful build.
type BuildResult struct {
	BuildID     string        `json:"build_id"`
	Datasources int           `json:"datasources"`
	Rows        int           `json:"rows"`
	Output      string        `json:"output"`
	Duration    time.Duration `json:"duration"`
}

// Populate initializes the canonical table from ddl and inserts every leaf under dataDir,
// one at a time in walk order. The first failure aborts. Returns the leaf count.
func Populate(d *db.DB, dataDir, ddl string, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := d.InitSchema(ddl); err != nil {
		return 0, err
	}

	queries, err := NewWalker(log).Walk(dataDir)
	if err != nil {
		return 0, err
	}

	for _, q := range queries {
		n, err := d.InsertDatasource(q)
		if err != nil {
			return 0, err
		}
		log.Debug("inserted datasource", zap.String("source", q.Path), zap.Int64("rows", n))
	}
	return len(queries), nil
}

// Build runs a full rebuild: populate the session table, then export the
// sentinel-resolved table to opts.Output. Nothing is written unless every leaf inserts.
func Build(opts BuildOptions, log *zap.Logger) (*BuildResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Sentinel == "" {
		opts.Sentinel = db.DefaultSentinel
	}
	if opts.Database == "" {
		opts.Database = db.MemoryPath
	}
	if opts.Schema == "" {
		opts.Schema = db.DefaultSchema()
	}

	start := time.Now()
	buildID := uuid.NewString()
	log = log.With(zap.String("build_id", buildID))
	log.Info("build started", zap.String("data_dir", opts.DataDir), zap.String("database", opts.Database))

	d, err := db.OpenDB(opts.Database)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	leaves, err := Populate(d, opts.DataDir, opts.Schema, log)
	if err != nil {
		return nil, err
	}

	rows, err := exportFile(d, opts.Output, opts.Sentinel)
	if err != nil {
		return nil, err
	}

	result := &BuildResult{
		BuildID:     buildID,
		Datasources: leaves,
		Rows:        rows,
		Output:      opts.Output,
		Duration:    time.Since(start),
	}
	log.Info("build finished",
		zap.Int("datasources", result.Datasources),
		zap.Int("rows", result.Rows),
		zap.String("output", result.Output),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// exportFile writes the export next to path and renames it into place once complete.
func exportFile(d *db.DB, path, sentinel string) (int, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, fmt.Errorf("creating output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	rows, err := d.ExportCSV(tmp, sentinel)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return rows, nil
}

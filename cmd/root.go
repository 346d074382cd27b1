package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bikegeo/internal/assembly"
	"bikegeo/internal/config"
	"bikegeo/internal/db"
	"bikegeo/internal/logging"
)

var (
	configPath string
	dataDir    string
	outputPath string
	schemaPath string
	dbPath     string
	sentinel   string
	logLevel   string
	logFormat  string
	verbose    bool

	// resolved in PersistentPreRunE
	buildConfig *config.BuildConfig
	logger      *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bikegeo",
	Short: "Assemble the bike geometry dataset from a tree of per-model sources",
	Long: `bikegeo walks a source tree of brand/model/year directories, each leaf holding a
geometry.csv, layers the defaults.ini and metric_mappings.ini overrides found on the
way down, loads every leaf into the canonical bike_geometry table and exports it as
a single CSV.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadBuildConfig(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		buildConfig = cfg

		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "YAML build config file")
	flags.StringVar(&dataDir, "data", "data", "Root of the geometry source tree")
	flags.StringVar(&outputPath, "out", "build/database.csv", "Output CSV file")
	flags.StringVar(&schemaPath, "schema", "", "DDL file defining bike_geometry (default: embedded schema)")
	flags.StringVar(&dbPath, "db", db.MemoryPath, "SQLite database holding the build session")
	flags.StringVar(&sentinel, "sentinel", db.DefaultSentinel, "Column default treated as \"not supplied\" on export")
	flags.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "console", "Log format: console, json")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Shorthand for --log-level=debug")
}

// applyFlags overrides config file values with flags given on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.BuildConfig) {
	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("out") {
		cfg.Output = outputPath
	}
	if flags.Changed("schema") {
		cfg.Schema = schemaPath
	}
	if flags.Changed("db") {
		cfg.Database = dbPath
	}
	if flags.Changed("sentinel") {
		cfg.Sentinel = sentinel
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
}

// openSession opens the configured database and loads every leaf of the source tree.
// Returns the open database and the number of datasources inserted.
func openSession() (*db.DB, int, error) {
	ddl, err := db.LoadSchema(buildConfig.Schema)
	if err != nil {
		return nil, 0, err
	}
	d, err := db.OpenDB(buildConfig.Database)
	if err != nil {
		return nil, 0, err
	}
	n, err := assembly.Populate(d, buildConfig.DataDir, ddl, logger)
	if err != nil {
		d.Close()
		return nil, 0, err
	}
	return d, n, nil
}

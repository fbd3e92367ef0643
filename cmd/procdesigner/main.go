// procdesigner stores, validates and renders process diagrams in the
// designer's exchange format.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rendis/procdesigner/internal/expressions"
	"github.com/rendis/procdesigner/internal/logging"
	"github.com/rendis/procdesigner/internal/registry"
	"github.com/rendis/procdesigner/internal/store"
	"github.com/rendis/procdesigner/internal/streaming"
	"github.com/rendis/procdesigner/internal/validation"
)

// app carries the resolved configuration into every subcommand.
type app struct {
	settings string
	logLevel string
	dbPath   string
	version  int

	cfg    Config
	logger *slog.Logger
	hub    streaming.Hub // set by serve
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "procdesigner",
		Short:         "Store, validate and render process designer diagrams",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.settings, "settings", settingsPath(), "settings file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.dbPath, "db-path", "", "database path (default: ~/.procdesigner/procdesigner.db)")
	pf.IntVar(&a.version, "format-version", 0, "payload format version written on save: 1 or 2")

	root.AddCommand(
		newServeCmd(a),
		newMCPCmd(a),
		newDecodeCmd(a),
		newEncodeCmd(a),
		newValidateCmd(a),
		newRenderCmd(a),
		newQueryCmd(a),
		newVersionCmd(),
	)
	return root
}

// init resolves configuration: defaults, settings file, .env and process
// environment, then flags.
func (a *app) init(cmd *cobra.Command) error {
	// A .env file only fills variables the environment does not already set.
	_ = godotenv.Load()

	cfg, err := loadConfig(a.settings)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("db-path") {
		cfg.DBPath = a.dbPath
	}
	if flags.Changed("format-version") {
		cfg.FormatVersion = a.version
		if err := cfg.validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.logger = logging.New(os.Stderr, cfg.LogLevel)
	slog.SetDefault(a.logger)
	return nil
}

// openStore opens and migrates the configured database.
func (a *app) openStore(cmd *cobra.Command) (*store.LibSQLStore, error) {
	if !strings.Contains(a.cfg.DBPath, "://") {
		dir := filepath.Dir(strings.TrimPrefix(a.cfg.DBPath, "file:"))
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	st, err := store.NewLibSQLStore(a.cfg.dbURL())
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(cmd.Context()); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// buildRegistry returns the builtin variants plus the configured ones.
func buildRegistry(cfg Config) (*registry.Registry, error) {
	reg := registry.Default()
	if err := reg.LoadTable(cfg.Variants); err != nil {
		return nil, fmt.Errorf("variants: %w", err)
	}
	return reg, nil
}

// buildValidator compiles the configured lint rules.
func buildValidator(cfg Config) (*validation.DiagramValidator, error) {
	var engines expressions.Engines
	if len(cfg.LintRules) > 0 {
		var err error
		if engines, err = expressions.NewEngines(); err != nil {
			return nil, fmt.Errorf("expression engines: %w", err)
		}
	}
	v, err := validation.NewDiagramValidator(engines, cfg.LintRules...)
	if err != nil {
		return nil, fmt.Errorf("lint_rules: %w", err)
	}
	return v, nil
}

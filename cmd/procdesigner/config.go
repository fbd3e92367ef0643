package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/rendis/procdesigner/internal/scheduler"
	"github.com/rendis/procdesigner/internal/validation"
	"github.com/rendis/procdesigner/pkg/payload"
)

// Config holds all procdesigner configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	ListenAddr    string `json:"listen_addr"`
	DBPath        string `json:"db_path"`
	LogLevel      string `json:"log_level"`
	FormatVersion int    `json:"format_version"`
	KeepRevisions int    `json:"keep_revisions"`
	PruneSchedule string `json:"prune_schedule"`
	AsciiBin      string `json:"ascii_bin,omitempty"`

	// Variants maps extra variant names to their shape kind.
	Variants  map[string]string     `json:"variants,omitempty"`
	LintRules []validation.LintRule `json:"lint_rules,omitempty"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:    ":4200",
		DBPath:        filepath.Join(designerDir(), "procdesigner.db"),
		LogLevel:      "info",
		FormatVersion: payload.VersionLegacy,
		KeepRevisions: 50,
		PruneSchedule: scheduler.DefaultSchedule,
		AsciiBin:      filepath.Join(designerDir(), "bin", "mermaid-ascii"),
	}
}

func designerDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".procdesigner"
	}
	return filepath.Join(home, ".procdesigner")
}

func settingsPath() string {
	return filepath.Join(designerDir(), "settings.json")
}

func pidPath() string {
	return filepath.Join(designerDir(), "procdesigner.pid")
}

// loadConfig layers settings.json and the environment over the defaults.
// A missing settings file is not an error; a malformed one is.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if v := os.Getenv("PROCDESIGNER_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("PROCDESIGNER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PROCDESIGNER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PROCDESIGNER_FORMAT_VERSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FormatVersion = n
		}
	}
	if v := os.Getenv("PROCDESIGNER_KEEP_REVISIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.KeepRevisions = n
		}
	}
	if v := os.Getenv("PROCDESIGNER_PRUNE_SCHEDULE"); v != "" {
		cfg.PruneSchedule = v
	}
	if v := os.Getenv("PROCDESIGNER_ASCII_BIN"); v != "" {
		cfg.AsciiBin = v
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.FormatVersion != payload.VersionLegacy && c.FormatVersion != payload.VersionDocument {
		return fmt.Errorf("format_version must be %d or %d, got %d", payload.VersionLegacy, payload.VersionDocument, c.FormatVersion)
	}
	if c.KeepRevisions < 1 {
		return fmt.Errorf("keep_revisions must be at least 1, got %d", c.KeepRevisions)
	}
	return nil
}

// dbURL turns a plain path into the file: URL go-libsql expects.
func (c Config) dbURL() string {
	if strings.HasPrefix(c.DBPath, "file:") || strings.Contains(c.DBPath, "://") {
		return c.DBPath
	}
	return "file:" + c.DBPath
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	RulesChanged    bool
	VariantsChanged bool
	LogLevelChanged bool
	RestartNeeded   []string // fields that require a server restart
}

// HandlerChanged reports whether the HTTP handler must be rebuilt.
func (d configDiff) HandlerChanged() bool {
	return d.RulesChanged || d.VariantsChanged
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	d.RulesChanged = !slices.EqualFunc(old.LintRules, new.LintRules, lintRuleEqual)
	d.VariantsChanged = !maps.Equal(old.Variants, new.Variants)
	d.LogLevelChanged = old.LogLevel != new.LogLevel

	if old.ListenAddr != new.ListenAddr {
		d.RestartNeeded = append(d.RestartNeeded, "listen_addr")
	}
	if old.DBPath != new.DBPath {
		d.RestartNeeded = append(d.RestartNeeded, "db_path")
	}
	if old.FormatVersion != new.FormatVersion {
		d.RestartNeeded = append(d.RestartNeeded, "format_version")
	}
	if old.KeepRevisions != new.KeepRevisions || old.PruneSchedule != new.PruneSchedule {
		d.RestartNeeded = append(d.RestartNeeded, "prune")
	}
	return d
}

func lintRuleEqual(a, b validation.LintRule) bool {
	return a.Name == b.Name && a.Expression == b.Expression && a.Lang == b.Lang &&
		a.Severity == b.Severity && a.Message == b.Message && slices.Equal(a.Kinds, b.Kinds)
}

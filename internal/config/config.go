package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds daemon settings. Resolution order: defaults, then the
// YAML config file, then TABSPEICHER_* environment variables. Flags in
// main override all three.
type Config struct {
	Port      int    `yaml:"port"`       // WebSocket port for control surfaces
	DBPath    string `yaml:"db_path"`    // SQLite database file
	ExportDir string `yaml:"export_dir"` // where export files are written
	ViewMode  string `yaml:"view_mode"`  // default list view: date|title|domain
	LogDir    string `yaml:"log_dir"`    // applog directory
}

// DefaultPath returns ~/.config/tabspeicher/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tabspeicher", "config.yaml")
}

func dataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "tabspeicher")
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:      19192,
		DBPath:    filepath.Join(dataDir(), "tabspeicher.db"),
		ExportDir: filepath.Join(dataDir(), "exports"),
		ViewMode:  "date",
		LogDir:    dataDir(),
	}
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// No config file is fine.
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TABSPEICHER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("TABSPEICHER_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TABSPEICHER_EXPORT_DIR"); v != "" {
		cfg.ExportDir = v
	}
	if v := os.Getenv("TABSPEICHER_VIEW_MODE"); v != "" {
		cfg.ViewMode = v
	}
	if v := os.Getenv("TABSPEICHER_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
}

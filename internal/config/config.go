package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultDBPath is the default location for the index database
	DefaultDBPath = "~/.projectindex/index.db"

	// DefaultProjectsRoot is the default project configuration directory
	DefaultProjectsRoot = "~/.projectindex/projects"

	// DefaultConfigPath is read when no config file is named explicitly
	DefaultConfigPath = "~/.projectindex/config.yaml"
)

// Environment overrides
const (
	EnvDBPath       = "PROJECTINDEX_DB_PATH"
	EnvProjectsRoot = "PROJECTINDEX_PROJECTS_ROOT"
	EnvLogLevel     = "PROJECTINDEX_LOG_LEVEL"
	EnvWorkers      = "PROJECTINDEX_REINDEX_WORKERS"
)

// Config is the service configuration
type Config struct {
	DatabasePath string        `yaml:"database_path" validate:"required"`
	ProjectsRoot string        `yaml:"projects_root" validate:"required"`
	LogLevel     string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	MetricsAddr  string        `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	Index        IndexConfig   `yaml:"index"`
	Reindex      ReindexConfig `yaml:"reindex"`
	Cache        CacheConfig   `yaml:"cache"`
	Watch        WatchConfig   `yaml:"watch"`
}

// IndexConfig selects the schema versions in use
type IndexConfig struct {
	// Versions receiving every write
	WriteVersions []int `yaml:"write_versions" validate:"required,min=1,unique,dive,oneof=4 5"`
	// Version answering searches; 0 picks the highest ready write version
	SearchVersion int `yaml:"search_version" validate:"omitempty,oneof=4 5"`
	// Re-check and reindex descendants after a project is indexed
	ReindexStaleDescendants bool `yaml:"reindex_stale_descendants"`
}

// ReindexConfig sizes the batch reindexer
type ReindexConfig struct {
	Workers int `yaml:"workers" validate:"gte=1,lte=1024"`
}

// CacheConfig sizes the project cache
type CacheConfig struct {
	Size int `yaml:"size" validate:"gte=1"`
}

// WatchConfig controls the project directory watcher
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

var validate = validator.New()

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DatabasePath: DefaultDBPath,
		ProjectsRoot: DefaultProjectsRoot,
		LogLevel:     "info",
		Index: IndexConfig{
			WriteVersions:           []int{5},
			ReindexStaleDescendants: true,
		},
		Reindex: ReindexConfig{Workers: runtime.NumCPU()},
		Cache:   CacheConfig{Size: 1024},
		Watch:   WatchConfig{Enabled: true, Debounce: 250 * time.Millisecond},
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment, in that order. An empty path reads DefaultConfigPath if
// it exists; a named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	if err := loadFile(expandHome(path), cfg, explicit); err != nil {
		return nil, err
	}

	if err := loadEnv(cfg); err != nil {
		return nil, err
	}

	cfg.DatabasePath = expandHome(cfg.DatabasePath)
	cfg.ProjectsRoot = expandHome(cfg.ProjectsRoot)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil // File doesn't exist, use defaults
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) error {
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv(EnvProjectsRoot); v != "" {
		cfg.ProjectsRoot = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		cfg.Reindex.Workers = n
	}
	return nil
}

// Validate checks field constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Index.SearchVersion != 0 && !slices.Contains(c.Index.WriteVersions, c.Index.SearchVersion) {
		return fmt.Errorf("search_version %d is not one of write_versions %v",
			c.Index.SearchVersion, c.Index.WriteVersions)
	}
	return nil
}

// SlogLevel returns the configured log level
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

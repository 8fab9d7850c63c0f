// Package config loads and validates the paperdex configuration.
//
// Configuration is resolved in three layers, later layers winning:
//  1. Built-in defaults
//  2. YAML config file (paperdex.yaml)
//  3. Environment variables (PAPERDEX_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete paperdex configuration.
type Config struct {
	Index   IndexConfig   `yaml:"index" json:"index"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	HTTP    HTTPConfig    `yaml:"http" json:"http"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// IndexConfig configures the full-text index.
// The index name and path are explicit here so multiple independent indices
// (per environment, per deployment) can coexist without global state.
type IndexConfig struct {
	// Path is the on-disk location of the index. Empty means in-memory.
	Path string `yaml:"path" json:"path"`

	// Name identifies this index in logs and lock files.
	Name string `yaml:"name" json:"name"`

	// RebuildOnStart forces a full delete-and-recreate rebuild at startup.
	// The default is an incremental sync against the record store.
	RebuildOnStart bool `yaml:"rebuild_on_start" json:"rebuild_on_start"`

	// Parallelism bounds the number of records normalized concurrently
	// during a rebuild or sync pass.
	Parallelism int `yaml:"parallelism" json:"parallelism"`
}

// StoreConfig configures the primary record store.
type StoreConfig struct {
	// Path is the SQLite database path. Empty means in-memory.
	Path string `yaml:"path" json:"path"`
}

// HTTPConfig configures the HTTP API server.
type HTTPConfig struct {
	Port            int      `yaml:"port" json:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec" json:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec" json:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec" json:"shutdown_timeout_sec"`
	APIKeys         []string `yaml:"api_keys" json:"api_keys"`
}

// SearchConfig configures query planning and result assembly.
type SearchConfig struct {
	// MaxResults is the maximum number of documents returned per query.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// MaxPageLocations bounds page-match locations per document so one
	// document with many matching pages cannot dominate a response.
	MaxPageLocations int `yaml:"max_page_locations" json:"max_page_locations"`

	// Fuzziness is the edit distance for the fuzzy fallback clause.
	Fuzziness int `yaml:"fuzziness" json:"fuzziness"`

	// FuzzyPrefix is the minimum unedited prefix length for fuzzy matching.
	// Prevents very short queries from fuzzy-matching unrelated short words.
	FuzzyPrefix int `yaml:"fuzzy_prefix" json:"fuzzy_prefix"`

	// CacheSize is the number of recent search responses kept in the LRU
	// cache. 0 disables caching.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// TimeoutSec is the per-query engine timeout.
	TimeoutSec int `yaml:"timeout_sec" json:"timeout_sec"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Path:        filepath.Join(DefaultDataDir(), "index"),
			Name:        "paperdex",
			Parallelism: 4,
		},
		Store: StoreConfig{
			Path: filepath.Join(DefaultDataDir(), "records.db"),
		},
		HTTP: HTTPConfig{
			Port:            8480,
			ReadTimeoutSec:  15,
			WriteTimeoutSec: 30,
			ShutdownSec:     10,
		},
		Search: SearchConfig{
			MaxResults:       20,
			MaxPageLocations: 5,
			Fuzziness:        1,
			FuzzyPrefix:      2,
			CacheSize:        256,
			TimeoutSec:       10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultDataDir returns the default data directory (~/.paperdex).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".paperdex")
	}
	return filepath.Join(home, ".paperdex")
}

// Load reads configuration from the given YAML file, falling back to defaults
// for anything unset, then applies environment overrides. An empty path skips
// the file layer entirely.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies PAPERDEX_* environment variables on top of the
// loaded configuration. Env vars have the highest priority.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PAPERDEX_INDEX_PATH"); v != "" {
		cfg.Index.Path = v
	}
	if v := os.Getenv("PAPERDEX_INDEX_NAME"); v != "" {
		cfg.Index.Name = v
	}
	if v := os.Getenv("PAPERDEX_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("PAPERDEX_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = port
		}
	}
	if v := os.Getenv("PAPERDEX_API_KEYS"); v != "" {
		cfg.HTTP.APIKeys = splitNonEmpty(v, ",")
	}
	if v := os.Getenv("PAPERDEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Index.Name == "" {
		return fmt.Errorf("index.name must not be empty")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be in range 1-65535, got %d", c.HTTP.Port)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Search.MaxPageLocations <= 0 {
		return fmt.Errorf("search.max_page_locations must be positive, got %d", c.Search.MaxPageLocations)
	}
	if c.Search.Fuzziness < 0 || c.Search.Fuzziness > 2 {
		return fmt.Errorf("search.fuzziness must be 0-2, got %d", c.Search.Fuzziness)
	}
	if c.Index.Parallelism <= 0 {
		return fmt.Errorf("index.parallelism must be positive, got %d", c.Index.Parallelism)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	return nil
}

// Save writes the configuration to the given path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// splitNonEmpty splits s by sep and drops empty elements.
func splitNonEmpty(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

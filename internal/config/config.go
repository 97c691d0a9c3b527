// Package config provides configuration loading and structs for the vectorgraph server.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. VECTORGRAPH_SERVER_PORT.
const EnvPrefix = "VECTORGRAPH"

// Config holds all configuration for the application.
type Config struct {
	Debug    bool          `yaml:"debug" split_words:"true"`
	LogLevel string        `yaml:"log_level" split_words:"true"`
	Server   ServerConfig  `yaml:"server" ignored:"true"`
	Storage  StorageConfig `yaml:"storage" ignored:"true"`
	Search   SearchConfig  `yaml:"search" ignored:"true"`
	Graph    GraphConfig   `yaml:"graph" ignored:"true"`
	Limits   LimitsConfig  `yaml:"limits" ignored:"true"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host" split_words:"true"`
	Port           int           `yaml:"port" split_words:"true"`
	ReadTimeout    time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout   time.Duration `yaml:"write_timeout" split_words:"true"`
	RequestTimeout time.Duration `yaml:"request_timeout" split_words:"true"`
}

// StorageConfig holds the durable catalog location used by on_disk collections.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path" split_words:"true"`
}

// SearchConfig holds query limits and the vector index type.
type SearchConfig struct {
	IndexType        string `yaml:"index_type" split_words:"true"`
	MaxTopK          int    `yaml:"max_top_k" split_words:"true"`
	DefaultPointTopK int    `yaml:"default_point_top_k" split_words:"true"`
	BatchConcurrency int    `yaml:"batch_concurrency" split_words:"true"`
}

// GraphConfig holds traversal bounds.
type GraphConfig struct {
	MaxVisitedNodes       int           `yaml:"max_visited_nodes" split_words:"true"`
	TraversalTimeout      time.Duration `yaml:"traversal_timeout" split_words:"true"`
	StrongWeightThreshold float64       `yaml:"strong_weight_threshold" split_words:"true"`
}

// LimitsConfig caps request sizes.
type LimitsConfig struct {
	MaxVectorFields int `yaml:"max_vector_fields" split_words:"true"`
	MaxBatchPoints  int `yaml:"max_batch_points" split_words:"true"`
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns a config with every default applied and no file behind it.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// Load reads and parses the config file at path, applies environment
// overrides and defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)

	return &cfg, nil
}

// ApplyEnv overrides cfg from VECTORGRAPH_* variables, one prefix per section.
// Unset variables leave the current value in place.
func ApplyEnv(cfg *Config) error {
	sections := []struct {
		prefix string
		target interface{}
	}{
		{EnvPrefix, cfg},
		{EnvPrefix + "_SERVER", &cfg.Server},
		{EnvPrefix + "_STORAGE", &cfg.Storage},
		{EnvPrefix + "_SEARCH", &cfg.Search},
		{EnvPrefix + "_GRAPH", &cfg.Graph},
		{EnvPrefix + "_LIMITS", &cfg.Limits},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.target); err != nil {
			return fmt.Errorf("failed to apply %s_* environment: %w", s.prefix, err)
		}
	}
	return nil
}

// Write encodes cfg as YAML to w.
func Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

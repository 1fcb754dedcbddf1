// Package config provides unified configuration loading for neardup.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/neardup/internal/constants"
	"github.com/nvandessel/neardup/internal/dedup"
	"github.com/nvandessel/neardup/internal/featurize"
	"gopkg.in/yaml.v3"
)

// NeardupConfig contains all neardup configuration settings.
type NeardupConfig struct {
	// Featurizer controls how text is turned into vectors.
	Featurizer featurize.Options `json:"featurizer" yaml:"featurizer"`

	// Deduplication controls the similarity cache.
	Deduplication dedup.Config `json:"deduplication" yaml:"deduplication"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Server contains settings for the MCP server.
	Server ServerConfig `json:"server" yaml:"server"`
}

// LoggingConfig configures neardup's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to <dir>/decisions.jsonl.
	Level string `json:"level" yaml:"level"`

	// Dir is where decisions.jsonl and audit.jsonl are written.
	// Supports ${VAR} expansion. Defaults to ~/.neardup.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	// Name is the implementation name reported to MCP clients.
	Name string `json:"name" yaml:"name"`

	// Audit enables the JSONL audit log of tool calls.
	Audit bool `json:"audit" yaml:"audit"`
}

// Default returns a NeardupConfig with sensible defaults.
func Default() *NeardupConfig {
	return &NeardupConfig{
		Featurizer:    featurize.DefaultOptions(),
		Deduplication: dedup.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Name:  "neardup",
			Audit: true,
		},
	}
}

// Dir returns the default neardup directory, ~/.neardup.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".neardup"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.neardup/config.yaml -> environment variables
func Load() (*NeardupConfig, error) {
	config := Default()

	if dir, err := Dir(); err == nil {
		configPath := filepath.Join(dir, "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadPath loads configuration from path, or from the default locations when
// path is empty, and then applies environment variable overrides.
func LoadPath(path string) (*NeardupConfig, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
// Settings missing from the file keep their defaults.
func LoadFromFile(path string) (*NeardupConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Logging.Dir = expandEnvVars(config.Logging.Dir)

	return config, nil
}

// LogDir returns the configured logging directory, falling back to Dir.
func (c *NeardupConfig) LogDir() (string, error) {
	if c.Logging.Dir != "" {
		return c.Logging.Dir, nil
	}
	return Dir()
}

// Validate checks that the configuration is valid.
func (c *NeardupConfig) Validate() error {
	if err := c.Featurizer.Validate(); err != nil {
		return fmt.Errorf("featurizer: %w", err)
	}

	if err := c.Deduplication.Validate(); err != nil {
		return fmt.Errorf("deduplication: %w", err)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// YAML renders the configuration as a YAML document.
func (c *NeardupConfig) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// applyEnvOverrides applies environment variable overrides to the config.
// Values that fail to parse are ignored.
func applyEnvOverrides(config *NeardupConfig) {
	if v := os.Getenv("NEARDUP_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Featurizer.Dimension = n
		}
	}

	if v := os.Getenv("NEARDUP_NORMALIZE_IDENTIFIERS"); v != "" {
		config.Featurizer.NormalizeIdentifiers = v == "true" || v == "1"
	}

	if v := os.Getenv("NEARDUP_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Deduplication.SimilarityThreshold = f
		}
	}

	if v := os.Getenv("NEARDUP_MAX_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Deduplication.MaxCacheSize = n
		}
	}

	if v := os.Getenv("NEARDUP_EVICTION_POLICY"); v != "" {
		config.Deduplication.EvictionPolicy = constants.EvictionPolicy(strings.ToLower(v))
	}

	if v := os.Getenv("NEARDUP_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("NEARDUP_LOG_DIR"); v != "" {
		config.Logging.Dir = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

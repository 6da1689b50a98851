// Package config loads tfmodel configuration from ~/.tfmodel/config.yaml
// with environment variable overrides.
//
// Resolution precedence for every setting is: environment variable, then
// config file, then built-in default. A missing config file is not an error;
// defaults apply.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// configDirName is the per-user directory holding all tfmodel state.
	configDirName = ".tfmodel"

	// configFileName is the YAML configuration file inside the config dir.
	configFileName = "config.yaml"

	// cacheDirName is the model cache directory inside the config dir.
	cacheDirName = "models"

	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "TFMODEL_CONFIG"

	// EnvCacheDir overrides the model cache directory.
	EnvCacheDir = "TFMODEL_CACHE_DIR"

	// EnvLogLevel overrides the logging level.
	EnvLogLevel = "TFMODEL_LOG_LEVEL"

	// EnvLogFormat overrides the logging format ("console" or "json").
	EnvLogFormat = "TFMODEL_LOG_FORMAT"
)

// defaultListen is the default address for the node host HTTP server.
const defaultListen = "127.0.0.1:1838"

// Config is the root configuration object.
type Config struct {
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
	S3      S3Config      `yaml:"s3"`
	Nodes   []NodeConfig  `yaml:"nodes"`
}

// CacheConfig controls the model cache location.
type CacheConfig struct {
	// Dir is the cache root. Empty means ~/.tfmodel/models.
	Dir string `yaml:"dir"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// ServerConfig controls the node host HTTP server.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// S3Config supplies credentials and endpoint details for s3:// model URLs.
// All fields are optional; absent credentials defer to the AWS default chain.
type S3Config struct {
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	DisableSSL     bool   `yaml:"disable_ssl"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

// NodeConfig describes one model node hosted by `tfmodel serve`.
type NodeConfig struct {
	// ID uniquely identifies the node within the server.
	ID string `yaml:"id"`

	// Name is a human-readable label used in logs and status output.
	Name string `yaml:"name"`

	// ModelURL is the model manifest URL. A blank URL means the node never
	// loads a model and rejects input messages.
	ModelURL string `yaml:"model_url"`
}

// DefaultRoot returns the per-user tfmodel directory (~/.tfmodel).
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// DefaultConfigPath returns the config file path, honoring EnvConfigPath.
func DefaultConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	root, err := DefaultRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, configFileName), nil
}

// New returns a Config loaded from the default config path. A missing file
// yields defaults; a malformed file is an error.
func New() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Load reads the YAML config at path, applies environment overrides, and
// fills in defaults. A missing file is treated as an empty config.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if unmarshalErr := yaml.Unmarshal(data, cfg); unmarshalErr != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, unmarshalErr)
		}
	}

	cfg.applyEnv()
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg.
func (c *Config) applyEnv() {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		c.Cache.Dir = dir
	}
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		c.Logging.Level = lvl
	}
	if format := os.Getenv(EnvLogFormat); format != "" {
		c.Logging.Format = format
	}
}

// applyDefaults fills unset fields with built-in defaults.
func (c *Config) applyDefaults() error {
	if c.Cache.Dir == "" {
		root, err := DefaultRoot()
		if err != nil {
			return err
		}
		c.Cache.Dir = filepath.Join(root, cacheDirName)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	return nil
}

// Validate checks node definitions for duplicate or missing IDs.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Nodes))
	for i, node := range c.Nodes {
		if node.ID == "" {
			return fmt.Errorf("node %d: id is required", i)
		}
		if seen[node.ID] {
			return fmt.Errorf("node %d: duplicate id %q", i, node.ID)
		}
		seen[node.ID] = true
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/idxstore/internal/logging"
)

// Backend kinds.
const (
	// BackendElasticsearch talks to an Elasticsearch cluster over HTTP.
	BackendElasticsearch = "elasticsearch"
	// BackendBleve keeps indexes in-process on local disk.
	BackendBleve = "bleve"
)

// Defaults shared with the store.
const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 9200
	DefaultFlushInterval = 20000
	DefaultSearchSize    = 1000
	DefaultLogLevel      = "info"
)

// Config represents the complete idxstore configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Backend BackendConfig `yaml:"backend" json:"backend"`
	Import  ImportConfig  `yaml:"import" json:"import"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BackendConfig selects and locates the search backend.
type BackendConfig struct {
	// Kind is "elasticsearch" or "bleve".
	Kind string `yaml:"kind" json:"kind"`
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
	// DataDir is where the bleve backend keeps its indexes. A leading ~ is
	// expanded to the home directory.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// ImportConfig controls buffered writes.
type ImportConfig struct {
	// FlushInterval is the number of buffered events that triggers a bulk
	// write.
	FlushInterval int `yaml:"flush_interval" json:"flush_interval"`
}

// SearchConfig controls queries.
type SearchConfig struct {
	DefaultSize int `yaml:"default_size" json:"default_size"`
}

// LoggingConfig controls the log level.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Backend: BackendConfig{
			Kind:    BackendElasticsearch,
			Host:    DefaultHost,
			Port:    DefaultPort,
			DataDir: defaultDataDir(),
		},
		Import: ImportConfig{
			FlushInterval: DefaultFlushInterval,
		},
		Search: SearchConfig{
			DefaultSize: DefaultSearchSize,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".idxstore", "data")
	}
	return filepath.Join(home, ".idxstore", "data")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/idxstore/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/idxstore/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "idxstore", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "idxstore", "config.yaml")
	}
	return filepath.Join(home, ".config", "idxstore", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var cfg Config
	if err := readYAML(configPath, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load loads configuration for the given working directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/idxstore/config.yaml)
//  3. Project config (.idxstore.yaml in dir)
//  4. Environment variables (IDXSTORE_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	cfg.Backend.DataDir = expandHome(cfg.Backend.DataDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads .idxstore.yaml or .idxstore.yml from dir, if present.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".idxstore.yaml", ".idxstore.yml"} {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		var parsed Config
		if err := readYAML(path, &parsed); err != nil {
			return err
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

func readYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith copies the non-zero values of other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Backend.Kind != "" {
		c.Backend.Kind = other.Backend.Kind
	}
	if other.Backend.Host != "" {
		c.Backend.Host = other.Backend.Host
	}
	if other.Backend.Port != 0 {
		c.Backend.Port = other.Backend.Port
	}
	if other.Backend.DataDir != "" {
		c.Backend.DataDir = other.Backend.DataDir
	}

	if other.Import.FlushInterval != 0 {
		c.Import.FlushInterval = other.Import.FlushInterval
	}
	if other.Search.DefaultSize != 0 {
		c.Search.DefaultSize = other.Search.DefaultSize
	}
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// applyEnvOverrides applies IDXSTORE_* environment variables. Numeric
// variables that do not parse are reported rather than ignored.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("IDXSTORE_BACKEND"); v != "" {
		c.Backend.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("IDXSTORE_HOST"); v != "" {
		c.Backend.Host = v
	}
	if v := os.Getenv("IDXSTORE_DATA_DIR"); v != "" {
		c.Backend.DataDir = v
	}
	if v := os.Getenv("IDXSTORE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"IDXSTORE_PORT", &c.Backend.Port},
		{"IDXSTORE_FLUSH_INTERVAL", &c.Import.FlushInterval},
		{"IDXSTORE_SEARCH_SIZE", &c.Search.DefaultSize},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", e.name, v)
		}
		*e.dst = n
	}
	return nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case BackendElasticsearch:
		if c.Backend.Port <= 0 || c.Backend.Port > 65535 {
			return fmt.Errorf("backend.port must be between 1 and 65535, got %d", c.Backend.Port)
		}
	case BackendBleve:
		if c.Backend.DataDir == "" {
			return fmt.Errorf("backend.data_dir is required for the bleve backend")
		}
	default:
		return fmt.Errorf("backend.kind must be 'elasticsearch' or 'bleve', got %q", c.Backend.Kind)
	}

	if c.Import.FlushInterval <= 0 {
		return fmt.Errorf("import.flush_interval must be positive, got %d", c.Import.FlushInterval)
	}
	if c.Search.DefaultSize <= 0 {
		return fmt.Errorf("search.default_size must be positive, got %d", c.Search.DefaultSize)
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
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

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

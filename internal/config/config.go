package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	TemplatesDir string `mapstructure:"templates_dir" yaml:"templates_dir"`
	StorePath    string `mapstructure:"store_path" yaml:"store_path"`

	// Section builder tuning
	BatchSize         int `mapstructure:"batch_size" yaml:"batch_size"`
	TableTimeoutSec   int `mapstructure:"table_timeout_sec" yaml:"table_timeout_sec"`
	BatchTimeoutSec   int `mapstructure:"batch_timeout_sec" yaml:"batch_timeout_sec"`
	HeadingTableLimit int `mapstructure:"heading_table_limit" yaml:"heading_table_limit"`

	// Substitution
	QueryTimeoutSec int    `mapstructure:"query_timeout_sec" yaml:"query_timeout_sec"`
	MockFallback    bool   `mapstructure:"mock_fallback" yaml:"mock_fallback"`
	CurrentUser     string `mapstructure:"current_user" yaml:"current_user"`
	Department      string `mapstructure:"department" yaml:"department"`
	SystemVersion   string `mapstructure:"system_version" yaml:"system_version"`

	// Default data source for datasets that do not name one
	DefaultSourceType     string `mapstructure:"default_source_type" yaml:"default_source_type"`
	DefaultSourceHost     string `mapstructure:"default_source_host" yaml:"default_source_host"`
	DefaultSourcePort     int    `mapstructure:"default_source_port" yaml:"default_source_port"`
	DefaultSourceDatabase string `mapstructure:"default_source_database" yaml:"default_source_database"`
	DefaultSourceUser     string `mapstructure:"default_source_user" yaml:"default_source_user"`
	DefaultSourcePassword string `mapstructure:"default_source_password" yaml:"default_source_password"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// TableTimeout returns the per-table analysis deadline.
func (c *Global) TableTimeout() time.Duration {
	return time.Duration(c.TableTimeoutSec) * time.Second
}

// BatchTimeout returns the per-batch analysis deadline.
func (c *Global) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutSec) * time.Second
}

// QueryTimeout returns the data source query deadline.
func (c *Global) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSec) * time.Second
}

// Dir returns the default configuration directory (~/.docshape).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".docshape"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.docshape/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCSHAPE")
	v.AutomaticEnv()

	v.SetDefault("templates_dir", "")
	v.SetDefault("store_path", "")
	v.SetDefault("batch_size", 5)
	v.SetDefault("table_timeout_sec", 10)
	v.SetDefault("batch_timeout_sec", 30)
	v.SetDefault("heading_table_limit", 50)
	v.SetDefault("query_timeout_sec", 30)
	v.SetDefault("mock_fallback", true)
	v.SetDefault("current_user", "")
	v.SetDefault("department", "")
	v.SetDefault("system_version", "")
	v.SetDefault("default_source_type", "")
	v.SetDefault("default_source_host", "localhost")
	v.SetDefault("default_source_port", 5432)
	v.SetDefault("default_source_database", "")
	v.SetDefault("default_source_user", "")
	v.SetDefault("default_source_password", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.TemplatesDir == "" {
		c.TemplatesDir = filepath.Join(dir, "templates")
	}
	if c.StorePath == "" {
		c.StorePath = filepath.Join(dir, "store.db")
	}
	return &c, nil
}

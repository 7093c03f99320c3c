// Package config provides configuration loading for scanhub.
// It supports a layered configuration approach with priority:
// CLI flags > environment variables (SCANHUB_*) > config file (~/.scanhub.yaml).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// MinSessionKeyLength is the shortest accepted session signing key.
const MinSessionKeyLength = 32

// StoreConfig selects the job store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// ScanConfig holds the lifecycle timings.
type ScanConfig struct {
	DispatchDelay time.Duration `mapstructure:"dispatch_delay" yaml:"dispatch_delay"`
	QuickDuration time.Duration `mapstructure:"quick_duration" yaml:"quick_duration"`
	DeepDuration  time.Duration `mapstructure:"deep_duration" yaml:"deep_duration"`
}

// RetentionConfig controls eviction of finished jobs. A zero MaxAge keeps
// jobs forever.
type RetentionConfig struct {
	MaxAge   time.Duration `mapstructure:"max_age" yaml:"max_age"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// Config holds all scanhub configuration options.
type Config struct {
	Addr         string          `mapstructure:"addr" yaml:"addr"`
	ServerURL    string          `mapstructure:"server_url" yaml:"server_url"`
	OutputFormat string          `mapstructure:"output_format" yaml:"output_format"`
	SessionKey   string          `mapstructure:"session_key" yaml:"session_key"`
	Store        StoreConfig     `mapstructure:"store" yaml:"store"`
	Scan         ScanConfig      `mapstructure:"scan" yaml:"scan"`
	Retention    RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Log          LogConfig       `mapstructure:"log" yaml:"log"`
}

// Defaults returns a Config populated with default values.
func Defaults() Config {
	return Config{
		Addr:         ":8080",
		ServerURL:    "http://localhost:8080",
		OutputFormat: "table",
		Store:        StoreConfig{Driver: "memory", Path: filepath.Join("data", "scanhub.db")},
		Scan: ScanConfig{
			DispatchDelay: 500 * time.Millisecond,
			QuickDuration: 3 * time.Second,
			DeepDuration:  8 * time.Second,
		},
		Retention: RetentionConfig{Interval: time.Hour},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from ~/.scanhub.yaml and environment variables.
// It does NOT apply CLI flag overrides; call ApplyFlags for that.
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName(".scanhub")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SCANHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// ApplyFlags overrides config values with any CLI flags that were explicitly set.
func ApplyFlags(cfg *Config, cmd *cobra.Command) {
	flags := cmd.Flags()

	if flags.Changed("addr") {
		cfg.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("server") {
		cfg.ServerURL, _ = flags.GetString("server")
	}
	if flags.Changed("output") {
		cfg.OutputFormat, _ = flags.GetString("output")
	}
	if flags.Changed("store") {
		cfg.Store.Driver, _ = flags.GetString("store")
	}
	if flags.Changed("db") {
		cfg.Store.Path, _ = flags.GetString("db")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
}

// Validate checks the settings the server depends on.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return errors.New("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q (want memory or sqlite)", c.Store.Driver)
	}
	if c.SessionKey != "" && len(c.SessionKey) < MinSessionKeyLength {
		return fmt.Errorf("session_key must be at least %d bytes", MinSessionKeyLength)
	}
	if c.Scan.DispatchDelay < 0 || c.Scan.QuickDuration <= 0 || c.Scan.DeepDuration <= 0 {
		return errors.New("scan durations must be positive")
	}
	if c.Retention.MaxAge < 0 {
		return errors.New("retention.max_age must not be negative")
	}
	return nil
}

// ConfigFilePath returns the default config file path (~/.scanhub.yaml).
func ConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scanhub.yaml"
	}
	return filepath.Join(home, ".scanhub.yaml")
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("addr", d.Addr)
	v.SetDefault("server_url", d.ServerURL)
	v.SetDefault("output_format", d.OutputFormat)
	v.SetDefault("session_key", "")
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("scan.dispatch_delay", d.Scan.DispatchDelay)
	v.SetDefault("scan.quick_duration", d.Scan.QuickDuration)
	v.SetDefault("scan.deep_duration", d.Scan.DeepDuration)
	v.SetDefault("retention.max_age", d.Retention.MaxAge)
	v.SetDefault("retention.interval", d.Retention.Interval)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", "")
}

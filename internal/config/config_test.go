package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "table", cfg.OutputFormat)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.Scan.DispatchDelay)
	assert.Equal(t, 3*time.Second, cfg.Scan.QuickDuration)
	assert.Equal(t, 8*time.Second, cfg.Scan.DeepDuration)
	assert.Zero(t, cfg.Retention.MaxAge)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "table", cfg.OutputFormat)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 8*time.Second, cfg.Scan.DeepDuration)
}

func TestLoadFromFile(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), ".scanhub.yaml")

	content := `addr: ":9090"
output_format: "json"
session_key: "0123456789abcdef0123456789abcdef"
store:
  driver: sqlite
  path: /tmp/scans.db
scan:
  dispatch_delay: 1s
  quick_duration: 2s
  deep_duration: 20s
retention:
  max_age: 24h
  interval: 10m
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0644))

	cfg, err := LoadFromFile(cfgFile)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/scans.db", cfg.Store.Path)
	assert.Equal(t, time.Second, cfg.Scan.DispatchDelay)
	assert.Equal(t, 2*time.Second, cfg.Scan.QuickDuration)
	assert.Equal(t, 20*time.Second, cfg.Scan.DeepDuration)
	assert.Equal(t, 24*time.Hour, cfg.Retention.MaxAge)
	assert.Equal(t, 10*time.Minute, cfg.Retention.Interval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/.scanhub.yaml")
	assert.Error(t, err)
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), ".scanhub.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("{{invalid yaml"), 0644))

	_, err := LoadFromFile(cfgFile)
	assert.Error(t, err)
}

func TestLoadFromFile_PartialConfig(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), ".scanhub.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("scan:\n  deep_duration: 30s\n"), 0644))

	cfg, err := LoadFromFile(cfgFile)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Scan.DeepDuration)
	assert.Equal(t, 3*time.Second, cfg.Scan.QuickDuration)
	assert.Equal(t, "table", cfg.OutputFormat)
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCANHUB_OUTPUT_FORMAT", "json")
	t.Setenv("SCANHUB_STORE_DRIVER", "sqlite")
	t.Setenv("SCANHUB_SCAN_QUICK_DURATION", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, time.Second, cfg.Scan.QuickDuration)
}

func TestApplyFlags(t *testing.T) {
	cfg := Defaults()

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("addr", ":8080", "")
	cmd.Flags().String("output", "table", "")
	cmd.Flags().String("store", "memory", "")
	cmd.Flags().String("db", "", "")

	require.NoError(t, cmd.Flags().Set("addr", ":7000"))
	require.NoError(t, cmd.Flags().Set("store", "sqlite"))

	ApplyFlags(&cfg, cmd)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "table", cfg.OutputFormat) // Not changed, flag wasn't set.
	assert.Equal(t, filepath.Join("data", "scanhub.db"), cfg.Store.Path)
}

func TestApplyFlags_NoOverrideWhenUnchanged(t *testing.T) {
	cfg := Config{Addr: ":1234", OutputFormat: "json"}

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("addr", ":8080", "")
	cmd.Flags().String("output", "table", "")

	ApplyFlags(&cfg, cmd)

	assert.Equal(t, ":1234", cfg.Addr)
	assert.Equal(t, "json", cfg.OutputFormat)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }, "unknown store driver"},
		{"sqlite without path", func(c *Config) { c.Store.Driver = "sqlite"; c.Store.Path = "" }, "store.path"},
		{"short session key", func(c *Config) { c.SessionKey = "short" }, "session_key"},
		{"zero duration", func(c *Config) { c.Scan.QuickDuration = 0 }, "positive"},
		{"negative retention", func(c *Config) { c.Retention.MaxAge = -time.Hour }, "max_age"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigFilePath(t *testing.T) {
	assert.Contains(t, ConfigFilePath(), ".scanhub.yaml")
}

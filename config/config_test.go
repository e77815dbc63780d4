package config

import (
	"os"
	"path/filepath"
	"testing"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1280, cfg.ComputerUse.Vision.MaxWidth)
	assert.Equal(t, 800, cfg.ComputerUse.Vision.MaxHeight)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.True(t, cfg.Agent.Recovery.Enabled)
	assert.Equal(t, "escape", cfg.Agent.Recovery.DismissKey)
	assert.Equal(t, 300, cfg.Agent.Recovery.SettleMs)
	assert.Equal(t, 100, cfg.ComputerUse.ChordHoldMs)
	assert.Equal(t, "jsonl", cfg.Storage.Type)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingExplicitFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
gateway:
  url: http://gateway:9000
  model: openai/gpt-4o
agent:
  max_iterations: 25
computer_use:
  vision:
    max_width: 1024
    max_height: 768
storage:
  type: sqlite
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://gateway:9000", cfg.Gateway.URL)
	assert.Equal(t, 25, cfg.Agent.MaxIterations)
	assert.Equal(t, 1024, cfg.ComputerUse.Vision.MaxWidth)
	assert.Equal(t, 768, cfg.ComputerUse.Vision.MaxHeight)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "escape", cfg.Agent.Recovery.DismissKey, "unset keys keep their defaults")

	provider, model := cfg.ProviderAndModel()
	assert.Equal(t, "openai", provider)
	assert.Equal(t, "gpt-4o", model)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("DESKTOP_AGENT_GATEWAY_API_KEY", "sk-from-env")
	t.Setenv("DESKTOP_AGENT_AGENT_MAX_ITERATIONS", "7")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.Gateway.APIKey)
	assert.Equal(t, 7, cfg.Agent.MaxIterations)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero vision box",
			mutate:  func(c *Config) { c.ComputerUse.Vision.MaxWidth = 0 },
			wantErr: "computer_use.vision",
		},
		{
			name:    "iterations above limit",
			mutate:  func(c *Config) { c.Agent.MaxIterations = MaxIterationsLimit + 1 },
			wantErr: "agent.max_iterations",
		},
		{
			name:    "unknown screenshot format",
			mutate:  func(c *Config) { c.ComputerUse.Screenshot.Format = "gif" },
			wantErr: "screenshot.format",
		},
		{
			name:    "unknown storage",
			mutate:  func(c *Config) { c.Storage.Type = "mongo" },
			wantErr: "unsupported storage type",
		},
		{
			name:    "model without provider",
			mutate:  func(c *Config) { c.Gateway.Model = "gpt-4o" },
			wantErr: "provider/model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedacted_MasksSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gateway.APIKey = "sk-1234567890abcdef"
	cfg.Storage.Redis.Password = "short"

	redacted := cfg.Redacted()

	assert.Equal(t, "sk-1****cdef", redacted.Gateway.APIKey)
	assert.Equal(t, "****", redacted.Storage.Redis.Password)
	assert.Equal(t, "sk-1234567890abcdef", cfg.Gateway.APIKey, "original must be untouched")
}

func TestSaveConfig_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Server.Port = 9999

	require.NoError(t, cfg.SaveConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, 9999, decoded.Server.Port)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	viper "github.com/spf13/viper"
	yaml "gopkg.in/yaml.v3"
)

const (
	// ConfigDirName is the per-user and per-project configuration directory
	ConfigDirName = ".desktop-agent"
	// ConfigFileName is the configuration file looked up inside ConfigDirName
	ConfigFileName = "config.yaml"
	// EnvPrefix prefixes every environment override, e.g. DESKTOP_AGENT_GATEWAY_API_KEY
	EnvPrefix = "DESKTOP_AGENT"

	// MaxIterationsLimit is the highest iteration cap a caller may request
	MaxIterationsLimit = 50
)

// DefaultConfigPath is the project-local configuration file
var DefaultConfigPath = filepath.Join(ConfigDirName, ConfigFileName)

// Config represents the desktop agent configuration
type Config struct {
	Gateway     GatewayConfig     `yaml:"gateway" mapstructure:"gateway"`
	Agent       AgentConfig       `yaml:"agent" mapstructure:"agent"`
	ComputerUse ComputerUseConfig `yaml:"computer_use" mapstructure:"computer_use"`
	Storage     StorageConfig     `yaml:"storage" mapstructure:"storage"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// GatewayConfig contains inference gateway connection settings
type GatewayConfig struct {
	URL       string      `yaml:"url" mapstructure:"url"`
	APIKey    string      `yaml:"api_key" mapstructure:"api_key"`
	Model     string      `yaml:"model" mapstructure:"model"`
	Timeout   int         `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens int         `yaml:"max_tokens" mapstructure:"max_tokens"`
	Retry     RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig contains retry settings for gateway requests
type RetryConfig struct {
	Enabled              bool  `yaml:"enabled" mapstructure:"enabled"`
	MaxAttempts          int   `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffSec    int   `yaml:"initial_backoff_sec" mapstructure:"initial_backoff_sec"`
	MaxBackoffSec        int   `yaml:"max_backoff_sec" mapstructure:"max_backoff_sec"`
	BackoffMultiplier    int   `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	RetryableStatusCodes []int `yaml:"retryable_status_codes" mapstructure:"retryable_status_codes"`
}

// AgentConfig contains orchestration loop settings
type AgentConfig struct {
	MaxIterations int            `yaml:"max_iterations" mapstructure:"max_iterations"`
	SystemPrompt  string         `yaml:"system_prompt" mapstructure:"system_prompt"`
	Recovery      RecoveryConfig `yaml:"recovery" mapstructure:"recovery"`
}

// RecoveryConfig controls the dismiss-before-acting heuristic
type RecoveryConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	DismissKey string `yaml:"dismiss_key" mapstructure:"dismiss_key"`
	SettleMs   int    `yaml:"settle_ms" mapstructure:"settle_ms"`
}

// ComputerUseConfig contains screen capture and input settings
type ComputerUseConfig struct {
	Display        string           `yaml:"display" mapstructure:"display"`
	Vision         VisionConfig     `yaml:"vision" mapstructure:"vision"`
	Screenshot     ScreenshotConfig `yaml:"screenshot" mapstructure:"screenshot"`
	TypingDelayMs  int              `yaml:"typing_delay_ms" mapstructure:"typing_delay_ms"`
	ChordHoldMs    int              `yaml:"chord_hold_ms" mapstructure:"chord_hold_ms"`
	MaxWaitSeconds float64          `yaml:"max_wait_seconds" mapstructure:"max_wait_seconds"`
	RateLimit      RateLimitConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// VisionConfig bounds the resolution the model perceives
type VisionConfig struct {
	MaxWidth  int `yaml:"max_width" mapstructure:"max_width"`
	MaxHeight int `yaml:"max_height" mapstructure:"max_height"`
}

// ScreenshotConfig controls encoding and on-disk persistence of frames
type ScreenshotConfig struct {
	Format     string `yaml:"format" mapstructure:"format"`
	Quality    int    `yaml:"quality" mapstructure:"quality"`
	Dir        string `yaml:"dir" mapstructure:"dir"`
	BufferSize int    `yaml:"buffer_size" mapstructure:"buffer_size"`
}

// RateLimitConfig paces input actions
type RateLimitConfig struct {
	Enabled             bool `yaml:"enabled" mapstructure:"enabled"`
	MaxActionsPerMinute int  `yaml:"max_actions_per_minute" mapstructure:"max_actions_per_minute"`
}

// StorageConfig selects and configures the session event store
type StorageConfig struct {
	Type     string         `yaml:"type" mapstructure:"type"`
	JSONL    JSONLConfig    `yaml:"jsonl" mapstructure:"jsonl"`
	SQLite   SQLiteConfig   `yaml:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	Redis    RedisConfig    `yaml:"redis" mapstructure:"redis"`
}

// JSONLConfig contains JSONL event log settings
type JSONLConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// SQLiteConfig contains SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL-specific configuration
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Database string `yaml:"database" mapstructure:"database"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	SSLMode  string `yaml:"ssl_mode" mapstructure:"ssl_mode"`
}

// RedisConfig contains Redis-specific configuration
type RedisConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	TTL      int    `yaml:"ttl" mapstructure:"ttl"`
	Channel  string `yaml:"channel" mapstructure:"channel"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Host           string `yaml:"host" mapstructure:"host"`
	Port           int    `yaml:"port" mapstructure:"port"`
	ReadTimeout    int    `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   int    `yaml:"write_timeout" mapstructure:"write_timeout"`
	MetricsEnabled bool   `yaml:"metrics_enabled" mapstructure:"metrics_enabled"`
}

// LoggingConfig contains log file rotation settings
type LoggingConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			URL:       "http://localhost:8080",
			Model:     "anthropic/claude-sonnet-4-20250514",
			Timeout:   120,
			MaxTokens: 4096,
			Retry: RetryConfig{
				Enabled:              true,
				MaxAttempts:          3,
				InitialBackoffSec:    2,
				MaxBackoffSec:        30,
				BackoffMultiplier:    2,
				RetryableStatusCodes: []int{408, 429, 500, 502, 503, 504},
			},
		},
		Agent: AgentConfig{
			MaxIterations: 10,
			Recovery: RecoveryConfig{
				Enabled:    true,
				DismissKey: "escape",
				SettleMs:   300,
			},
		},
		ComputerUse: ComputerUseConfig{
			Display: "",
			Vision: VisionConfig{
				MaxWidth:  1280,
				MaxHeight: 800,
			},
			Screenshot: ScreenshotConfig{
				Format:     "png",
				Quality:    85,
				Dir:        filepath.Join("logs", "screenshots"),
				BufferSize: 30,
			},
			TypingDelayMs:  50,
			ChordHoldMs:    100,
			MaxWaitSeconds: 30,
			RateLimit: RateLimitConfig{
				Enabled:             false,
				MaxActionsPerMinute: 120,
			},
		},
		Storage: StorageConfig{
			Type: "jsonl",
			JSONL: JSONLConfig{
				Dir: "logs",
			},
			SQLite: SQLiteConfig{
				Path: filepath.Join(ConfigDirName, "sessions.db"),
			},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "desktop_agent",
				SSLMode:  "disable",
			},
			Redis: RedisConfig{
				Host:    "localhost",
				Port:    6379,
				TTL:     86400,
				Channel: "desktop-agent:events",
			},
		},
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8000,
			ReadTimeout:    30,
			WriteTimeout:   0,
			MetricsEnabled: true,
		},
		Logging: LoggingConfig{
			Dir:        "logs",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}

// Load reads configuration from the given file (or the default search
// path when empty), environment variables and built-in defaults, in
// increasing order of precedence: defaults, file, environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
		v.AddConfigPath(ConfigDirName)
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ConfigDirName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(configPath != "" && os.IsNotExist(err)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every leaf of the default config with viper so
// that environment overrides apply even when no file sets the key.
func setDefaults(v *viper.Viper, defaults *Config) {
	raw, err := yaml.Marshal(defaults)
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return
	}
	walkDefaults(v, "", tree)
}

func walkDefaults(v *viper.Viper, prefix string, node map[string]any) {
	for k, val := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := val.(map[string]any); ok {
			walkDefaults(v, key, child)
			continue
		}
		v.SetDefault(key, val)
	}
}

// Validate checks the configuration for values the agent cannot run with
func (c *Config) Validate() error {
	if c.ComputerUse.Vision.MaxWidth <= 0 || c.ComputerUse.Vision.MaxHeight <= 0 {
		return fmt.Errorf("computer_use.vision must have a positive max_width and max_height, got %dx%d",
			c.ComputerUse.Vision.MaxWidth, c.ComputerUse.Vision.MaxHeight)
	}

	if c.Agent.MaxIterations < 1 || c.Agent.MaxIterations > MaxIterationsLimit {
		return fmt.Errorf("agent.max_iterations must be between 1 and %d, got %d", MaxIterationsLimit, c.Agent.MaxIterations)
	}

	switch c.ComputerUse.Screenshot.Format {
	case "png", "jpeg":
	default:
		return fmt.Errorf("computer_use.screenshot.format must be png or jpeg, got %q", c.ComputerUse.Screenshot.Format)
	}

	switch c.Storage.Type {
	case "jsonl", "sqlite", "postgres", "redis", "memory":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if c.Gateway.Model != "" && !strings.Contains(c.Gateway.Model, "/") {
		return fmt.Errorf("gateway.model must be in provider/model form, got %q", c.Gateway.Model)
	}

	return nil
}

// ProviderAndModel splits gateway.model into its provider and model parts
func (c *Config) ProviderAndModel() (string, string) {
	provider, model, found := strings.Cut(c.Gateway.Model, "/")
	if !found {
		return "", c.Gateway.Model
	}
	return provider, model
}

// GatewayTimeout returns the gateway request timeout
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Gateway.Timeout) * time.Second
}

// ServerAddress returns the host:port the HTTP API listens on
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Redacted returns a copy safe to print, with secrets masked
func (c *Config) Redacted() *Config {
	clone := *c
	clone.Gateway.APIKey = mask(c.Gateway.APIKey)
	clone.Storage.Postgres.Password = mask(c.Storage.Postgres.Password)
	clone.Storage.Redis.Password = mask(c.Storage.Redis.Password)
	return &clone
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}

// ToYAML renders the configuration as YAML with two-space indentation
func (c *Config) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveConfig writes the configuration to the given path, creating parent directories
func (c *Config) SaveConfig(configPath string) error {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.ToYAML()
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

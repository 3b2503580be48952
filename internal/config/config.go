// Package config handles configuration loading for hive.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for hive.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Comms     CommsConfig     `mapstructure:"comms"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// CommsConfig holds communication hub settings.
type CommsConfig struct {
	// ReportingInterval is the delegation report cadence.
	ReportingInterval time.Duration `mapstructure:"reporting_interval"`
	// MaxMessages bounds each channel's in-memory history.
	MaxMessages int `mapstructure:"max_messages"`
	// AnonymityLevel applies to secure transport sends (none, low,
	// medium, high).
	AnonymityLevel string `mapstructure:"anonymity_level"`
}

// LifecycleConfig holds lifecycle manager settings.
type LifecycleConfig struct {
	// MaintenanceFrequency is the default recurring maintenance cadence.
	MaintenanceFrequency time.Duration `mapstructure:"maintenance_frequency"`
	// PolicyFile points to a YAML retirement-policy document.
	PolicyFile string `mapstructure:"policy_file"`
}

// MonitorConfig holds the background monitor tick intervals.
type MonitorConfig struct {
	ShortTick  time.Duration `mapstructure:"short_tick"`
	MediumTick time.Duration `mapstructure:"medium_tick"`
	LongTick   time.Duration `mapstructure:"long_tick"`
}

// RuntimeConfig selects the agent runtime.
type RuntimeConfig struct {
	// Kind is "local" or "claude".
	Kind string `mapstructure:"kind"`
}

// StorageConfig holds memory store settings.
type StorageConfig struct {
	// DBPath is the SQLite database path; empty selects the default.
	DBPath string `mapstructure:"db_path"`
	// DebugLog is the debug log file path; empty disables it.
	DebugLog string `mapstructure:"debug_log"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.hive.yaml in current directory or a parent)
// 3. User config (~/.config/hive/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config path if one exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)

	v.SetDefault("comms.reporting_interval", "30m")
	v.SetDefault("comms.max_messages", 10000)
	v.SetDefault("comms.anonymity_level", "none")

	v.SetDefault("lifecycle.maintenance_frequency", "24h")
	v.SetDefault("lifecycle.policy_file", "")

	v.SetDefault("monitor.short_tick", "5s")
	v.SetDefault("monitor.medium_tick", "30s")
	v.SetDefault("monitor.long_tick", "1m")

	v.SetDefault("runtime.kind", "local")

	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.debug_log", "")
}

// getUserConfigDir returns the XDG config directory for hive.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hive")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "hive")
	}
	return filepath.Join(home, ".config", "hive")
}

// findProjectConfig searches for .hive.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".hive.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Comms: CommsConfig{
			ReportingInterval: 30 * time.Minute,
			MaxMessages:       10000,
			AnonymityLevel:    "none",
		},
		Lifecycle: LifecycleConfig{
			MaintenanceFrequency: 24 * time.Hour,
		},
		Monitor: MonitorConfig{
			ShortTick:  5 * time.Second,
			MediumTick: 30 * time.Second,
			LongTick:   time.Minute,
		},
		Runtime: RuntimeConfig{
			Kind: "local",
		},
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Comms.ReportingInterval != 30*time.Minute {
		t.Errorf("expected reporting interval 30m, got %v", cfg.Comms.ReportingInterval)
	}
	if cfg.Comms.MaxMessages != 10000 {
		t.Errorf("expected max messages 10000, got %d", cfg.Comms.MaxMessages)
	}
	if cfg.Comms.AnonymityLevel != "none" {
		t.Errorf("expected anonymity level 'none', got %q", cfg.Comms.AnonymityLevel)
	}

	if cfg.Lifecycle.MaintenanceFrequency != 24*time.Hour {
		t.Errorf("expected maintenance frequency 24h, got %v", cfg.Lifecycle.MaintenanceFrequency)
	}

	if cfg.Monitor.ShortTick != 5*time.Second {
		t.Errorf("expected short tick 5s, got %v", cfg.Monitor.ShortTick)
	}
	if cfg.Monitor.MediumTick != 30*time.Second {
		t.Errorf("expected medium tick 30s, got %v", cfg.Monitor.MediumTick)
	}
	if cfg.Monitor.LongTick != time.Minute {
		t.Errorf("expected long tick 1m, got %v", cfg.Monitor.LongTick)
	}

	if cfg.Runtime.Kind != "local" {
		t.Errorf("expected runtime kind 'local', got %q", cfg.Runtime.Kind)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
anthropic:
  model: claude-sonnet-4-20250514
  use_aws_bedrock: true
  aws_region: us-west-2

comms:
  reporting_interval: 5m
  max_messages: 500

lifecycle:
  policy_file: /etc/hive/policies.yaml

monitor:
  short_tick: 1s

runtime:
  kind: claude
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.Model != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q", cfg.Anthropic.Model)
	}
	if !cfg.Anthropic.UseAWSBedrock {
		t.Error("expected use_aws_bedrock true")
	}
	if cfg.Anthropic.AWSRegion != "us-west-2" {
		t.Errorf("aws_region = %q", cfg.Anthropic.AWSRegion)
	}

	if cfg.Comms.ReportingInterval != 5*time.Minute {
		t.Errorf("reporting interval = %v, want 5m", cfg.Comms.ReportingInterval)
	}
	if cfg.Comms.MaxMessages != 500 {
		t.Errorf("max messages = %d, want 500", cfg.Comms.MaxMessages)
	}

	if cfg.Lifecycle.PolicyFile != "/etc/hive/policies.yaml" {
		t.Errorf("policy file = %q", cfg.Lifecycle.PolicyFile)
	}

	if cfg.Monitor.ShortTick != time.Second {
		t.Errorf("short tick = %v, want 1s", cfg.Monitor.ShortTick)
	}
	if cfg.Monitor.MediumTick != 30*time.Second {
		t.Errorf("medium tick = %v, want default 30s", cfg.Monitor.MediumTick)
	}

	if cfg.Runtime.Kind != "claude" {
		t.Errorf("runtime kind = %q, want claude", cfg.Runtime.Kind)
	}
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadFromPath_ExpandsAPIKey(t *testing.T) {
	t.Setenv("HIVE_TEST_KEY", "sk-ant-from-env")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := "anthropic:\n  api_key: ${HIVE_TEST_KEY}\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-env" {
		t.Errorf("api key = %q, want expanded env value", cfg.Anthropic.APIKey)
	}
}

func TestGetUserConfigPath_HonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")

	got := GetUserConfigPath()
	want := filepath.Join("/tmp/xdg-test", "hive", "config.yaml")
	if got != want {
		t.Errorf("user config path = %q, want %q", got, want)
	}
}

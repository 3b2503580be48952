package main

import (
	"testing"
	"time"

	"github.com/agenthive/hive/internal/config"
	"github.com/agenthive/hive/internal/lifecycle"
	"github.com/agenthive/hive/internal/runtime"
	"github.com/agenthive/hive/pkg/models"
)

func resetRuntimeFlag(t *testing.T) {
	t.Helper()
	prev := runRuntimeKind
	runRuntimeKind = ""
	t.Cleanup(func() { runRuntimeKind = prev })
}

func TestBuildRuntime_LocalDefault(t *testing.T) {
	resetRuntimeFlag(t)

	rt, err := buildRuntime(config.Default())
	if err != nil {
		t.Fatalf("buildRuntime failed: %v", err)
	}
	if _, ok := rt.(*runtime.LocalRuntime); !ok {
		t.Errorf("runtime = %T, want *runtime.LocalRuntime", rt)
	}
}

func TestBuildRuntime_UnknownKind(t *testing.T) {
	resetRuntimeFlag(t)

	cfg := config.Default()
	cfg.Runtime.Kind = "quantum"
	if _, err := buildRuntime(cfg); err == nil {
		t.Error("buildRuntime should reject an unknown kind")
	}
}

func TestBuildRuntime_ClaudeCarriesConfiguredModel(t *testing.T) {
	resetRuntimeFlag(t)
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := config.Default()
	cfg.Runtime.Kind = "claude"
	cfg.Anthropic.APIKey = "sk-ant-test-key"
	cfg.Anthropic.Model = "claude-sonnet-4-20250514"

	rt, err := buildRuntime(cfg)
	if err != nil {
		t.Fatalf("buildRuntime failed: %v", err)
	}
	claude, ok := rt.(*runtime.ClaudeRuntime)
	if !ok {
		t.Fatalf("runtime = %T, want *runtime.ClaudeRuntime", rt)
	}
	if got := string(claude.Model()); got != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q, want the configured model", got)
	}
}

func TestBuildRuntime_ClaudeRequiresKey(t *testing.T) {
	resetRuntimeFlag(t)
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := config.Default()
	cfg.Runtime.Kind = "claude"
	if _, err := buildRuntime(cfg); err == nil {
		t.Error("buildRuntime should fail without an API key")
	}
}

func TestWithMaintenanceFallback(t *testing.T) {
	day := 24 * time.Hour

	got := withMaintenanceFallback(nil, day)
	if len(got) != 1 || got[0].AgentType != "" || got[0].MaintenanceEvery != day {
		t.Errorf("empty policies fallback = %+v, want one catch-all at 24h", got)
	}

	// A file that names any cadence keeps full control.
	explicit := []lifecycle.Policy{{AgentType: models.AgentCoder, MaintenanceEvery: time.Hour}}
	got = withMaintenanceFallback(explicit, day)
	if len(got) != 1 || got[0].MaintenanceEvery != time.Hour {
		t.Errorf("explicit cadence was overridden: %+v", got)
	}

	// Policies without a cadence all get the default plus a catch-all.
	silent := []lifecycle.Policy{{AgentType: models.AgentCoder}}
	got = withMaintenanceFallback(silent, day)
	if len(got) != 2 {
		t.Fatalf("fallback produced %d policies, want 2", len(got))
	}
	if got[0].MaintenanceEvery != day || got[1].AgentType != "" || got[1].MaintenanceEvery != day {
		t.Errorf("fallback policies = %+v", got)
	}
	if silent[0].MaintenanceEvery != 0 {
		t.Error("fallback mutated the caller's policy slice")
	}

	if got := withMaintenanceFallback(silent, 0); len(got) != 1 || got[0].MaintenanceEvery != 0 {
		t.Errorf("zero frequency changed policies: %+v", got)
	}
}

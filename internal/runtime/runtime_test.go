package runtime

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/agenthive/hive/pkg/models"
)

func TestLocalRuntime_SpawnAssignsTypedIDs(t *testing.T) {
	r := NewLocalRuntime()

	id, err := r.Spawn(context.Background(), Spec{Type: models.AgentCoder})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if !strings.HasPrefix(id, "coder-") {
		t.Errorf("id = %q, want coder- prefix", id)
	}

	if len(r.Spawned()) != 1 {
		t.Errorf("recorded %d specs, want 1", len(r.Spawned()))
	}
}

func TestLocalRuntime_SpawnErr(t *testing.T) {
	r := NewLocalRuntime()
	r.SpawnErr = errors.New("out of capacity")

	if _, err := r.Spawn(context.Background(), Spec{Type: models.AgentTester}); err == nil {
		t.Error("Spawn should fail when SpawnErr is set")
	}
	if len(r.Spawned()) != 0 {
		t.Error("failed Spawn should not record a spec")
	}
}

func TestLocalRuntime_ExecuteTaskDefault(t *testing.T) {
	r := NewLocalRuntime()
	task := &models.Task{ID: "t1", Description: "summarize findings"}

	res, err := r.ExecuteTask(context.Background(), task)
	if err != nil {
		t.Fatalf("ExecuteTask failed: %v", err)
	}
	if !res.Success {
		t.Error("default execution should succeed")
	}
	if res.Data["task_id"] != "t1" {
		t.Errorf("result task_id = %v, want t1", res.Data["task_id"])
	}
}

func TestLocalRuntime_ExecHook(t *testing.T) {
	r := NewLocalRuntime()
	r.ExecHook = func(ctx context.Context, task *models.Task) (*ExecResult, error) {
		return &ExecResult{Success: false, Output: "rejected"}, nil
	}

	res, err := r.ExecuteTask(context.Background(), &models.Task{ID: "t2"})
	if err != nil {
		t.Fatalf("ExecuteTask failed: %v", err)
	}
	if res.Success || res.Output != "rejected" {
		t.Errorf("hook result not honored: %+v", res)
	}
}

func TestLocalRuntime_CancelledContext(t *testing.T) {
	r := NewLocalRuntime()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Spawn(ctx, Spec{Type: models.AgentCoder}); err == nil {
		t.Error("Spawn with cancelled context should fail")
	}
	if _, err := r.ExecuteTask(ctx, &models.Task{ID: "t3"}); err == nil {
		t.Error("ExecuteTask with cancelled context should fail")
	}
}

func TestNewClaudeRuntime_RequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := NewClaudeRuntime(ClaudeConfig{}); err == nil {
		t.Error("NewClaudeRuntime without a key should fail")
	}
}

func TestNewClaudeRuntime_ExplicitKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	r, err := NewClaudeRuntime(ClaudeConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClaudeRuntime failed: %v", err)
	}
	if r.Model() == "" {
		t.Error("default model should be set")
	}

	id, err := r.Spawn(context.Background(), Spec{Type: models.AgentResearcher})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if !strings.HasPrefix(id, "researcher-") {
		t.Errorf("id = %q, want researcher- prefix", id)
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	got := translateModelForBedrock("claude-sonnet-4-20250514")
	if !strings.HasPrefix(string(got), "us.anthropic.") {
		t.Errorf("translated model = %q, want us.anthropic. prefix", got)
	}

	custom := translateModelForBedrock("us.anthropic.custom-v1:0")
	if custom != "us.anthropic.custom-v1:0" {
		t.Errorf("already-translated model changed to %q", custom)
	}
}

// Package runtime defines the agent execution contract. The orchestration
// core never runs task logic itself; it asks a Runtime to spawn agents and
// execute tasks.
package runtime

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/agenthive/hive/pkg/models"
)

// Spec describes an agent to spawn.
type Spec struct {
	// Type is the role specialization of the new agent.
	Type models.AgentType
	// Capabilities lists capability tags; empty means the type defaults.
	Capabilities []string
	// ParentID is the requesting agent, if any.
	ParentID string
	// Instructions is a free-form specialization prompt.
	Instructions string
}

// ExecResult is the outcome of executing one task.
type ExecResult struct {
	// Success reports whether the task completed.
	Success bool
	// Data carries the execution output.
	Data map[string]any
	// Output is the free-form textual result.
	Output string
}

// Runtime spawns agents and executes tasks on the core's behalf.
type Runtime interface {
	// Spawn creates an agent for the spec and returns its id.
	Spawn(ctx context.Context, spec Spec) (string, error)
	// ExecuteTask runs the task to completion and reports the outcome.
	ExecuteTask(ctx context.Context, task *models.Task) (*ExecResult, error)
}

// LocalRuntime is a deterministic in-process runtime. Spawned agents are
// ids only; task execution succeeds unless a hook says otherwise. Used by
// tests and by hosts that plug their own execution behind the hooks.
type LocalRuntime struct {
	mu      sync.Mutex
	spawned []Spec

	// SpawnErr, when set, makes every Spawn fail with this error.
	SpawnErr error
	// ExecHook, when set, replaces the default task execution.
	ExecHook func(ctx context.Context, task *models.Task) (*ExecResult, error)
}

// NewLocalRuntime creates an empty local runtime.
func NewLocalRuntime() *LocalRuntime {
	return &LocalRuntime{}
}

// Spawn assigns a fresh agent id and records the spec.
func (r *LocalRuntime) Spawn(ctx context.Context, spec Spec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SpawnErr != nil {
		return "", r.SpawnErr
	}
	r.spawned = append(r.spawned, spec)
	return string(spec.Type) + "-" + uuid.New().String()[:8], nil
}

// ExecuteTask runs the hook if set, otherwise reports success.
func (r *LocalRuntime) ExecuteTask(ctx context.Context, task *models.Task) (*ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	hook := r.ExecHook
	r.mu.Unlock()

	if hook != nil {
		return hook(ctx, task)
	}
	return &ExecResult{
		Success: true,
		Data:    map[string]any{"task_id": task.ID},
		Output:  "completed: " + task.Description,
	}, nil
}

// Spawned returns a copy of every spec passed to Spawn.
func (r *LocalRuntime) Spawned() []Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Spec, len(r.spawned))
	copy(out, r.spawned)
	return out
}

var _ Runtime = (*LocalRuntime)(nil)

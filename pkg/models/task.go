package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskCreated indicates the task record exists but has not been queued.
	TaskCreated TaskStatus = "created"
	// TaskPending indicates the task is queued for execution.
	TaskPending TaskStatus = "pending"
	// TaskInProgress indicates the task is being worked on.
	TaskInProgress TaskStatus = "in_progress"
	// TaskCompleted indicates the task finished successfully.
	TaskCompleted TaskStatus = "completed"
	// TaskFailed indicates the task failed.
	TaskFailed TaskStatus = "failed"
	// TaskDelegated indicates the task was handed to another agent.
	TaskDelegated TaskStatus = "delegated"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskCreated, TaskPending, TaskInProgress, TaskCompleted, TaskFailed, TaskDelegated:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status admits no further work.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task is a unit of work submitted to the delegator.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Type classifies the work (coding, research, testing, ...).
	Type string `json:"type"`
	// Description is the human-readable statement of the work.
	Description string `json:"description"`
	// Capabilities lists capability tags required to execute the task.
	Capabilities []string `json:"capabilities,omitempty"`
	// Tools lists tool names required to execute the task.
	Tools []string `json:"tools,omitempty"`
	// DependsOn lists task IDs that must complete before this one.
	DependsOn []string `json:"depends_on,omitempty"`
	// Dependents lists task IDs waiting on this one.
	Dependents []string `json:"dependents,omitempty"`
	// Conflicts lists task IDs that cannot run concurrently with this one.
	Conflicts []string `json:"conflicts,omitempty"`
	// Priority is a relative importance score; higher runs first.
	Priority float64 `json:"priority"`
	// Input carries free-form task input.
	Input map[string]any `json:"input,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// CreatedAt is when the task record was built.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the task reached a terminal status, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Error holds the failure message for failed tasks.
	Error string `json:"error,omitempty"`
}

// RequiresAll returns true if the agent capability set covers every
// capability the task requires.
func (t *Task) RequiresAll(agentCapabilities []string) bool {
	have := make(map[string]bool, len(agentCapabilities))
	for _, c := range agentCapabilities {
		have[c] = true
	}
	for _, c := range t.Capabilities {
		if !have[c] {
			return false
		}
	}
	return true
}

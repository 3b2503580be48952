package models

import "time"

// AgentState is a phase of an agent's managed life.
type AgentState string

const (
	// StateSpawning is the initial state of every agent.
	StateSpawning AgentState = "spawning"
	// StateInitializing indicates the runtime is setting the agent up.
	StateInitializing AgentState = "initializing"
	// StateTraining indicates the agent is loading its specialization.
	StateTraining AgentState = "training"
	// StateActive indicates the agent is available for work.
	StateActive AgentState = "active"
	// StateIdle indicates the agent has no queued work.
	StateIdle AgentState = "idle"
	// StateBusy indicates the agent is saturated with work.
	StateBusy AgentState = "busy"
	// StateScaling indicates the agent is being resized.
	StateScaling AgentState = "scaling"
	// StateDelegating indicates the agent is handing work to others.
	StateDelegating AgentState = "delegating"
	// StateReporting indicates the agent is producing a report.
	StateReporting AgentState = "reporting"
	// StateMaintenance indicates scheduled maintenance is running.
	StateMaintenance AgentState = "maintenance"
	// StatePaused indicates the agent is suspended by an operator.
	StatePaused AgentState = "paused"
	// StateError indicates the agent hit a recoverable fault.
	StateError AgentState = "error"
	// StateRetiring indicates graceful shutdown is underway.
	StateRetiring AgentState = "retiring"
	// StateTerminated is the terminal state; the record is archived.
	StateTerminated AgentState = "terminated"
)

// Valid returns true if the state is a known value.
func (s AgentState) Valid() bool {
	switch s {
	case StateSpawning, StateInitializing, StateTraining, StateActive, StateIdle,
		StateBusy, StateScaling, StateDelegating, StateReporting, StateMaintenance,
		StatePaused, StateError, StateRetiring, StateTerminated:
		return true
	default:
		return false
	}
}

// Terminal returns true if no transition leaves the state.
func (s AgentState) Terminal() bool {
	return s == StateTerminated
}

// AgentType names an agent's role specialization.
type AgentType string

const (
	AgentCoordinator AgentType = "coordinator"
	AgentArchitect   AgentType = "architect"
	AgentCoder       AgentType = "coder"
	AgentTester      AgentType = "tester"
	AgentAnalyst     AgentType = "analyst"
	AgentResearcher  AgentType = "researcher"
	AgentSecurity    AgentType = "security"
	AgentDevOps      AgentType = "devops"
	AgentGeneral     AgentType = "general"
)

// DefaultCapabilities returns the capability tags an agent of this type
// starts with.
func (t AgentType) DefaultCapabilities() []string {
	switch t {
	case AgentCoordinator:
		return []string{"coordination", "resource-management", "progress-tracking"}
	case AgentArchitect:
		return []string{"system-design", "architecture-planning", "technology-selection"}
	case AgentCoder:
		return []string{"coding", "implementation", "debugging", "refactoring"}
	case AgentTester:
		return []string{"testing", "test-planning", "quality-assurance"}
	case AgentAnalyst:
		return []string{"analysis", "data-analysis", "reporting"}
	case AgentResearcher:
		return []string{"research", "information-gathering", "documentation"}
	case AgentSecurity:
		return []string{"security", "vulnerability-scanning", "compliance-checking"}
	case AgentDevOps:
		return []string{"devops", "deployment", "infrastructure-management"}
	default:
		return []string{"general"}
	}
}

// Resources describes an agent's allocated resources.
type Resources struct {
	// CPUPercent is the allocated CPU share.
	CPUPercent float64 `json:"cpu_percent,omitempty"`
	// MemoryMB is the allocated memory in megabytes.
	MemoryMB int `json:"memory_mb,omitempty"`
	// StorageMB is the allocated storage in megabytes.
	StorageMB int `json:"storage_mb,omitempty"`
	// BandwidthKbps is the allocated network bandwidth.
	BandwidthKbps int `json:"bandwidth_kbps,omitempty"`
	// Tools lists tool names the agent may use.
	Tools []string `json:"tools,omitempty"`
	// Reservations lists time-bounded resource reservations.
	Reservations []Reservation `json:"reservations,omitempty"`
}

// Reservation is a time-bounded hold on a named resource.
type Reservation struct {
	// Resource names the reserved resource.
	Resource string `json:"resource"`
	// Amount is the reserved quantity in resource-specific units.
	Amount float64 `json:"amount"`
	// Until is when the reservation lapses.
	Until time.Time `json:"until"`
}

// Issue is an open problem attached to an agent.
type Issue struct {
	// ID is the unique identifier for this issue.
	ID string `json:"id"`
	// Description states the problem.
	Description string `json:"description"`
	// Critical marks issues that reduce the agent's health score.
	Critical bool `json:"critical"`
	// OpenedAt is when the issue was recorded.
	OpenedAt time.Time `json:"opened_at"`
}

// AgentMetrics accumulates per-agent performance data.
type AgentMetrics struct {
	// TransitionCounts counts state transitions keyed "<from>-><to>".
	TransitionCounts map[string]int `json:"transition_counts,omitempty"`
	// DwellTime accumulates total time spent in each state.
	DwellTime map[AgentState]time.Duration `json:"dwell_time,omitempty"`
	// PerformanceScore is the agent's base score in [0,1].
	PerformanceScore float64 `json:"performance_score"`
	// ReliabilityScore is the agent's failure-adjusted score in [0,1].
	ReliabilityScore float64 `json:"reliability_score"`
	// EfficiencyScore is the agent's resource-adjusted score in [0,1].
	EfficiencyScore float64 `json:"efficiency_score"`
	// HealthScore is the last computed composite health in [0,1].
	HealthScore float64 `json:"health_score"`
	// OpenIssues lists unresolved problems.
	OpenIssues []Issue `json:"open_issues,omitempty"`
	// Achievements lists notable completed milestones.
	Achievements []string `json:"achievements,omitempty"`
}

// ScheduledEvent is a one-shot or recurring maintenance event.
type ScheduledEvent struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`
	// Kind names the event (performance-review, restart, upgrade, ...).
	Kind string `json:"kind"`
	// At is when a one-shot event fires.
	At time.Time `json:"at,omitempty"`
	// CronExpr schedules a recurring event; empty means one-shot.
	CronExpr string `json:"cron_expr,omitempty"`
	// Params carries event-specific parameters.
	Params map[string]any `json:"params,omitempty"`
	// Fired marks one-shot events that have already run.
	Fired bool `json:"fired"`
}

// AgentRecord is the lifecycle state of one live (or archived) agent.
type AgentRecord struct {
	// AgentID is the agent's unique identifier.
	AgentID string `json:"agent_id"`
	// Type is the agent's role specialization.
	Type AgentType `json:"type"`
	// State is the current lifecycle state.
	State AgentState `json:"state"`
	// ParentID is the spawning agent, if any.
	ParentID string `json:"parent_id,omitempty"`
	// Children lists agents this agent spawned.
	Children []string `json:"children,omitempty"`
	// Capabilities lists the agent's capability tags.
	Capabilities []string `json:"capabilities,omitempty"`
	// CreatedAt is when the agent was registered.
	CreatedAt time.Time `json:"created_at"`
	// LastStateChange is when the agent last transitioned.
	LastStateChange time.Time `json:"last_state_change"`
	// Uptime is the accumulated live time at last observation.
	Uptime time.Duration `json:"uptime"`
	// TasksCompleted counts tasks the agent finished.
	TasksCompleted int `json:"tasks_completed"`
	// Metrics accumulates performance data.
	Metrics AgentMetrics `json:"metrics"`
	// ScheduledEvents lists pending maintenance events.
	ScheduledEvents []ScheduledEvent `json:"scheduled_events,omitempty"`
	// Dependencies lists agents this agent depends on.
	Dependencies []string `json:"dependencies,omitempty"`
	// Resources describes the agent's allocation.
	Resources Resources `json:"resources"`
	// TerminatedAt is when the agent was archived, if it was.
	TerminatedAt *time.Time `json:"terminated_at,omitempty"`
	// TerminationReason records why the agent was terminated.
	TerminationReason string `json:"termination_reason,omitempty"`
}

// AddChild records a spawned child if not already present.
func (r *AgentRecord) AddChild(childID string) {
	for _, c := range r.Children {
		if c == childID {
			return
		}
	}
	r.Children = append(r.Children, childID)
}

// CriticalIssueCount returns the number of open critical issues.
func (r *AgentRecord) CriticalIssueCount() int {
	n := 0
	for _, issue := range r.Metrics.OpenIssues {
		if issue.Critical {
			n++
		}
	}
	return n
}

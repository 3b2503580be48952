package models

import "time"

// Authority bounds what a delegate may do with a delegated task.
type Authority struct {
	// CanSubDelegate allows the delegate to hand the task onward.
	CanSubDelegate bool `json:"can_sub_delegate"`
	// ResourceLimits caps resource use while executing the task.
	ResourceLimits Resources `json:"resource_limits,omitempty"`
	// DecisionScope names the decisions the delegate may make alone.
	DecisionScope []string `json:"decision_scope,omitempty"`
	// EscalationRights allows the delegate to escalate to the delegator.
	EscalationRights bool `json:"escalation_rights"`
}

// Constraints are the delegator's standing requirements on a delegation.
type Constraints struct {
	// ReportInterval is how often the delegate must report progress.
	ReportInterval time.Duration `json:"report_interval"`
	// ImmutableFields lists task fields the delegate may not change.
	ImmutableFields []string `json:"immutable_fields,omitempty"`
	// RequiredApprovals lists decisions needing delegator sign-off.
	RequiredApprovals []string `json:"required_approvals,omitempty"`
	// MaxSubTasks caps how many sub-tasks the delegate may spawn.
	MaxSubTasks int `json:"max_sub_tasks"`
}

// DelegationProgress is a progress update from a delegate.
type DelegationProgress struct {
	// DelegationID identifies the delegation.
	DelegationID string `json:"delegation_id"`
	// Percent is the estimated completion fraction, 0..100.
	Percent float64 `json:"percent"`
	// Note is a free-form progress description.
	Note string `json:"note,omitempty"`
	// Timestamp is when the update was produced.
	Timestamp time.Time `json:"timestamp"`
}

// DelegationOutcome is the terminal result of a delegation.
type DelegationOutcome struct {
	// DelegationID identifies the delegation.
	DelegationID string `json:"delegation_id"`
	// Success reports whether the delegated task completed.
	Success bool `json:"success"`
	// Data carries the delegate's result payload.
	Data map[string]any `json:"data,omitempty"`
	// Err holds the failure, if any.
	Err error `json:"-"`
}

// Delegation is a tracked handoff of one task from one agent to another.
// Exactly one delegation exists per (task, delegate) pair; it is owned by
// the delegator until the delegate or a descendant completes it.
type Delegation struct {
	// ID is the unique identifier for this delegation.
	ID string `json:"id"`
	// DelegatorID is the agent handing off the task.
	DelegatorID string `json:"delegator_id"`
	// DelegateID is the agent receiving the task.
	DelegateID string `json:"delegate_id"`
	// Task is the delegated work.
	Task *Task `json:"task"`
	// Authority bounds the delegate's powers.
	Authority Authority `json:"authority"`
	// Constraints are the delegator's standing requirements.
	Constraints Constraints `json:"constraints"`
	// CreatedAt is when the delegation was established.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the delegation finished, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Callback slots. Outcomes are delivered through these rather than
	// raised into the delegator's call stack, so one failed delegation
	// does not stop the delegator from monitoring the rest.
	OnProgress   func(DelegationProgress) `json:"-"`
	OnComplete   func(DelegationOutcome)  `json:"-"`
	OnError      func(DelegationOutcome)  `json:"-"`
	OnEscalation func(DelegationOutcome)  `json:"-"`
}

// Done returns true once the delegation has completed.
func (d *Delegation) Done() bool {
	return d.CompletedAt != nil
}

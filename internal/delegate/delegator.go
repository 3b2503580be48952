// Package delegate implements the task delegator: the single entry point
// that decides, per submitted task, whether to spawn a specialist,
// delegate to an existing subordinate, execute locally, or assemble a
// team.
package delegate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthive/hive/internal/comms"
	"github.com/agenthive/hive/internal/lifecycle"
	"github.com/agenthive/hive/internal/logging"
	"github.com/agenthive/hive/internal/runtime"
	"github.com/agenthive/hive/pkg/models"
)

// Execution strategies, in precedence order.
const (
	StrategySpawnAndDelegate   = "spawn-and-delegate"
	StrategyDelegateToExisting = "delegate-to-existing"
	StrategyTeamExecution      = "team-execution"
	StrategySelfExecute        = "self-execute"
)

// Default resource allocation for spawned specialists.
var defaultSpawnResources = models.Resources{CPUPercent: 10, MemoryMB: 256}

// Options steers strategy selection for one submission.
type Options struct {
	// SpawnAgent forces spawn-and-delegate even when children qualify.
	SpawnAgent bool
	// DelegateToChild prefers an existing child when the caller has any.
	DelegateToChild bool
	// Collaboration set to "team" forces team execution.
	Collaboration string
	// TeamSize sizes the team for team execution. Zero selects a default.
	TeamSize int
	// Type overrides keyword inference of the task type.
	Type string
	// Capabilities overrides keyword inference of required capabilities.
	Capabilities []string
	// Tools lists tool names the task requires.
	Tools []string
	// Priority is the task's relative importance.
	Priority float64
	// Input carries free-form task input.
	Input map[string]any
	// ReportInterval overrides the hub's delegation reporting cadence.
	ReportInterval time.Duration
}

// Caller identifies who is submitting and what they can do themselves.
type Caller struct {
	// AgentID is the submitting agent (or the hosting process).
	AgentID string
	// Capabilities is the caller's own capability set.
	Capabilities []string
}

// Impact summarizes the organizational cost of one submission.
type Impact struct {
	// AgentsCreated counts specialists spawned for this task.
	AgentsCreated int
	// ResourceDelta sums the resources allocated to spawned agents.
	ResourceDelta models.Resources
	// TeamEfficiency is the mean performance score across a new team.
	TeamEfficiency float64
	// MessageVolume is the hub's total message count after execution.
	MessageVolume int64
}

// Result is the outcome of one Submit call.
type Result struct {
	// TaskID identifies the task record that was built.
	TaskID string
	// AgentID is the agent now responsible for the task, if any.
	AgentID string
	// SpawnedAgents lists agents created for this task.
	SpawnedAgents []string
	// Status is the task status after strategy execution.
	Status models.TaskStatus
	// Delegations lists delegation records created for this task.
	Delegations []*models.Delegation
	// Strategy names the execution strategy that ran.
	Strategy string
	// Impact is the organizational impact summary.
	Impact Impact
}

// Delegator owns delegation records and the strategy machinery.
type Delegator struct {
	hub   *comms.Hub
	mgr   *lifecycle.Manager
	rt    runtime.Runtime
	debug *logging.Logger

	mu          sync.Mutex
	delegations map[string]*models.Delegation
	links       map[string]*comms.DelegationLink
	activeCount map[string]int
}

// New creates a delegator wired to its collaborators.
func New(hub *comms.Hub, mgr *lifecycle.Manager, rt runtime.Runtime, debug *logging.Logger) *Delegator {
	return &Delegator{
		hub:         hub,
		mgr:         mgr,
		rt:          rt,
		debug:       debug,
		delegations: make(map[string]*models.Delegation),
		links:       make(map[string]*comms.DelegationLink),
		activeCount: make(map[string]int),
	}
}

// Submit builds a task from the description and executes the chosen
// strategy. Strategy precedence: spawn-and-delegate when forced or when
// the task is judged to need specialization the caller lacks, then
// delegate-to-existing, then team execution, then self execution, with
// spawn-and-delegate as the fallback.
func (d *Delegator) Submit(ctx context.Context, description string, opts Options, caller Caller) (*Result, error) {
	task, prof := d.buildTask(description, opts)
	result := &Result{TaskID: task.ID, Status: task.Status}

	strategy := d.chooseStrategy(task, prof, opts, caller)
	result.Strategy = strategy
	d.debug.Log("delegate: task %s (%s) via %s for caller %s", task.ID, task.Type, strategy, caller.AgentID)

	var err error
	switch strategy {
	case StrategySpawnAndDelegate:
		err = d.spawnAndDelegate(ctx, task, prof, opts, caller, result)
	case StrategyDelegateToExisting:
		err = d.delegateToExisting(ctx, task, prof, opts, caller, result)
	case StrategyTeamExecution:
		err = d.teamExecution(ctx, task, opts, caller, result)
	case StrategySelfExecute:
		err = d.selfExecute(ctx, task, result)
	}
	if err != nil {
		return nil, err
	}

	result.Status = task.Status
	result.Impact.MessageVolume = d.hub.TotalMessages()
	return result, nil
}

func (d *Delegator) buildTask(description string, opts Options) (*models.Task, profile) {
	prof := inferProfile(description)
	if opts.Type != "" {
		prof.taskType = opts.Type
	}
	if len(opts.Capabilities) > 0 {
		prof.capabilities = opts.Capabilities
	}

	task := &models.Task{
		ID:           uuid.New().String(),
		Type:         prof.taskType,
		Description:  description,
		Capabilities: prof.capabilities,
		Tools:        opts.Tools,
		Priority:     opts.Priority,
		Input:        opts.Input,
		Status:       models.TaskCreated,
		CreatedAt:    time.Now(),
	}
	return task, prof
}

func (d *Delegator) chooseStrategy(task *models.Task, prof profile, opts Options, caller Caller) string {
	callerCovers := task.RequiresAll(caller.Capabilities)
	specialized := prof.agentType != models.AgentGeneral && !callerCovers

	switch {
	case opts.SpawnAgent || specialized:
		return StrategySpawnAndDelegate
	case opts.DelegateToChild && len(d.mgr.Children(caller.AgentID)) > 0:
		return StrategyDelegateToExisting
	case opts.Collaboration == "team" || prof.specialties >= 2:
		return StrategyTeamExecution
	case callerCovers:
		return StrategySelfExecute
	default:
		return StrategySpawnAndDelegate
	}
}

// spawnAndDelegate asks the runtime for a fresh specialist, registers it
// under the caller, and delegates the task to it. A spawn failure aborts
// with no side effects; a failure after the delegation channel exists
// leaves that channel inert, not leaked.
func (d *Delegator) spawnAndDelegate(ctx context.Context, task *models.Task, prof profile, opts Options, caller Caller, result *Result) error {
	agentID, err := d.spawnSpecialist(ctx, prof.agentType, task, caller, result)
	if err != nil {
		return err
	}

	delegation, err := d.delegate(ctx, task, caller.AgentID, agentID, opts)
	if err != nil {
		return err
	}

	result.AgentID = agentID
	result.Delegations = append(result.Delegations, delegation)
	return nil
}

// delegateToExisting picks the caller's best-matching child: highest
// capability overlap, ties broken by the lowest number of active
// delegations. Falls back to spawning when no child matches at all.
func (d *Delegator) delegateToExisting(ctx context.Context, task *models.Task, prof profile, opts Options, caller Caller, result *Result) error {
	best := d.bestChild(d.mgr.Children(caller.AgentID), task)
	if best == "" {
		result.Strategy = StrategySpawnAndDelegate
		return d.spawnAndDelegate(ctx, task, prof, opts, caller, result)
	}

	delegation, err := d.delegate(ctx, task, caller.AgentID, best, opts)
	if err != nil {
		return err
	}

	result.AgentID = best
	result.Delegations = append(result.Delegations, delegation)
	return nil
}

func (d *Delegator) bestChild(children []string, task *models.Task) string {
	bestID := ""
	bestOverlap := 0.0
	bestActive := 0

	for _, child := range children {
		rec, err := d.mgr.Status(child)
		if err != nil || rec.State.Terminal() {
			continue
		}
		overlap := capabilityOverlap(task.Capabilities, rec.Capabilities)
		if overlap == 0 && len(task.Capabilities) > 0 {
			continue
		}

		active := d.ActiveDelegations(child)
		if bestID == "" || overlap > bestOverlap || (overlap == bestOverlap && active < bestActive) {
			bestID = child
			bestOverlap = overlap
			bestActive = active
		}
	}
	return bestID
}

// selfExecute hands the task straight to the runtime and maps its outcome
// to the task status.
func (d *Delegator) selfExecute(ctx context.Context, task *models.Task, result *Result) error {
	task.Status = models.TaskInProgress

	res, err := d.rt.ExecuteTask(ctx, task)
	now := time.Now()
	task.CompletedAt = &now
	if err != nil {
		task.Status = models.TaskFailed
		task.Error = err.Error()
		return nil
	}

	if res.Success {
		task.Status = models.TaskCompleted
	} else {
		task.Status = models.TaskFailed
		task.Error = res.Output
	}
	return nil
}

// teamExecution spawns one specialist per planned role, wires a shared
// team channel plus a delegation per member, and tracks aggregate
// efficiency.
func (d *Delegator) teamExecution(ctx context.Context, task *models.Task, opts Options, caller Caller, result *Result) error {
	size := opts.TeamSize
	if size <= 0 {
		size = 3
	}

	var members []string
	efficiencySum := 0.0
	for _, role := range teamRoles(size) {
		agentID, err := d.spawnSpecialist(ctx, role, task, caller, result)
		if err != nil {
			return err
		}
		members = append(members, agentID)

		if rec, err := d.mgr.Status(agentID); err == nil {
			efficiencySum += rec.Metrics.PerformanceScore
		}
	}

	_, err := d.hub.CreateChannel(ctx, fmt.Sprintf("team-%s", task.ID), models.ChannelBroadcast,
		caller.AgentID, members, nil)
	if err != nil {
		return err
	}

	for _, member := range members {
		delegation, err := d.delegate(ctx, task, caller.AgentID, member, opts)
		if err != nil {
			return err
		}
		result.Delegations = append(result.Delegations, delegation)
	}

	result.AgentID = members[0]
	result.Impact.TeamEfficiency = efficiencySum / float64(len(members))
	return nil
}

// spawnSpecialist creates and registers one agent, accumulating impact.
func (d *Delegator) spawnSpecialist(ctx context.Context, typ models.AgentType, task *models.Task, caller Caller, result *Result) (string, error) {
	spec := runtime.Spec{
		Type:         typ,
		Capabilities: task.Capabilities,
		ParentID:     caller.AgentID,
		Instructions: task.Description,
	}
	agentID, err := d.rt.Spawn(ctx, spec)
	if err != nil {
		return "", &models.SpawnError{Spec: string(typ), Err: err}
	}

	if _, err := d.mgr.Register(ctx, agentID, typ, caller.AgentID, defaultSpawnResources); err != nil {
		return "", fmt.Errorf("register spawned agent %s: %w", agentID, err)
	}

	result.SpawnedAgents = append(result.SpawnedAgents, agentID)
	result.Impact.AgentsCreated++
	result.Impact.ResourceDelta.CPUPercent += defaultSpawnResources.CPUPercent
	result.Impact.ResourceDelta.MemoryMB += defaultSpawnResources.MemoryMB
	return agentID, nil
}

// delegate creates the delegation record, arms the hub's report link, and
// announces the handoff to the delegate.
func (d *Delegator) delegate(ctx context.Context, task *models.Task, delegatorID, delegateID string, opts Options) (*models.Delegation, error) {
	link, err := d.hub.LinkDelegationEvery(ctx, delegatorID, delegateID, task.ID, opts.ReportInterval)
	if err != nil {
		return nil, err
	}

	interval := opts.ReportInterval
	if interval <= 0 {
		interval = comms.DefaultReportInterval
	}

	delegation := &models.Delegation{
		ID:          uuid.New().String(),
		DelegatorID: delegatorID,
		DelegateID:  delegateID,
		Task:        task,
		Authority: models.Authority{
			CanSubDelegate:   true,
			EscalationRights: true,
			ResourceLimits:   defaultSpawnResources,
		},
		Constraints: models.Constraints{
			ReportInterval: interval,
			MaxSubTasks:    5,
		},
		CreatedAt: time.Now(),
	}

	d.mu.Lock()
	d.delegations[delegation.ID] = delegation
	d.links[delegation.ID] = link
	d.activeCount[delegateID]++
	d.mu.Unlock()

	content := models.MessageContent{
		Subject: fmt.Sprintf("Delegated: %s", task.Type),
		Body:    task.Description,
		Data:    map[string]any{"delegation_id": delegation.ID},
	}
	_, err = d.hub.Send(ctx, delegatorID, []string{delegateID}, models.MessageDelegation, content,
		comms.SendOptions{
			ChannelID: link.ChannelID,
			Priority:  models.PriorityHigh,
			Meta:      models.MessageMeta{TaskID: task.ID},
		})
	if err != nil {
		return nil, err
	}

	task.Status = models.TaskDelegated
	return delegation, nil
}

// Delegation returns a tracked delegation by id.
func (d *Delegator) Delegation(id string) (*models.Delegation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dl, ok := d.delegations[id]
	return dl, ok
}

// ActiveDelegations returns how many open delegations an agent holds.
func (d *Delegator) ActiveDelegations(agentID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeCount[agentID]
}

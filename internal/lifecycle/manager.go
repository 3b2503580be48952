// Package lifecycle tracks every agent's state machine, enforces
// retirement and maintenance policies, and computes health and metrics.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthive/hive/internal/logging"
	"github.com/agenthive/hive/internal/state"
	"github.com/agenthive/hive/pkg/models"
)

// Storage partitions used by the manager.
const (
	partitionLifecycle = "lifecycle"
	partitionArchive   = "archive"
)

// Notifier delivers system notifications on the manager's behalf. The
// communication hub satisfies this.
type Notifier interface {
	SendSystemMessage(ctx context.Context, from, to, subject, body string) error
}

// transitionKey identifies one edge of the state machine.
type transitionKey struct {
	from    models.AgentState
	to      models.AgentState
	trigger string
}

// transitionTable is the fixed set of legal (from, to, trigger) triples.
// Anything absent is an invalid transition: logged, refused, no mutation.
var transitionTable = buildTransitionTable()

func buildTransitionTable() map[transitionKey]bool {
	edges := []transitionKey{
		{models.StateSpawning, models.StateInitializing, "spawn-request"},
		{models.StateSpawning, models.StateTerminated, "spawn-failed"},
		{models.StateInitializing, models.StateTraining, "initialization-complete"},
		{models.StateTraining, models.StateActive, "training-complete"},

		{models.StateActive, models.StateIdle, "queue-empty"},
		{models.StateIdle, models.StateActive, "task-assigned"},
		{models.StateActive, models.StateBusy, "workload-high"},
		{models.StateBusy, models.StateActive, "workload-normal"},
		{models.StateActive, models.StateScaling, "scale-request"},
		{models.StateScaling, models.StateActive, "scale-complete"},
		{models.StateActive, models.StateDelegating, "delegation-started"},
		{models.StateDelegating, models.StateActive, "delegation-complete"},
		{models.StateActive, models.StateReporting, "report-due"},
		{models.StateReporting, models.StateActive, "report-delivered"},
		{models.StateActive, models.StateMaintenance, "maintenance-started"},
		{models.StateMaintenance, models.StateActive, "maintenance-complete"},

		{models.StateActive, models.StatePaused, "pause-request"},
		{models.StatePaused, models.StateActive, "resume-request"},

		{models.StateActive, models.StateError, "error-detected"},
		{models.StateError, models.StateActive, "error-resolved"},
		{models.StateError, models.StateTerminated, "fatal-error"},

		{models.StateActive, models.StateRetiring, "retirement-started"},
		{models.StateIdle, models.StateRetiring, "retirement-started"},
		{models.StateBusy, models.StateRetiring, "retirement-started"},
		{models.StateRetiring, models.StateTerminated, "retirement-complete"},
	}

	table := make(map[transitionKey]bool, len(edges))
	for _, e := range edges {
		table[e] = true
	}
	return table
}

// Config configures a Manager. Store, Notifier, and Debug may be nil.
type Config struct {
	// Store receives every lifecycle record mutation.
	Store state.MemoryStore
	// Notifier carries parent and dependent notifications.
	Notifier Notifier
	// Debug is the shared debug logger.
	Debug *logging.Logger
	// Policies are the retirement/maintenance policies to enforce.
	Policies []Policy
}

// Manager owns the live agent map and the archive. One record per live
// agent; terminated records move to the archive and are never deleted.
type Manager struct {
	mu      sync.RWMutex
	agents  map[string]*models.AgentRecord
	archive map[string]*models.AgentRecord

	policies []Policy
	store    state.MemoryStore
	notifier Notifier
	debug    *logging.Logger
	sched    *maintenanceScheduler
}

// NewManager creates an empty manager.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		agents:   make(map[string]*models.AgentRecord),
		archive:  make(map[string]*models.AgentRecord),
		policies: cfg.Policies,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		debug:    cfg.Debug,
	}
	m.sched = newMaintenanceScheduler(m)
	return m
}

// Close stops the recurring maintenance scheduler.
func (m *Manager) Close() error {
	m.sched.stop()
	return nil
}

// Register creates the lifecycle record for a new agent in the spawning
// state, schedules its first performance review 24 hours out, and
// persists it. When the agent's policy sets MaintenanceEvery, a
// recurring maintenance event is scheduled at that cadence.
func (m *Manager) Register(ctx context.Context, id string, typ models.AgentType, parentID string, res models.Resources) (*models.AgentRecord, error) {
	now := time.Now()
	rec := &models.AgentRecord{
		AgentID:         id,
		Type:            typ,
		State:           models.StateSpawning,
		ParentID:        parentID,
		Capabilities:    typ.DefaultCapabilities(),
		CreatedAt:       now,
		LastStateChange: now,
		Resources:       res,
		Metrics: models.AgentMetrics{
			TransitionCounts: make(map[string]int),
			DwellTime:        make(map[models.AgentState]time.Duration),
			PerformanceScore: 0.8,
			ReliabilityScore: 1.0,
			EfficiencyScore:  1.0,
		},
		ScheduledEvents: []models.ScheduledEvent{
			{
				ID:   uuid.New().String(),
				Kind: "performance-review",
				At:   now.Add(24 * time.Hour),
			},
		},
	}
	rec.Metrics.HealthScore = computeHealth(rec)

	m.mu.Lock()
	if _, exists := m.agents[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("agent %s is already registered", id)
	}
	m.agents[id] = rec
	if parent, ok := m.agents[parentID]; ok {
		parent.AddChild(id)
	}
	snap := m.snapshot(rec)
	m.mu.Unlock()

	m.persist(ctx, snap)
	m.debug.Log("lifecycle: registered %s agent %s (parent %q)", typ, id, parentID)

	if pol := m.policyFor(typ); pol != nil && pol.MaintenanceEvery > 0 {
		expr := fmt.Sprintf("@every %s", pol.MaintenanceEvery)
		if _, err := m.ScheduleMaintenance(ctx, id, "maintenance", time.Time{}, expr, nil); err != nil {
			m.debug.Log("lifecycle: recurring maintenance for %s failed: %v", id, err)
		}
	}
	return snap, nil
}

// Transition moves an agent along one edge of the state machine. It
// returns false, with no mutation, when the agent is unknown or the
// (current, next, trigger) triple is not in the transition table. On
// success it updates dwell and transition metrics, notifies the parent,
// persists, and returns true.
func (m *Manager) Transition(ctx context.Context, id string, next models.AgentState, trigger string) bool {
	m.mu.Lock()
	rec, ok := m.agents[id]
	if !ok {
		m.mu.Unlock()
		m.debug.Log("lifecycle: transition refused, unknown agent %s", id)
		return false
	}

	from := rec.State
	if !transitionTable[transitionKey{from, next, trigger}] {
		m.mu.Unlock()
		m.debug.Log("lifecycle: transition refused for %s: %s -> %s (%s)", id, from, next, trigger)
		return false
	}

	m.applyTransitionLocked(rec, next, trigger)
	parentID := rec.ParentID
	snap := m.snapshot(rec)
	m.mu.Unlock()

	m.notifyParent(ctx, id, parentID, from, next, trigger)
	m.persist(ctx, snap)
	return true
}

// applyTransitionLocked updates state, timestamps, and metrics for one
// accepted transition. Caller holds the write lock.
func (m *Manager) applyTransitionLocked(rec *models.AgentRecord, next models.AgentState, trigger string) {
	now := time.Now()
	dwell := now.Sub(rec.LastStateChange)

	rec.Metrics.DwellTime[rec.State] += dwell
	rec.Metrics.TransitionCounts[string(rec.State)+"->"+string(next)]++
	rec.Uptime += dwell
	rec.State = next
	rec.LastStateChange = now
	rec.Metrics.HealthScore = computeHealth(rec)

	m.debug.Log("lifecycle: %s transitioned %s (%s)", rec.AgentID, next, trigger)
}

func (m *Manager) notifyParent(ctx context.Context, id, parentID string, from, next models.AgentState, trigger string) {
	if m.notifier == nil || parentID == "" {
		return
	}
	subject := fmt.Sprintf("agent %s: %s", id, next)
	body := fmt.Sprintf("agent %s transitioned from %s to %s (trigger: %s)", id, from, next, trigger)
	if err := m.notifier.SendSystemMessage(ctx, id, parentID, subject, body); err != nil {
		m.debug.Log("lifecycle: parent notification for %s failed: %v", id, err)
	}
}

// Terminate ends an agent's life. Graceful termination passes through
// retiring first. Children are terminated recursively with reason
// "parent-terminated", in-flight work is handed back to the parent,
// resource reservations are released, dependents are notified, and the
// record moves to the archive.
func (m *Manager) Terminate(ctx context.Context, id, reason string, graceful bool) error {
	m.mu.RLock()
	rec, ok := m.agents[id]
	var children []string
	if ok {
		children = append(children, rec.Children...)
	}
	m.mu.RUnlock()
	if !ok {
		return models.ErrAgentNotFound
	}

	if graceful {
		m.Transition(ctx, id, models.StateRetiring, "retirement-started")
	}

	for _, child := range children {
		if err := m.Terminate(ctx, child, "parent-terminated", graceful); err != nil && err != models.ErrAgentNotFound {
			return err
		}
	}

	m.sched.cancelFor(id)

	m.mu.Lock()
	rec, ok = m.agents[id]
	if !ok {
		m.mu.Unlock()
		return models.ErrAgentNotFound
	}

	// Hand off whatever is still in flight before the record goes away.
	parentID := rec.ParentID
	handoff := rec.State == models.StateBusy || rec.State == models.StateDelegating

	rec.Resources.Reservations = nil

	if rec.State == models.StateRetiring {
		m.applyTransitionLocked(rec, models.StateTerminated, "retirement-complete")
	} else {
		// Forced path: terminate directly, outside the table.
		now := time.Now()
		rec.Metrics.DwellTime[rec.State] += now.Sub(rec.LastStateChange)
		rec.Metrics.TransitionCounts[string(rec.State)+"->"+string(models.StateTerminated)]++
		rec.Uptime += now.Sub(rec.LastStateChange)
		rec.State = models.StateTerminated
		rec.LastStateChange = now
	}

	now := time.Now()
	rec.TerminatedAt = &now
	rec.TerminationReason = reason

	delete(m.agents, id)
	m.archive[id] = rec
	snap := m.snapshot(rec)

	var dependents []string
	for _, other := range m.agents {
		for _, dep := range other.Dependencies {
			if dep == id {
				dependents = append(dependents, other.AgentID)
				break
			}
		}
	}
	m.mu.Unlock()

	if m.notifier != nil {
		if handoff && parentID != "" {
			subject := fmt.Sprintf("handoff from %s", id)
			body := fmt.Sprintf("agent %s terminated (%s) with work in flight; parent assumes ownership", id, reason)
			if err := m.notifier.SendSystemMessage(ctx, id, parentID, subject, body); err != nil {
				m.debug.Log("lifecycle: handoff notification for %s failed: %v", id, err)
			}
		}
		for _, dep := range dependents {
			subject := fmt.Sprintf("dependency %s terminated", id)
			body := fmt.Sprintf("agent %s was terminated: %s", id, reason)
			if err := m.notifier.SendSystemMessage(ctx, id, dep, subject, body); err != nil {
				m.debug.Log("lifecycle: dependent notification for %s failed: %v", dep, err)
			}
		}
	}

	if m.store != nil {
		err := m.store.Store(ctx, id, snap, state.StoreOptions{
			Type:      "lifecycle",
			Tags:      []string{string(snap.Type), reason},
			Partition: partitionArchive,
		})
		if err != nil {
			m.debug.Log("lifecycle: archive persist for %s failed: %v", id, err)
		}
	}

	m.debug.Log("lifecycle: terminated %s (reason %s, graceful %t)", id, reason, graceful)
	return nil
}

// Status returns a copy of an agent's record, live or archived.
func (m *Manager) Status(id string) (*models.AgentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if rec, ok := m.agents[id]; ok {
		return m.snapshot(rec), nil
	}
	if rec, ok := m.archive[id]; ok {
		return m.snapshot(rec), nil
	}
	return nil, models.ErrAgentNotFound
}

// snapshot copies a record, including the metric maps, so callers and
// the persistence path never share mutable state with the manager.
// Caller holds at least the read lock.
func (m *Manager) snapshot(rec *models.AgentRecord) *models.AgentRecord {
	cp := *rec
	cp.Children = append([]string(nil), rec.Children...)
	cp.Capabilities = append([]string(nil), rec.Capabilities...)
	cp.Dependencies = append([]string(nil), rec.Dependencies...)
	cp.ScheduledEvents = append([]models.ScheduledEvent(nil), rec.ScheduledEvents...)
	cp.Resources.Reservations = append([]models.Reservation(nil), rec.Resources.Reservations...)
	cp.Metrics.OpenIssues = append([]models.Issue(nil), rec.Metrics.OpenIssues...)
	cp.Metrics.Achievements = append([]string(nil), rec.Metrics.Achievements...)
	if rec.Metrics.DwellTime != nil {
		cp.Metrics.DwellTime = make(map[models.AgentState]time.Duration, len(rec.Metrics.DwellTime))
		for s, d := range rec.Metrics.DwellTime {
			cp.Metrics.DwellTime[s] = d
		}
	}
	if rec.Metrics.TransitionCounts != nil {
		cp.Metrics.TransitionCounts = make(map[string]int, len(rec.Metrics.TransitionCounts))
		for k, n := range rec.Metrics.TransitionCounts {
			cp.Metrics.TransitionCounts[k] = n
		}
	}
	return &cp
}

// Live returns copies of every live agent record.
func (m *Manager) Live() []*models.AgentRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.AgentRecord, 0, len(m.agents))
	for _, rec := range m.agents {
		out = append(out, m.snapshot(rec))
	}
	return out
}

// Children returns the child ids of a live agent.
func (m *Manager) Children(id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.agents[id]
	if !ok {
		return nil
	}
	return append([]string(nil), rec.Children...)
}

// AddIssue attaches an open issue to a live agent.
func (m *Manager) AddIssue(ctx context.Context, id, description string, critical bool) error {
	m.mu.Lock()
	rec, ok := m.agents[id]
	if !ok {
		m.mu.Unlock()
		return models.ErrAgentNotFound
	}
	rec.Metrics.OpenIssues = append(rec.Metrics.OpenIssues, models.Issue{
		ID:          uuid.New().String(),
		Description: description,
		Critical:    critical,
		OpenedAt:    time.Now(),
	})
	rec.Metrics.HealthScore = computeHealth(rec)
	snap := m.snapshot(rec)
	m.mu.Unlock()

	m.persist(ctx, snap)
	return nil
}

// Metrics is the aggregate view over live and archived agents.
type Metrics struct {
	LiveAgents     int
	ArchivedAgents int
	ByState        map[models.AgentState]int
	AverageHealth  float64
	OpenIssues     int
	DwellTime      map[models.AgentState]time.Duration
	CPUAllocated   float64
	MemoryMB       int
}

// Aggregate computes the read-only lifecycle metrics.
func (m *Manager) Aggregate() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agg := Metrics{
		LiveAgents:     len(m.agents),
		ArchivedAgents: len(m.archive),
		ByState:        make(map[models.AgentState]int),
		DwellTime:      make(map[models.AgentState]time.Duration),
	}

	healthSum := 0.0
	for _, rec := range m.agents {
		agg.ByState[rec.State]++
		healthSum += rec.Metrics.HealthScore
		agg.OpenIssues += len(rec.Metrics.OpenIssues)
		agg.CPUAllocated += rec.Resources.CPUPercent
		agg.MemoryMB += rec.Resources.MemoryMB
		for s, d := range rec.Metrics.DwellTime {
			agg.DwellTime[s] += d
		}
	}
	if len(m.agents) > 0 {
		agg.AverageHealth = healthSum / float64(len(m.agents))
	}
	return agg
}

// RefreshHealth recomputes every live agent's health score.
func (m *Manager) RefreshHealth() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.agents {
		rec.Metrics.HealthScore = computeHealth(rec)
	}
}

// computeHealth derives the composite health score: the performance score,
// halved in error, reduced to 80% while paused, minus 0.2 per open
// critical issue, clamped to [0,1].
func computeHealth(rec *models.AgentRecord) float64 {
	health := rec.Metrics.PerformanceScore
	if rec.State == models.StateError {
		health *= 0.5
	}
	if rec.State == models.StatePaused {
		health *= 0.8
	}
	health -= 0.2 * float64(rec.CriticalIssueCount())

	if health < 0 {
		return 0
	}
	if health > 1 {
		return 1
	}
	return health
}

func (m *Manager) persist(ctx context.Context, rec *models.AgentRecord) {
	if m.store == nil {
		return
	}
	err := m.store.Store(ctx, rec.AgentID, rec, state.StoreOptions{
		Type:      "lifecycle",
		Tags:      []string{string(rec.Type), string(rec.State)},
		Partition: partitionLifecycle,
	})
	if err != nil {
		m.debug.Log("lifecycle: persist for %s failed: %v", rec.AgentID, err)
	}
}

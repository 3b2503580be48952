package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/agenthive/hive/pkg/models"
)

// ScheduleMaintenance records a maintenance event for a live agent. A
// non-empty cronExpr makes the event recurring; otherwise it fires once
// at the given time. Recurring events run until the agent terminates.
func (m *Manager) ScheduleMaintenance(ctx context.Context, agentID, kind string, when time.Time, cronExpr string, params map[string]any) (*models.ScheduledEvent, error) {
	event := models.ScheduledEvent{
		ID:       uuid.New().String(),
		Kind:     kind,
		At:       when,
		CronExpr: cronExpr,
		Params:   params,
	}

	m.mu.RLock()
	_, ok := m.agents[agentID]
	m.mu.RUnlock()
	if !ok {
		return nil, models.ErrAgentNotFound
	}

	if cronExpr != "" {
		if err := m.sched.add(agentID, event); err != nil {
			return nil, fmt.Errorf("schedule %s for %s: %w", kind, agentID, err)
		}
	}

	m.mu.Lock()
	rec, ok := m.agents[agentID]
	if !ok {
		m.mu.Unlock()
		m.sched.cancelFor(agentID)
		return nil, models.ErrAgentNotFound
	}
	rec.ScheduledEvents = append(rec.ScheduledEvents, event)
	snap := m.snapshot(rec)
	m.mu.Unlock()

	m.persist(ctx, snap)
	m.debug.Log("lifecycle: scheduled %s for %s (cron %q, at %s)", kind, agentID, cronExpr, when)
	return &event, nil
}

// FireDueEvents fires every unfired one-shot event whose time has come.
// Returns the number of events fired. Called from the monitor's long tick.
func (m *Manager) FireDueEvents(ctx context.Context, now time.Time) int {
	type due struct {
		agentID string
		event   models.ScheduledEvent
	}

	m.mu.Lock()
	var fired []due
	for _, rec := range m.agents {
		for i := range rec.ScheduledEvents {
			ev := &rec.ScheduledEvents[i]
			if ev.Fired || ev.CronExpr != "" || ev.At.After(now) {
				continue
			}
			ev.Fired = true
			fired = append(fired, due{rec.AgentID, *ev})
		}
	}
	m.mu.Unlock()

	for _, d := range fired {
		m.fireEvent(ctx, d.agentID, d.event)
	}
	return len(fired)
}

// fireEvent runs one scheduled event against an agent.
func (m *Manager) fireEvent(ctx context.Context, agentID string, event models.ScheduledEvent) {
	m.debug.Log("lifecycle: firing %s for %s", event.Kind, agentID)

	switch event.Kind {
	case "performance-review":
		m.mu.Lock()
		if rec, ok := m.agents[agentID]; ok {
			rec.Metrics.HealthScore = computeHealth(rec)
		}
		m.mu.Unlock()
	default:
		// Maintenance proper runs through the state machine when the
		// agent can accept it; a busy or absent agent skips this round.
		if m.Transition(ctx, agentID, models.StateMaintenance, "maintenance-started") {
			m.Transition(ctx, agentID, models.StateActive, "maintenance-complete")
		}
	}

	m.mu.RLock()
	rec, ok := m.agents[agentID]
	var parentID string
	if ok {
		parentID = rec.ParentID
	}
	m.mu.RUnlock()

	if m.notifier != nil && parentID != "" {
		subject := fmt.Sprintf("%s ran for %s", event.Kind, agentID)
		body := fmt.Sprintf("scheduled event %s (%s) fired for agent %s", event.ID, event.Kind, agentID)
		if err := m.notifier.SendSystemMessage(ctx, agentID, parentID, subject, body); err != nil {
			m.debug.Log("lifecycle: event notification for %s failed: %v", agentID, err)
		}
	}
}

// maintenanceScheduler drives recurring maintenance events through cron.
// Overlapping runs of the same entry are skipped, not queued.
type maintenanceScheduler struct {
	mgr *Manager

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string][]cron.EntryID
	started bool
}

func newMaintenanceScheduler(mgr *Manager) *maintenanceScheduler {
	return &maintenanceScheduler{
		mgr:     mgr,
		cron:    cron.New(),
		entries: make(map[string][]cron.EntryID),
	}
}

// add registers a recurring event. The cron runner starts on first use.
func (s *maintenanceScheduler) add(agentID string, event models.ScheduledEvent) error {
	job := cron.FuncJob(func() {
		s.mgr.fireEvent(context.Background(), agentID, event)
	})
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(job)

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddJob(event.CronExpr, wrapped)
	if err != nil {
		return err
	}
	s.entries[agentID] = append(s.entries[agentID], id)

	if !s.started {
		s.cron.Start()
		s.started = true
	}
	return nil
}

// cancelFor removes every recurring entry belonging to an agent.
func (s *maintenanceScheduler) cancelFor(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.entries[agentID] {
		s.cron.Remove(id)
	}
	delete(s.entries, agentID)
}

// entryCount returns the number of live recurring entries.
func (s *maintenanceScheduler) entryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ids := range s.entries {
		n += len(ids)
	}
	return n
}

// stop halts the cron runner.
func (s *maintenanceScheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.cron.Stop()
		s.started = false
	}
}

package lifecycle

import (
	"context"
	"time"

	"github.com/agenthive/hive/pkg/models"
)

// Policy bounds how long agents of a type may live. A nil limit means
// unlimited; a zero limit means the agent exceeds it on the first
// enforcement tick.
type Policy struct {
	// AgentType selects which agents the policy covers; empty covers all.
	AgentType models.AgentType
	// MaxUptime is the accumulated-uptime ceiling.
	MaxUptime *time.Duration
	// MaxIdleTime is the ceiling on continuous time spent idle.
	MaxIdleTime *time.Duration
	// MaintenanceEvery, when set, is the recurring maintenance cadence.
	MaintenanceEvery time.Duration
}

// policyFor returns the most specific policy covering an agent type:
// an exact type match wins over the catch-all.
func (m *Manager) policyFor(typ models.AgentType) *Policy {
	var catchAll *Policy
	for i := range m.policies {
		p := &m.policies[i]
		if p.AgentType == typ {
			return p
		}
		if p.AgentType == "" && catchAll == nil {
			catchAll = p
		}
	}
	return catchAll
}

// EnforcePolicies terminates agents that exceed their policy's uptime or
// idle-time ceiling. Enforcement is graceful with reason "planned".
// Returns the ids of the agents terminated this tick.
func (m *Manager) EnforcePolicies(ctx context.Context, now time.Time) []string {
	type breach struct {
		id  string
		why string
	}

	m.mu.RLock()
	var breaches []breach
	for _, rec := range m.agents {
		policy := m.policyFor(rec.Type)
		if policy == nil {
			continue
		}

		uptime := rec.Uptime + now.Sub(rec.LastStateChange)
		if policy.MaxUptime != nil && uptime >= *policy.MaxUptime {
			breaches = append(breaches, breach{rec.AgentID, "max uptime"})
			continue
		}
		if policy.MaxIdleTime != nil && rec.State == models.StateIdle &&
			now.Sub(rec.LastStateChange) >= *policy.MaxIdleTime {
			breaches = append(breaches, breach{rec.AgentID, "max idle time"})
		}
	}
	m.mu.RUnlock()

	var terminated []string
	for _, b := range breaches {
		m.debug.Log("lifecycle: policy breach for %s (%s), retiring", b.id, b.why)
		if err := m.Terminate(ctx, b.id, "planned", true); err != nil {
			m.debug.Log("lifecycle: policy termination of %s failed: %v", b.id, err)
			continue
		}
		terminated = append(terminated, b.id)
	}
	return terminated
}

package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/agenthive/hive/pkg/models"
)

// Mailboxes is what the monitor needs from the communication hub to keep
// mailboxes moving. The hub satisfies this.
type Mailboxes interface {
	MailboxAgents() []string
	Drain(agentID string, max int) []*models.Message
	PurgeExpired(now time.Time) int
}

// MonitorConfig sets the three tick intervals. Zeros select defaults.
type MonitorConfig struct {
	// ShortTick drains mailboxes and purges expired messages.
	ShortTick time.Duration
	// MediumTick recomputes health scores.
	MediumTick time.Duration
	// LongTick fires scheduled events and enforces retirement policy.
	LongTick time.Duration
	// DrainBatch caps messages drained per agent per short tick.
	DrainBatch int
}

// Monitor is the timer-driven background side of the lifecycle manager.
// Each interval runs on its own ticker so a slow collaborator call on one
// tick never starves the others.
type Monitor struct {
	mgr  *Manager
	hub  Mailboxes
	cfg  MonitorConfig
	deliver func(agentID string, msg *models.Message)

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewMonitor creates a monitor. deliver, if non-nil, receives every
// drained message; when nil, mailboxes are left queued for snapshot reads
// and only expiry purging runs on the short tick.
func NewMonitor(mgr *Manager, hub Mailboxes, cfg MonitorConfig, deliver func(agentID string, msg *models.Message)) *Monitor {
	if cfg.ShortTick <= 0 {
		cfg.ShortTick = 5 * time.Second
	}
	if cfg.MediumTick <= 0 {
		cfg.MediumTick = 30 * time.Second
	}
	if cfg.LongTick <= 0 {
		cfg.LongTick = time.Minute
	}
	if cfg.DrainBatch <= 0 {
		cfg.DrainBatch = 50
	}
	return &Monitor{mgr: mgr, hub: hub, cfg: cfg, deliver: deliver}
}

// Start launches the three tickers. Starting twice is a no-op.
func (mo *Monitor) Start(ctx context.Context) {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	if mo.started {
		return
	}
	mo.started = true
	mo.stop = make(chan struct{})

	mo.wg.Add(3)
	go mo.loop(ctx, mo.cfg.ShortTick, mo.ShortTick)
	go mo.loop(ctx, mo.cfg.MediumTick, func(context.Context, time.Time) { mo.MediumTick() })
	go mo.loop(ctx, mo.cfg.LongTick, mo.LongTick)
}

// Stop halts the tickers and waits for in-flight ticks to finish.
func (mo *Monitor) Stop() {
	mo.mu.Lock()
	if !mo.started {
		mo.mu.Unlock()
		return
	}
	mo.started = false
	close(mo.stop)
	mo.mu.Unlock()

	mo.wg.Wait()
}

func (mo *Monitor) loop(ctx context.Context, interval time.Duration, tick func(context.Context, time.Time)) {
	defer mo.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-mo.stop:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			tick(ctx, now)
		}
	}
}

// ShortTick purges expired messages and drains mailboxes in priority
// order.
func (mo *Monitor) ShortTick(ctx context.Context, now time.Time) {
	if mo.hub == nil {
		return
	}
	mo.hub.PurgeExpired(now)

	if mo.deliver == nil {
		return
	}
	for _, agentID := range mo.hub.MailboxAgents() {
		for _, msg := range mo.hub.Drain(agentID, mo.cfg.DrainBatch) {
			mo.deliver(agentID, msg)
		}
	}
}

// MediumTick recomputes every live agent's health score.
func (mo *Monitor) MediumTick() {
	mo.mgr.RefreshHealth()
}

// LongTick fires due scheduled events and enforces retirement policies.
func (mo *Monitor) LongTick(ctx context.Context, now time.Time) {
	mo.mgr.FireDueEvents(ctx, now)
	mo.mgr.EnforcePolicies(ctx, now)
}

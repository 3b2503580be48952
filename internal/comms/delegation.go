package comms

import (
	"context"
	"fmt"
	"time"

	"github.com/agenthive/hive/pkg/models"
)

// DelegationLink is the communication side of a delegation: a private
// direct channel between delegator and delegate, plus a recurring report
// timer that runs until cancelled.
type DelegationLink struct {
	ID          string
	ChannelID   string
	DelegatorID string
	DelegateID  string
	TaskID      string
}

// reporter is the running timer behind one delegation link.
type reporter struct {
	link DelegationLink
	stop chan struct{}
}

// LinkDelegation creates the private channel for a delegation and arms a
// recurring report from delegate to delegator every report interval.
// The timer runs until CancelReporter is called; an uncancelled timer is
// a leak.
func (h *Hub) LinkDelegation(ctx context.Context, delegatorID, delegateID, taskID string) (*DelegationLink, error) {
	return h.LinkDelegationEvery(ctx, delegatorID, delegateID, taskID, h.reportInterval)
}

// LinkDelegationEvery is LinkDelegation with an explicit report interval.
func (h *Hub) LinkDelegationEvery(ctx context.Context, delegatorID, delegateID, taskID string, interval time.Duration) (*DelegationLink, error) {
	if interval <= 0 {
		interval = h.reportInterval
	}

	ch, err := h.CreateChannel(ctx, fmt.Sprintf("delegation-%s", taskID), models.ChannelDirect,
		delegatorID, []string{delegateID}, func(c *models.Channel) {
			c.Permissions.IsPublic = false
			c.Metadata = map[string]any{"task_id": taskID}
		})
	if err != nil {
		return nil, err
	}

	link := DelegationLink{
		ID:          ch.ID,
		ChannelID:   ch.ID,
		DelegatorID: delegatorID,
		DelegateID:  delegateID,
		TaskID:      taskID,
	}
	r := &reporter{link: link, stop: make(chan struct{})}

	h.mu.Lock()
	h.reporters[link.ID] = r
	h.mu.Unlock()

	go h.runReporter(r, interval)

	h.debug.Log("comms: delegation link %s armed (%s -> %s, task %s, every %s)",
		link.ID, delegatorID, delegateID, taskID, interval)
	return &link, nil
}

// runReporter emits a structured report message from the delegate to the
// delegator on each tick until stopped.
func (h *Hub) runReporter(r *reporter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			content := models.MessageContent{
				Subject: "Progress report",
				Body:    fmt.Sprintf("scheduled progress report for task %s", r.link.TaskID),
				Data:    map[string]any{"task_id": r.link.TaskID},
			}
			_, err := h.Send(context.Background(), r.link.DelegateID, []string{r.link.DelegatorID},
				models.MessageReport, content, SendOptions{
					ChannelID: r.link.ChannelID,
					Priority:  models.PriorityHigh,
					Meta:      models.MessageMeta{TaskID: r.link.TaskID},
				})
			if err != nil {
				h.debug.Log("comms: report on link %s failed: %v", r.link.ID, err)
			}
		}
	}
}

// CancelReporter stops a delegation link's report timer. Cancelling an
// unknown or already-cancelled link is a no-op.
func (h *Hub) CancelReporter(linkID string) {
	h.mu.Lock()
	r, ok := h.reporters[linkID]
	if ok {
		delete(h.reporters, linkID)
	}
	h.mu.Unlock()

	if ok {
		close(r.stop)
		h.debug.Log("comms: delegation link %s cancelled", linkID)
	}
}

// CancelReportersFor stops every report timer in which the agent is the
// delegator or the delegate. Called when an agent terminates.
func (h *Hub) CancelReportersFor(agentID string) {
	h.mu.Lock()
	var stopped []*reporter
	for id, r := range h.reporters {
		if r.link.DelegatorID == agentID || r.link.DelegateID == agentID {
			delete(h.reporters, id)
			stopped = append(stopped, r)
		}
	}
	h.mu.Unlock()

	for _, r := range stopped {
		close(r.stop)
	}
}

// ActiveReporters returns how many delegation report timers are running.
func (h *Hub) ActiveReporters() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.reporters)
}

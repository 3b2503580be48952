package delegate

import (
	"time"

	"github.com/agenthive/hive/pkg/models"
)

// Progress delivers a progress update to the delegation's progress slot.
func (d *Delegator) Progress(delegationID string, percent float64, note string) {
	d.mu.Lock()
	dl, ok := d.delegations[delegationID]
	d.mu.Unlock()
	if !ok || dl.OnProgress == nil {
		return
	}

	dl.OnProgress(models.DelegationProgress{
		DelegationID: delegationID,
		Percent:      percent,
		Note:         note,
		Timestamp:    time.Now(),
	})
}

// Complete closes a delegation successfully: the report timer is
// cancelled, the task is marked completed, and the outcome is delivered
// through the completion slot.
func (d *Delegator) Complete(delegationID string, data map[string]any) {
	d.finish(delegationID, models.DelegationOutcome{
		DelegationID: delegationID,
		Success:      true,
		Data:         data,
	}, models.TaskCompleted, func(dl *models.Delegation) func(models.DelegationOutcome) {
		return dl.OnComplete
	})
}

// Fail closes a delegation as failed. The error reaches the delegator
// through the error slot, never by panicking into the caller.
func (d *Delegator) Fail(delegationID string, err error) {
	d.finish(delegationID, models.DelegationOutcome{
		DelegationID: delegationID,
		Err:          err,
	}, models.TaskFailed, func(dl *models.Delegation) func(models.DelegationOutcome) {
		return dl.OnError
	})
}

// Escalate closes a delegation by raising it to the delegator's
// escalation slot. The task returns to pending for re-delegation.
func (d *Delegator) Escalate(delegationID string, data map[string]any) {
	d.finish(delegationID, models.DelegationOutcome{
		DelegationID: delegationID,
		Data:         data,
	}, models.TaskPending, func(dl *models.Delegation) func(models.DelegationOutcome) {
		return dl.OnEscalation
	})
}

func (d *Delegator) finish(delegationID string, outcome models.DelegationOutcome, status models.TaskStatus, slot func(*models.Delegation) func(models.DelegationOutcome)) {
	d.mu.Lock()
	dl, ok := d.delegations[delegationID]
	if !ok || dl.Done() {
		d.mu.Unlock()
		return
	}
	now := time.Now()
	dl.CompletedAt = &now
	dl.Task.Status = status
	if status.Terminal() {
		dl.Task.CompletedAt = &now
	}
	if outcome.Err != nil {
		dl.Task.Error = outcome.Err.Error()
	}

	link := d.links[delegationID]
	delete(d.links, delegationID)
	if d.activeCount[dl.DelegateID] > 0 {
		d.activeCount[dl.DelegateID]--
	}
	d.mu.Unlock()

	if link != nil {
		d.hub.CancelReporter(link.ID)
	}

	if fn := slot(dl); fn != nil {
		fn(outcome)
	}
	d.debug.Log("delegate: delegation %s finished with status %s", delegationID, status)
}

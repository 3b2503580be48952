package models

import (
	"errors"
	"fmt"
)

// ErrAgentNotFound is returned when an operation references an agent the
// lifecycle manager does not know about.
var ErrAgentNotFound = errors.New("agent not found")

// InvalidChannelSpecError reports a structurally invalid channel.
type InvalidChannelSpecError struct {
	Reason string
}

func (e *InvalidChannelSpecError) Error() string {
	return "invalid channel spec: " + e.Reason
}

// ValidationError reports invalid message content.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// PermissionError reports a sender lacking send rights on a channel.
type PermissionError struct {
	AgentID   string
	ChannelID string
	Action    string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: agent %s may not %s on channel %s", e.AgentID, e.Action, e.ChannelID)
}

// SpawnError reports that the agent runtime could not create an agent.
type SpawnError struct {
	Spec string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn failed for %s: %v", e.Spec, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

package models

import "time"

// ChannelKind represents the communication topology of a channel.
type ChannelKind string

const (
	// ChannelDirect is a private one-to-one channel.
	ChannelDirect ChannelKind = "direct"
	// ChannelBroadcast delivers to every participant.
	ChannelBroadcast ChannelKind = "broadcast"
	// ChannelHierarchical carries traffic along a parent/child edge.
	ChannelHierarchical ChannelKind = "hierarchical"
	// ChannelPeer connects siblings bidirectionally.
	ChannelPeer ChannelKind = "peer"
	// ChannelMulticast delivers to an explicit subset of participants.
	ChannelMulticast ChannelKind = "multicast"
)

// Valid returns true if the kind is a known value.
func (k ChannelKind) Valid() bool {
	switch k {
	case ChannelDirect, ChannelBroadcast, ChannelHierarchical, ChannelPeer, ChannelMulticast:
		return true
	default:
		return false
	}
}

// Permissions controls who may do what on a channel.
// CanSend and CanReceive are sets of agent IDs.
type Permissions struct {
	// CanSend lists agents allowed to send on the channel.
	CanSend map[string]bool `json:"can_send"`
	// CanReceive lists agents allowed to receive from the channel.
	CanReceive map[string]bool `json:"can_receive"`
	// CanModerate lists agents allowed to moderate the channel.
	CanModerate map[string]bool `json:"can_moderate,omitempty"`
	// CanInvite lists agents allowed to add participants.
	CanInvite map[string]bool `json:"can_invite,omitempty"`
	// IsPublic opens the channel to non-members.
	IsPublic bool `json:"is_public"`
	// RequiresApproval gates new participants on moderator approval.
	RequiresApproval bool `json:"requires_approval"`
}

// NewPermissions returns an empty permission set.
func NewPermissions() Permissions {
	return Permissions{
		CanSend:    make(map[string]bool),
		CanReceive: make(map[string]bool),
	}
}

// Retention bounds a channel's message history.
type Retention struct {
	// Duration is how long messages are kept. Zero means unlimited.
	Duration time.Duration `json:"duration,omitempty"`
	// MaxMessages caps the in-memory history length.
	MaxMessages int `json:"max_messages"`
	// ArchiveAfter moves messages to the archive partition after this long.
	ArchiveAfter time.Duration `json:"archive_after,omitempty"`
	// DeleteAfter removes archived messages after this long.
	DeleteAfter time.Duration `json:"delete_after,omitempty"`
	// Compress enables compression of archived history.
	Compress bool `json:"compress"`
}

// Channel is a named communication scope with membership and permissions.
type Channel struct {
	// ID is the unique identifier for this channel.
	ID string `json:"id"`
	// Name is the human-readable channel name.
	Name string `json:"name"`
	// Kind is the channel topology.
	Kind ChannelKind `json:"kind"`
	// Participants lists member agent IDs in join order.
	Participants []string `json:"participants"`
	// Permissions controls send/receive/moderate/invite rights.
	Permissions Permissions `json:"permissions"`
	// History is the bounded in-memory message log, oldest first.
	History []*Message `json:"history,omitempty"`
	// Retention bounds the history.
	Retention Retention `json:"retention"`
	// Moderators lists agents with moderation rights.
	Moderators []string `json:"moderators,omitempty"`
	// Metadata holds free-form channel annotations.
	Metadata map[string]any `json:"metadata,omitempty"`
	// CreatedAt is when the channel was created.
	CreatedAt time.Time `json:"created_at"`
}

// HasParticipant returns true if the agent is a channel member.
func (c *Channel) HasParticipant(agentID string) bool {
	for _, p := range c.Participants {
		if p == agentID {
			return true
		}
	}
	return false
}

// AddParticipant appends the agent if not already a member.
func (c *Channel) AddParticipant(agentID string) {
	if !c.HasParticipant(agentID) {
		c.Participants = append(c.Participants, agentID)
	}
}

// CanSendOn returns true if the agent may send on this channel.
// Public channels accept senders that hold no explicit permission entry.
func (c *Channel) CanSendOn(agentID string) bool {
	if c.Permissions.CanSend[agentID] {
		return true
	}
	return c.Permissions.IsPublic
}

// Validate checks the channel's structural invariants: a non-empty name, a
// known kind, and (for non-public channels) every participant holding at
// least one of the send/receive rights.
func (c *Channel) Validate() error {
	if c.Name == "" {
		return &InvalidChannelSpecError{Reason: "channel name is empty"}
	}
	if !c.Kind.Valid() {
		return &InvalidChannelSpecError{Reason: "unknown channel kind: " + string(c.Kind)}
	}
	if c.Permissions.IsPublic {
		return nil
	}
	for _, p := range c.Participants {
		if !c.Permissions.CanSend[p] && !c.Permissions.CanReceive[p] {
			return &InvalidChannelSpecError{Reason: "participant " + p + " holds neither send nor receive rights"}
		}
	}
	return nil
}

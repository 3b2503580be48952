package models

import "time"

// MessageType classifies the intent of a message.
type MessageType string

const (
	// MessageRequest asks the recipient to do or answer something.
	MessageRequest MessageType = "request"
	// MessageResponse answers an earlier request.
	MessageResponse MessageType = "response"
	// MessageNotification is informational, no response expected.
	MessageNotification MessageType = "notification"
	// MessageDelegation hands a task to the recipient.
	MessageDelegation MessageType = "delegation"
	// MessageReport is a periodic progress report from a delegate.
	MessageReport MessageType = "report"
	// MessageEscalation raises a problem to a supervisor.
	MessageEscalation MessageType = "escalation"
	// MessageCoordination carries inter-agent coordination traffic.
	MessageCoordination MessageType = "coordination"
	// MessageBroadcast is a channel-wide announcement.
	MessageBroadcast MessageType = "broadcast"
	// MessageSystem is emitted by the orchestration core itself.
	MessageSystem MessageType = "system"
	// MessageEmergency preempts all other traffic.
	MessageEmergency MessageType = "emergency"
)

// Valid returns true if the type is a known value.
func (t MessageType) Valid() bool {
	switch t {
	case MessageRequest, MessageResponse, MessageNotification, MessageDelegation,
		MessageReport, MessageEscalation, MessageCoordination, MessageBroadcast,
		MessageSystem, MessageEmergency:
		return true
	default:
		return false
	}
}

// Message priorities. Lower values are served first; priority orders a
// mailbox but never drops a message.
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityNormal   = 3
	PriorityLow      = 4
	PriorityBulk     = 5
)

// MessageContent is the payload of a message.
type MessageContent struct {
	// Subject is a short summary line. Required.
	Subject string `json:"subject"`
	// Body is the message text. Required.
	Body string `json:"body"`
	// Data carries optional structured payload.
	Data map[string]any `json:"data,omitempty"`
	// Format names the body encoding (text, markdown, json).
	Format string `json:"format,omitempty"`
}

// MessageMeta carries routing and provenance metadata.
type MessageMeta struct {
	// CorrelationID links a message to a conversation or request.
	CorrelationID string `json:"correlation_id,omitempty"`
	// SecurityLevel tags the message sensitivity.
	SecurityLevel string `json:"security_level,omitempty"`
	// Origin records where the message entered the system.
	Origin string `json:"origin,omitempty"`
	// TaskID links the message to a task, if any.
	TaskID string `json:"task_id,omitempty"`
	// WorkflowID links the message to a workflow, if any.
	WorkflowID string `json:"workflow_id,omitempty"`
}

// Attachment is an opaque named payload carried with a message.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// Message is a routed unit of inter-agent communication.
type Message struct {
	// ID is the unique identifier for this message.
	ID string `json:"id"`
	// ChannelID is the carrying channel, or "direct" for point-to-point.
	ChannelID string `json:"channel_id"`
	// From is the sending agent's ID.
	From string `json:"from"`
	// To lists recipient agent IDs.
	To []string `json:"to"`
	// Type classifies the message intent.
	Type MessageType `json:"type"`
	// Content is the payload.
	Content MessageContent `json:"content"`
	// Meta carries routing and provenance metadata.
	Meta MessageMeta `json:"meta,omitempty"`
	// Timestamp is when the message was sent.
	Timestamp time.Time `json:"timestamp"`
	// ExpiresAt is when the message becomes undeliverable, if set.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	// Priority is 1 (highest) through 5 (lowest).
	Priority int `json:"priority"`
	// RequiresResponse marks the message as expecting a reply.
	RequiresResponse bool `json:"requires_response"`
	// ParentID threads the message under an earlier one.
	ParentID string `json:"parent_id,omitempty"`
	// Attachments carries optional named payloads.
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Expired returns true if the message has an expiry in the past.
func (m *Message) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}

// Validate checks the content invariants: non-empty subject and body, a
// known type, and a priority in range.
func (m *Message) Validate() error {
	if m.Content.Subject == "" {
		return &ValidationError{Field: "subject", Reason: "must not be empty"}
	}
	if m.Content.Body == "" {
		return &ValidationError{Field: "body", Reason: "must not be empty"}
	}
	if !m.Type.Valid() {
		return &ValidationError{Field: "type", Reason: "unknown message type: " + string(m.Type)}
	}
	if m.Priority < PriorityCritical || m.Priority > PriorityBulk {
		return &ValidationError{Field: "priority", Reason: "must be between 1 and 5"}
	}
	return nil
}

// Package comms implements the communication hub: channels, per-agent
// mailboxes, broadcast and hierarchical routing, and delegation report
// links. Delivery to local mailboxes is synchronous within a dispatch
// cycle; priority orders a mailbox but never drops a message.
package comms

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthive/hive/internal/logging"
	"github.com/agenthive/hive/internal/state"
	"github.com/agenthive/hive/internal/transport"
	"github.com/agenthive/hive/pkg/models"
)

// ErrChannelNotFound is returned when an operation references an unknown
// channel.
var ErrChannelNotFound = errors.New("channel not found")

// Defaults applied when Config leaves the corresponding field zero.
const (
	DefaultReportInterval = 30 * time.Minute
	DefaultMaxHistory     = 10000
)

// Config configures a Hub. Store, Transport, and Debug may all be nil.
type Config struct {
	// Store receives every channel, message, and hierarchy map.
	Store state.MemoryStore
	// Transport carries messages sent with SendOptions.Secure.
	Transport transport.Transport
	// Debug is the shared debug logger.
	Debug *logging.Logger
	// ReportInterval is the default delegation reporting cadence.
	ReportInterval time.Duration
	// MaxHistory bounds each channel's in-memory history.
	MaxHistory int
	// DefaultAnonymity is the transport anonymity level applied to
	// secure sends that do not name one. Empty means none.
	DefaultAnonymity string
}

// Hub owns the channel table, the mailbox map, and the delegation report
// timers. All shared state is guarded by a single mutex; public operations
// run to completion before the next mutation is admitted.
type Hub struct {
	mu        sync.RWMutex
	channels  map[string]*models.Channel
	mailboxes map[string][]*models.Message
	reporters map[string]*reporter
	total     int64

	reportInterval time.Duration
	maxHistory     int
	anonymity      string
	trans          transport.Transport
	log            *Log
	debug          *logging.Logger
}

// NewHub creates an empty hub.
func NewHub(cfg Config) *Hub {
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = DefaultReportInterval
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if cfg.DefaultAnonymity == "" {
		cfg.DefaultAnonymity = transport.AnonymityNone
	}
	return &Hub{
		channels:       make(map[string]*models.Channel),
		mailboxes:      make(map[string][]*models.Message),
		reporters:      make(map[string]*reporter),
		reportInterval: cfg.ReportInterval,
		maxHistory:     cfg.MaxHistory,
		anonymity:      cfg.DefaultAnonymity,
		trans:          cfg.Transport,
		log:            NewLog(cfg.Store),
		debug:          cfg.Debug,
	}
}

// CreateChannel creates a channel with the creator and participants as
// initial members. Members default to send+receive rights; configure, if
// non-nil, runs before validation to override permissions or retention.
func (h *Hub) CreateChannel(ctx context.Context, name string, kind models.ChannelKind, creator string, participants []string, configure func(*models.Channel)) (*models.Channel, error) {
	ch := &models.Channel{
		ID:          uuid.New().String(),
		Name:        name,
		Kind:        kind,
		Permissions: models.NewPermissions(),
		Retention:   models.Retention{MaxMessages: h.maxHistory},
		CreatedAt:   time.Now(),
	}

	if creator != "" {
		ch.AddParticipant(creator)
		ch.Moderators = append(ch.Moderators, creator)
		ch.Permissions.CanModerate = map[string]bool{creator: true}
	}
	for _, p := range participants {
		ch.AddParticipant(p)
	}
	for _, p := range ch.Participants {
		ch.Permissions.CanSend[p] = true
		ch.Permissions.CanReceive[p] = true
	}

	if configure != nil {
		configure(ch)
	}
	if err := ch.Validate(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.channels[ch.ID] = ch
	for _, p := range ch.Participants {
		h.ensureMailboxLocked(p)
	}
	h.mu.Unlock()

	if err := h.log.SaveChannel(ctx, ch); err != nil {
		return nil, err
	}

	h.debug.Log("comms: created %s channel %s (%s) with %d participants", kind, ch.ID, name, len(ch.Participants))
	return ch, nil
}

// Channel returns the channel with the given id, or ErrChannelNotFound.
func (h *Hub) Channel(channelID string) (*models.Channel, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.channels[channelID]
	if !ok {
		return nil, ErrChannelNotFound
	}
	return ch, nil
}

// Subscribe adds an agent to a channel and ensures it has a mailbox.
// Subscribing twice is a no-op.
func (h *Hub) Subscribe(agentID, channelID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.channels[channelID]
	if !ok {
		return ErrChannelNotFound
	}

	ch.AddParticipant(agentID)
	ch.Permissions.CanSend[agentID] = true
	ch.Permissions.CanReceive[agentID] = true
	h.ensureMailboxLocked(agentID)
	return nil
}

// SendOptions qualifies a single send.
type SendOptions struct {
	// ChannelID routes the message through a channel. Empty means a
	// point-to-point message outside any channel.
	ChannelID string
	// Priority is 1 (highest) through 5 (lowest); zero means normal.
	Priority int
	// ExpiresAt makes the message undeliverable after the given time.
	ExpiresAt *time.Time
	// RequiresResponse marks the message as expecting a reply.
	RequiresResponse bool
	// Secure routes the payload through the network transport instead of
	// local mailboxes. A local audit copy is always kept.
	Secure bool
	// Anonymity is the transport anonymity level for secure sends.
	// Empty uses the hub's configured default.
	Anonymity string
	// TTL bounds transport-side retention for secure sends.
	TTL time.Duration
	// Exclude removes agents from a broadcast's recipient set.
	Exclude []string
	// ParentID threads the message under an earlier one.
	ParentID string
	// Meta carries routing and provenance metadata.
	Meta models.MessageMeta
}

// Send validates and routes a message. On non-direct channels the sender
// must hold send rights; PermissionError is returned and nothing is
// delivered otherwise. The message lands in each recipient's mailbox in
// priority order, in the channel's bounded history, and in the durable log.
func (h *Hub) Send(ctx context.Context, from string, to []string, typ models.MessageType, content models.MessageContent, opts SendOptions) (*models.Message, error) {
	channelID := opts.ChannelID
	if channelID == "" {
		channelID = "direct"
	}
	priority := opts.Priority
	if priority == 0 {
		priority = models.PriorityNormal
	}

	msg := &models.Message{
		ID:               uuid.New().String(),
		ChannelID:        channelID,
		From:             from,
		To:               append([]string(nil), to...),
		Type:             typ,
		Content:          content,
		Meta:             opts.Meta,
		Timestamp:        time.Now(),
		ExpiresAt:        opts.ExpiresAt,
		Priority:         priority,
		RequiresResponse: opts.RequiresResponse,
		ParentID:         opts.ParentID,
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if channelID != "direct" {
		ch, ok := h.channels[channelID]
		if !ok {
			h.mu.Unlock()
			return nil, ErrChannelNotFound
		}
		if !ch.CanSendOn(from) {
			h.mu.Unlock()
			return nil, &models.PermissionError{AgentID: from, ChannelID: channelID, Action: "send"}
		}
		h.appendHistoryLocked(ch, msg)
	}
	if !opts.Secure || h.trans == nil {
		for _, recipient := range msg.To {
			h.ensureMailboxLocked(recipient)
			h.mailboxes[recipient] = insertByPriority(h.mailboxes[recipient], msg)
		}
	}
	h.total++
	h.mu.Unlock()

	if opts.Secure && h.trans != nil {
		payload, err := json.Marshal(msg)
		if err != nil {
			return nil, err
		}
		anonymity := opts.Anonymity
		if anonymity == "" {
			anonymity = h.anonymity
		}
		topts := transport.Options{Anonymity: anonymity, Encrypt: true, TTL: opts.TTL}
		for _, recipient := range msg.To {
			if _, err := h.trans.Send(ctx, from, recipient, payload, topts); err != nil {
				return nil, err
			}
		}
	}

	// The durable copy is best effort; local delivery already happened.
	if err := h.log.SaveMessage(ctx, msg); err != nil {
		h.debug.Log("comms: persist message %s failed: %v", msg.ID, err)
	}

	return msg, nil
}

// Broadcast sends to every channel participant except the sender and the
// exclusion set. Permission checking matches Send.
func (h *Hub) Broadcast(ctx context.Context, from, channelID string, content models.MessageContent, opts SendOptions) (*models.Message, error) {
	h.mu.RLock()
	ch, ok := h.channels[channelID]
	h.mu.RUnlock()
	if !ok {
		return nil, ErrChannelNotFound
	}

	excluded := make(map[string]bool, len(opts.Exclude)+1)
	excluded[from] = true
	for _, id := range opts.Exclude {
		excluded[id] = true
	}

	var recipients []string
	for _, p := range ch.Participants {
		if !excluded[p] {
			recipients = append(recipients, p)
		}
	}

	opts.ChannelID = channelID
	return h.Send(ctx, from, recipients, models.MessageBroadcast, content, opts)
}

// SendSystemMessage sends a high-priority system notification from one
// agent to another on the direct path. The lifecycle manager uses this to
// notify parents of state changes.
func (h *Hub) SendSystemMessage(ctx context.Context, from, to, subject, body string) error {
	_, err := h.Send(ctx, from, []string{to}, models.MessageSystem,
		models.MessageContent{Subject: subject, Body: body},
		SendOptions{Priority: models.PriorityHigh})
	return err
}

// Filter narrows a Messages query. Zero values match everything.
type Filter struct {
	// ChannelID keeps only messages carried on the given channel.
	ChannelID string
	// Type keeps only messages of the given type.
	Type models.MessageType
	// Since keeps only messages sent at or after the given time.
	Since time.Time
	// Limit caps the number of returned messages, newest kept.
	Limit int
}

// Messages returns a snapshot of an agent's mailbox, filtered. It never
// mutates the mailbox; two calls without an intervening send return
// identical results.
func (h *Hub) Messages(agentID string, filter Filter) []*models.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*models.Message
	for _, m := range h.mailboxes[agentID] {
		if filter.ChannelID != "" && m.ChannelID != filter.ChannelID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if !filter.Since.IsZero() && m.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, m)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

// Drain removes and returns up to max messages from an agent's mailbox in
// priority order. max <= 0 drains everything.
func (h *Hub) Drain(agentID string, max int) []*models.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	box := h.mailboxes[agentID]
	if len(box) == 0 {
		return nil
	}
	n := len(box)
	if max > 0 && max < n {
		n = max
	}

	out := make([]*models.Message, n)
	copy(out, box[:n])
	h.mailboxes[agentID] = box[n:]
	return out
}

// PurgeExpired removes expired messages from every mailbox and returns how
// many were dropped. Expired messages are never delivered.
func (h *Hub) PurgeExpired(now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	purged := 0
	for agentID, box := range h.mailboxes {
		kept := box[:0]
		for _, m := range box {
			if m.Expired(now) {
				purged++
				continue
			}
			kept = append(kept, m)
		}
		h.mailboxes[agentID] = kept
	}
	if purged > 0 {
		h.debug.Log("comms: purged %d expired messages", purged)
	}
	return purged
}

// TotalMessages returns the number of messages the hub has routed.
func (h *Hub) TotalMessages() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// MailboxSize returns the number of pending messages for an agent.
func (h *Hub) MailboxSize(agentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.mailboxes[agentID])
}

// MailboxAgents returns every agent id that currently has a mailbox.
func (h *Hub) MailboxAgents() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.mailboxes))
	for id := range h.mailboxes {
		out = append(out, id)
	}
	return out
}

func (h *Hub) ensureMailboxLocked(agentID string) {
	if _, ok := h.mailboxes[agentID]; !ok {
		h.mailboxes[agentID] = nil
	}
}

// appendHistoryLocked appends to the channel history and trims the oldest
// entries beyond the retention bound.
func (h *Hub) appendHistoryLocked(ch *models.Channel, m *models.Message) {
	ch.History = append(ch.History, m)
	max := ch.Retention.MaxMessages
	if max > 0 && len(ch.History) > max {
		ch.History = ch.History[len(ch.History)-max:]
	}
}

// insertByPriority inserts a message keeping the mailbox ordered by
// priority, FIFO within equal priorities.
func insertByPriority(box []*models.Message, m *models.Message) []*models.Message {
	idx := len(box)
	for i, existing := range box {
		if existing.Priority > m.Priority {
			idx = i
			break
		}
	}
	box = append(box, nil)
	copy(box[idx+1:], box[idx:])
	box[idx] = m
	return box
}

package comms

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agenthive/hive/internal/state"
	"github.com/agenthive/hive/internal/transport"
	"github.com/agenthive/hive/pkg/models"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(Config{Store: state.NewMemStore()})
}

func TestCreateChannel_EmptyNameFails(t *testing.T) {
	h := newTestHub(t)

	_, err := h.CreateChannel(context.Background(), "", models.ChannelBroadcast, "a1", nil, nil)
	var specErr *models.InvalidChannelSpecError
	if !errors.As(err, &specErr) {
		t.Fatalf("CreateChannel with empty name = %v, want InvalidChannelSpecError", err)
	}
}

func TestCreateChannel_MembersDefaultToSendReceive(t *testing.T) {
	h := newTestHub(t)

	ch, err := h.CreateChannel(context.Background(), "planning", models.ChannelBroadcast, "a1", []string{"a2", "a3"}, nil)
	if err != nil {
		t.Fatalf("CreateChannel failed: %v", err)
	}

	if len(ch.Participants) != 3 {
		t.Fatalf("participants = %d, want 3", len(ch.Participants))
	}
	for _, p := range []string{"a1", "a2", "a3"} {
		if !ch.Permissions.CanSend[p] || !ch.Permissions.CanReceive[p] {
			t.Errorf("member %s missing default send/receive rights", p)
		}
	}
}

func TestSend_DeliversAndCounts(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	_, err := h.Send(ctx, "agentA", []string{"agentB"}, models.MessageRequest,
		models.MessageContent{Subject: "Status", Body: "ping"}, SendOptions{})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	msgs := h.Messages("agentB", Filter{})
	if len(msgs) != 1 {
		t.Fatalf("agentB has %d messages, want 1", len(msgs))
	}
	if msgs[0].Type != models.MessageRequest {
		t.Errorf("type = %s, want request", msgs[0].Type)
	}
	if msgs[0].Content.Subject != "Status" {
		t.Errorf("subject = %q, want Status", msgs[0].Content.Subject)
	}
	if h.TotalMessages() != 1 {
		t.Errorf("total messages = %d, want 1", h.TotalMessages())
	}
}

func TestSend_EmptySubjectFails(t *testing.T) {
	h := newTestHub(t)

	_, err := h.Send(context.Background(), "a1", []string{"a2"}, models.MessageRequest,
		models.MessageContent{Body: "ping"}, SendOptions{})
	var vErr *models.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Send with empty subject = %v, want ValidationError", err)
	}
}

func TestSend_PermissionDenied(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	ch, err := h.CreateChannel(ctx, "private", models.ChannelBroadcast, "a1", []string{"a2"}, nil)
	if err != nil {
		t.Fatalf("CreateChannel failed: %v", err)
	}

	_, err = h.Send(ctx, "outsider", []string{"a2"}, models.MessageRequest,
		models.MessageContent{Subject: "s", Body: "b"}, SendOptions{ChannelID: ch.ID})
	var pErr *models.PermissionError
	if !errors.As(err, &pErr) {
		t.Fatalf("Send from non-member = %v, want PermissionError", err)
	}

	if got := h.Messages("a2", Filter{}); len(got) != 0 {
		t.Errorf("denied send still delivered %d messages", len(got))
	}
	if h.TotalMessages() != 0 {
		t.Errorf("denied send incremented counter to %d", h.TotalMessages())
	}
}

func TestSend_HistoryBounded(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	ch, err := h.CreateChannel(ctx, "busy", models.ChannelBroadcast, "a1", []string{"a2"}, func(c *models.Channel) {
		c.Retention.MaxMessages = 3
	})
	if err != nil {
		t.Fatalf("CreateChannel failed: %v", err)
	}

	subjects := []string{"one", "two", "three", "four", "five"}
	for _, s := range subjects {
		if _, err := h.Send(ctx, "a1", []string{"a2"}, models.MessageNotification,
			models.MessageContent{Subject: s, Body: "b"}, SendOptions{ChannelID: ch.ID}); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	if len(ch.History) != 3 {
		t.Fatalf("history length = %d, want 3", len(ch.History))
	}
	// Oldest entries are evicted first.
	for i, want := range []string{"three", "four", "five"} {
		if got := ch.History[i].Content.Subject; got != want {
			t.Errorf("history[%d] = %q, want %q", i, got, want)
		}
	}
}

func TestSend_MailboxPriorityOrder(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	send := func(subject string, priority int) {
		t.Helper()
		if _, err := h.Send(ctx, "a1", []string{"a2"}, models.MessageNotification,
			models.MessageContent{Subject: subject, Body: "b"}, SendOptions{Priority: priority}); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	send("low", models.PriorityLow)
	send("first-normal", models.PriorityNormal)
	send("critical", models.PriorityCritical)
	send("second-normal", models.PriorityNormal)

	drained := h.Drain("a2", 0)
	want := []string{"critical", "first-normal", "second-normal", "low"}
	if len(drained) != len(want) {
		t.Fatalf("drained %d messages, want %d", len(drained), len(want))
	}
	for i, w := range want {
		if drained[i].Content.Subject != w {
			t.Errorf("drained[%d] = %q, want %q", i, drained[i].Content.Subject, w)
		}
	}
}

func TestMessages_PureRead(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.Send(ctx, "a1", []string{"a2"}, models.MessageNotification,
			models.MessageContent{Subject: "s", Body: "b"}, SendOptions{}); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	first := h.Messages("a2", Filter{})
	second := h.Messages("a2", Filter{})
	if len(first) != len(second) {
		t.Fatalf("consecutive reads differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("read %d differs between calls", i)
		}
	}
}

func TestMessages_Filters(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	if _, err := h.Send(ctx, "a1", []string{"a2"}, models.MessageRequest,
		models.MessageContent{Subject: "req", Body: "b"}, SendOptions{}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, err := h.Send(ctx, "a1", []string{"a2"}, models.MessageNotification,
		models.MessageContent{Subject: "note", Body: "b"}, SendOptions{}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	byType := h.Messages("a2", Filter{Type: models.MessageRequest})
	if len(byType) != 1 || byType[0].Content.Subject != "req" {
		t.Errorf("type filter returned %d messages", len(byType))
	}

	limited := h.Messages("a2", Filter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit filter returned %d messages, want 1", len(limited))
	}

	future := h.Messages("a2", Filter{Since: time.Now().Add(time.Hour)})
	if len(future) != 0 {
		t.Errorf("future since filter returned %d messages, want 0", len(future))
	}
}

func TestBroadcast_ExcludesSenderAndExclusionSet(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	ch, err := h.CreateChannel(ctx, "team", models.ChannelBroadcast, "a1", []string{"a2", "a3", "a4"}, nil)
	if err != nil {
		t.Fatalf("CreateChannel failed: %v", err)
	}

	if _, err := h.Broadcast(ctx, "a1", ch.ID,
		models.MessageContent{Subject: "all hands", Body: "b"},
		SendOptions{Exclude: []string{"a3"}}); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	for agent, want := range map[string]int{"a1": 0, "a2": 1, "a3": 0, "a4": 1} {
		if got := len(h.Messages(agent, Filter{})); got != want {
			t.Errorf("%s received %d messages, want %d", agent, got, want)
		}
	}
}

func TestSubscribe_Idempotent(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	ch, err := h.CreateChannel(ctx, "open", models.ChannelBroadcast, "a1", nil, nil)
	if err != nil {
		t.Fatalf("CreateChannel failed: %v", err)
	}

	if err := h.Subscribe("a2", ch.ID); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := h.Subscribe("a2", ch.ID); err != nil {
		t.Fatalf("second Subscribe failed: %v", err)
	}

	if len(ch.Participants) != 2 {
		t.Errorf("participants = %d, want 2", len(ch.Participants))
	}

	if err := h.Subscribe("a2", "missing"); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("Subscribe to unknown channel = %v, want ErrChannelNotFound", err)
	}
}

func TestPurgeExpired_DropsUndelivered(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	if _, err := h.Send(ctx, "a1", []string{"a2"}, models.MessageNotification,
		models.MessageContent{Subject: "stale", Body: "b"}, SendOptions{ExpiresAt: &past}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, err := h.Send(ctx, "a1", []string{"a2"}, models.MessageNotification,
		models.MessageContent{Subject: "fresh", Body: "b"}, SendOptions{}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if n := h.PurgeExpired(time.Now()); n != 1 {
		t.Fatalf("purged %d messages, want 1", n)
	}

	msgs := h.Messages("a2", Filter{})
	if len(msgs) != 1 || msgs[0].Content.Subject != "fresh" {
		t.Errorf("mailbox after purge = %d messages", len(msgs))
	}
}

func TestSend_SecureGoesThroughTransport(t *testing.T) {
	loop := transport.NewLoopback()
	store := state.NewMemStore()
	h := NewHub(Config{Store: store, Transport: loop})
	ctx := context.Background()

	msg, err := h.Send(ctx, "a1", []string{"a2"}, models.MessageCoordination,
		models.MessageContent{Subject: "covert", Body: "b"},
		SendOptions{Secure: true, Anonymity: transport.AnonymityHigh})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	sent := loop.Sent()
	if len(sent) != 1 {
		t.Fatalf("transport carried %d envelopes, want 1", len(sent))
	}
	if sent[0].To != "a2" {
		t.Errorf("envelope to = %s, want a2", sent[0].To)
	}

	// Secure delivery bypasses the local mailbox but keeps an audit copy.
	if got := len(h.Messages("a2", Filter{})); got != 0 {
		t.Errorf("secure send also landed %d mailbox messages", got)
	}
	if store.Get(partitionMessages, msg.ID) == nil {
		t.Error("secure send left no audit copy in the durable log")
	}
}

func TestSendSystemMessage(t *testing.T) {
	h := newTestHub(t)

	if err := h.SendSystemMessage(context.Background(), "core", "parent", "state change", "child a2 is now active"); err != nil {
		t.Fatalf("SendSystemMessage failed: %v", err)
	}

	msgs := h.Messages("parent", Filter{Type: models.MessageSystem})
	if len(msgs) != 1 {
		t.Fatalf("parent has %d system messages, want 1", len(msgs))
	}
	if msgs[0].Priority != models.PriorityHigh {
		t.Errorf("priority = %d, want %d", msgs[0].Priority, models.PriorityHigh)
	}
}

// recordingTransport captures the options given to each secure send.
type recordingTransport struct {
	mu   sync.Mutex
	opts []transport.Options
}

func (r *recordingTransport) Send(_ context.Context, _, _ string, _ []byte, opts transport.Options) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = append(r.opts, opts)
	return "t-1", nil
}

func (r *recordingTransport) OnMessage(func(transport.Envelope)) {}

func TestSend_SecureAppliesDefaultAnonymity(t *testing.T) {
	rec := &recordingTransport{}
	h := NewHub(Config{Store: state.NewMemStore(), Transport: rec, DefaultAnonymity: transport.AnonymityMedium})
	ctx := context.Background()

	if _, err := h.Send(ctx, "a1", []string{"a2"}, models.MessageCoordination,
		models.MessageContent{Subject: "covert", Body: "b"},
		SendOptions{Secure: true}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(rec.opts) != 1 || rec.opts[0].Anonymity != transport.AnonymityMedium {
		t.Fatalf("transport opts = %+v, want the hub default anonymity", rec.opts)
	}

	// A per-send level overrides the configured default.
	if _, err := h.Send(ctx, "a1", []string{"a2"}, models.MessageCoordination,
		models.MessageContent{Subject: "covert", Body: "b"},
		SendOptions{Secure: true, Anonymity: transport.AnonymityHigh}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if rec.opts[1].Anonymity != transport.AnonymityHigh {
		t.Errorf("anonymity = %s, want the per-send override", rec.opts[1].Anonymity)
	}
}

func TestSend_SecureDefaultsToNoAnonymity(t *testing.T) {
	rec := &recordingTransport{}
	h := NewHub(Config{Store: state.NewMemStore(), Transport: rec})

	if _, err := h.Send(context.Background(), "a1", []string{"a2"}, models.MessageCoordination,
		models.MessageContent{Subject: "covert", Body: "b"},
		SendOptions{Secure: true}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(rec.opts) != 1 || rec.opts[0].Anonymity != transport.AnonymityNone {
		t.Fatalf("transport opts = %+v, want anonymity none", rec.opts)
	}
}

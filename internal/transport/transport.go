// Package transport defines the pluggable network delivery contract for
// secure message paths. The default Loopback implementation hands payloads
// straight back to registered handlers; real anonymized delivery is a
// swappable concern behind the same interface.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Anonymity levels accepted by Options.Anonymity.
const (
	AnonymityNone   = "none"
	AnonymityLow    = "low"
	AnonymityMedium = "medium"
	AnonymityHigh   = "high"
)

// Options qualifies a single send.
type Options struct {
	// Anonymity is the requested anonymity level (none, low, medium, high).
	Anonymity string
	// Encrypt requests payload encryption where the transport supports it.
	Encrypt bool
	// TTL bounds how long the transport may hold the payload undelivered.
	TTL time.Duration
}

// Envelope is a payload as seen by a receiving handler.
type Envelope struct {
	ID         string
	From       string
	To         string
	Payload    []byte
	ReceivedAt time.Time
}

// Transport delivers opaque payloads between agents outside the local
// mailbox path.
type Transport interface {
	// Send hands a payload to the transport for delivery and returns the
	// transport-assigned message id.
	Send(ctx context.Context, from, to string, payload []byte, opts Options) (string, error)
	// OnMessage registers a handler for incoming payloads. Handlers are
	// invoked synchronously in registration order.
	OnMessage(fn func(Envelope))
}

// Loopback is the pass-through default transport. Payloads are dispatched
// to handlers immediately within Send.
type Loopback struct {
	mu       sync.Mutex
	handlers []func(Envelope)
	sent     []Envelope
}

// NewLoopback creates an empty loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{}
}

// Send dispatches the payload to every registered handler and records it.
func (l *Loopback) Send(ctx context.Context, from, to string, payload []byte, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	env := Envelope{
		ID:         uuid.New().String(),
		From:       from,
		To:         to,
		Payload:    payload,
		ReceivedAt: time.Now(),
	}

	l.mu.Lock()
	l.sent = append(l.sent, env)
	handlers := make([]func(Envelope), len(l.handlers))
	copy(handlers, l.handlers)
	l.mu.Unlock()

	for _, h := range handlers {
		h(env)
	}
	return env.ID, nil
}

// OnMessage registers a handler for loopback deliveries.
func (l *Loopback) OnMessage(fn func(Envelope)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, fn)
}

// Sent returns a copy of every envelope passed through the loopback.
func (l *Loopback) Sent() []Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Envelope, len(l.sent))
	copy(out, l.sent)
	return out
}

var _ Transport = (*Loopback)(nil)

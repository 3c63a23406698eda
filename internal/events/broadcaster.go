package events

import (
	"context"
	"sync"
	"time"
)

// Topic identifies an event stream delivered to browser sessions joined to
// a per-company namespace.
type Topic string

const (
	TopicTicketUpdate     Topic = "ticket-update"
	TopicConnectionUpdate Topic = "connection-update"
	TopicContactUpdate    Topic = "contact-update"
)

// Envelope is the immutable wire form of a published event. Subscribers are
// scoped per company; a session for one company never receives another's.
type Envelope struct {
	ID        string    `json:"id"`
	CompanyID int64     `json:"companyId"`
	Topic     Topic     `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Broadcaster is the fan-out boundary. The core publishes well-formed
// events; real-time delivery to browsers is the subscriber's concern.
type Broadcaster interface {
	Publish(ctx context.Context, companyID int64, topic Topic, payload any) error
}

// InMemoryBroadcaster records published events per company. Used by tests
// and as a fallback when Redis is not configured.
type InMemoryBroadcaster struct {
	mu     sync.Mutex
	events map[int64][]Envelope
}

// NewInMemoryBroadcaster creates an empty broadcaster.
func NewInMemoryBroadcaster() *InMemoryBroadcaster {
	return &InMemoryBroadcaster{events: make(map[int64][]Envelope)}
}

// Publish appends the event to the company's stream.
func (b *InMemoryBroadcaster) Publish(_ context.Context, companyID int64, topic Topic, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[companyID] = append(b.events[companyID], Envelope{
		CompanyID: companyID,
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   payload,
	})
	return nil
}

// Events returns a copy of the events published for a company.
func (b *InMemoryBroadcaster) Events(companyID int64) []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Envelope, len(b.events[companyID]))
	copy(out, b.events[companyID])
	return out
}

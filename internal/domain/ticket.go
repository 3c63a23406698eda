package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending TicketStatus = "pending"
	TicketStatusOpen    TicketStatus = "open"
	TicketStatusGroup   TicketStatus = "group"
	TicketStatusClosed  TicketStatus = "closed"
	TicketStatusLgpd    TicketStatus = "lgpd"
)

// IsClosed reports whether the status releases the contact for a new ticket.
func (s TicketStatus) IsClosed() bool {
	return s == TicketStatusClosed
}

// Ticket is the unit of conversation ownership between one contact and one
// agent/queue. At most one non-closed ticket may exist per contact per
// company; the storage layer enforces this with a partial unique index.
type Ticket struct {
	ID             int64
	UUID           string
	CompanyID      int64
	ContactID      int64
	WhatsappID     int64
	QueueID        *int64
	UserID         *int64
	Status         TicketStatus
	IsGroup        bool
	LastMessage    string
	UnreadMessages int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Owned reports whether an agent currently holds the ticket.
func (t *Ticket) Owned() bool {
	return t.UserID != nil
}

// OwnedBy reports whether the given agent holds the ticket.
func (t *Ticket) OwnedBy(userID int64) bool {
	return t.UserID != nil && *t.UserID == userID
}

// AcceptedStatus returns the status an accepted ticket lands in.
func (t *Ticket) AcceptedStatus() TicketStatus {
	if t.IsGroup {
		return TicketStatusGroup
	}
	return TicketStatusOpen
}

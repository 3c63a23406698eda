package domain

import "time"

// Message belongs to exactly one ticket. FromMe distinguishes agent/system
// originated messages from contact-originated ones.
type Message struct {
	ID        string
	TicketID  int64
	CompanyID int64
	ContactID int64
	Body      string
	FromMe    bool
	Read      bool
	CreatedAt time.Time
}

package domain

import "time"

// Contact is the canonical identity record for a messaging counterpart.
// Unique per (number, company). Created lazily on first inbound message.
type Contact struct {
	ID        int64
	Number    string
	Name      string
	CompanyID int64
	IsGroup   bool
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPlaceholderName reports whether the stored name is still the raw number,
// meaning a display name from the channel should replace it.
func (c *Contact) HasPlaceholderName() bool {
	return c.Name == "" || c.Name == c.Number
}

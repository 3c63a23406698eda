package domain

import "time"

// Queue is a routing bucket (department) a ticket can be assigned to,
// independent of a specific agent.
type Queue struct {
	ID        int64
	CompanyID int64
	Name      string
	Color     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

package domain

import "time"

// Company is the tenant boundary. Every other entity is scoped by CompanyID;
// no cross-tenant visibility is ever permitted.
type Company struct {
	ID        int64
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

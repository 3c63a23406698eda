package events

import "github.com/spec-kit/helpdesk-service/internal/domain"

// Action tells subscribers what happened to the entity in the payload.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// TicketPayload is published on ticket-update.
type TicketPayload struct {
	Action Action         `json:"action"`
	Ticket *domain.Ticket `json:"ticket"`
}

// ContactPayload is published on contact-update.
type ContactPayload struct {
	Action  Action          `json:"action"`
	Contact *domain.Contact `json:"contact"`
}

// ConnectionPayload is published on connection-update.
type ConnectionPayload struct {
	WhatsappID int64                   `json:"whatsappId"`
	Status     domain.ConnectionStatus `json:"status"`
}

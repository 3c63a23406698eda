package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// MessageResponse is the wire form of a ticket message.
type MessageResponse struct {
	ID        string    `json:"id"`
	TicketID  int64     `json:"ticketId"`
	ContactID int64     `json:"contactId"`
	Body      string    `json:"body"`
	FromMe    bool      `json:"fromMe"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// FromMessage converts a domain message.
func FromMessage(msg *domain.Message) MessageResponse {
	return MessageResponse{
		ID:        msg.ID,
		TicketID:  msg.TicketID,
		ContactID: msg.ContactID,
		Body:      msg.Body,
		FromMe:    msg.FromMe,
		Read:      msg.Read,
		CreatedAt: msg.CreatedAt,
	}
}

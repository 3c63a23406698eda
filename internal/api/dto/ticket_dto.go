package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest opens (or claims) a conversation for a contact.
type CreateTicketRequest struct {
	ContactID  int64  `json:"contactId"`
	WhatsappID int64  `json:"whatsappId"`
	UserID     *int64 `json:"userId,omitempty"`
	QueueID    *int64 `json:"queueId,omitempty"`
	IsGroup    bool   `json:"isGroup,omitempty"`
}

// UpdateTicketRequest mutates status and/or assignment.
type UpdateTicketRequest struct {
	Status  *string `json:"status,omitempty"`
	UserID  *int64  `json:"userId,omitempty"`
	QueueID *int64  `json:"queueId,omitempty"`
}

// CloseAllRequest bulk-closes tickets by status and optional queues.
type CloseAllRequest struct {
	Status           string  `json:"status"`
	SelectedQueueIDs []int64 `json:"selectedQueueIds"`
}

// CloseAllResponse reports the best-effort result.
type CloseAllResponse struct {
	Count int `json:"count"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID             int64               `json:"id"`
	UUID           string              `json:"uuid"`
	ContactID      int64               `json:"contactId"`
	WhatsappID     int64               `json:"whatsappId"`
	QueueID        *int64              `json:"queueId,omitempty"`
	UserID         *int64              `json:"userId,omitempty"`
	Status         domain.TicketStatus `json:"status"`
	IsGroup        bool                `json:"isGroup"`
	LastMessage    string              `json:"lastMessage"`
	UnreadMessages int                 `json:"unreadMessages"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// TicketOwnerResponse is returned with 409 when an accept loses the race:
// the current owner's identity, so the UI can tell the requester who won.
type TicketOwnerResponse struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	UserName  string `json:"userName"`
	QueueID   *int64 `json:"queueId,omitempty"`
	QueueName string `json:"queueName,omitempty"`
}

// FromTicket converts a domain ticket.
func FromTicket(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:             ticket.ID,
		UUID:           ticket.UUID,
		ContactID:      ticket.ContactID,
		WhatsappID:     ticket.WhatsappID,
		QueueID:        ticket.QueueID,
		UserID:         ticket.UserID,
		Status:         ticket.Status,
		IsGroup:        ticket.IsGroup,
		LastMessage:    ticket.LastMessage,
		UnreadMessages: ticket.UnreadMessages,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
}

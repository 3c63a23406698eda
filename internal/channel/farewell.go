package channel

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// FarewellSender sends the configured goodbye message through the ticket's
// connection when an agent closes a 1:1 conversation.
type FarewellSender struct {
	sessions *SessionManager
	contacts repository.ContactRepository
	message  string
}

// NewFarewellSender constructs the sender. An empty message disables it.
func NewFarewellSender(sessions *SessionManager, contacts repository.ContactRepository, message string) *FarewellSender {
	return &FarewellSender{sessions: sessions, contacts: contacts, message: message}
}

// SendFarewell delivers the goodbye message to the ticket's contact.
func (f *FarewellSender) SendFarewell(ctx context.Context, ticket *domain.Ticket) error {
	if f.message == "" {
		return nil
	}
	contact, err := f.contacts.GetByID(ctx, ticket.ContactID, ticket.CompanyID)
	if err != nil {
		return err
	}
	_, err = f.sessions.Send(ctx, ticket.WhatsappID, ticket.CompanyID, contact.Number, f.message)
	return err
}

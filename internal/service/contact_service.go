package service

import (
	"context"
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// ContactService maps raw inbound identities (number + channel) onto
// canonical contact rows.
type ContactService struct {
	contacts    repository.ContactRepository
	broadcaster events.Broadcaster
}

// NewContactService creates the service.
func NewContactService(contacts repository.ContactRepository, broadcaster events.Broadcaster) *ContactService {
	return &ContactService{contacts: contacts, broadcaster: broadcaster}
}

// Resolve finds or creates the contact for (number, company). Resolution is
// atomic at the storage layer, so concurrent inbound events for the same new
// number converge on one row. A display-name hint replaces a stored
// placeholder name when one arrives.
func (s *ContactService) Resolve(ctx context.Context, companyID int64, number string, isGroup bool, nameHint string) (*domain.Contact, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, apperrors.NewValidationError("contact number required", nil)
	}

	name := strings.TrimSpace(nameHint)
	if name == "" {
		name = number
	}

	contact := &domain.Contact{
		Number:    number,
		Name:      name,
		CompanyID: companyID,
		IsGroup:   isGroup,
	}
	created, err := s.contacts.FindOrCreate(ctx, contact)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}

	if created {
		s.publish(ctx, contact, events.ActionCreate)
		return contact, nil
	}

	if hint := strings.TrimSpace(nameHint); hint != "" && hint != number && contact.HasPlaceholderName() {
		if err := s.contacts.UpdateName(ctx, contact.ID, companyID, hint); err != nil {
			return nil, apperrors.NewStorageError(err)
		}
		contact.Name = hint
		s.publish(ctx, contact, events.ActionUpdate)
	}
	return contact, nil
}

func (s *ContactService) publish(ctx context.Context, contact *domain.Contact, action events.Action) {
	if s.broadcaster == nil {
		return
	}
	_ = s.broadcaster.Publish(ctx, contact.CompanyID, events.TopicContactUpdate, events.ContactPayload{
		Action:  action,
		Contact: contact,
	})
}

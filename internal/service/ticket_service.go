package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// Farewell sends the closing message to a ticket's contact. Implemented by
// the channel layer; nil disables farewells.
type Farewell interface {
	SendFarewell(ctx context.Context, ticket *domain.Ticket) error
}

// TransitionOptions tweaks a status transition.
type TransitionOptions struct {
	// IgnoreFarewell closes without the normal farewell side effects.
	// Used by administrative bulk-close.
	IgnoreFarewell bool
}

// TicketService is the authoritative surface for ticket rows and their
// status transitions.
type TicketService struct {
	tickets     repository.TicketRepository
	broadcaster events.Broadcaster
	farewell    Farewell
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	Broadcaster events.Broadcaster
	Farewell    Farewell
	Logger      *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		broadcaster: deps.Broadcaster,
		farewell:    deps.Farewell,
		logger:      logger,
	}
}

// Transitions drawn in the lifecycle diagram. closed is terminal here: the
// reopen cycle goes through a new pending ticket, never closed -> open.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusPending: {domain.TicketStatusOpen, domain.TicketStatusGroup, domain.TicketStatusClosed, domain.TicketStatusLgpd},
	domain.TicketStatusOpen:    {domain.TicketStatusClosed, domain.TicketStatusLgpd},
	domain.TicketStatusGroup:   {domain.TicketStatusClosed, domain.TicketStatusLgpd},
	domain.TicketStatusClosed:  {},
	domain.TicketStatusLgpd:    {},
}

func transitionAllowed(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Get fetches a ticket within the caller's tenant.
func (s *TicketService) Get(ctx context.Context, ticketID, companyID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID, companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewStorageError(err)
	}
	return ticket, nil
}

// FindOpenForContact returns the single non-closed ticket for the contact,
// or nil when the contact is free for a new pending ticket.
func (s *TicketService) FindOpenForContact(ctx context.Context, contactID, companyID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.FindOpenByContact(ctx, contactID, companyID)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return ticket, nil
}

// CreatePending inserts a new pending ticket with no agent or queue. The
// partial unique index surfaces repository.ErrOpenTicketExists when the
// contact already has a non-closed ticket; callers re-fetch on that error.
func (s *TicketService) CreatePending(ctx context.Context, contactID, companyID, whatsappID int64, isGroup bool) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		UUID:       uuid.NewString(),
		CompanyID:  companyID,
		ContactID:  contactID,
		WhatsappID: whatsappID,
		Status:     domain.TicketStatusPending,
		IsGroup:    isGroup,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrOpenTicketExists) {
			return nil, err
		}
		return nil, apperrors.NewStorageError(err)
	}
	s.publish(ctx, ticket, events.ActionCreate)
	return ticket, nil
}

// Transition validates and applies a status change. Invalid transitions fail
// with CONFLICT and do not mutate state. Transitions into open/group carry
// the claim semantics and belong to AssignmentService.Accept; Transition
// rejects them so no path bypasses the compare-and-swap.
func (s *TicketService) Transition(ctx context.Context, ticketID, companyID int64, newStatus domain.TicketStatus, actorUserID int64, opts TransitionOptions) (*domain.Ticket, error) {
	ticket, err := s.Get(ctx, ticketID, companyID)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(ticket.Status, newStatus) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{
			"ticket_id": ticketID,
			"from":      ticket.Status,
			"to":        newStatus,
		})
	}
	if newStatus == domain.TicketStatusOpen || newStatus == domain.TicketStatusGroup {
		return nil, apperrors.NewConflict("accepting a ticket requires the accept operation", map[string]any{
			"ticket_id": ticketID,
		})
	}

	if newStatus == domain.TicketStatusClosed && !opts.IgnoreFarewell && s.farewell != nil && !ticket.IsGroup {
		if err := s.farewell.SendFarewell(ctx, ticket); err != nil {
			// Farewell failure never blocks the close itself.
			s.logger.Warn("farewell send failed",
				zap.Int64("ticket_id", ticket.ID),
				zap.Error(err))
		}
	}

	ticket.Status = newStatus
	if err := s.tickets.UpdateStatus(ctx, ticket); err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	s.logger.Info("ticket status changed",
		zap.Int64("ticket_id", ticket.ID),
		zap.Int64("company_id", ticket.CompanyID),
		zap.String("status", string(newStatus)),
		zap.Int64("actor_user_id", actorUserID))
	s.publish(ctx, ticket, events.ActionUpdate)
	return ticket, nil
}

// RecordInboundMessage updates lastMessage/unreadMessages and bumps
// updatedAt so ticket lists reorder.
func (s *TicketService) RecordInboundMessage(ctx context.Context, ticketID, companyID int64, body string) (*domain.Ticket, error) {
	ticket, err := s.tickets.RecordInbound(ctx, ticketID, companyID, body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewStorageError(err)
	}
	s.publish(ctx, ticket, events.ActionUpdate)
	return ticket, nil
}

// CloseAll bulk-closes every ticket in the given status (optionally limited
// to queues). Best effort: per-item failures are logged and skipped, never
// rolled back. Returns the number of tickets closed.
func (s *TicketService) CloseAll(ctx context.Context, companyID int64, status domain.TicketStatus, queueIDs []int64) (int, error) {
	tickets, err := s.tickets.ListByStatus(ctx, companyID, []domain.TicketStatus{status}, queueIDs)
	if err != nil {
		return 0, apperrors.NewStorageError(err)
	}

	closed := 0
	for i := range tickets {
		ticket := &tickets[i]
		if _, err := s.Transition(ctx, ticket.ID, companyID, domain.TicketStatusClosed, 0, TransitionOptions{IgnoreFarewell: true}); err != nil {
			s.logger.Warn("closeAll: skipping ticket",
				zap.Int64("ticket_id", ticket.ID),
				zap.Error(err))
			continue
		}
		closed++
	}
	return closed, nil
}

// ListByStatus returns the company's tickets in the given statuses.
func (s *TicketService) ListByStatus(ctx context.Context, companyID int64, statuses []domain.TicketStatus, queueIDs []int64) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByStatus(ctx, companyID, statuses, queueIDs)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return tickets, nil
}

func (s *TicketService) publish(ctx context.Context, ticket *domain.Ticket, action events.Action) {
	if s.broadcaster == nil {
		return
	}
	_ = s.broadcaster.Publish(ctx, ticket.CompanyID, events.TopicTicketUpdate, events.TicketPayload{
		Action: action,
		Ticket: ticket,
	})
}

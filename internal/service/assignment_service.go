package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// InboundRoute describes one inbound message to be routed to a ticket.
type InboundRoute struct {
	CompanyID  int64
	ContactID  int64
	WhatsappID int64
	IsGroup    bool
	Body       string
}

// OwnerInfo identifies the agent currently holding a ticket. Returned to a
// losing accept caller so the UI can name the winner, not show a bare error.
type OwnerInfo struct {
	UserID    int64  `json:"userId"`
	Name      string `json:"name"`
	QueueID   *int64 `json:"queueId,omitempty"`
	QueueName string `json:"queueName,omitempty"`
}

// AcceptResult is the explicit outcome of an accept attempt: either the
// claimed ticket, or the current owner on a lost race.
type AcceptResult struct {
	Accepted bool
	Ticket   *domain.Ticket
	Owner    *OwnerInfo
}

// AssignmentService is the serialization point that prevents two tickets or
// two owners for the same contact.
type AssignmentService struct {
	ticketSvc   *TicketService
	tickets     repository.TicketRepository
	users       repository.UserRepository
	queues      repository.QueueRepository
	broadcaster events.Broadcaster
	metrics     *observability.Metrics
	logger      *zap.Logger
	locks       *keyedMutex
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TicketService *TicketService
	TicketRepo    repository.TicketRepository
	UserRepo      repository.UserRepository
	QueueRepo     repository.QueueRepository
	Broadcaster   events.Broadcaster
	Metrics       *observability.Metrics
	Logger        *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		ticketSvc:   deps.TicketService,
		tickets:     deps.TicketRepo,
		users:       deps.UserRepo,
		queues:      deps.QueueRepo,
		broadcaster: deps.Broadcaster,
		metrics:     deps.Metrics,
		logger:      logger,
		locks:       newKeyedMutex(),
	}
}

// EnsureTicket returns the contact's open ticket, creating a pending one if
// none exists. The check-then-create runs under a per-(company, contact)
// lock; the storage unique index remains the authoritative guard, so a lost
// cross-process race resolves by re-fetching the winner.
func (s *AssignmentService) EnsureTicket(ctx context.Context, contactID, companyID, whatsappID int64, isGroup bool) (*domain.Ticket, error) {
	key := contactKey(companyID, contactID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	ticket, err := s.ticketSvc.FindOpenForContact(ctx, contactID, companyID)
	if err != nil {
		return nil, err
	}
	if ticket != nil {
		return ticket, nil
	}

	ticket, err = s.ticketSvc.CreatePending(ctx, contactID, companyID, whatsappID, isGroup)
	if errors.Is(err, repository.ErrOpenTicketExists) {
		ticket, err = s.ticketSvc.FindOpenForContact(ctx, contactID, companyID)
		if err != nil {
			return nil, err
		}
		if ticket == nil {
			return nil, apperrors.NewConflict("ticket creation raced and winner vanished", map[string]any{
				"contact_id": contactID,
			})
		}
		return ticket, nil
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// RouteInbound decides which ticket an inbound message belongs to and
// records the message on it.
func (s *AssignmentService) RouteInbound(ctx context.Context, in InboundRoute) (*domain.Ticket, error) {
	ticket, err := s.EnsureTicket(ctx, in.ContactID, in.CompanyID, in.WhatsappID, in.IsGroup)
	if err != nil {
		return nil, err
	}
	if in.Body != "" {
		ticket, err = s.ticketSvc.RecordInboundMessage(ctx, ticket.ID, in.CompanyID, in.Body)
		if err != nil {
			return nil, err
		}
	}
	s.metrics.RecordInboundRouted()
	return ticket, nil
}

// Accept claims a pending ticket for an agent. The claim is a
// compare-and-swap conditional on no owner at write time: of several
// concurrent accepts exactly one wins, and losers get the winner's identity.
func (s *AssignmentService) Accept(ctx context.Context, ticketID, companyID, userID int64, queueID *int64) (*AcceptResult, error) {
	ticket, err := s.ticketSvc.Get(ctx, ticketID, companyID)
	if err != nil {
		return nil, err
	}
	if ticket.OwnedBy(userID) && ticket.Status == ticket.AcceptedStatus() {
		return &AcceptResult{Accepted: true, Ticket: ticket}, nil
	}

	claimed, err := s.tickets.Claim(ctx, ticketID, companyID, userID, queueID, ticket.AcceptedStatus())
	if err == nil {
		s.publish(ctx, claimed)
		s.logger.Info("ticket accepted",
			zap.Int64("ticket_id", claimed.ID),
			zap.Int64("user_id", userID))
		return &AcceptResult{Accepted: true, Ticket: claimed}, nil
	}
	if !errors.Is(err, repository.ErrTicketClaimed) {
		return nil, apperrors.NewStorageError(err)
	}

	// Lost the race or the ticket was never claimable; re-read to tell which.
	current, err := s.ticketSvc.Get(ctx, ticketID, companyID)
	if err != nil {
		return nil, err
	}
	if current.OwnedBy(userID) {
		return &AcceptResult{Accepted: true, Ticket: current}, nil
	}
	if current.Owned() {
		s.metrics.RecordClaimRace()
		owner := s.ownerInfo(ctx, current)
		return &AcceptResult{Accepted: false, Ticket: current, Owner: owner}, nil
	}
	return nil, apperrors.NewConflict("ticket cannot be accepted in current status", map[string]any{
		"ticket_id": ticketID,
		"status":    current.Status,
	})
}

// Transfer unconditionally reassigns a ticket's agent and/or queue. No
// ownership race: the current owner or an admin initiates it.
func (s *AssignmentService) Transfer(ctx context.Context, ticketID, companyID int64, userID, queueID *int64) (*domain.Ticket, error) {
	if _, err := s.ticketSvc.Get(ctx, ticketID, companyID); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.Reassign(ctx, ticketID, companyID, userID, queueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewStorageError(err)
	}
	s.publish(ctx, ticket)
	return ticket, nil
}

func (s *AssignmentService) ownerInfo(ctx context.Context, ticket *domain.Ticket) *OwnerInfo {
	info := &OwnerInfo{QueueID: ticket.QueueID}
	if ticket.UserID != nil {
		info.UserID = *ticket.UserID
		if owner, err := s.users.GetByID(ctx, *ticket.UserID); err == nil {
			info.Name = owner.Name
		}
	}
	if ticket.QueueID != nil {
		if queue, err := s.queues.GetByID(ctx, *ticket.QueueID, ticket.CompanyID); err == nil {
			info.QueueName = queue.Name
		}
	}
	return info
}

func (s *AssignmentService) publish(ctx context.Context, ticket *domain.Ticket) {
	if s.broadcaster == nil {
		return
	}
	_ = s.broadcaster.Publish(ctx, ticket.CompanyID, events.TopicTicketUpdate, events.TicketPayload{
		Action: events.ActionUpdate,
		Ticket: ticket,
	})
}

func contactKey(companyID, contactID int64) string {
	return fmt.Sprintf("%d:%d", companyID, contactID)
}

package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketsHandler exposes ticket lifecycle endpoints.
type TicketsHandler struct {
	tickets    *service.TicketService
	resolver   *service.AssignmentService
	messages   repository.MessageRepository
	ticketRepo repository.TicketRepository
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, resolver *service.AssignmentService, messages repository.MessageRepository, ticketRepo repository.TicketRepository) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, resolver: resolver, messages: messages, ticketRepo: ticketRepo}
}

// CreateTicket POST /tickets. Ensures an open ticket exists for the contact
// and, when userId is present, claims it for that agent. A lost claim race
// answers 409 with the current owner.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ContactID == 0 || req.WhatsappID == 0 {
		return apperrors.NewValidationError("contactId and whatsappId required", nil)
	}

	ticket, err := h.resolver.EnsureTicket(c.UserContext(), req.ContactID, principal.CompanyID, req.WhatsappID, req.IsGroup)
	if err != nil {
		return err
	}

	if req.UserID == nil {
		return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromTicket(ticket)})
	}

	result, err := h.resolver.Accept(c.UserContext(), ticket.ID, principal.CompanyID, *req.UserID, req.QueueID)
	if err != nil {
		return err
	}
	if !result.Accepted {
		return conflictWithOwner(c, result)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromTicket(result.Ticket)})
}

// UpdateTicket PUT /tickets/:id. Status open/group routes through the accept
// claim; closed/lgpd through the transition state machine; a bare
// userId/queueId change is a transfer.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	ticketID, err := parseID(c.Params("id"))
	if err != nil {
		return apperrors.NewValidationError("invalid ticket id", nil)
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if req.Status != nil {
		status := domain.TicketStatus(strings.TrimSpace(*req.Status))
		switch status {
		case domain.TicketStatusOpen, domain.TicketStatusGroup:
			userID := principal.UserID
			if req.UserID != nil {
				userID = *req.UserID
			}
			result, err := h.resolver.Accept(c.UserContext(), ticketID, principal.CompanyID, userID, req.QueueID)
			if err != nil {
				return err
			}
			if !result.Accepted {
				return conflictWithOwner(c, result)
			}
			return c.JSON(fiber.Map{"data": dto.FromTicket(result.Ticket)})
		case domain.TicketStatusClosed, domain.TicketStatusLgpd, domain.TicketStatusPending:
			ticket, err := h.tickets.Transition(c.UserContext(), ticketID, principal.CompanyID, status, principal.UserID, service.TransitionOptions{})
			if err != nil {
				return err
			}
			return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
		default:
			return apperrors.NewValidationError("unknown status", map[string]any{"status": *req.Status})
		}
	}

	if req.UserID == nil && req.QueueID == nil {
		return apperrors.NewValidationError("nothing to update", nil)
	}
	ticket, err := h.resolver.Transfer(c.UserContext(), ticketID, principal.CompanyID, req.UserID, req.QueueID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	ticketID, err := parseID(c.Params("id"))
	if err != nil {
		return apperrors.NewValidationError("invalid ticket id", nil)
	}
	ticket, err := h.tickets.Get(c.UserContext(), ticketID, principal.CompanyID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// ListTickets GET /tickets?status=pending,open&queueId=1,2.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}

	var statuses []domain.TicketStatus
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			statuses = append(statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	queueIDs, err := parseIDList(c.Query("queueId"))
	if err != nil {
		return apperrors.NewValidationError("invalid queueId", nil)
	}

	tickets, err := h.tickets.ListByStatus(c.UserContext(), principal.CompanyID, statuses, queueIDs)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.FromTicket(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListMessages GET /tickets/:id/messages. Reading a thread marks its
// messages read and zeroes the ticket's unread counter.
func (h *TicketsHandler) ListMessages(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	ticketID, err := parseID(c.Params("id"))
	if err != nil {
		return apperrors.NewValidationError("invalid ticket id", nil)
	}
	if _, err := h.tickets.Get(c.UserContext(), ticketID, principal.CompanyID); err != nil {
		return err
	}

	limit := c.QueryInt("limit", 100)
	messages, err := h.messages.ListByTicket(c.UserContext(), ticketID, principal.CompanyID, limit)
	if err != nil {
		return apperrors.NewStorageError(err)
	}

	if err := h.messages.MarkRead(c.UserContext(), ticketID, principal.CompanyID); err != nil {
		return apperrors.NewStorageError(err)
	}
	if err := h.ticketRepo.ClearUnread(c.UserContext(), ticketID, principal.CompanyID); err != nil {
		return apperrors.NewStorageError(err)
	}

	items := make([]dto.MessageResponse, 0, len(messages))
	for i := range messages {
		items = append(items, dto.FromMessage(&messages[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CloseAll POST /tickets/closeAll. Best effort; responds with the count of
// tickets actually closed.
func (h *TicketsHandler) CloseAll(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	var req dto.CloseAllRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status := domain.TicketStatus(strings.TrimSpace(req.Status))
	if status != domain.TicketStatusPending && status != domain.TicketStatusOpen && status != domain.TicketStatusGroup {
		return apperrors.NewValidationError("status must be pending, open or group", nil)
	}

	count, err := h.tickets.CloseAll(c.UserContext(), principal.CompanyID, status, req.SelectedQueueIDs)
	if err != nil {
		return err
	}
	return c.JSON(dto.CloseAllResponse{Count: count})
}

func conflictWithOwner(c *fiber.Ctx, result *service.AcceptResult) error {
	owner := dto.TicketOwnerResponse{ID: result.Ticket.ID}
	if result.Owner != nil {
		owner.UserID = result.Owner.UserID
		owner.UserName = result.Owner.Name
		owner.QueueID = result.Owner.QueueID
		owner.QueueName = result.Owner.QueueName
	}
	return c.Status(http.StatusConflict).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "ALREADY_OWNED",
			"message": "ticket already accepted by another agent",
		},
		"ticket": owner,
	})
}

func parseID(val string) (int64, error) {
	return strconv.ParseInt(val, 10, 64)
}

func parseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/channel"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// WhatsappHandler exposes channel connection endpoints.
type WhatsappHandler struct {
	connections repository.WhatsappRepository
	sessions    *channel.SessionManager
}

// NewWhatsappHandler constructs handler.
func NewWhatsappHandler(connections repository.WhatsappRepository, sessions *channel.SessionManager) *WhatsappHandler {
	return &WhatsappHandler{connections: connections, sessions: sessions}
}

// ListConnections GET /whatsapp.
func (h *WhatsappHandler) ListConnections(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	conns, err := h.connections.ListByCompany(c.UserContext(), principal.CompanyID)
	if err != nil {
		return apperrors.NewStorageError(err)
	}
	items := make([]dto.WhatsappResponse, 0, len(conns))
	for i := range conns {
		items = append(items, dto.FromWhatsapp(&conns[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// RestartConnection POST /whatsapp/:id/restart. Destroys the vendor session
// and binds a fresh one in OPENING state.
func (h *WhatsappHandler) RestartConnection(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	if principal.Profile != domain.ProfileAdmin {
		return apperrors.NewForbidden("admin required")
	}
	whatsappID, err := parseID(c.Params("id"))
	if err != nil {
		return apperrors.NewValidationError("invalid connection id", nil)
	}

	session, err := h.sessions.Restart(c.UserContext(), whatsappID, principal.CompanyID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"id":     session.WhatsappID,
		"status": session.Status(),
	}})
}

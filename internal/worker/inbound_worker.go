package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/channel"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// InboundWorker bridges raw channel events into the ticket pipeline:
// contact resolution, then ticket routing.
type InboundWorker struct {
	sessions *channel.SessionManager
	contacts *service.ContactService
	resolver *service.AssignmentService
	logger   *zap.Logger
}

// NewInboundWorker constructs the worker.
func NewInboundWorker(sessions *channel.SessionManager, contacts *service.ContactService, resolver *service.AssignmentService, logger *zap.Logger) *InboundWorker {
	return &InboundWorker{
		sessions: sessions,
		contacts: contacts,
		resolver: resolver,
		logger:   logger,
	}
}

// Start registers the worker as the inbound handler for all sessions.
func (w *InboundWorker) Start() {
	w.sessions.OnInbound(w.HandleInbound)
}

// HandleInbound processes one inbound message end to end. Errors are logged,
// not propagated: the vendor client has no use for them, and one bad message
// must not stall the stream.
func (w *InboundWorker) HandleInbound(ctx context.Context, msg channel.InboundMessage) {
	contact, err := w.contacts.Resolve(ctx, msg.CompanyID, msg.From, msg.IsGroup, msg.SenderName)
	if err != nil {
		w.logger.Error("resolve contact",
			zap.String("from", msg.From),
			zap.Int64("company_id", msg.CompanyID),
			zap.Error(err))
		return
	}
	if !contact.Active {
		w.logger.Debug("ignoring message from blocked contact",
			zap.Int64("contact_id", contact.ID))
		return
	}

	ticket, err := w.resolver.RouteInbound(ctx, service.InboundRoute{
		CompanyID:  msg.CompanyID,
		ContactID:  contact.ID,
		WhatsappID: msg.WhatsappID,
		IsGroup:    msg.IsGroup,
		Body:       msg.Body,
	})
	if err != nil {
		w.logger.Error("route inbound message",
			zap.Int64("contact_id", contact.ID),
			zap.Error(err))
		return
	}
	w.logger.Debug("inbound message routed",
		zap.Int64("ticket_id", ticket.ID),
		zap.Int64("contact_id", contact.ID))
}

package channel

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// MapVendorState translates vendor connection vocabulary onto the platform
// enum. This is the single place vendor strings are interpreted; unknown
// states degrade to DISCONNECTED.
func MapVendorState(state string) (domain.ConnectionStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "open":
		return domain.ConnectionConnected, true
	case "close", "closed":
		return domain.ConnectionDisconnected, true
	case "connecting":
		return domain.ConnectionOpening, true
	case "qr", "qrcode":
		return domain.ConnectionQrcode, true
	case "pairing":
		return domain.ConnectionPairing, true
	case "timeout":
		return domain.ConnectionTimeout, true
	default:
		return domain.ConnectionDisconnected, false
	}
}

// Session binds one connection record to one live vendor client.
type Session struct {
	WhatsappID int64
	CompanyID  int64

	mu     sync.RWMutex
	client Client
	status domain.ConnectionStatus
}

// Status returns the current platform status.
func (s *Session) Status() domain.ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) setStatus(status domain.ConnectionStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// InboundHandler receives resolved inbound messages from any session.
type InboundHandler func(ctx context.Context, msg InboundMessage)

// SessionManager owns the per-connection vendor sessions: registration,
// status propagation and fail-fast outbound sends.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	inbound  InboundHandler

	factory     ClientFactory
	connections repository.WhatsappRepository
	broadcaster events.Broadcaster
	logger      *zap.Logger
	sendTimeout time.Duration
}

// NewSessionManager constructs the manager.
func NewSessionManager(factory ClientFactory, connections repository.WhatsappRepository, broadcaster events.Broadcaster, logger *zap.Logger, sendTimeout time.Duration) *SessionManager {
	return &SessionManager{
		sessions:    make(map[int64]*Session),
		factory:     factory,
		connections: connections,
		broadcaster: broadcaster,
		logger:      logger,
		sendTimeout: sendTimeout,
	}
}

// OnInbound sets the handler invoked for every inbound message across all
// sessions. Must be called before Register.
func (m *SessionManager) OnInbound(handler InboundHandler) {
	m.mu.Lock()
	m.inbound = handler
	m.mu.Unlock()
}

// Register creates a vendor session for the connection record and binds its
// event handlers. An existing session for the same connection is replaced.
func (m *SessionManager) Register(ctx context.Context, conn *domain.Whatsapp) (*Session, error) {
	client, err := m.factory(conn.ID, conn.CompanyID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	session := &Session{
		WhatsappID: conn.ID,
		CompanyID:  conn.CompanyID,
		client:     client,
		status:     domain.ConnectionOpening,
	}

	client.OnConnectionState(func(state string) {
		m.HandleStateChange(context.Background(), session, state)
	})
	client.OnMessage(func(msg InboundMessage) {
		msg.WhatsappID = session.WhatsappID
		msg.CompanyID = session.CompanyID
		m.dispatchInbound(context.Background(), msg)
	})

	m.mu.Lock()
	old := m.sessions[conn.ID]
	m.sessions[conn.ID] = session
	m.mu.Unlock()
	if old != nil {
		_ = old.client.Close()
	}

	if err := m.persistStatus(ctx, session, domain.ConnectionOpening); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession resolves the live session for a connection. Cross-tenant
// lookups fail closed with NOT_FOUND.
func (m *SessionManager) GetSession(whatsappID, companyID int64) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[whatsappID]
	m.mu.RUnlock()
	if !ok || session.CompanyID != companyID {
		return nil, apperrors.NewNotFound("session", map[string]any{"whatsapp_id": whatsappID})
	}
	return session, nil
}

// Send routes one outbound message through a connection. Non-CONNECTED
// connections fail immediately with NOT_CONNECTED rather than hang; the
// vendor call itself carries a bounded timeout.
func (m *SessionManager) Send(ctx context.Context, whatsappID, companyID int64, to, body string) (string, error) {
	session, err := m.GetSession(whatsappID, companyID)
	if err != nil {
		return "", err
	}
	if session.Status() != domain.ConnectionConnected {
		return "", apperrors.NewNotConnected(map[string]any{
			"whatsapp_id": whatsappID,
			"status":      session.Status(),
		})
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()

	handle, err := session.client.Send(sendCtx, to, body)
	if err != nil {
		return "", &apperrors.DomainError{
			Code:       "SEND_ERROR",
			Message:    "channel send failed",
			HTTPStatus: http.StatusBadGateway,
			Details:    map[string]any{"whatsapp_id": whatsappID},
			Err:        err,
		}
	}
	return handle, nil
}

// HandleStateChange maps a raw vendor state onto the platform enum,
// persists it and publishes connection-update for the owning company.
func (m *SessionManager) HandleStateChange(ctx context.Context, session *Session, vendorState string) {
	status, known := MapVendorState(vendorState)
	if !known {
		m.logger.Warn("unknown vendor connection state",
			zap.String("state", vendorState),
			zap.Int64("whatsapp_id", session.WhatsappID))
	}
	if err := m.persistStatus(ctx, session, status); err != nil {
		m.logger.Error("persist connection status",
			zap.Int64("whatsapp_id", session.WhatsappID),
			zap.Error(err))
	}
}

// Restart destroys the current vendor session and binds a fresh one,
// resetting the connection to OPENING.
func (m *SessionManager) Restart(ctx context.Context, whatsappID, companyID int64) (*Session, error) {
	if _, err := m.GetSession(whatsappID, companyID); err != nil {
		return nil, err
	}
	conn, err := m.connections.GetByID(ctx, whatsappID, companyID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return m.Register(ctx, conn)
}

func (m *SessionManager) persistStatus(ctx context.Context, session *Session, status domain.ConnectionStatus) error {
	session.setStatus(status)
	if m.connections != nil {
		if err := m.connections.UpdateStatus(ctx, session.WhatsappID, status); err != nil {
			return apperrors.NewStorageError(err)
		}
	}
	if m.broadcaster != nil {
		_ = m.broadcaster.Publish(ctx, session.CompanyID, events.TopicConnectionUpdate, events.ConnectionPayload{
			WhatsappID: session.WhatsappID,
			Status:     status,
		})
	}
	return nil
}

func (m *SessionManager) dispatchInbound(ctx context.Context, msg InboundMessage) {
	m.mu.RLock()
	handler := m.inbound
	m.mu.RUnlock()
	if handler == nil {
		m.logger.Warn("inbound message dropped; no handler registered",
			zap.Int64("whatsapp_id", msg.WhatsappID))
		return
	}
	handler(ctx, msg)
}

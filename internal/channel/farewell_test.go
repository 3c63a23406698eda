package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

type fakeContactStore struct {
	mu       sync.Mutex
	contacts map[int64]*domain.Contact
}

func (s *fakeContactStore) FindOrCreate(_ context.Context, contact *domain.Contact) (bool, error) {
	return false, nil
}

func (s *fakeContactStore) GetByID(_ context.Context, id, companyID int64) (*domain.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contact, ok := s.contacts[id]
	if !ok || contact.CompanyID != companyID {
		return nil, pgx.ErrNoRows
	}
	clone := *contact
	return &clone, nil
}

func (s *fakeContactStore) UpdateName(_ context.Context, id, companyID int64, name string) error {
	return nil
}

func newFarewellFixture(t *testing.T, message string) (*FarewellSender, *LoopbackClient) {
	t.Helper()
	client := NewLoopbackClient()
	factory := func(whatsappID, companyID int64) (Client, error) {
		return client, nil
	}
	store := newFakeConnStore(&domain.Whatsapp{ID: 7, CompanyID: 42})
	manager := NewSessionManager(factory, store, events.NewInMemoryBroadcaster(), zap.NewNop(), time.Second)
	if _, err := manager.Register(context.Background(), &domain.Whatsapp{ID: 7, CompanyID: 42}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	client.InjectState("open")

	contacts := &fakeContactStore{contacts: map[int64]*domain.Contact{
		9: {ID: 9, CompanyID: 42, Number: "5511999990000", Active: true},
	}}
	return NewFarewellSender(manager, contacts, message), client
}

func TestSendFarewellDeliversConfiguredMessage(t *testing.T) {
	sender, client := newFarewellFixture(t, "Obrigado pelo contato!")

	ticket := &domain.Ticket{ID: 1, CompanyID: 42, ContactID: 9, WhatsappID: 7}
	if err := sender.SendFarewell(context.Background(), ticket); err != nil {
		t.Fatalf("SendFarewell: %v", err)
	}

	sent := client.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].To != "5511999990000" || sent[0].Body != "Obrigado pelo contato!" {
		t.Fatalf("sent = %+v", sent[0])
	}
}

func TestSendFarewellDisabledByEmptyMessage(t *testing.T) {
	sender, client := newFarewellFixture(t, "")

	ticket := &domain.Ticket{ID: 1, CompanyID: 42, ContactID: 9, WhatsappID: 7}
	if err := sender.SendFarewell(context.Background(), ticket); err != nil {
		t.Fatalf("SendFarewell: %v", err)
	}
	if len(client.Sent()) != 0 {
		t.Fatalf("disabled farewell still sent %d messages", len(client.Sent()))
	}
}

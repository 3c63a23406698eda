package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

type assignmentFixture struct {
	assignment  *AssignmentService
	tickets     *TicketService
	ticketRepo  *fakeTicketRepo
	broadcaster *events.InMemoryBroadcaster
}

func newAssignmentFixture(farewell Farewell) *assignmentFixture {
	ticketRepo := newFakeTicketRepo()
	broadcaster := events.NewInMemoryBroadcaster()
	tickets := NewTicketService(TicketDependencies{
		TicketRepo:  ticketRepo,
		Broadcaster: broadcaster,
		Farewell:    farewell,
	})
	users := newFakeUserRepo(
		&domain.User{ID: 100, Name: "Alice", Email: "alice@acme.test", CompanyID: 42, Active: true},
		&domain.User{ID: 200, Name: "Bruno", Email: "bruno@acme.test", CompanyID: 42, Active: true},
	)
	queues := newFakeQueueRepo(
		&domain.Queue{ID: 5, Name: "Support", CompanyID: 42},
	)
	assignment := NewAssignmentService(AssignmentDependencies{
		TicketService: tickets,
		TicketRepo:    ticketRepo,
		UserRepo:      users,
		QueueRepo:     queues,
		Broadcaster:   broadcaster,
	})
	return &assignmentFixture{
		assignment:  assignment,
		tickets:     tickets,
		ticketRepo:  ticketRepo,
		broadcaster: broadcaster,
	}
}

func TestEnsureTicketReusesOpenTicket(t *testing.T) {
	fx := newAssignmentFixture(nil)
	ctx := context.Background()

	first, err := fx.assignment.EnsureTicket(ctx, 9, 42, 7, false)
	if err != nil {
		t.Fatalf("EnsureTicket: %v", err)
	}
	if first.Status != domain.TicketStatusPending {
		t.Fatalf("new ticket status = %s, want pending", first.Status)
	}
	if first.UserID != nil || first.QueueID != nil {
		t.Fatalf("new pending ticket must be unassigned, got user=%v queue=%v", first.UserID, first.QueueID)
	}

	second, err := fx.assignment.EnsureTicket(ctx, 9, 42, 7, false)
	if err != nil {
		t.Fatalf("EnsureTicket (reuse): %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing ticket %d, got new ticket %d", first.ID, second.ID)
	}
	if fx.ticketRepo.nonClosedCount(9, 42) != 1 {
		t.Fatalf("non-closed ticket count = %d, want 1", fx.ticketRepo.nonClosedCount(9, 42))
	}
}

func TestRouteInboundConcurrentCreatesSingleTicket(t *testing.T) {
	fx := newAssignmentFixture(nil)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.assignment.RouteInbound(ctx, InboundRoute{
				CompanyID:  42,
				ContactID:  9,
				WhatsappID: 7,
				Body:       "hello",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("RouteInbound: %v", err)
		}
	}

	if got := fx.ticketRepo.nonClosedCount(9, 42); got != 1 {
		t.Fatalf("non-closed ticket count = %d, want 1", got)
	}
	ticket, err := fx.tickets.FindOpenForContact(ctx, 9, 42)
	if err != nil {
		t.Fatalf("FindOpenForContact: %v", err)
	}
	if ticket.UnreadMessages != workers {
		t.Fatalf("unreadMessages = %d, want %d", ticket.UnreadMessages, workers)
	}
	if ticket.LastMessage != "hello" {
		t.Fatalf("lastMessage = %q, want %q", ticket.LastMessage, "hello")
	}
}

func TestAcceptConcurrentExactlyOneWinner(t *testing.T) {
	fx := newAssignmentFixture(nil)
	ctx := context.Background()

	ticket, err := fx.assignment.EnsureTicket(ctx, 9, 42, 7, false)
	if err != nil {
		t.Fatalf("EnsureTicket: %v", err)
	}

	queueID := int64(5)
	results := make([]*AcceptResult, 2)
	resErrs := make([]error, 2)
	agents := []int64{100, 200}
	var wg sync.WaitGroup
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent int64) {
			defer wg.Done()
			results[i], resErrs[i] = fx.assignment.Accept(ctx, ticket.ID, 42, agent, &queueID)
		}(i, agent)
	}
	wg.Wait()

	for i, err := range resErrs {
		if err != nil {
			t.Fatalf("Accept[%d]: %v", i, err)
		}
	}

	var winner, loser *AcceptResult
	for _, res := range results {
		if res.Accepted {
			if winner != nil {
				t.Fatal("both accept attempts won")
			}
			winner = res
		} else {
			loser = res
		}
	}
	if winner == nil || loser == nil {
		t.Fatal("expected exactly one winner and one loser")
	}
	if winner.Ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("winner ticket status = %s, want open", winner.Ticket.Status)
	}
	if loser.Owner == nil {
		t.Fatal("loser must learn the winner's identity")
	}
	if loser.Owner.UserID != *winner.Ticket.UserID {
		t.Fatalf("loser owner = %d, winner = %d", loser.Owner.UserID, *winner.Ticket.UserID)
	}
	wantName := map[int64]string{100: "Alice", 200: "Bruno"}[loser.Owner.UserID]
	if loser.Owner.Name != wantName {
		t.Fatalf("owner name = %q, want %q", loser.Owner.Name, wantName)
	}
	if loser.Owner.QueueName != "Support" {
		t.Fatalf("owner queue name = %q, want Support", loser.Owner.QueueName)
	}
}

func TestAcceptIdempotentForCurrentOwner(t *testing.T) {
	fx := newAssignmentFixture(nil)
	ctx := context.Background()

	ticket, err := fx.assignment.EnsureTicket(ctx, 9, 42, 7, false)
	if err != nil {
		t.Fatalf("EnsureTicket: %v", err)
	}
	first, err := fx.assignment.Accept(ctx, ticket.ID, 42, 100, nil)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !first.Accepted {
		t.Fatal("first accept must win")
	}

	again, err := fx.assignment.Accept(ctx, ticket.ID, 42, 100, nil)
	if err != nil {
		t.Fatalf("repeated Accept: %v", err)
	}
	if !again.Accepted {
		t.Fatal("repeated accept by the owner must succeed")
	}
	if *again.Ticket.UserID != 100 {
		t.Fatalf("owner changed to %d", *again.Ticket.UserID)
	}
}

func TestAcceptGroupTicketLandsInGroupStatus(t *testing.T) {
	fx := newAssignmentFixture(nil)
	ctx := context.Background()

	ticket, err := fx.assignment.EnsureTicket(ctx, 9, 42, 7, true)
	if err != nil {
		t.Fatalf("EnsureTicket: %v", err)
	}
	res, err := fx.assignment.Accept(ctx, ticket.ID, 42, 100, nil)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if res.Ticket.Status != domain.TicketStatusGroup {
		t.Fatalf("group ticket status = %s, want group", res.Ticket.Status)
	}
}

func TestAcceptClosedTicketFails(t *testing.T) {
	fx := newAssignmentFixture(nil)
	ctx := context.Background()

	ticket, err := fx.assignment.EnsureTicket(ctx, 9, 42, 7, false)
	if err != nil {
		t.Fatalf("EnsureTicket: %v", err)
	}
	if _, err := fx.tickets.Transition(ctx, ticket.ID, 42, domain.TicketStatusClosed, 100, TransitionOptions{}); err != nil {
		t.Fatalf("Transition close: %v", err)
	}

	_, err = fx.assignment.Accept(ctx, ticket.ID, 42, 100, nil)
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "CONFLICT" {
		t.Fatalf("accept of closed ticket: got %v, want CONFLICT", err)
	}
}

func TestAcceptUnknownTicketNotFound(t *testing.T) {
	fx := newAssignmentFixture(nil)

	_, err := fx.assignment.Accept(context.Background(), 404, 42, 100, nil)
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_FOUND" {
		t.Fatalf("accept of missing ticket: got %v, want NOT_FOUND", err)
	}
}

func TestAcceptScopedToCompany(t *testing.T) {
	fx := newAssignmentFixture(nil)
	ctx := context.Background()

	ticket, err := fx.assignment.EnsureTicket(ctx, 9, 42, 7, false)
	if err != nil {
		t.Fatalf("EnsureTicket: %v", err)
	}

	_, err = fx.assignment.Accept(ctx, ticket.ID, 99, 100, nil)
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_FOUND" {
		t.Fatalf("cross-tenant accept: got %v, want NOT_FOUND", err)
	}
}

func TestTransferReassignsAgentAndQueue(t *testing.T) {
	fx := newAssignmentFixture(nil)
	ctx := context.Background()

	ticket, err := fx.assignment.EnsureTicket(ctx, 9, 42, 7, false)
	if err != nil {
		t.Fatalf("EnsureTicket: %v", err)
	}
	if _, err := fx.assignment.Accept(ctx, ticket.ID, 42, 100, nil); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	newOwner := int64(200)
	queueID := int64(5)
	transferred, err := fx.assignment.Transfer(ctx, ticket.ID, 42, &newOwner, &queueID)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if transferred.UserID == nil || *transferred.UserID != 200 {
		t.Fatalf("transferred owner = %v, want 200", transferred.UserID)
	}
	if transferred.QueueID == nil || *transferred.QueueID != 5 {
		t.Fatalf("transferred queue = %v, want 5", transferred.QueueID)
	}
}

func TestReopenCycleCreatesFreshPendingTicket(t *testing.T) {
	fx := newAssignmentFixture(nil)
	ctx := context.Background()

	first, err := fx.assignment.RouteInbound(ctx, InboundRoute{CompanyID: 42, ContactID: 9, WhatsappID: 7, Body: "hi"})
	if err != nil {
		t.Fatalf("RouteInbound: %v", err)
	}
	if _, err := fx.assignment.Accept(ctx, first.ID, 42, 100, nil); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := fx.tickets.Transition(ctx, first.ID, 42, domain.TicketStatusClosed, 100, TransitionOptions{}); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := fx.assignment.RouteInbound(ctx, InboundRoute{CompanyID: 42, ContactID: 9, WhatsappID: 7, Body: "hi again"})
	if err != nil {
		t.Fatalf("RouteInbound after close: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("reopen must create a new ticket, not revive the closed one")
	}
	if second.Status != domain.TicketStatusPending {
		t.Fatalf("reopened ticket status = %s, want pending", second.Status)
	}
	if second.UserID != nil {
		t.Fatal("reopened ticket must be unassigned")
	}

	old, err := fx.tickets.Get(ctx, first.ID, 42)
	if err != nil {
		t.Fatalf("Get closed ticket: %v", err)
	}
	if old.Status != domain.TicketStatusClosed {
		t.Fatalf("closed ticket mutated to %s", old.Status)
	}
}

func TestLgpdBlocksNewTickets(t *testing.T) {
	fx := newAssignmentFixture(nil)
	ctx := context.Background()

	first, err := fx.assignment.EnsureTicket(ctx, 9, 42, 7, false)
	if err != nil {
		t.Fatalf("EnsureTicket: %v", err)
	}
	if _, err := fx.tickets.Transition(ctx, first.ID, 42, domain.TicketStatusLgpd, 100, TransitionOptions{}); err != nil {
		t.Fatalf("Transition lgpd: %v", err)
	}

	again, err := fx.assignment.EnsureTicket(ctx, 9, 42, 7, false)
	if err != nil {
		t.Fatalf("EnsureTicket after lgpd: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("lgpd ticket must keep holding the contact, got new ticket %d", again.ID)
	}
}

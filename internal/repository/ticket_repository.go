package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ErrOpenTicketExists is returned by Create when the partial unique index
// (one non-closed ticket per contact per company) rejects the insert. The
// caller re-fetches the winning ticket instead of retrying the insert.
var ErrOpenTicketExists = errors.New("open ticket already exists for contact")

// ErrTicketClaimed is returned by Claim when the compare-and-swap update
// matched no row: the ticket is gone or another agent already owns it.
var ErrTicketClaimed = errors.New("ticket already claimed")

const ticketColumns = `id, uuid, company_id, contact_id, whatsapp_id, queue_id, user_id,
               status, is_group, last_message, unread_messages, created_at, updated_at`

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id, companyID int64) (*domain.Ticket, error)
	// FindOpenByContact returns the single non-closed ticket for the contact,
	// or nil when none exists.
	FindOpenByContact(ctx context.Context, contactID, companyID int64) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, ticket *domain.Ticket) error
	// Claim atomically sets the owner, conditional on user_id IS NULL at
	// write time. Exactly one of several concurrent claims can win.
	Claim(ctx context.Context, id, companyID, userID int64, queueID *int64, status domain.TicketStatus) (*domain.Ticket, error)
	Reassign(ctx context.Context, id, companyID int64, userID, queueID *int64) (*domain.Ticket, error)
	RecordInbound(ctx context.Context, id, companyID int64, body string) (*domain.Ticket, error)
	// ClearUnread zeroes the unread counter when an agent opens the thread.
	ClearUnread(ctx context.Context, id, companyID int64) error
	ListByStatus(ctx context.Context, companyID int64, statuses []domain.TicketStatus, queueIDs []int64) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (uuid, company_id, contact_id, whatsapp_id, queue_id, user_id, status, is_group, last_message, unread_messages)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.UUID,
		ticket.CompanyID,
		ticket.ContactID,
		ticket.WhatsappID,
		ticket.QueueID,
		ticket.UserID,
		ticket.Status,
		ticket.IsGroup,
		ticket.LastMessage,
		ticket.UnreadMessages,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if isUniqueViolation(err, "tickets_one_open_per_contact") {
		return ErrOpenTicketExists
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id, companyID int64) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1 AND company_id=$2`, ticketColumns)
	return r.fetchSingle(ctx, query, id, companyID)
}

func (r *ticketRepository) FindOpenByContact(ctx context.Context, contactID, companyID int64) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE contact_id=$1 AND company_id=$2 AND status <> 'closed'`, ticketColumns)
	ticket, err := r.fetchSingle(ctx, query, contactID, companyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ticket, err
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, user_id=$2, queue_id=$3, updated_at=NOW()
        WHERE id=$4 AND company_id=$5
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.Status,
		ticket.UserID,
		ticket.QueueID,
		ticket.ID,
		ticket.CompanyID,
	).Scan(&ticket.UpdatedAt)
	return err
}

func (r *ticketRepository) Claim(ctx context.Context, id, companyID, userID int64, queueID *int64, status domain.TicketStatus) (*domain.Ticket, error) {
	query := fmt.Sprintf(`
        UPDATE tickets SET user_id=$1, queue_id=COALESCE($2, queue_id), status=$3, updated_at=NOW()
        WHERE id=$4 AND company_id=$5 AND user_id IS NULL AND status='pending'
        RETURNING %s`, ticketColumns)
	ticket, err := r.fetchSingle(ctx, query, userID, queueID, status, id, companyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTicketClaimed
	}
	return ticket, err
}

func (r *ticketRepository) Reassign(ctx context.Context, id, companyID int64, userID, queueID *int64) (*domain.Ticket, error) {
	query := fmt.Sprintf(`
        UPDATE tickets SET user_id=$1, queue_id=$2, updated_at=NOW()
        WHERE id=$3 AND company_id=$4
        RETURNING %s`, ticketColumns)
	return r.fetchSingle(ctx, query, userID, queueID, id, companyID)
}

func (r *ticketRepository) RecordInbound(ctx context.Context, id, companyID int64, body string) (*domain.Ticket, error) {
	// One round trip: bump the ticket and append the message row together.
	query := fmt.Sprintf(`
        WITH updated AS (
            UPDATE tickets SET last_message=$1, unread_messages=unread_messages+1, updated_at=NOW()
            WHERE id=$2 AND company_id=$3
            RETURNING %s
        ), msg AS (
            INSERT INTO messages (id, ticket_id, company_id, contact_id, body, from_me, read)
            SELECT $4, id, company_id, contact_id, $1, FALSE, FALSE FROM updated
        )
        SELECT %s FROM updated`, ticketColumns, ticketColumns)
	return r.fetchSingle(ctx, query, body, id, companyID, uuid.NewString())
}

func (r *ticketRepository) ClearUnread(ctx context.Context, id, companyID int64) error {
	const query = `UPDATE tickets SET unread_messages=0, updated_at=NOW() WHERE id=$1 AND company_id=$2`
	_, err := r.pool.Exec(ctx, query, id, companyID)
	return err
}

func (r *ticketRepository) ListByStatus(ctx context.Context, companyID int64, statuses []domain.TicketStatus, queueIDs []int64) ([]domain.Ticket, error) {
	clauses := []string{"company_id=$1"}
	args := []any{companyID}

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(queueIDs) > 0 {
		placeholders := make([]string, len(queueIDs))
		for i, queueID := range queueIDs {
			args = append(args, queueID)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("queue_id IN (%s)", strings.Join(placeholders, ",")))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC`,
		ticketColumns, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&ticket.ID,
		&ticket.UUID,
		&ticket.CompanyID,
		&ticket.ContactID,
		&ticket.WhatsappID,
		&ticket.QueueID,
		&ticket.UserID,
		&ticket.Status,
		&ticket.IsGroup,
		&ticket.LastMessage,
		&ticket.UnreadMessages,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.UUID,
			&ticket.CompanyID,
			&ticket.ContactID,
			&ticket.WhatsappID,
			&ticket.QueueID,
			&ticket.UserID,
			&ticket.Status,
			&ticket.IsGroup,
			&ticket.LastMessage,
			&ticket.UnreadMessages,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func isUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

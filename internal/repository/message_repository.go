package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const messageColumns = `id, ticket_id, company_id, contact_id, body, from_me, read, created_at`

// MessageRepository encapsulates per-ticket message persistence. Inbound
// rows are written by TicketRepository.RecordInbound in the same statement
// that bumps the ticket.
type MessageRepository interface {
	ListByTicket(ctx context.Context, ticketID, companyID int64, limit int) ([]domain.Message, error)
	MarkRead(ctx context.Context, ticketID, companyID int64) error
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository instantiates repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID, companyID int64, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + messageColumns + `
        FROM messages WHERE ticket_id=$1 AND company_id=$2
        ORDER BY created_at DESC LIMIT $3`
	rows, err := r.pool.Query(ctx, query, ticketID, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.CompanyID,
			&msg.ContactID,
			&msg.Body,
			&msg.FromMe,
			&msg.Read,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *messageRepository) MarkRead(ctx context.Context, ticketID, companyID int64) error {
	const query = `UPDATE messages SET read=TRUE WHERE ticket_id=$1 AND company_id=$2 AND read=FALSE`
	_, err := r.pool.Exec(ctx, query, ticketID, companyID)
	return err
}

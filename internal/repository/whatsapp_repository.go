package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const whatsappColumns = `id, company_id, name, status, is_default, created_at, updated_at`

// WhatsappRepository encapsulates channel connection persistence.
type WhatsappRepository interface {
	GetByID(ctx context.Context, id, companyID int64) (*domain.Whatsapp, error)
	ListAll(ctx context.Context) ([]domain.Whatsapp, error)
	ListByCompany(ctx context.Context, companyID int64) ([]domain.Whatsapp, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ConnectionStatus) error
}

type whatsappRepository struct {
	pool *pgxpool.Pool
}

// NewWhatsappRepository instantiates repository.
func NewWhatsappRepository(pool *pgxpool.Pool) WhatsappRepository {
	return &whatsappRepository{pool: pool}
}

func (r *whatsappRepository) GetByID(ctx context.Context, id, companyID int64) (*domain.Whatsapp, error) {
	query := `SELECT ` + whatsappColumns + ` FROM whatsapps WHERE id=$1 AND company_id=$2`
	var conn domain.Whatsapp
	if err := r.pool.QueryRow(ctx, query, id, companyID).Scan(
		&conn.ID,
		&conn.CompanyID,
		&conn.Name,
		&conn.Status,
		&conn.IsDefault,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *whatsappRepository) ListAll(ctx context.Context) ([]domain.Whatsapp, error) {
	query := `SELECT ` + whatsappColumns + ` FROM whatsapps ORDER BY id`
	return r.list(ctx, query)
}

func (r *whatsappRepository) ListByCompany(ctx context.Context, companyID int64) ([]domain.Whatsapp, error) {
	query := `SELECT ` + whatsappColumns + ` FROM whatsapps WHERE company_id=$1 ORDER BY id`
	return r.list(ctx, query, companyID)
}

func (r *whatsappRepository) UpdateStatus(ctx context.Context, id int64, status domain.ConnectionStatus) error {
	const query = `UPDATE whatsapps SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.pool.Exec(ctx, query, status, id)
	return err
}

func (r *whatsappRepository) list(ctx context.Context, query string, args ...any) ([]domain.Whatsapp, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Whatsapp
	for rows.Next() {
		var conn domain.Whatsapp
		if err := rows.Scan(
			&conn.ID,
			&conn.CompanyID,
			&conn.Name,
			&conn.Status,
			&conn.IsDefault,
			&conn.CreatedAt,
			&conn.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, conn)
	}
	return result, rows.Err()
}

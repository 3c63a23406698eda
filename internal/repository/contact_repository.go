package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ContactRepository encapsulates contact persistence.
type ContactRepository interface {
	// FindOrCreate resolves the canonical contact row for (number, company)
	// in a single atomic statement. Two near-simultaneous inbound events for
	// the same new number must not create two rows. The created flag reports
	// whether this call inserted the row.
	FindOrCreate(ctx context.Context, contact *domain.Contact) (created bool, err error)
	GetByID(ctx context.Context, id, companyID int64) (*domain.Contact, error)
	UpdateName(ctx context.Context, id, companyID int64, name string) error
}

type contactRepository struct {
	pool *pgxpool.Pool
}

// NewContactRepository instantiates repository.
func NewContactRepository(pool *pgxpool.Pool) ContactRepository {
	return &contactRepository{pool: pool}
}

func (r *contactRepository) FindOrCreate(ctx context.Context, contact *domain.Contact) (bool, error) {
	// The no-op DO UPDATE lets RETURNING yield the existing row on conflict;
	// xmax = 0 distinguishes a fresh insert from a conflicting one.
	const query = `
        INSERT INTO contacts (number, name, company_id, is_group, active)
        VALUES ($1, $2, $3, $4, TRUE)
        ON CONFLICT (number, company_id) DO UPDATE SET number = EXCLUDED.number
        RETURNING id, number, name, company_id, is_group, active, created_at, updated_at, (xmax = 0)`
	var created bool
	err := r.pool.QueryRow(ctx, query,
		contact.Number,
		contact.Name,
		contact.CompanyID,
		contact.IsGroup,
	).Scan(
		&contact.ID,
		&contact.Number,
		&contact.Name,
		&contact.CompanyID,
		&contact.IsGroup,
		&contact.Active,
		&contact.CreatedAt,
		&contact.UpdatedAt,
		&created,
	)
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *contactRepository) GetByID(ctx context.Context, id, companyID int64) (*domain.Contact, error) {
	const query = `
        SELECT id, number, name, company_id, is_group, active, created_at, updated_at
        FROM contacts WHERE id=$1 AND company_id=$2`
	var contact domain.Contact
	if err := r.pool.QueryRow(ctx, query, id, companyID).Scan(
		&contact.ID,
		&contact.Number,
		&contact.Name,
		&contact.CompanyID,
		&contact.IsGroup,
		&contact.Active,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepository) UpdateName(ctx context.Context, id, companyID int64, name string) error {
	const query = `UPDATE contacts SET name=$1, updated_at=NOW() WHERE id=$2 AND company_id=$3`
	_, err := r.pool.Exec(ctx, query, name, id, companyID)
	return err
}

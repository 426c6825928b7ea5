package storage

import (
	"context"
	"fmt"

	"shipdocs/internal/models"
)

type SellerRepo struct {
	db        *DB
	addresses *AddressRepo
}

func NewSellerRepo(db *DB) *SellerRepo {
	return &SellerRepo{db: db, addresses: NewAddressRepo(db)}
}

const sellerColumns = `seller_company_id::text, company_name, COALESCE(default_salesperson,''), COALESCE(phone,''), COALESCE(email,''),
       COALESCE(notes,''), is_default, created_at`

func scanSeller(row rowScanner) (models.SellerCompany, error) {
	var s models.SellerCompany
	err := row.Scan(&s.SellerCompanyID, &s.CompanyName, &s.DefaultSalesperson, &s.Phone, &s.Email, &s.Notes, &s.IsDefault, &s.CreatedAt)
	return s, err
}

// Create inserts a seller company. Marking it default clears the flag on
// every other seller in the same transaction.
func (r *SellerRepo) Create(ctx context.Context, s models.SellerCompany) (models.SellerCompany, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return models.SellerCompany{}, fmt.Errorf("begin seller tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if s.IsDefault {
		if _, err := tx.Exec(ctx, `UPDATE seller_companies SET is_default=FALSE WHERE is_default`); err != nil {
			return models.SellerCompany{}, fmt.Errorf("clear default seller: %w", err)
		}
	}
	out, err := scanSeller(tx.QueryRow(ctx, `
INSERT INTO seller_companies (company_name, default_salesperson, phone, email, notes, is_default)
VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), $6)
RETURNING `+sellerColumns,
		s.CompanyName, s.DefaultSalesperson, s.Phone, s.Email, s.Notes, s.IsDefault))
	if err != nil {
		return models.SellerCompany{}, fmt.Errorf("create seller company: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.SellerCompany{}, fmt.Errorf("commit seller tx: %w", err)
	}
	return out, nil
}

// GetDefault returns the default seller with its addresses, falling back to
// the oldest seller when none is flagged.
func (r *SellerRepo) GetDefault(ctx context.Context) (models.SellerCompany, error) {
	s, err := scanSeller(r.db.Pool.QueryRow(ctx, `
SELECT `+sellerColumns+`
FROM seller_companies
ORDER BY is_default DESC, created_at
LIMIT 1`))
	if err != nil {
		return models.SellerCompany{}, notFound("get default seller", err)
	}
	s.Addresses, err = r.addresses.ListBySeller(ctx, s.SellerCompanyID)
	if err != nil {
		return models.SellerCompany{}, err
	}
	return s, nil
}

func (r *SellerRepo) List(ctx context.Context) ([]models.SellerCompany, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+sellerColumns+` FROM seller_companies ORDER BY is_default DESC, company_name`)
	if err != nil {
		return nil, fmt.Errorf("list seller companies: %w", err)
	}
	defer rows.Close()
	out := make([]models.SellerCompany, 0)
	for rows.Next() {
		s, err := scanSeller(rows)
		if err != nil {
			return nil, fmt.Errorf("scan seller company: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seller companies: %w", err)
	}
	return out, nil
}

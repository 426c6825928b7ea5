package storage

import (
	"context"
	"fmt"

	"shipdocs/internal/models"
)

type AddressRepo struct {
	db *DB
}

func NewAddressRepo(db *DB) *AddressRepo {
	return &AddressRepo{db: db}
}

const addressColumns = `address_id::text, name, address, city, state, zip_code, country, COALESCE(phone,''), COALESCE(email,''),
       address_type, COALESCE(account_id::text,''), COALESCE(seller_company_id::text,''), is_default, COALESCE(label,'')`

func scanAddress(row rowScanner) (models.Address, error) {
	var a models.Address
	err := row.Scan(&a.AddressID, &a.Name, &a.Address, &a.City, &a.State, &a.ZipCode, &a.Country, &a.Phone, &a.Email,
		&a.AddressType, &a.AccountID, &a.SellerCompanyID, &a.IsDefault, &a.Label)
	return a, err
}

func (r *AddressRepo) Create(ctx context.Context, a models.Address) (models.Address, error) {
	if a.AddressType == "" {
		a.AddressType = models.AddressTypeShipping
	}
	row := r.db.Pool.QueryRow(ctx, `
INSERT INTO addresses (name, address, city, state, zip_code, country, phone, email, address_type, account_id, seller_company_id, is_default, label)
VALUES ($1, $2, $3, $4, $5, COALESCE(NULLIF($6,''), 'USA'), NULLIF($7,''), NULLIF($8,''), $9,
        NULLIF($10,'')::uuid, NULLIF($11,'')::uuid, $12, NULLIF($13,''))
RETURNING `+addressColumns,
		a.Name, a.Address, a.City, a.State, a.ZipCode, a.Country, a.Phone, a.Email, a.AddressType,
		a.AccountID, a.SellerCompanyID, a.IsDefault, a.Label)
	out, err := scanAddress(row)
	if err != nil {
		return models.Address{}, fmt.Errorf("create address: %w", err)
	}
	return out, nil
}

func (r *AddressRepo) Get(ctx context.Context, addressID string) (models.Address, error) {
	a, err := scanAddress(r.db.Pool.QueryRow(ctx, `SELECT `+addressColumns+` FROM addresses WHERE address_id=$1::uuid`, addressID))
	if err != nil {
		return models.Address{}, notFound("get address", err)
	}
	return a, nil
}

func (r *AddressRepo) ListByAccount(ctx context.Context, accountID string) ([]models.Address, error) {
	return r.list(ctx, `SELECT `+addressColumns+` FROM addresses WHERE account_id=$1::uuid ORDER BY is_default DESC, created_at`, accountID)
}

func (r *AddressRepo) ListBySeller(ctx context.Context, sellerID string) ([]models.Address, error) {
	return r.list(ctx, `SELECT `+addressColumns+` FROM addresses WHERE seller_company_id=$1::uuid ORDER BY is_default DESC, created_at`, sellerID)
}

func (r *AddressRepo) list(ctx context.Context, q string, args ...any) ([]models.Address, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()
	out := make([]models.Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate addresses: %w", err)
	}
	return out, nil
}

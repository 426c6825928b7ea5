package storage

import (
	"context"
	"fmt"
	"time"

	"shipdocs/internal/models"
)

type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

const accountColumns = `account_id::text, company_name, customer_id, default_payment_terms, default_delivery_terms, COALESCE(notes,''), created_at`

func scanAccount(row rowScanner) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.AccountID, &a.CompanyName, &a.CustomerID, &a.DefaultPaymentTerms, &a.DefaultDeliveryTerms, &a.Notes, &a.CreatedAt)
	return a, err
}

func (r *AccountRepo) Create(ctx context.Context, a models.Account) (models.Account, error) {
	row := r.db.Pool.QueryRow(ctx, `
INSERT INTO accounts (account_id, company_name, customer_id, default_payment_terms, default_delivery_terms, notes)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, $3,
        COALESCE(NULLIF($4,''), 'NET 90 DAYS'), COALESCE(NULLIF($5,''), 'Free Carrier DESTINATION'), NULLIF($6,''))
RETURNING `+accountColumns,
		a.AccountID, a.CompanyName, a.CustomerID, a.DefaultPaymentTerms, a.DefaultDeliveryTerms, a.Notes)
	out, err := scanAccount(row)
	if err != nil {
		return models.Account{}, fmt.Errorf("create account: %w", err)
	}
	return out, nil
}

func (r *AccountRepo) Get(ctx context.Context, accountID string) (models.Account, error) {
	a, err := scanAccount(r.db.Pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_id=$1::uuid`, accountID))
	if err != nil {
		return models.Account{}, notFound("get account", err)
	}
	return a, nil
}

func (r *AccountRepo) List(ctx context.Context) ([]models.Account, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY company_name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	out := make([]models.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

// NextBOLNumber returns YYYYMMDD followed by the account's PO count + 1,
// zero-padded to two digits.
func (r *AccountRepo) NextBOLNumber(ctx context.Context, accountID string, now time.Time) (string, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `
SELECT COUNT(*) FROM documents WHERE account_id=NULLIF($1,'')::uuid AND document_type='PO'`, accountID).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("count account purchase orders: %w", err)
	}
	return FormatBOLNumber(now, n+1), nil
}

func FormatBOLNumber(now time.Time, seq int) string {
	return fmt.Sprintf("%s%02d", now.Format("20060102"), seq)
}

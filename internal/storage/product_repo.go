package storage

import (
	"context"
	"fmt"

	"shipdocs/internal/models"
)

type ProductRepo struct {
	db *DB
}

func NewProductRepo(db *DB) *ProductRepo {
	return &ProductRepo{db: db}
}

const productColumns = `product_id::text, name, COALESCE(description,''), COALESCE(item_number,''), COALESCE(un_code,''),
       default_unit_type, default_handling_unit_type, COALESCE(notes,''), created_at`

func scanProduct(row rowScanner) (models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ProductID, &p.Name, &p.Description, &p.ItemNumber, &p.UNCode, &p.DefaultUnitType, &p.DefaultHandlingUnitType, &p.Notes, &p.CreatedAt)
	return p, err
}

func (r *ProductRepo) Create(ctx context.Context, p models.Product) (models.Product, error) {
	out, err := scanProduct(r.db.Pool.QueryRow(ctx, `
INSERT INTO products (name, description, item_number, un_code, default_unit_type, default_handling_unit_type, notes)
VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), COALESCE(NULLIF($5,''), 'kg'), COALESCE(NULLIF($6,''), 'IBC'), NULLIF($7,''))
RETURNING `+productColumns,
		p.Name, p.Description, p.ItemNumber, p.UNCode, p.DefaultUnitType, p.DefaultHandlingUnitType, p.Notes))
	if err != nil {
		return models.Product{}, fmt.Errorf("create product: %w", err)
	}
	return out, nil
}

func (r *ProductRepo) List(ctx context.Context) ([]models.Product, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	out := make([]models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

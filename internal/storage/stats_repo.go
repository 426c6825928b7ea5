package storage

import (
	"context"
	"fmt"

	"shipdocs/internal/models"
)

type StatsRepo struct {
	db *DB
}

func NewStatsRepo(db *DB) *StatsRepo {
	return &StatsRepo{db: db}
}

func (r *StatsRepo) Get(ctx context.Context) (models.Stats, error) {
	var s models.Stats
	err := r.db.Pool.QueryRow(ctx, `
SELECT
  (SELECT COUNT(*) FROM accounts),
  (SELECT COUNT(*) FROM products),
  (SELECT COUNT(*) FROM documents WHERE document_type='PO'),
  (SELECT COUNT(*) FROM documents WHERE document_type='BOL'),
  (SELECT COUNT(*) FROM documents WHERE document_type='PACKING_SLIP'),
  (SELECT COUNT(*) FROM form_schemas),
  (SELECT COUNT(*) FROM seller_companies),
  (SELECT COUNT(*) FROM document_relationships)`).
		Scan(&s.Accounts, &s.Products, &s.PurchaseOrders, &s.BillsOfLading, &s.PackingSlips, &s.FormSchemas, &s.SellerCompanies, &s.GeneratedLinks)
	if err != nil {
		return models.Stats{}, fmt.Errorf("load stats: %w", err)
	}
	return s, nil
}

package api

import (
	"context"

	"shipdocs/internal/models"
	"shipdocs/internal/storage"
)

// StoreCatalog serves the read-only listing endpoints from Postgres.
type StoreCatalog struct {
	Accounts  *storage.AccountRepo
	Addresses *storage.AddressRepo
	Sellers   *storage.SellerRepo
	Products  *storage.ProductRepo
	Counts    *storage.StatsRepo
}

func NewStoreCatalog(db *storage.DB) StoreCatalog {
	return StoreCatalog{
		Accounts:  storage.NewAccountRepo(db),
		Addresses: storage.NewAddressRepo(db),
		Sellers:   storage.NewSellerRepo(db),
		Products:  storage.NewProductRepo(db),
		Counts:    storage.NewStatsRepo(db),
	}
}

func (c StoreCatalog) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return c.Accounts.List(ctx)
}

func (c StoreCatalog) ListAccountAddresses(ctx context.Context, accountID string) ([]models.Address, error) {
	return c.Addresses.ListByAccount(ctx, accountID)
}

func (c StoreCatalog) ListSellers(ctx context.Context) ([]models.SellerCompany, error) {
	return c.Sellers.List(ctx)
}

func (c StoreCatalog) ListProducts(ctx context.Context) ([]models.Product, error) {
	return c.Products.List(ctx)
}

func (c StoreCatalog) Stats(ctx context.Context) (models.Stats, error) {
	return c.Counts.Get(ctx)
}

package documents

import (
	"context"

	"shipdocs/internal/models"
	"shipdocs/internal/storage"
)

type PurchaseOrderView struct {
	PO           models.Document   `json:"po"`
	BOLs         []models.Document `json:"bols"`
	PackingSlips []models.Document `json:"packing_slips"`
}

type AccountView struct {
	Account        models.Account      `json:"account"`
	PurchaseOrders []PurchaseOrderView `json:"purchase_orders"`
	TotalPOs       int                 `json:"total_pos"`
	TotalBOLs      int                 `json:"total_bols"`
	TotalSlips     int                 `json:"total_packing_slips"`
}

// Account lists an account's POs, each with the documents generated from it.
func (s *Service) Account(ctx context.Context, accountID string) (AccountView, error) {
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return AccountView{}, err
	}
	pos, err := s.docs.List(ctx, storage.DocumentFilter{Type: models.DocumentTypePO, AccountID: accountID, Limit: 500})
	if err != nil {
		return AccountView{}, err
	}
	view := AccountView{Account: acct, PurchaseOrders: make([]PurchaseOrderView, 0, len(pos))}
	for _, po := range pos {
		po.ParsedData = nil
		generated, err := s.docs.ListGenerated(ctx, po.DocumentID)
		if err != nil {
			return AccountView{}, err
		}
		pv := PurchaseOrderView{PO: po, BOLs: []models.Document{}, PackingSlips: []models.Document{}}
		for _, d := range generated {
			d.ParsedData = nil
			switch d.DocumentType {
			case models.DocumentTypeBOL:
				pv.BOLs = append(pv.BOLs, d)
			case models.DocumentTypePackingSlip:
				pv.PackingSlips = append(pv.PackingSlips, d)
			}
		}
		view.TotalBOLs += len(pv.BOLs)
		view.TotalSlips += len(pv.PackingSlips)
		view.PurchaseOrders = append(view.PurchaseOrders, pv)
	}
	view.TotalPOs = len(view.PurchaseOrders)
	return view, nil
}

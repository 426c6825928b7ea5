package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"shipdocs/internal/canonical"
	"shipdocs/internal/models"
	"shipdocs/internal/prompts"
	"shipdocs/internal/providers"
	"shipdocs/internal/storage"
	"shipdocs/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReviewResult struct {
	PO            models.Document   `json:"po"`
	BOL           canonical.Payload `json:"bol_data"`
	PackingSlip   canonical.Payload `json:"packing_slip_data"`
	NextBOLNumber string            `json:"next_bol_number,omitempty"`
	// Cached is true when both payloads came from the PO row.
	Cached bool `json:"cached"`
}

// Review returns the BOL and Packing Slip data for a PO, generating and
// caching whichever is missing. Freshly generated data gets the account's
// next BOL number and the default seller's address and salesperson.
func (s *Service) Review(ctx context.Context, poID int, refresh bool) (ReviewResult, error) {
	po, parsed, err := s.purchaseOrder(ctx, poID)
	if err != nil {
		return ReviewResult{}, err
	}
	out := ReviewResult{PO: po}
	if po.AccountID != "" {
		n, err := s.accounts.NextBOLNumber(ctx, po.AccountID, s.now())
		if err != nil {
			return ReviewResult{}, err
		}
		out.NextBOLNumber = n
	}

	if !refresh {
		out.BOL = decodeCached(po.BOLData)
		out.PackingSlip = decodeCached(po.PackingSlipData)
	}
	if out.BOL != nil && out.PackingSlip != nil {
		out.Cached = true
		return out, nil
	}

	seller := s.defaultSeller(ctx)
	if out.BOL == nil {
		if out.BOL, err = s.generateData(ctx, po, parsed, models.DocumentTypeBOL, seller); err != nil {
			return ReviewResult{}, err
		}
		if out.NextBOLNumber != "" {
			out.BOL["bol_number"] = out.NextBOLNumber
		}
	}
	if out.PackingSlip == nil {
		if out.PackingSlip, err = s.generateData(ctx, po, parsed, models.DocumentTypePackingSlip, seller); err != nil {
			return ReviewResult{}, err
		}
	}
	applySellerDefaults(out.BOL, out.PackingSlip, seller)

	if err := s.storeData(ctx, po.DocumentID, out.BOL, out.PackingSlip); err != nil {
		return ReviewResult{}, err
	}
	return out, nil
}

type AddressOverrides struct {
	ShipFromID string `json:"ship_from_address_id,omitempty"`
	ShipToID   string `json:"ship_to_address_id,omitempty"`
	BillToID   string `json:"bill_to_address_id,omitempty"`
}

type PrepareInput struct {
	POID      int              `json:"po_id"`
	Addresses AddressOverrides `json:"addresses"`
	// BOLNumber replaces the generated number when set.
	BOLNumber string `json:"bol_number,omitempty"`
	// BOLData / PackingSlipData, when set, replace the cached review data
	// (the reviewer's edits).
	BOLData         json.RawMessage `json:"bol_data,omitempty"`
	PackingSlipData json.RawMessage `json:"packing_slip_data,omitempty"`
}

type PrepareOutput struct {
	PODocumentID    int             `json:"po_document_id"`
	PODocumentName  string          `json:"po_document_name"`
	AccountID       string          `json:"account_id,omitempty"`
	BOLData         json.RawMessage `json:"bol_data"`
	PackingSlipData json.RawMessage `json:"packing_slip_data"`
}

// Prepare produces the final payloads for rendering: reviewer edits or the
// cached review data (generating when absent), then address and BOL
// number overrides. The result is cached on the PO.
func (s *Service) Prepare(ctx context.Context, in PrepareInput) (PrepareOutput, error) {
	var bolData, psData canonical.Payload
	var err error
	if len(in.BOLData) > 0 {
		if bolData, err = canonical.Decode(in.BOLData); err != nil {
			return PrepareOutput{}, fmt.Errorf("bol data: %w", err)
		}
	}
	if len(in.PackingSlipData) > 0 {
		if psData, err = canonical.Decode(in.PackingSlipData); err != nil {
			return PrepareOutput{}, fmt.Errorf("packing slip data: %w", err)
		}
	}

	review, err := s.Review(ctx, in.POID, false)
	if err != nil {
		return PrepareOutput{}, err
	}
	if bolData == nil {
		bolData = review.BOL
	}
	if psData == nil {
		psData = review.PackingSlip
	}

	for key, id := range map[string]string{"ship_from": in.Addresses.ShipFromID, "ship_to": in.Addresses.ShipToID, "bill_to": in.Addresses.BillToID} {
		if id == "" {
			continue
		}
		addr, err := s.addresses.Get(ctx, id)
		if err != nil {
			return PrepareOutput{}, fmt.Errorf("%s address %s: %w", key, id, err)
		}
		m := addressPayload(addr, "")
		psData[key] = m
		if key != "bill_to" {
			bolData[key] = m.Clone()
		}
	}
	if in.BOLNumber != "" {
		bolData["bol_number"] = in.BOLNumber
	}

	if err := s.storeData(ctx, review.PO.DocumentID, bolData, psData); err != nil {
		return PrepareOutput{}, err
	}
	bolRaw, _ := json.Marshal(bolData)
	psRaw, _ := json.Marshal(psData)
	return PrepareOutput{
		PODocumentID:    review.PO.DocumentID,
		PODocumentName:  review.PO.DocumentName,
		AccountID:       review.PO.AccountID,
		BOLData:         bolRaw,
		PackingSlipData: psRaw,
	}, nil
}

func (s *Service) storeData(ctx context.Context, poID int, bol, ps canonical.Payload) error {
	bolRaw, err := json.Marshal(bol)
	if err != nil {
		return fmt.Errorf("encode bol data: %w", err)
	}
	psRaw, err := json.Marshal(ps)
	if err != nil {
		return fmt.Errorf("encode packing slip data: %w", err)
	}
	return s.docs.StoreGeneratedData(ctx, poID, bolRaw, psRaw)
}

func decodeCached(raw json.RawMessage) canonical.Payload {
	if len(raw) == 0 {
		return nil
	}
	p, err := canonical.Decode(raw)
	if err != nil || len(p) == 0 {
		return nil
	}
	return p
}

func (s *Service) defaultSeller(ctx context.Context) *models.SellerCompany {
	if s.sellers == nil {
		return nil
	}
	seller, err := s.sellers.GetDefault(ctx)
	if err != nil {
		if !errors.Is(err, util.ErrNotFound) {
			s.log.Warn("load default seller company", zap.Error(err))
		}
		return nil
	}
	return &seller
}

func applySellerDefaults(bol, ps canonical.Payload, seller *models.SellerCompany) {
	if seller == nil {
		return
	}
	addr, ok := seller.DefaultAddress()
	if !ok {
		return
	}
	bol["ship_from"] = addressPayload(addr, seller.CompanyName)
	if seller.DefaultSalesperson != "" {
		ps["salesperson"] = seller.DefaultSalesperson
	}
}

// addressPayload renders a stored address in payload shape; the country
// defaults to USA and the name to fallbackName.
func addressPayload(a models.Address, fallbackName string) canonical.Payload {
	m := canonical.Payload(a.Canonical())
	if a.Name == "" && fallbackName != "" {
		m["name"] = fallbackName
	}
	if a.Country == "" {
		m["country"] = "USA"
	}
	if a.Phone != "" {
		m["phone"] = a.Phone
	}
	if a.Email != "" {
		m["email"] = a.Email
	}
	return m
}

func operationFor(t models.DocumentType) string {
	if t == models.DocumentTypePackingSlip {
		return providers.OperationGeneratePackingSlip
	}
	return providers.OperationGenerateBOL
}

// generateData asks the language model for one document's canonical data.
func (s *Service) generateData(ctx context.Context, po models.Document, parsed models.ParsedDocument, t models.DocumentType, seller *models.SellerCompany) (canonical.Payload, error) {
	text := parsed.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("document %d: %w", po.DocumentID, util.ErrNoExtractableText)
	}
	tpl, err := s.prompts.Template(t)
	if err != nil {
		return nil, err
	}
	req := providers.GenerateRequest{
		Operation: operationFor(t),
		System:    prompts.System(prompts.CompanyContext(seller), tpl),
		Prompt:    prompts.User(t, text, s.now()),
		JSON:      true,
	}
	started := time.Now()
	resp, info, attempts, err := s.llm.Generate(ctx, req)
	s.recordAttempts(ctx, po.DocumentID, t, req.Operation, attempts, time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrUpstream, err)
	}
	payload, err := canonical.Decode(stripCodeFence(resp.Text))
	if err != nil {
		s.log.Warn("language model returned malformed JSON",
			zap.String("provider", info.Name),
			zap.String("operation", req.Operation),
			zap.Int("document_id", po.DocumentID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", util.ErrMalformedLLMJSON, info.Name, err)
	}
	s.log.Info("generated document data",
		zap.String("operation", req.Operation),
		zap.String("provider", info.Name),
		zap.String("model", info.Model),
		zap.Int("document_id", po.DocumentID),
		zap.Int("fields", len(payload)))
	return payload, nil
}

func (s *Service) recordAttempts(ctx context.Context, docID int, t models.DocumentType, op string, attempts []providers.Attempt, elapsed time.Duration) {
	if s.audit == nil {
		return
	}
	for i, a := range attempts {
		rec := storage.LLMCallRecord{
			CallID:       uuid.NewString(),
			Operation:    op,
			DocumentID:   docID,
			DocumentType: string(t),
			ProviderName: a.Info.Name,
			Model:        a.Info.Model,
			Status:       "ok",
		}
		if i == len(attempts)-1 {
			rec.LatencyMS = elapsed.Milliseconds()
		}
		if a.Err != nil {
			rec.Status = "error"
			rec.ErrorType = string(providers.ClassifyError(a.Err))
		}
		if err := s.audit.Insert(ctx, rec); err != nil {
			s.log.Warn("record llm call", zap.Error(err))
		}
	}
}

// stripCodeFence removes a ```json ... ``` wrapper some models add even
// in JSON mode.
func stripCodeFence(text string) []byte {
	b := bytes.TrimSpace([]byte(text))
	if !bytes.HasPrefix(b, []byte("```")) {
		return b
	}
	b = bytes.TrimPrefix(b, []byte("```"))
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	}
	b = bytes.TrimSuffix(bytes.TrimSpace(b), []byte("```"))
	return bytes.TrimSpace(b)
}

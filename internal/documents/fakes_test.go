package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"shipdocs/internal/blob"
	"shipdocs/internal/formfill"
	"shipdocs/internal/models"
	"shipdocs/internal/providers"
	"shipdocs/internal/storage"
	"shipdocs/internal/util"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDocs struct {
	mu    sync.Mutex
	docs  map[int]models.Document
	links []models.DocumentRelationship
	next  int
}

func newFakeDocs() *fakeDocs { return &fakeDocs{docs: map[int]models.Document{}} }

func (f *fakeDocs) Create(ctx context.Context, d models.Document) (models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	d.DocumentID = f.next
	f.docs[d.DocumentID] = d
	return d, nil
}

func (f *fakeDocs) Get(ctx context.Context, id int) (models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return models.Document{}, fmt.Errorf("get document: %w", util.ErrNotFound)
	}
	return d, nil
}

func (f *fakeDocs) GetByName(ctx context.Context, name string, t models.DocumentType) (models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.DocumentName == name && d.DocumentType == t {
			return d, nil
		}
	}
	return models.Document{}, fmt.Errorf("get document by name: %w", util.ErrNotFound)
}

func (f *fakeDocs) List(ctx context.Context, flt storage.DocumentFilter) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Document
	for _, d := range f.docs {
		if (flt.Type == "" || d.DocumentType == flt.Type) && (flt.AccountID == "" || d.AccountID == flt.AccountID) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

func (f *fakeDocs) UpdateStatus(ctx context.Context, id int, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.docs[id]
	d.Status = status
	f.docs[id] = d
	return nil
}

func (f *fakeDocs) UpdateParsedData(ctx context.Context, id int, parsed []byte, fileURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.docs[id]
	d.ParsedData = parsed
	d.FileURL = fileURL
	f.docs[id] = d
	return nil
}

func (f *fakeDocs) StoreGeneratedData(ctx context.Context, id int, bol, ps []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.docs[id]
	d.BOLData = bol
	d.PackingSlipData = ps
	f.docs[id] = d
	return nil
}

func (f *fakeDocs) Link(ctx context.Context, rel models.DocumentRelationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, rel)
	return nil
}

func (f *fakeDocs) ListGenerated(ctx context.Context, poID int) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Document
	for _, l := range f.links {
		if l.PODocumentID == poID {
			out = append(out, f.docs[l.GeneratedDocumentID])
		}
	}
	return out, nil
}

type fakeAccounts struct{}

func (fakeAccounts) Get(ctx context.Context, id string) (models.Account, error) {
	if id != "acct-1" {
		return models.Account{}, util.ErrNotFound
	}
	return models.Account{AccountID: id, CompanyName: "Mock Buyer Inc", CustomerID: "CUST-001"}, nil
}

func (fakeAccounts) NextBOLNumber(ctx context.Context, accountID string, now time.Time) (string, error) {
	return storage.FormatBOLNumber(now, 3), nil
}

type fakeAddresses map[string]models.Address

func (f fakeAddresses) Get(ctx context.Context, id string) (models.Address, error) {
	a, ok := f[id]
	if !ok {
		return models.Address{}, util.ErrNotFound
	}
	return a, nil
}

type fakeSellers struct{ seller *models.SellerCompany }

func (f fakeSellers) GetDefault(ctx context.Context) (models.SellerCompany, error) {
	if f.seller == nil {
		return models.SellerCompany{}, util.ErrNotFound
	}
	return *f.seller, nil
}

type savedSchema struct {
	schema      formfill.FormSchema
	fileID      string
	description string
}

type fakeSchemas struct {
	mu    sync.Mutex
	saved map[string]savedSchema
}

func newFakeSchemas() *fakeSchemas { return &fakeSchemas{saved: map[string]savedSchema{}} }

func (f *fakeSchemas) Lookup(ctx context.Context, name string) (formfill.FormSchema, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.saved[name]
	if !ok || len(s.schema) == 0 {
		return nil, false, nil
	}
	return s.schema.Clone(), true, nil
}

func (f *fakeSchemas) Save(ctx context.Context, name string, schema formfill.FormSchema, fileID, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[name] = savedSchema{schema: schema.Clone(), fileID: fileID, description: description}
	return nil
}

type countingLLM struct {
	inner Generator
	calls []providers.GenerateRequest
}

func (c *countingLLM) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, []providers.Attempt, error) {
	c.calls = append(c.calls, req)
	return c.inner.Generate(ctx, req)
}

type textLLM string

func (t textLLM) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, []providers.Attempt, error) {
	info := providers.ProviderInfo{Name: "stub", Model: "stub"}
	return providers.GenerateResponse{Text: string(t)}, info, []providers.Attempt{{Info: info}}, nil
}

type fakeAudit struct{ recs []storage.LLMCallRecord }

func (f *fakeAudit) Insert(ctx context.Context, rec storage.LLMCallRecord) error {
	f.recs = append(f.recs, rec)
	return nil
}

type stubParser struct {
	text  string
	calls int
}

func (p *stubParser) Name() string { return "stub" }

func (p *stubParser) Parse(ctx context.Context, filename string, data []byte) (models.ParsedDocument, error) {
	p.calls++
	if p.text == "" {
		return models.ParsedDocument{}, util.ErrNoExtractableText
	}
	return models.ParsedDocument{JobID: "job", Usage: models.ParseUsage{NumPages: 1}, Chunks: []models.ParsedChunk{{Content: p.text}}}, nil
}

type fakeFiller struct {
	detect formfill.FormSchema
	reqs   []FillRequest
}

func (f *fakeFiller) Fill(ctx context.Context, req FillRequest) (FillResult, error) {
	f.reqs = append(f.reqs, req)
	out := FillResult{Data: []byte("%PDF-filled"), DocumentURL: "https://files/out.pdf", TemplateFileID: "reducto://tpl", Credits: 1}
	if req.Schema == nil {
		out.DetectedSchema = f.detect.Clone()
	}
	return out, nil
}

type harness struct {
	svc     *Service
	docs    *fakeDocs
	schemas *fakeSchemas
	llm     *countingLLM
	audit   *fakeAudit
	parser  *stubParser
	filler  *fakeFiller
	blobs   *blob.LocalStore
	now     time.Time
}

const samplePOText = "PURCHASE ORDER PO-MOCK-1\nShip to Mock Buyer Inc\n2 x NAOH-50"

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, writeFile(dir, "BOL_Template.pdf", []byte("%PDF-bol")))
	require.NoError(t, writeFile(dir, "PackingSlip_Template.pdf", []byte("%PDF-ps")))

	blobs, err := blob.NewLocalStore(t.TempDir(), "http://files.local")
	require.NoError(t, err)

	h := &harness{
		docs:    newFakeDocs(),
		schemas: newFakeSchemas(),
		llm: &countingLLM{inner: providers.NewManagerWith(providers.NamedLLMProvider{
			Ref: providers.ProviderRef{Name: "mock"}, Provider: providers.NewMockProvider(),
		})},
		audit:  &fakeAudit{},
		parser: &stubParser{text: samplePOText},
		filler: &fakeFiller{},
		blobs:  blobs,
		now:    time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC),
	}
	seller := &models.SellerCompany{
		CompanyName:        "Hanson Chemicals",
		DefaultSalesperson: "Pat Lee",
		Addresses: []models.Address{
			{AddressID: "seller-addr", Address: "1 Dock St", City: "Houston", State: "TX", ZipCode: "77001", IsDefault: true},
		},
	}
	h.svc = New(Deps{
		Documents: h.docs,
		Accounts:  fakeAccounts{},
		Addresses: fakeAddresses{
			"dock-2": {AddressID: "dock-2", Name: "Hanson Dock 2", Address: "2 Dock St", City: "Pasadena", State: "TX", ZipCode: "77502", Country: "USA"},
		},
		Sellers:  fakeSellers{seller: seller},
		Schemas:  h.schemas,
		LLM:      h.llm,
		Audit:    h.audit,
		Parser:   h.parser,
		Blobs:    blobs,
		Fillers:  map[string]Filler{".pdf": h.filler, ".XLSX": SheetFiller{}},
		Settings: Settings{TemplatesDir: dir},
		Logger:   zap.NewNop(),
		Now:      func() time.Time { return h.now },
	})
	return h
}

func (h *harness) uploadPO(t *testing.T) models.Document {
	t.Helper()
	res, err := h.svc.ProcessUpload(context.Background(), UploadInput{Filename: "PO 4500123.pdf", Data: []byte("%PDF-po"), AccountID: "acct-1"})
	require.NoError(t, err)
	return res.Document
}

func decodeMap(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func writeFile(dir, name string, data []byte) error {
	return util.WriteFileAtomic(filepath.Join(dir, name), data)
}

// Package documents runs the purchase order pipeline: upload and parse a
// PO, derive BOL and Packing Slip data with the language model, and render
// the filled templates into blob storage.
package documents

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"shipdocs/internal/blob"
	"shipdocs/internal/docparse"
	"shipdocs/internal/formfill"
	"shipdocs/internal/models"
	"shipdocs/internal/prompts"
	"shipdocs/internal/providers"
	"shipdocs/internal/storage"

	"go.uber.org/zap"
)

type DocumentStore interface {
	Create(ctx context.Context, d models.Document) (models.Document, error)
	Get(ctx context.Context, id int) (models.Document, error)
	GetByName(ctx context.Context, name string, docType models.DocumentType) (models.Document, error)
	List(ctx context.Context, f storage.DocumentFilter) ([]models.Document, error)
	UpdateStatus(ctx context.Context, id int, status string) error
	UpdateParsedData(ctx context.Context, id int, parsed []byte, fileURL string) error
	StoreGeneratedData(ctx context.Context, id int, bol, packingSlip []byte) error
	Link(ctx context.Context, rel models.DocumentRelationship) error
	ListGenerated(ctx context.Context, poID int) ([]models.Document, error)
}

type AccountStore interface {
	Get(ctx context.Context, accountID string) (models.Account, error)
	NextBOLNumber(ctx context.Context, accountID string, now time.Time) (string, error)
}

type AddressStore interface {
	Get(ctx context.Context, addressID string) (models.Address, error)
}

type SellerStore interface {
	GetDefault(ctx context.Context) (models.SellerCompany, error)
}

type SchemaCache interface {
	Lookup(ctx context.Context, templateName string) (formfill.FormSchema, bool, error)
	Save(ctx context.Context, templateName string, schema formfill.FormSchema, templateFileID, description string) error
}

// Generator is satisfied by *providers.Manager.
type Generator interface {
	Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, []providers.Attempt, error)
}

type AuditLog interface {
	Insert(ctx context.Context, rec storage.LLMCallRecord) error
}

type Settings struct {
	UploadsBucket       string
	GeneratedBucket     string
	TemplatesDir        string
	BOLTemplate         string
	PackingSlipTemplate string
	SignedURLTTL        time.Duration
}

type Deps struct {
	Documents DocumentStore
	Accounts  AccountStore
	Addresses AddressStore
	Sellers   SellerStore
	Schemas   SchemaCache
	LLM       Generator
	Audit     AuditLog
	Parser    docparse.Parser
	Blobs     blob.Store
	Engine    *formfill.Engine
	Prompts   prompts.Library
	// Fillers are keyed by template extension, e.g. ".pdf", ".xlsx".
	Fillers  map[string]Filler
	Settings Settings
	Logger   *zap.Logger
	Now      func() time.Time
}

type Service struct {
	docs      DocumentStore
	accounts  AccountStore
	addresses AddressStore
	sellers   SellerStore
	schemas   SchemaCache
	llm       Generator
	audit     AuditLog
	parser    docparse.Parser
	blobs     blob.Store
	engine    *formfill.Engine
	prompts   prompts.Library
	fillers   map[string]Filler
	cfg       Settings
	log       *zap.Logger
	now       func() time.Time
}

func New(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	engine := d.Engine
	if engine == nil {
		engine = formfill.NewEngine(nil, log)
	}
	cfg := d.Settings
	if cfg.UploadsBucket == "" {
		cfg.UploadsBucket = "document-uploads"
	}
	if cfg.GeneratedBucket == "" {
		cfg.GeneratedBucket = "generated-documents"
	}
	if cfg.BOLTemplate == "" {
		cfg.BOLTemplate = "BOL_Template.pdf"
	}
	if cfg.PackingSlipTemplate == "" {
		cfg.PackingSlipTemplate = "PackingSlip_Template.pdf"
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}
	fillers := make(map[string]Filler, len(d.Fillers))
	for ext, f := range d.Fillers {
		fillers[strings.ToLower(ext)] = f
	}
	return &Service{
		docs:      d.Documents,
		accounts:  d.Accounts,
		addresses: d.Addresses,
		sellers:   d.Sellers,
		schemas:   d.Schemas,
		llm:       d.LLM,
		audit:     d.Audit,
		parser:    d.Parser,
		blobs:     d.Blobs,
		engine:    engine,
		prompts:   d.Prompts,
		fillers:   fillers,
		cfg:       cfg,
		log:       log,
		now:       now,
	}
}

func (s *Service) Engine() *formfill.Engine { return s.engine }

// TemplateName is the configured template file for a generated type.
func (s *Service) TemplateName(t models.DocumentType) string {
	if t == models.DocumentTypePackingSlip {
		return s.cfg.PackingSlipTemplate
	}
	return s.cfg.BOLTemplate
}

func (s *Service) templatePath(name string) string {
	return filepath.Join(s.cfg.TemplatesDir, filepath.Base(name))
}

package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shipdocs/internal/blob"
	"shipdocs/internal/canonical"
	"shipdocs/internal/formfill"
	"shipdocs/internal/models"

	"go.uber.org/zap"
)

const autoSchemaDescription = "Auto-generated schema from first run"

type RenderInput struct {
	PODocumentID   int                 `json:"po_document_id"`
	PODocumentName string              `json:"po_document_name"`
	AccountID      string              `json:"account_id,omitempty"`
	DocumentType   models.DocumentType `json:"document_type"`
	Data           json.RawMessage     `json:"data"`
	UseSchema      bool                `json:"use_schema"`
}

type RenderOutput struct {
	Document    models.Document `json:"document"`
	UsedSchema  bool            `json:"used_schema"`
	SchemaSaved bool            `json:"schema_saved"`
	Unmatched   []string        `json:"unmatched,omitempty"`
	Credits     float64         `json:"credits"`
}

// Render fills the template for one generated document type, stores the
// file and records it linked to its PO.
func (s *Service) Render(ctx context.Context, in RenderInput) (RenderOutput, error) {
	if in.DocumentType != models.DocumentTypeBOL && in.DocumentType != models.DocumentTypePackingSlip {
		return RenderOutput{}, fmt.Errorf("render: unsupported document type %q", in.DocumentType)
	}
	payload, err := canonical.Decode(in.Data)
	if err != nil {
		return RenderOutput{}, fmt.Errorf("render %s: %w", in.DocumentType, err)
	}
	templateName := s.TemplateName(in.DocumentType)
	ext := strings.ToLower(filepath.Ext(templateName))
	filler, ok := s.fillers[ext]
	if !ok {
		return RenderOutput{}, fmt.Errorf("render: no filler for %s templates", ext)
	}
	template, err := os.ReadFile(s.templatePath(templateName))
	if err != nil {
		return RenderOutput{}, fmt.Errorf("read template %s: %w", templateName, err)
	}

	out := RenderOutput{}
	var schema formfill.FormSchema
	if in.UseSchema {
		schema, out.UsedSchema, err = s.lookupOrDetect(ctx, filler, templateName, template, &out)
		if err != nil {
			return RenderOutput{}, err
		}
	}
	if out.UsedSchema {
		var report formfill.PrefillReport
		schema, report = s.engine.Prefill(in.DocumentType, schema, payload)
		out.Unmatched = report.Unmatched
	}

	res, err := filler.Fill(ctx, FillRequest{
		TemplateName: templateName,
		Template:     template,
		Instructions: s.engine.Instructions(payload),
		Schema:       schema,
	})
	if err != nil {
		return RenderOutput{}, err
	}
	out.Credits = res.Credits
	if in.UseSchema && !out.UsedSchema && len(res.DetectedSchema) > 0 {
		if err := s.schemas.Save(ctx, templateName, res.DetectedSchema, res.TemplateFileID, autoSchemaDescription); err != nil {
			s.log.Warn("save detected form schema", zap.String("template", templateName), zap.Error(err))
		} else {
			out.SchemaSaved = true
		}
	}

	now := s.now()
	name := OutputName(in.DocumentType, in.PODocumentName, now, ext)
	obj, err := s.blobs.Put(ctx, s.cfg.GeneratedBucket, blob.ObjectPath(now, name), res.Data, blob.ContentType(name))
	if err != nil {
		return RenderOutput{}, fmt.Errorf("store %s: %w", name, err)
	}
	doc, err := s.docs.Create(ctx, models.Document{
		DocumentType: in.DocumentType,
		DocumentName: name,
		AccountID:    in.AccountID,
		FilePath:     obj.Path,
		FileURL:      obj.URL,
		ParsedData:   in.Data,
		Status:       models.DocumentStatusGenerated,
	})
	if err != nil {
		return RenderOutput{}, err
	}
	if err := s.docs.Link(ctx, models.DocumentRelationship{
		PODocumentID:        in.PODocumentID,
		GeneratedDocumentID: doc.DocumentID,
		RelationshipType:    string(in.DocumentType),
	}); err != nil {
		return RenderOutput{}, err
	}
	s.log.Info("rendered document",
		zap.String("document_type", string(in.DocumentType)),
		zap.Int("document_id", doc.DocumentID),
		zap.Int("po_document_id", in.PODocumentID),
		zap.Bool("used_schema", out.UsedSchema),
		zap.Int("bytes", len(res.Data)))
	out.Document = doc
	return out, nil
}

// lookupOrDetect loads the cached schema; on a miss, fillers that can
// detect locally produce one, which is saved before filling.
func (s *Service) lookupOrDetect(ctx context.Context, filler Filler, templateName string, template []byte, out *RenderOutput) (formfill.FormSchema, bool, error) {
	schema, found, err := s.schemas.Lookup(ctx, templateName)
	if err != nil {
		return nil, false, err
	}
	if found {
		return schema, true, nil
	}
	det, ok := filler.(SchemaDetector)
	if !ok {
		return nil, false, nil
	}
	schema, err = det.DetectSchema(ctx, template)
	if err != nil {
		return nil, false, err
	}
	if len(schema) == 0 {
		return nil, false, nil
	}
	if err := s.schemas.Save(ctx, templateName, schema, "", autoSchemaDescription); err != nil {
		s.log.Warn("save detected form schema", zap.String("template", templateName), zap.Error(err))
	} else {
		out.SchemaSaved = true
	}
	return schema, true, nil
}

// OutputName is BOL_<po>_<YYYYMMDD_HHMMSS><ext> or PackingSlip_<po>_...,
// where <po> is the PO file name without its extension.
func OutputName(t models.DocumentType, poName string, now time.Time, ext string) string {
	prefix := "BOL"
	if t == models.DocumentTypePackingSlip {
		prefix = "PackingSlip"
	}
	base := strings.TrimSuffix(poName, filepath.Ext(poName))
	if ext == "" {
		ext = ".pdf"
	}
	return fmt.Sprintf("%s_%s_%s%s", prefix, base, now.Format("20060102_150405"), ext)
}

// MarkGenerated moves the PO to the generated status.
func (s *Service) MarkGenerated(ctx context.Context, poID int) error {
	return s.docs.UpdateStatus(ctx, poID, models.DocumentStatusGenerated)
}

// FileURL returns a download link for a stored document.
func (s *Service) FileURL(ctx context.Context, docID int) (string, models.Document, error) {
	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return "", models.Document{}, err
	}
	if doc.FilePath == "" {
		return doc.FileURL, doc, nil
	}
	bucket := s.cfg.GeneratedBucket
	if doc.DocumentType == models.DocumentTypePO {
		bucket = s.cfg.UploadsBucket
	}
	u, err := s.blobs.URL(ctx, bucket, doc.FilePath, s.cfg.SignedURLTTL)
	if err != nil {
		return "", models.Document{}, err
	}
	return u, doc, nil
}

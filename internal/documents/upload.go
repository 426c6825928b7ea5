package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shipdocs/internal/blob"
	"shipdocs/internal/models"
	"shipdocs/internal/util"

	"go.uber.org/zap"
)

type UploadInput struct {
	Filename     string
	Data         []byte
	AccountID    string
	ForceReparse bool
}

type UploadResult struct {
	Document models.Document `json:"document"`
	// Reused is true when an earlier parse of the same file name was
	// returned instead of parsing again.
	Reused bool `json:"reused"`
}

// ProcessUpload stores the PO file, parses it and records it. A PO with the
// same name is returned as-is unless ForceReparse is set, in which case its
// parsed data is replaced.
func (s *Service) ProcessUpload(ctx context.Context, in UploadInput) (UploadResult, error) {
	if len(in.Data) == 0 {
		return UploadResult{}, fmt.Errorf("process upload: empty file")
	}
	name := blob.SecureFilename(in.Filename)

	existing, err := s.docs.GetByName(ctx, name, models.DocumentTypePO)
	switch {
	case err == nil && !in.ForceReparse:
		s.log.Info("purchase order already parsed", zap.Int("document_id", existing.DocumentID), zap.String("name", name))
		return UploadResult{Document: existing, Reused: true}, nil
	case err != nil && !errors.Is(err, util.ErrNotFound):
		return UploadResult{}, fmt.Errorf("process upload: %w", err)
	}
	found := err == nil

	now := s.now()
	objectPath := blob.ObjectPath(now, blob.UploadName(now, name))
	obj, err := s.blobs.Put(ctx, s.cfg.UploadsBucket, objectPath, in.Data, blob.ContentType(name))
	if err != nil {
		return UploadResult{}, fmt.Errorf("store upload: %w", err)
	}

	parsed, err := s.parser.Parse(ctx, name, in.Data)
	if err != nil {
		return UploadResult{}, fmt.Errorf("parse %s: %w", name, err)
	}
	raw, err := json.Marshal(parsed)
	if err != nil {
		return UploadResult{}, fmt.Errorf("encode parsed document: %w", err)
	}

	if found {
		if err := s.docs.UpdateParsedData(ctx, existing.DocumentID, raw, obj.URL); err != nil {
			return UploadResult{}, err
		}
		existing.ParsedData = raw
		existing.FileURL = obj.URL
		s.log.Info("purchase order re-parsed", zap.Int("document_id", existing.DocumentID), zap.Int("chunks", len(parsed.Chunks)))
		return UploadResult{Document: existing}, nil
	}

	doc, err := s.docs.Create(ctx, models.Document{
		DocumentType: models.DocumentTypePO,
		DocumentName: name,
		AccountID:    in.AccountID,
		FilePath:     obj.Path,
		FileURL:      obj.URL,
		ParsedData:   raw,
		Status:       models.DocumentStatusProcessed,
	})
	if err != nil {
		return UploadResult{}, err
	}
	s.log.Info("purchase order parsed",
		zap.Int("document_id", doc.DocumentID),
		zap.String("parser", s.parser.Name()),
		zap.Int("pages", parsed.Usage.NumPages),
		zap.Int("chunks", len(parsed.Chunks)))
	return UploadResult{Document: doc}, nil
}

func (s *Service) purchaseOrder(ctx context.Context, id int) (models.Document, models.ParsedDocument, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return models.Document{}, models.ParsedDocument{}, err
	}
	if doc.DocumentType != models.DocumentTypePO {
		return models.Document{}, models.ParsedDocument{}, fmt.Errorf("document %d: %w", id, util.ErrNoPurchaseOrder)
	}
	var parsed models.ParsedDocument
	if len(doc.ParsedData) > 0 {
		if err := json.Unmarshal(doc.ParsedData, &parsed); err != nil {
			return models.Document{}, models.ParsedDocument{}, fmt.Errorf("decode parsed data for document %d: %w", id, err)
		}
	}
	return doc, parsed, nil
}

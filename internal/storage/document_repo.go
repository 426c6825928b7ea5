package storage

import (
	"context"
	"fmt"
	"strings"

	"shipdocs/internal/models"
)

const maxIDAttempts = 3

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = `document_id, document_type, document_name, COALESCE(account_id::text,''),
       COALESCE(file_path,''), COALESCE(file_url,''), COALESCE(parsed_data::text,''),
       COALESCE(bol_data::text,''), COALESCE(packing_slip_data::text,''), status, created_at, updated_at`

const joinedDocumentColumns = `d.document_id, d.document_type, d.document_name, COALESCE(d.account_id::text,''),
       COALESCE(d.file_path,''), COALESCE(d.file_url,''), COALESCE(d.parsed_data::text,''),
       COALESCE(d.bol_data::text,''), COALESCE(d.packing_slip_data::text,''), d.status, d.created_at, d.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (models.Document, error) {
	var (
		d                         models.Document
		docType                   string
		parsed, bolData, slipData string
	)
	err := row.Scan(&d.DocumentID, &docType, &d.DocumentName, &d.AccountID, &d.FilePath, &d.FileURL,
		&parsed, &bolData, &slipData, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return models.Document{}, err
	}
	d.DocumentType = models.DocumentType(docType)
	d.ParsedData = rawJSON(parsed)
	d.BOLData = rawJSON(bolData)
	d.PackingSlipData = rawJSON(slipData)
	return d, nil
}

// Create inserts a document with the next free document_id (max + 1),
// retrying when a concurrent insert claims the same id.
func (r *DocumentRepo) Create(ctx context.Context, d models.Document) (models.Document, error) {
	if d.Status == "" {
		d.Status = models.DocumentStatusProcessed
	}
	var lastErr error
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		err := r.db.Pool.QueryRow(ctx, `
INSERT INTO documents (document_id, document_type, document_name, account_id, file_path, file_url, parsed_data, status)
SELECT COALESCE(MAX(document_id), 0) + 1, $1, $2, NULLIF($3,'')::uuid, NULLIF($4,''), NULLIF($5,''), $6::jsonb, $7
FROM documents
RETURNING document_id, created_at, updated_at`,
			string(d.DocumentType), d.DocumentName, d.AccountID, d.FilePath, d.FileURL, jsonArg(d.ParsedData), d.Status,
		).Scan(&d.DocumentID, &d.CreatedAt, &d.UpdatedAt)
		if err == nil {
			return d, nil
		}
		if !isUniqueViolation(err) {
			return models.Document{}, fmt.Errorf("create document: %w", err)
		}
		lastErr = err
	}
	return models.Document{}, fmt.Errorf("create document: id allocation kept colliding: %w", lastErr)
}

func (r *DocumentRepo) Get(ctx context.Context, id int) (models.Document, error) {
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE document_id=$1`, id))
	if err != nil {
		return models.Document{}, notFound("get document", err)
	}
	return d, nil
}

// GetByName returns the most recent document with the given name and type.
func (r *DocumentRepo) GetByName(ctx context.Context, name string, docType models.DocumentType) (models.Document, error) {
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE document_name=$1 AND document_type=$2
ORDER BY created_at DESC
LIMIT 1`, name, string(docType)))
	if err != nil {
		return models.Document{}, notFound("get document by name", err)
	}
	return d, nil
}

type DocumentFilter struct {
	Type      models.DocumentType
	AccountID string
	Limit     int
}

func (r *DocumentRepo) List(ctx context.Context, f DocumentFilter) ([]models.Document, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, fmt.Sprintf("document_type=$%d", len(args)))
	}
	if f.AccountID != "" {
		args = append(args, f.AccountID)
		where = append(where, fmt.Sprintf("account_id=$%d::uuid", len(args)))
	}
	if f.Limit <= 0 {
		f.Limit = 100
	}
	args = append(args, f.Limit)
	q := `SELECT ` + documentColumns + ` FROM documents`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(` ORDER BY document_id DESC LIMIT $%d`, len(args))

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	out := make([]models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, id int, status string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE documents SET status=$2, updated_at=NOW() WHERE document_id=$1`, id, status)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("update document status", errNoRows())
	}
	return nil
}

// UpdateParsedData replaces the parse result, e.g. on a forced re-parse.
func (r *DocumentRepo) UpdateParsedData(ctx context.Context, id int, parsed []byte, fileURL string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE documents
SET parsed_data=$2::jsonb, file_url=COALESCE(NULLIF($3,''), file_url), updated_at=NOW()
WHERE document_id=$1`, id, jsonArg(parsed), fileURL)
	if err != nil {
		return fmt.Errorf("update parsed data: %w", err)
	}
	return nil
}

// StoreGeneratedData caches reviewed BOL / Packing Slip payloads on a PO.
// A nil payload leaves the stored value unchanged.
func (r *DocumentRepo) StoreGeneratedData(ctx context.Context, id int, bol, packingSlip []byte) error {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE documents
SET bol_data=COALESCE($2::jsonb, bol_data),
    packing_slip_data=COALESCE($3::jsonb, packing_slip_data),
    updated_at=NOW()
WHERE document_id=$1`, id, jsonArg(bol), jsonArg(packingSlip))
	if err != nil {
		return fmt.Errorf("store generated data: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("store generated data", errNoRows())
	}
	return nil
}

func (r *DocumentRepo) Link(ctx context.Context, rel models.DocumentRelationship) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO document_relationships (po_document_id, generated_document_id, relationship_type)
VALUES ($1, $2, $3)
ON CONFLICT (po_document_id, generated_document_id)
DO UPDATE SET relationship_type = EXCLUDED.relationship_type`,
		rel.PODocumentID, rel.GeneratedDocumentID, rel.RelationshipType)
	if err != nil {
		return fmt.Errorf("link documents: %w", err)
	}
	return nil
}

// ListGenerated returns the documents produced from a PO, newest first.
func (r *DocumentRepo) ListGenerated(ctx context.Context, poID int) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+joinedDocumentColumns+`
FROM document_relationships rel
JOIN documents d ON d.document_id = rel.generated_document_id
WHERE rel.po_document_id=$1
ORDER BY d.document_id DESC`, poID)
	if err != nil {
		return nil, fmt.Errorf("list generated documents: %w", err)
	}
	defer rows.Close()
	out := make([]models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generated document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

package storage

import (
	"context"
	"fmt"
)

type LLMCallRecord struct {
	CallID       string
	Operation    string
	DocumentID   int
	DocumentType string
	ProviderName string
	Model        string
	Status       string
	ErrorType    string
	LatencyMS    int64
}

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

func (r *LLMAuditRepo) Insert(ctx context.Context, rec LLMCallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(call_id, operation, document_id, document_type, provider_name, model, status, error_type, latency_ms)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, NULLIF($3,0), NULLIF($4,''), $5, $6, $7, NULLIF($8,''), $9)`,
		rec.CallID, rec.Operation, rec.DocumentID, rec.DocumentType, rec.ProviderName, rec.Model, rec.Status, rec.ErrorType, rec.LatencyMS)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

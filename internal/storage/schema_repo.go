package storage

import (
	"context"
	"fmt"

	"shipdocs/internal/models"
)

// SchemaRepo stores detected form schemas keyed by template name. Saving an
// existing template overwrites it in place.
type SchemaRepo struct {
	db *DB
}

func NewSchemaRepo(db *DB) *SchemaRepo {
	return &SchemaRepo{db: db}
}

func (r *SchemaRepo) Upsert(ctx context.Context, rec models.FormSchemaRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO form_schemas (template_name, schema, num_fields, template_file_id, description)
VALUES ($1, $2::jsonb, $3, NULLIF($4,''), NULLIF($5,''))
ON CONFLICT (template_name)
DO UPDATE SET
  schema = EXCLUDED.schema,
  num_fields = EXCLUDED.num_fields,
  template_file_id = COALESCE(EXCLUDED.template_file_id, form_schemas.template_file_id),
  description = COALESCE(EXCLUDED.description, form_schemas.description),
  updated_at = NOW()`,
		rec.TemplateName, jsonArg(rec.Schema), rec.NumFields, rec.TemplateFileID, rec.Description)
	if err != nil {
		return fmt.Errorf("upsert form schema: %w", err)
	}
	return nil
}

func (r *SchemaRepo) Get(ctx context.Context, templateName string) (models.FormSchemaRecord, error) {
	var (
		rec    models.FormSchemaRecord
		schema string
	)
	err := r.db.Pool.QueryRow(ctx, `
SELECT template_name, schema::text, num_fields, COALESCE(template_file_id,''), COALESCE(description,''), created_at, updated_at
FROM form_schemas
WHERE template_name=$1`, templateName).
		Scan(&rec.TemplateName, &schema, &rec.NumFields, &rec.TemplateFileID, &rec.Description, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return models.FormSchemaRecord{}, notFound("get form schema", err)
	}
	rec.Schema = rawJSON(schema)
	return rec, nil
}

// List returns schema metadata without the schema bodies.
func (r *SchemaRepo) List(ctx context.Context) ([]models.FormSchemaRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT template_name, num_fields, COALESCE(template_file_id,''), COALESCE(description,''), created_at, updated_at
FROM form_schemas
ORDER BY template_name`)
	if err != nil {
		return nil, fmt.Errorf("list form schemas: %w", err)
	}
	defer rows.Close()
	out := make([]models.FormSchemaRecord, 0)
	for rows.Next() {
		var rec models.FormSchemaRecord
		if err := rows.Scan(&rec.TemplateName, &rec.NumFields, &rec.TemplateFileID, &rec.Description, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan form schema: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate form schemas: %w", err)
	}
	return out, nil
}

func (r *SchemaRepo) Delete(ctx context.Context, templateName string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM form_schemas WHERE template_name=$1`, templateName)
	if err != nil {
		return false, fmt.Errorf("delete form schema: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *SchemaRepo) UpdateDescription(ctx context.Context, templateName, description string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE form_schemas SET description=$2, updated_at=NOW() WHERE template_name=$1`, templateName, description)
	if err != nil {
		return fmt.Errorf("update form schema description: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("update form schema description", errNoRows())
	}
	return nil
}

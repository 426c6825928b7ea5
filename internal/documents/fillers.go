package documents

import (
	"context"
	"fmt"

	"shipdocs/internal/formfill"
	"shipdocs/internal/reducto"
	"shipdocs/internal/sheet"
)

type FillRequest struct {
	TemplateName string
	Template     []byte
	Instructions string
	// Schema is nil when the filler should detect fields itself.
	Schema formfill.FormSchema
}

type FillResult struct {
	Data           []byte
	DocumentURL    string
	TemplateFileID string
	// DetectedSchema is set when the filler detected fields because no
	// schema was supplied.
	DetectedSchema formfill.FormSchema
	Credits        float64
}

// Filler fills a template with data.
type Filler interface {
	Fill(ctx context.Context, req FillRequest) (FillResult, error)
}

// SchemaDetector is implemented by fillers that can list a template's
// fields without filling it.
type SchemaDetector interface {
	DetectSchema(ctx context.Context, template []byte) (formfill.FormSchema, error)
}

// ReductoFiller uploads the template and runs a platform edit on it.
type ReductoFiller struct {
	Client *reducto.Client
	Color  string
}

func (f ReductoFiller) Fill(ctx context.Context, req FillRequest) (FillResult, error) {
	fileID, err := f.Client.Upload(ctx, req.TemplateName, req.Template)
	if err != nil {
		return FillResult{}, fmt.Errorf("upload template %s: %w", req.TemplateName, err)
	}
	opts := reducto.DefaultEditOptions(f.Color)
	res, err := f.Client.Edit(ctx, reducto.EditRequest{
		DocumentURL:      fileID,
		EditInstructions: req.Instructions,
		EditOptions:      &opts,
		FormSchema:       req.Schema,
	})
	if err != nil {
		return FillResult{}, fmt.Errorf("fill template %s: %w", req.TemplateName, err)
	}
	data, err := f.Client.Download(ctx, res.DocumentURL)
	if err != nil {
		return FillResult{}, fmt.Errorf("download filled %s: %w", req.TemplateName, err)
	}
	out := FillResult{Data: data, DocumentURL: res.DocumentURL, TemplateFileID: fileID, Credits: res.Credits}
	if req.Schema == nil {
		out.DetectedSchema = res.FormSchema
	}
	return out, nil
}

// SheetFiller fills workbook templates locally; Instructions are unused
// because every field is filled from the schema.
type SheetFiller struct{}

func (SheetFiller) DetectSchema(ctx context.Context, template []byte) (formfill.FormSchema, error) {
	return sheet.DetectSchema(template)
}

func (SheetFiller) Fill(ctx context.Context, req FillRequest) (FillResult, error) {
	schema := req.Schema
	var detected formfill.FormSchema
	if schema == nil {
		s, err := sheet.DetectSchema(req.Template)
		if err != nil {
			return FillResult{}, err
		}
		schema, detected = s, s
	}
	data, err := sheet.Fill(req.Template, schema)
	if err != nil {
		return FillResult{}, fmt.Errorf("fill workbook %s: %w", req.TemplateName, err)
	}
	return FillResult{Data: data, DetectedSchema: detected}, nil
}

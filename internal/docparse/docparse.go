// Package docparse turns an uploaded purchase order into a ParsedDocument.
package docparse

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"shipdocs/internal/models"
	"shipdocs/internal/reducto"
	"shipdocs/internal/util"

	"github.com/ledongthuc/pdf"
)

type Parser interface {
	Name() string
	Parse(ctx context.Context, filename string, data []byte) (models.ParsedDocument, error)
}

// ReductoParser uploads the file and runs the platform parser on it.
type ReductoParser struct {
	client *reducto.Client
}

func NewReductoParser(c *reducto.Client) *ReductoParser {
	return &ReductoParser{client: c}
}

func (p *ReductoParser) Name() string { return "reducto" }

func (p *ReductoParser) Parse(ctx context.Context, filename string, data []byte) (models.ParsedDocument, error) {
	fileID, err := p.client.Upload(ctx, filename, data)
	if err != nil {
		return models.ParsedDocument{}, fmt.Errorf("upload %s: %w", filename, err)
	}
	doc, err := p.client.Parse(ctx, fileID)
	if err != nil {
		return models.ParsedDocument{}, fmt.Errorf("parse %s: %w", filename, err)
	}
	if strings.TrimSpace(doc.Text()) == "" {
		return models.ParsedDocument{}, util.ErrNoExtractableText
	}
	return doc, nil
}

// PDFTextParser extracts the text layer locally, one chunk per page. It has
// no table detection and suits text-based PDFs.
type PDFTextParser struct{}

func (PDFTextParser) Name() string { return "pdftext" }

func (PDFTextParser) Parse(ctx context.Context, filename string, data []byte) (models.ParsedDocument, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return models.ParsedDocument{}, fmt.Errorf("open pdf %s: %w", filename, err)
	}
	doc := models.ParsedDocument{
		JobID: "local-" + util.SHA256Hex(data)[:12],
		Usage: models.ParseUsage{NumPages: r.NumPage()},
	}
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return models.ParsedDocument{}, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return models.ParsedDocument{}, fmt.Errorf("extract page %d: %w", i, err)
		}
		text = util.SanitizeText(text)
		if text == "" {
			continue
		}
		doc.Chunks = append(doc.Chunks, models.ParsedChunk{
			Content: text,
			Blocks: []models.ParsedBlock{{
				Type:    "Text",
				Content: text,
				BBox:    &models.BBox{Page: i, Width: 1, Height: 1},
			}},
		})
	}
	if len(doc.Chunks) == 0 {
		return models.ParsedDocument{}, util.ErrNoExtractableText
	}
	return doc, nil
}

// New picks a parser by backend name.
func New(backend string, c *reducto.Client) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "reducto":
		if c == nil {
			return nil, fmt.Errorf("reducto parser requires a client")
		}
		return NewReductoParser(c), nil
	case "pdftext":
		return PDFTextParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported parser backend %q", backend)
	}
}

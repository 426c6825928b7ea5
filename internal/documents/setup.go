package documents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shipdocs/internal/canonical"
	"shipdocs/internal/formfill"
	"shipdocs/internal/models"

	"go.uber.org/zap"
)

const setupSchemaDescription = "Generated by setup-schemas with sample instructions"

type SetupResult struct {
	TemplateName string `json:"template_name"`
	NumFields    int    `json:"num_fields"`
	Error        string `json:"error,omitempty"`
}

// SetupSchemas detects and saves the form schema of each configured
// template, replacing any saved copy. One template failing does not stop
// the other.
func (s *Service) SetupSchemas(ctx context.Context) ([]SetupResult, error) {
	var out []SetupResult
	failed := 0
	for _, t := range []models.DocumentType{models.DocumentTypeBOL, models.DocumentTypePackingSlip} {
		name := s.TemplateName(t)
		n, err := s.setupSchema(ctx, t, name)
		res := SetupResult{TemplateName: name, NumFields: n}
		if err != nil {
			failed++
			res.Error = err.Error()
			s.log.Warn("form schema setup failed", zap.String("template", name), zap.Error(err))
		} else {
			s.log.Info("form schema saved", zap.String("template", name), zap.Int("fields", n))
		}
		out = append(out, res)
	}
	if failed == len(out) {
		return out, fmt.Errorf("setup schemas: every template failed")
	}
	return out, nil
}

func (s *Service) setupSchema(ctx context.Context, t models.DocumentType, name string) (int, error) {
	ext := strings.ToLower(filepath.Ext(name))
	filler, ok := s.fillers[ext]
	if !ok {
		return 0, fmt.Errorf("no filler for %s templates", ext)
	}
	template, err := os.ReadFile(s.templatePath(name))
	if err != nil {
		return 0, fmt.Errorf("read template %s: %w", name, err)
	}

	var schema formfill.FormSchema
	var fileID string
	if det, ok := filler.(SchemaDetector); ok {
		schema, err = det.DetectSchema(ctx, template)
	} else {
		var res FillResult
		res, err = filler.Fill(ctx, FillRequest{
			TemplateName: name,
			Template:     template,
			Instructions: s.engine.Instructions(SamplePayload(t)),
		})
		schema, fileID = res.DetectedSchema, res.TemplateFileID
	}
	if err != nil {
		return 0, err
	}
	if len(schema) == 0 {
		return 0, fmt.Errorf("no fields detected in %s", name)
	}
	if err := s.schemas.Save(ctx, name, schema, fileID, setupSchemaDescription); err != nil {
		return 0, err
	}
	return len(schema), nil
}

func sampleAddress(name, street, city, state, zip string) canonical.Payload {
	return canonical.Payload{"name": name, "address": street, "city": city, "state": state, "zip_code": zip, "country": "USA"}
}

// SamplePayload is representative data used to make field detection see
// every section of a template.
func SamplePayload(t models.DocumentType) canonical.Payload {
	shipFrom := sampleAddress("Sample Seller Co", "100 Industrial Pkwy", "Houston", "TX", "77001")
	shipTo := sampleAddress("Sample Buyer Inc", "55 Harbor Rd", "Newark", "NJ", "07101")
	if t == models.DocumentTypePackingSlip {
		return canonical.Payload{
			"date":                  "2024-01-15",
			"customer_id":           "CUST-001",
			"salesperson":           "Pat Lee",
			"order_date":            "2024-01-10",
			"order_number":          "SO-1001",
			"purchase_order_number": "PO-12345",
			"customer_contact":      "Jane Buyer",
			"ship_from":             shipFrom,
			"ship_to":               shipTo,
			"bill_to":               sampleAddress("Sample Buyer Inc AP", "1 Finance Way", "Newark", "NJ", "07102"),
			"items": []any{
				map[string]any{"item_number": "ITEM-1", "description": "Sample product one", "order_qty": 10, "ship_qty": 10},
				map[string]any{"item_number": "ITEM-2", "description": "Sample product two", "order_qty": 5, "ship_qty": 4},
			},
			"total": 14,
		}
	}
	return canonical.Payload{
		"bol_number":   "2024011501",
		"bol_date":     "2024-01-15",
		"carrier_name": "Sample Freight",
		"ship_from":    shipFrom,
		"ship_to":      shipTo,
		"products": []any{
			map[string]any{
				"name": "Sample product one", "description": "Sample description", "item_number": "ITEM-1", "un_code": "UN1824",
				"handling_unit": map[string]any{"quantity": 1, "type": "Pallet"},
				"package":       map[string]any{"quantity": 500, "type": "kg"},
				"weight":        500,
			},
		},
		"orders": []any{
			map[string]any{
				"customer_id": "CUST-001", "po_number": "PO-12345", "sales_order_number": "SO-1001",
				"material_name": "Sample product one", "num_packages": 1, "weight": 500, "weight_unit": "kg",
				"country_of_origin": "USA", "customer_po": "PO-12345", "additional_shipper_info": "Handle with care",
			},
		},
		"special_instructions": "Deliver between 8am and 4pm.",
	}
}

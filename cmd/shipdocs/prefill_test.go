package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"shipdocs/internal/formfill"
	"shipdocs/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const packingSlipJSON = `{
  "customer_id": "CUST-001",
  "order_number": "SO-1001",
  "purchase_order_number": "PO-77",
  "items": [{"item_number": "NAOH-50", "description": "Sodium Hydroxide", "order_qty": 2, "ship_qty": 2}]
}`

func testEngine(t *testing.T) *formfill.Engine {
	t.Helper()
	logger = zap.NewNop()
	return formfill.NewEngine(formfill.DefaultVocabulary(), logger)
}

func TestRunPrefillFillsSchema(t *testing.T) {
	engine := testEngine(t)
	schema := []byte(`[{"description":"ORDER #","value":"","bbox":{"page":1}},{"description":"ITEM # (LINE ITEM) (1st row shown)","value":"old"},{"description":"ITEM # (LINE ITEM) (2nd row shown)","value":"old"}]`)

	var out bytes.Buffer
	require.NoError(t, runPrefill(&out, engine, schema, []byte(packingSlipJSON), "", false))

	var preview struct {
		DocumentType models.DocumentType `json:"document_type"`
		Schema       []map[string]any    `json:"schema"`
		Instructions string              `json:"instructions"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &preview))
	require.Equal(t, models.DocumentTypePackingSlip, preview.DocumentType)
	require.Equal(t, "SO-1001", preview.Schema[0]["value"])
	require.Equal(t, map[string]any{"page": float64(1)}, preview.Schema[0]["bbox"])
	require.Equal(t, "NAOH-50", preview.Schema[1]["value"])
	require.Equal(t, "", preview.Schema[2]["value"])
	require.Contains(t, preview.Instructions, "SO-1001")
}

func TestRunPrefillInstructionsOnly(t *testing.T) {
	engine := testEngine(t)
	var out bytes.Buffer
	require.NoError(t, runPrefill(&out, engine, nil, []byte(`{"bol_number":"2024030701","carrier_name":"Acme Freight"}`), "", true))
	require.Contains(t, out.String(), "Acme Freight")
	require.NotContains(t, out.String(), `"instructions"`)
}

func TestDocTypeFlag(t *testing.T) {
	engine := testEngine(t)
	var out bytes.Buffer
	err := runPrefill(&out, engine, nil, []byte(packingSlipJSON), "invoice", false)
	require.ErrorContains(t, err, "invalid --type")

	require.Error(t, runPrefill(&out, engine, nil, []byte(`[1]`), "", false))
}

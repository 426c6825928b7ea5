package workflows

import (
	"encoding/json"

	"shipdocs/internal/documents"
)

type GenerateInput struct {
	POID      int                        `json:"po_id"`
	Addresses documents.AddressOverrides `json:"addresses"`
	BOLNumber string                     `json:"bol_number,omitempty"`
	// Reviewer edits; empty means use the data cached by review.
	BOLData         json.RawMessage `json:"bol_data,omitempty"`
	PackingSlipData json.RawMessage `json:"packing_slip_data,omitempty"`
	UseSchema       bool            `json:"use_schema"`
}

type GenerateOutput struct {
	PODocumentID int                    `json:"po_document_id"`
	BOL          documents.RenderOutput `json:"bol"`
	PackingSlip  documents.RenderOutput `json:"packing_slip"`
}

type GenerateProgress struct {
	POID        int               `json:"po_id"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	Steps       map[string]string `json:"steps"`
	FailReason  string            `json:"fail_reason,omitempty"`
}

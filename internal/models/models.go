package models

import (
	"encoding/json"
	"strings"
	"time"
)

type DocumentType string

const (
	DocumentTypePO          DocumentType = "PO"
	DocumentTypeBOL         DocumentType = "BOL"
	DocumentTypePackingSlip DocumentType = "PACKING_SLIP"
)

func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypePO, DocumentTypeBOL, DocumentTypePackingSlip:
		return true
	}
	return false
}

const (
	DocumentStatusProcessed = "processed"
	DocumentStatusGenerated = "generated"
)

type Document struct {
	DocumentID      int             `json:"document_id"`
	DocumentType    DocumentType    `json:"document_type"`
	DocumentName    string          `json:"document_name"`
	AccountID       string          `json:"account_id,omitempty"`
	FilePath        string          `json:"file_path,omitempty"`
	FileURL         string          `json:"file_url,omitempty"`
	ParsedData      json.RawMessage `json:"parsed_data,omitempty"`
	BOLData         json.RawMessage `json:"bol_data,omitempty"`
	PackingSlipData json.RawMessage `json:"packing_slip_data,omitempty"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type DocumentRelationship struct {
	PODocumentID        int       `json:"po_document_id"`
	GeneratedDocumentID int       `json:"generated_document_id"`
	RelationshipType    string    `json:"relationship_type"`
	CreatedAt           time.Time `json:"created_at"`
}

type Account struct {
	AccountID            string    `json:"account_id"`
	CompanyName          string    `json:"company_name"`
	CustomerID           string    `json:"customer_id"`
	DefaultPaymentTerms  string    `json:"default_payment_terms"`
	DefaultDeliveryTerms string    `json:"default_delivery_terms"`
	Notes                string    `json:"notes,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

const (
	AddressTypeShipping  = "shipping"
	AddressTypeBilling   = "billing"
	AddressTypeWarehouse = "warehouse"
)

type Address struct {
	AddressID       string `json:"address_id"`
	Name            string `json:"name"`
	Address         string `json:"address"`
	City            string `json:"city"`
	State           string `json:"state"`
	ZipCode         string `json:"zip_code"`
	Country         string `json:"country"`
	Phone           string `json:"phone,omitempty"`
	Email           string `json:"email,omitempty"`
	AddressType     string `json:"address_type"`
	AccountID       string `json:"account_id,omitempty"`
	SellerCompanyID string `json:"seller_company_id,omitempty"`
	IsDefault       bool   `json:"is_default"`
	Label           string `json:"label,omitempty"`
}

// Canonical returns the address in the shape the LLM payload uses.
func (a Address) Canonical() map[string]any {
	return map[string]any{
		"name":     a.Name,
		"address":  a.Address,
		"city":     a.City,
		"state":    a.State,
		"zip_code": a.ZipCode,
		"country":  a.Country,
	}
}

type SellerCompany struct {
	SellerCompanyID    string    `json:"seller_company_id"`
	CompanyName        string    `json:"company_name"`
	DefaultSalesperson string    `json:"default_salesperson,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	Email              string    `json:"email,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	IsDefault          bool      `json:"is_default"`
	Addresses          []Address `json:"addresses,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// DefaultAddress picks the seller's default address, else its first one.
func (s SellerCompany) DefaultAddress() (Address, bool) {
	for _, a := range s.Addresses {
		if a.IsDefault {
			return a, true
		}
	}
	if len(s.Addresses) > 0 {
		return s.Addresses[0], true
	}
	return Address{}, false
}

type Product struct {
	ProductID               string    `json:"product_id"`
	Name                    string    `json:"name"`
	Description             string    `json:"description,omitempty"`
	ItemNumber              string    `json:"item_number,omitempty"`
	UNCode                  string    `json:"un_code,omitempty"`
	DefaultUnitType         string    `json:"default_unit_type"`
	DefaultHandlingUnitType string    `json:"default_handling_unit_type"`
	Notes                   string    `json:"notes,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
}

type FormSchemaRecord struct {
	TemplateName   string          `json:"template_name"`
	Schema         json.RawMessage `json:"schema"`
	NumFields      int             `json:"num_fields"`
	TemplateFileID string          `json:"template_file_id,omitempty"`
	Description    string          `json:"description,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ParsedDocument is the document-parsing result for one uploaded file.
type ParsedDocument struct {
	JobID      string        `json:"job_id"`
	Duration   float64       `json:"duration"`
	Usage      ParseUsage    `json:"usage"`
	Chunks     []ParsedChunk `json:"chunks"`
	StudioLink string        `json:"studio_link,omitempty"`
}

type ParseUsage struct {
	NumPages int     `json:"num_pages"`
	Credits  float64 `json:"credits"`
}

type ParsedChunk struct {
	Content string        `json:"content"`
	Blocks  []ParsedBlock `json:"blocks"`
}

type ParsedBlock struct {
	Type       string `json:"type"`
	Content    string `json:"content"`
	BBox       *BBox  `json:"bbox,omitempty"`
	Confidence string `json:"confidence,omitempty"`
}

type BBox struct {
	Page   int     `json:"page"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Text joins the non-blank chunk contents with blank lines.
func (p ParsedDocument) Text() string {
	out := make([]byte, 0, 1024)
	for _, c := range p.Chunks {
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		if len(out) > 0 {
			out = append(out, "\n\n"...)
		}
		out = append(out, c.Content...)
	}
	return string(out)
}

// Tables returns the blocks typed as tables across all chunks.
func (p ParsedDocument) Tables() []ParsedBlock {
	out := make([]ParsedBlock, 0)
	for _, c := range p.Chunks {
		for _, b := range c.Blocks {
			if b.Type == "Table" {
				out = append(out, b)
			}
		}
	}
	return out
}

type Stats struct {
	Accounts        int `json:"accounts"`
	Products        int `json:"products"`
	PurchaseOrders  int `json:"purchase_orders"`
	BillsOfLading   int `json:"bills_of_lading"`
	PackingSlips    int `json:"packing_slips"`
	FormSchemas     int `json:"form_schemas"`
	SellerCompanies int `json:"seller_companies"`
	GeneratedLinks  int `json:"generated_links"`
}

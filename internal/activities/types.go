package activities

const (
	ErrTypeNotFound          = "NotFound"
	ErrTypeNoPurchaseOrder   = "NoPurchaseOrder"
	ErrTypeNoExtractableText = "NoExtractableText"
	ErrTypeMalformedLLMJSON  = "MalformedLLMJSON"
	ErrTypeUpstream          = "Upstream"
	ErrTypeInternal          = "Internal"
)

type MarkPOGeneratedInput struct {
	PODocumentID int `json:"po_document_id"`
}

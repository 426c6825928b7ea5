package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found in PDF")
	ErrNotFound          = errors.New("not found")

	ErrMalformedLLMJSON = errors.New("language model returned malformed JSON")
	ErrUpstream         = errors.New("upstream service error")
	ErrCircuitOpen      = errors.New("upstream circuit open")
	ErrNoPurchaseOrder  = errors.New("document is not a purchase order")
)

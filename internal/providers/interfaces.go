package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type GenerateRequest struct {
	Operation string `json:"operation"`
	System    string `json:"system"`
	Prompt    string `json:"prompt"`
	// JSON asks the provider to constrain output to a single JSON object.
	JSON bool `json:"json"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

const (
	OperationGenerateBOL         = "generate_bol"
	OperationGeneratePackingSlip = "generate_packing_slip"
)

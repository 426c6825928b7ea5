package providers

import (
	"context"
	_ "embed"
)

var (
	//go:embed mockdata/bol.json
	mockBOL string
	//go:embed mockdata/packing_slip.json
	mockPackingSlip string
)

// MockProvider returns canned documents so the pipeline runs without
// network access.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	switch req.Operation {
	case OperationGenerateBOL:
		return GenerateResponse{Text: mockBOL}, info, nil
	case OperationGeneratePackingSlip:
		return GenerateResponse{Text: mockPackingSlip}, info, nil
	}
	if req.JSON {
		return GenerateResponse{Text: "{}"}, info, nil
	}
	return GenerateResponse{Text: "Mock response."}, info, nil
}

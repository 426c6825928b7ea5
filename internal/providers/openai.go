package providers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// OpenAIProvider uses the chat completions API. BaseURL may point at any
// OpenAI-compatible gateway.
type OpenAIProvider struct {
	keyName string
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenAIProvider(keyName, baseURL string) *OpenAIProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(os.Getenv("SHIPDOCS_OPENAI_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{
		keyName: keyName,
		apiKey:  resolveOpenAIKey(keyName),
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "openai", Model: o.model, Key: o.keyName}
	if o.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("openai key missing for alias %q", o.keyName)
	}
	text, err := chatCompletion(ctx, o.client, o.baseURL+"/chat/completions", o.apiKey, o.model, req)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("openai generate %w", err)
	}
	return GenerateResponse{Text: text}, info, nil
}

func resolveOpenAIKey(alias string) string {
	if alias != "" {
		k := os.Getenv("SHIPDOCS_OPENAI_KEY_" + strings.ToUpper(alias))
		if k != "" {
			return k
		}
	}
	return os.Getenv("OPENAI_API_KEY")
}

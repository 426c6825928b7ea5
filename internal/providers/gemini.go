package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiProvider calls the Gemini API through the genai SDK. The client is
// created on first use so a missing key only fails requests routed here.
type GeminiProvider struct {
	keyName string
	apiKey  string
	model   string

	once   sync.Once
	client *genai.Client
	err    error
}

func NewGeminiProvider(keyName, model string) *GeminiProvider {
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{keyName: keyName, apiKey: resolveGeminiKey(keyName), model: model}
}

func (g *GeminiProvider) init(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		if g.apiKey == "" {
			g.err = fmt.Errorf("gemini key missing for alias %q", g.keyName)
			return
		}
		g.client, g.err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return g.client, g.err
}

func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.model, Key: g.keyName}
	client, err := g.init(ctx)
	if err != nil {
		return GenerateResponse{}, info, err
	}
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("gemini generate request failed: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return GenerateResponse{}, info, fmt.Errorf("gemini returned empty response")
	}
	return GenerateResponse{Text: text}, info, nil
}

func resolveGeminiKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("SHIPDOCS_GEMINI_KEY_" + strings.ToUpper(alias)); v != "" {
			return v
		}
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		return v
	}
	return os.Getenv("GOOGLE_API_KEY")
}

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// OllamaProvider generates locally through Ollama's chat API. The alias in
// "ollama:<model>" selects the model.
type OllamaProvider struct {
	alias   string
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaProvider(alias string) *OllamaProvider {
	baseURL := strings.TrimSpace(os.Getenv("SHIPDOCS_OLLAMA_BASE_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		alias:   alias,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   resolveOllamaModel(alias),
		client:  &http.Client{Timeout: 300 * time.Second},
	}
}

func (o *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.model, Key: o.alias}
	messages := make([]map[string]string, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})
	body := map[string]any{
		"model":    o.model,
		"messages": messages,
		"stream":   false,
	}
	if req.JSON {
		body["format"] = "json"
	}
	payload, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return GenerateResponse{}, info, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("ollama generate request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return GenerateResponse{}, info, fmt.Errorf("ollama generate error %d: %s", resp.StatusCode, string(raw))
	}
	var parsed struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return GenerateResponse{}, info, fmt.Errorf("decode ollama response: %w", err)
	}
	if strings.TrimSpace(parsed.Message.Content) == "" {
		return GenerateResponse{}, info, fmt.Errorf("ollama returned empty message")
	}
	return GenerateResponse{Text: parsed.Message.Content}, info, nil
}

func resolveOllamaModel(alias string) string {
	alias = strings.TrimSpace(alias)
	if alias != "" {
		if v := strings.TrimSpace(os.Getenv("SHIPDOCS_OLLAMA_MODEL_" + sanitizeEnvToken(alias))); v != "" {
			return v
		}
		return alias
	}
	if v := strings.TrimSpace(os.Getenv("SHIPDOCS_OLLAMA_MODEL")); v != "" {
		return v
	}
	return "llama3.1"
}

func sanitizeEnvToken(s string) string {
	s = strings.ToUpper(s)
	return strings.NewReplacer("-", "_", ".", "_", "/", "_", ":", "_").Replace(s)
}

package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"shipdocs/internal/config"
)

type stubProvider struct {
	name  string
	err   error
	text  string
	calls int
}

func (s *stubProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	s.calls++
	info := ProviderInfo{Name: s.name, Model: s.name + "-model"}
	if s.err != nil {
		return GenerateResponse{}, info, s.err
	}
	return GenerateResponse{Text: s.text}, info, nil
}

func TestManagerFallsThroughOnRateLimit(t *testing.T) {
	first := &stubProvider{name: "openai", err: errors.New("openai generate error 429: slow down")}
	second := &stubProvider{name: "groq", text: `{"ok":true}`}
	m := NewManagerWith(
		NamedLLMProvider{Ref: ProviderRef{Name: "openai"}, Provider: first},
		NamedLLMProvider{Ref: ProviderRef{Name: "groq"}, Provider: second},
	)
	resp, info, attempts, err := m.Generate(context.Background(), GenerateRequest{Operation: OperationGenerateBOL, JSON: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Name != "groq" || resp.Text != `{"ok":true}` {
		t.Fatalf("unexpected result: %+v %q", info, resp.Text)
	}
	if len(attempts) != 2 || attempts[0].Err == nil {
		t.Fatalf("expected two attempts, got %+v", attempts)
	}
}

func TestManagerStopsOnPermanentError(t *testing.T) {
	first := &stubProvider{name: "openai", err: errors.New("invalid api key")}
	second := &stubProvider{name: "groq", text: "{}"}
	m := NewManagerWith(
		NamedLLMProvider{Ref: ProviderRef{Name: "openai"}, Provider: first},
		NamedLLMProvider{Ref: ProviderRef{Name: "groq"}, Provider: second},
	)
	_, info, _, err := m.Generate(context.Background(), GenerateRequest{Operation: OperationGenerateBOL})
	if err == nil {
		t.Fatalf("expected error")
	}
	if info.Name != "openai" || second.calls != 0 {
		t.Fatalf("expected to stop at first provider, info=%+v second.calls=%d", info, second.calls)
	}
}

func TestManagerPrefersRealProvidersOverMock(t *testing.T) {
	m, err := NewManager(config.Config{LLMProviders: "mock|ollama:llama3.1"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	order := m.PreferredLLMOrder()
	if len(order) != 2 || order[0] != 1 || order[1] != 0 {
		t.Fatalf("unexpected order: %v", order)
	}
	if _, _, ok := m.FindLLMProviderByName("OLLAMA"); !ok {
		t.Fatalf("expected to find ollama provider")
	}
}

func TestManagerRejectsUnknownProvider(t *testing.T) {
	if _, err := NewManager(config.Config{LLMProviders: "bard"}); err == nil {
		t.Fatalf("expected unsupported provider error")
	}
}

func TestMockProviderReturnsCannedJSON(t *testing.T) {
	p := NewMockProvider()
	for _, op := range []string{OperationGenerateBOL, OperationGeneratePackingSlip} {
		resp, _, err := p.Generate(context.Background(), GenerateRequest{Operation: op, JSON: true})
		if err != nil {
			t.Fatalf("%s: %v", op, err)
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(resp.Text), &m); err != nil {
			t.Fatalf("%s: invalid json: %v", op, err)
		}
	}
}

func TestOpenAIProviderSendsJSONMode(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"bol_number\":\"2024010101\"}"}}]}`))
	}))
	defer srv.Close()

	t.Setenv("OPENAI_API_KEY", "sk-test")
	p := NewOpenAIProvider("", srv.URL+"/v1")
	resp, info, err := p.Generate(context.Background(), GenerateRequest{System: "sys", Prompt: "user", JSON: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if info.Name != "openai" || resp.Text != `{"bol_number":"2024010101"}` {
		t.Fatalf("unexpected response: %+v %q", info, resp.Text)
	}
	rf, _ := body["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", body["response_format"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %v", msgs)
	}
}

func TestOllamaProviderUsesJSONFormat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{}"}}`))
	}))
	defer srv.Close()

	t.Setenv("SHIPDOCS_OLLAMA_BASE_URL", srv.URL)
	p := NewOllamaProvider("qwen2.5")
	if _, info, err := p.Generate(context.Background(), GenerateRequest{Prompt: "x", JSON: true}); err != nil || info.Model != "qwen2.5" {
		t.Fatalf("generate: info=%+v err=%v", info, err)
	}
	if body["format"] != "json" || body["stream"] != false {
		t.Fatalf("unexpected request body: %v", body)
	}
}

func TestGeminiProviderWithoutKeyFails(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	p := NewGeminiProvider("", "")
	if _, _, err := p.Generate(context.Background(), GenerateRequest{Prompt: "x"}); err == nil {
		t.Fatalf("expected missing key error")
	}
}

package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shipdocs/internal/config"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type Manager struct {
	llmProviders []NamedLLMProvider
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: p})
	}
	if len(m.llmProviders) == 0 {
		m.llmProviders = []NamedLLMProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider()}}
	}
	return m, nil
}

// NewManagerWith wires explicit providers, mainly for tests.
func NewManagerWith(providers ...NamedLLMProvider) *Manager {
	return &Manager{llmProviders: providers}
}

func (m *Manager) LLMCount() int {
	return len(m.llmProviders)
}

func (m *Manager) LLMProviderByIndex(i int) (LLMProvider, ProviderRef) {
	if len(m.llmProviders) == 0 {
		return NewMockProvider(), ProviderRef{Raw: "mock", Name: "mock"}
	}
	if i < 0 || i >= len(m.llmProviders) {
		i = 0
	}
	return m.llmProviders[i].Provider, m.llmProviders[i].Ref
}

// PreferredLLMOrder puts real providers ahead of the mock.
func (m *Manager) PreferredLLMOrder() []int {
	n := len(m.llmProviders)
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !strings.EqualFold(m.llmProviders[i].Ref.Name, "mock") {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if strings.EqualFold(m.llmProviders[i].Ref.Name, "mock") {
			out = append(out, i)
		}
	}
	return out
}

func (m *Manager) FindLLMProviderByName(name string) (LLMProvider, ProviderRef, bool) {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return nil, ProviderRef{}, false
	}
	for i := range m.llmProviders {
		if strings.ToLower(m.llmProviders[i].Ref.Name) == target {
			return m.llmProviders[i].Provider, m.llmProviders[i].Ref, true
		}
	}
	return nil, ProviderRef{}, false
}

// Attempt records one provider call made by Generate.
type Attempt struct {
	Info ProviderInfo
	Err  error
}

// Generate tries providers in preferred order. Quota, rate and transient
// failures fall through to the next provider; anything else stops.
func (m *Manager) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, []Attempt, error) {
	order := m.PreferredLLMOrder()
	if len(order) == 0 {
		return GenerateResponse{}, ProviderInfo{}, nil, errors.New("no llm providers configured")
	}
	attempts := make([]Attempt, 0, len(order))
	var lastErr error
	for _, i := range order {
		p, ref := m.LLMProviderByIndex(i)
		resp, info, err := p.Generate(ctx, req)
		if info.Name == "" {
			info.Name = ref.Name
		}
		attempts = append(attempts, Attempt{Info: info, Err: err})
		if err == nil {
			return resp, info, attempts, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		switch ClassifyError(err) {
		case ErrorQuota, ErrorRate, ErrorTransient:
			continue
		}
		break
	}
	last := attempts[len(attempts)-1].Info
	return GenerateResponse{}, last, attempts, fmt.Errorf("generate %s: %w", req.Operation, lastErr)
}

func buildProvider(ref ProviderRef, cfg config.Config) (LLMProvider, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias, cfg.OpenAIBaseURL), nil
	case "ollama":
		return NewOllamaProvider(ref.KeyAlias), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias), nil
	case "gemini":
		return NewGeminiProvider(ref.KeyAlias, cfg.GeminiModel), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}

package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatCompletionRequestsJSONObject(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"bol_number\":\"1\"}"}}]}`))
	}))
	defer srv.Close()

	text, err := chatCompletion(context.Background(), srv.Client(), srv.URL, "sk-test", "m1",
		GenerateRequest{System: "sys", Prompt: "po text", JSON: true})
	require.NoError(t, err)
	require.Equal(t, `{"bol_number":"1"}`, text)
	require.Equal(t, "m1", got["model"])
	require.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	require.Len(t, got["messages"], 2)
}

func TestChatCompletionSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := chatCompletion(context.Background(), srv.Client(), srv.URL, "k", "m", GenerateRequest{Prompt: "x"})
	require.ErrorContains(t, err, "error 429")
	require.Equal(t, ErrorRate, ClassifyError(err))
}

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "json", body["format"])
		require.Equal(t, "qwen2.5", body["model"])
		_, _ = w.Write([]byte(`{"message":{"content":"{}"}}`))
	}))
	defer srv.Close()
	t.Setenv("SHIPDOCS_OLLAMA_BASE_URL", srv.URL+"/")

	resp, info, err := NewOllamaProvider("qwen2.5").Generate(context.Background(), GenerateRequest{Prompt: "x", JSON: true})
	require.NoError(t, err)
	require.Equal(t, "{}", resp.Text)
	require.Equal(t, ProviderInfo{Name: "ollama", Model: "qwen2.5", Key: "qwen2.5"}, info)
}

func TestOllamaModelFromAliasEnv(t *testing.T) {
	t.Setenv("SHIPDOCS_OLLAMA_MODEL_LOCAL_8B", "llama3.1:8b")
	require.Equal(t, "llama3.1:8b", resolveOllamaModel("local-8b"))
	t.Setenv("SHIPDOCS_OLLAMA_MODEL", "")
	require.Equal(t, "llama3.1", resolveOllamaModel(""))
}

func TestGroqKeyResolution(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "fallback")
	t.Setenv("SHIPDOCS_GROQ_KEY_OPS", "scoped")
	require.Equal(t, "scoped", resolveGroqKey("ops"))
	require.Equal(t, "fallback", resolveGroqKey("other"))

	t.Setenv("GROQ_API_KEY", "")
	_, info, err := NewGroqProvider("missing").Generate(context.Background(), GenerateRequest{Prompt: "x"})
	require.Error(t, err)
	require.Equal(t, "groq", info.Name)
}

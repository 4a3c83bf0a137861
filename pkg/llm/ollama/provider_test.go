package ollama

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-notetaking-pipeline/pkg/llm"
	"ai-notetaking-pipeline/pkg/providererr"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaChat(t *testing.T) {
	var got ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &got))
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"{\"ok\":true}"},"done":true}`))
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "llama3")
	out, err := p.Chat(context.Background(), []llm.Message{{Role: "model", Content: "a"}, {Role: "user", Content: "b"}}, llm.WithJSONMode())
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, "json", got.Format)
	assert.Equal(t, "assistant", got.Messages[0].Role)
	assert.Equal(t, "llama3", got.Model)
}

func TestOllamaErrorsAreClassified(t *testing.T) {
	status := http.StatusServiceUnavailable
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("model is loading"))
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "llama3")
	_, err := p.Generate(context.Background(), "hi")
	assert.Equal(t, providererr.KindTransient, providererr.KindOf(err))

	status = http.StatusForbidden
	_, err = p.Generate(context.Background(), "hi")
	assert.True(t, providererr.IsQuota(err))
}

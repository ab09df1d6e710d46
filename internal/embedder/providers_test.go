package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOpenAIWire serves the OpenAI-compatible embeddings wire format used by
// both the Jina and OpenAI providers.
func fakeOpenAIWire(t *testing.T, dimension int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		assert.NotEmpty(t, req.Header.Get("Authorization"))

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))

		type datum struct {
			Embedding []float32 `json:"embedding"`
		}
		resp := struct {
			Data  []datum `json:"data"`
			Model string  `json:"model"`
		}{Model: body.Model}
		for range body.Input {
			vec := make([]float32, dimension)
			for i := range vec {
				vec[i] = 0.5
			}
			resp.Data = append(resp.Data, datum{Embedding: vec})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestJinaGenerateEmbedding(t *testing.T) {
	srv := fakeOpenAIWire(t, 4, nil)
	defer srv.Close()

	p, err := NewJinaProvider("test-key", NewCache(10))
	require.NoError(t, err)
	p.baseURL = srv.URL

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Len(t, emb.Vector, 4)
	assert.Equal(t, ProviderJina, emb.Provider)
}

func TestJinaCachesResults(t *testing.T) {
	var calls atomic.Int32
	srv := fakeOpenAIWire(t, 4, &calls)
	defer srv.Close()

	p, err := NewJinaProvider("test-key", NewCache(10))
	require.NoError(t, err)
	p.baseURL = srv.URL

	ctx := context.Background()
	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "same text"})
	require.NoError(t, err)
	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "same text"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIGenerateBatch(t *testing.T) {
	srv := fakeOpenAIWire(t, 4, nil)
	defer srv.Close()

	p, err := NewOpenAIProvider("test-key", nil)
	require.NoError(t, err)
	p.baseURL = srv.URL

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Len(t, resp.Embeddings, 3)
	assert.Equal(t, ProviderOpenAI, resp.Provider)
}

func TestProviderRequiresKey(t *testing.T) {
	t.Setenv(EnvJinaAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")

	if _, err := NewJinaProvider("", nil); err == nil {
		t.Error("expected error for missing jina key")
	}
	if _, err := NewOpenAIProvider("", nil); err == nil {
		t.Error("expected error for missing openai key")
	}
}

func TestOllamaGenerateEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/api/embed", req.URL.Path)
		var body ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		resp := ollamaEmbedResponse{}
		for range body.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2, 0.3})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(srv.URL, "test-model", NewCache(10))
	require.NoError(t, err)

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Len(t, emb.Vector, 3)
	assert.Equal(t, ProviderOllama, emb.Provider)
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(srv.URL, "test-model", nil)
	require.NoError(t, err)

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	assert.Error(t, err)
}

func TestGenerateEmbeddingEmptyText(t *testing.T) {
	p, err := NewOllamaProvider("http://localhost:1", "m", nil)
	require.NoError(t, err)
	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{})
	assert.ErrorIs(t, err, ErrEmptyText)
}

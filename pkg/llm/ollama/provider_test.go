package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(baseURL string) *Provider {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.MaxRetries = 0
	cfg.Timeout = 5 * time.Second
	return NewProviderWithConfig(cfg)
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []string{"hello", "world"}, req.Input)

		json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	embeddings, err := p.Embed(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2}, embeddings[0])
	assert.Equal(t, []float32{0.3, 0.4}, embeddings[1])
}

func TestEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{0.1}},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestEmbedEmptyInput(t *testing.T) {
	p := newTestProvider("http://127.0.0.1:1")
	embeddings, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
}

func TestEmbedSingle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{0.5, 0.6}},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	embedding, err := p.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.6}, embedding)
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "be brief", req.System)

		json.NewEncoder(w).Encode(generateResponse{
			Response: "Paris is the capital of France.",
			Done:     true,
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	answer, err := p.Generate(context.Background(), "capital of France?", "be brief")
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", answer)
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.Generate(context.Background(), "q", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestGenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		flusher := w.(http.Flusher)
		enc := json.NewEncoder(w)
		for _, frag := range []string{"The ", "capital ", "is ", "Paris."} {
			enc.Encode(generateResponse{Response: frag})
			flusher.Flush()
		}
		enc.Encode(generateResponse{Done: true})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	fragments, errs, err := p.GenerateStream(context.Background(), "capital of France?", "")
	require.NoError(t, err)

	var got []string
	for frag := range fragments {
		got = append(got, frag)
	}
	assert.Equal(t, []string{"The ", "capital ", "is ", "Paris."}, got)
	assert.NoError(t, <-errs)
}

func TestGenerateStreamCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		enc := json.NewEncoder(w)
		enc.Encode(generateResponse{Response: "first"})
		flusher.Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	p := newTestProvider(srv.URL)
	fragments, _, err := p.GenerateStream(ctx, "q", "")
	require.NoError(t, err)

	frag, ok := <-fragments
	require.True(t, ok)
	assert.Equal(t, "first", frag)

	cancel()

	select {
	case _, ok := <-fragments:
		assert.False(t, ok, "fragment channel must close after cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("fragment channel did not close after cancellation")
	}
}

func TestGenerateStreamBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, _, err := p.GenerateStream(context.Background(), "q", "")
	assert.Error(t, err)
}

func TestDoRequestWithRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			// Drop the connection so the client sees a transport error.
			hj := w.(http.Hijacker)
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "ok", Done: true})
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.MaxRetries = 3
	p := NewProviderWithConfig(cfg)

	answer, err := p.Generate(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models":[]}`)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	assert.NoError(t, p.Ping(context.Background()))
}

func TestPingUnreachable(t *testing.T) {
	p := newTestProvider("http://127.0.0.1:1")
	assert.Error(t, p.Ping(context.Background()))
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"llama3.1:8b"},{"name":"nomic-embed-text"}]}`)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.1:8b", "nomic-embed-text"}, models)
}

func TestNewProviderConfigMap(t *testing.T) {
	prov, err := NewProvider(map[string]any{
		"base_url":    "http://example:11434",
		"embed_model": "custom-embed",
		"chat_model":  "custom-chat",
		"max_retries": 5,
	})
	require.NoError(t, err)

	p := prov.(*Provider)
	assert.Equal(t, "http://example:11434", p.config.BaseURL)
	assert.Equal(t, "custom-embed", p.config.EmbedModel)
	assert.Equal(t, "custom-chat", p.config.ChatModel)
	assert.Equal(t, 5, p.config.MaxRetries)
	assert.Equal(t, ProviderName, p.Name())
}

package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
)

type embeddingRequestBody struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func newEmbeddingServer(t *testing.T, requests *[][]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("Expected path /embeddings, got %s", r.URL.Path)
		}

		var body embeddingRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Decode request: %v", err)
		}
		*requests = append(*requests, body.Input)

		resp := openai.EmbeddingResponse{
			Object: "list",
			Model:  openai.EmbeddingModel(body.Model),
		}
		for i := range body.Input {
			resp.Data = append(resp.Data, openai.Embedding{
				Object:    "embedding",
				Index:     i,
				Embedding: []float32{float32(i), 1},
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIProvider_Embed(t *testing.T) {
	var requests [][]string
	server := newEmbeddingServer(t, &requests)
	defer server.Close()

	provider, err := NewOpenAIProvider("test-key", server.URL, "", 0)
	if err != nil {
		t.Fatalf("NewOpenAIProvider failed: %v", err)
	}

	texts := []string{"alpha", "beta", "gamma"}
	vectors, err := provider.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(vectors) != 3 {
		t.Fatalf("Expected 3 vectors, got %d", len(vectors))
	}
	if len(requests) != 1 {
		t.Errorf("Expected one batched request, got %d", len(requests))
	}
	if vectors[2][0] != 2 {
		t.Errorf("Vectors out of order: %v", vectors)
	}
}

func TestOpenAIProvider_Embed_Chunking(t *testing.T) {
	var requests [][]string
	server := newEmbeddingServer(t, &requests)
	defer server.Close()

	provider, err := NewOpenAIProvider("test-key", server.URL, "", 2)
	if err != nil {
		t.Fatalf("NewOpenAIProvider failed: %v", err)
	}

	texts := []string{"a", "b", "c", "d", "e"}
	vectors, err := provider.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(vectors) != 5 {
		t.Fatalf("Expected 5 vectors, got %d", len(vectors))
	}
	if len(requests) != 3 {
		t.Errorf("Expected 3 chunked requests for batch size 2, got %d", len(requests))
	}
	// Order across chunk boundaries must be preserved: each chunk restarts
	// its index at 0
	if vectors[0][0] != 0 || vectors[1][0] != 1 || vectors[2][0] != 0 || vectors[4][0] != 0 {
		t.Errorf("Chunked vectors out of order: %v", vectors)
	}
}

func TestOpenAIProvider_Embed_Empty(t *testing.T) {
	var requests [][]string
	server := newEmbeddingServer(t, &requests)
	defer server.Close()

	provider, err := NewOpenAIProvider("test-key", server.URL, "", 0)
	if err != nil {
		t.Fatalf("NewOpenAIProvider failed: %v", err)
	}

	vectors, err := provider.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if vectors != nil {
		t.Errorf("Expected nil vectors for empty input, got %v", vectors)
	}
	if len(requests) != 0 {
		t.Errorf("Expected no requests for empty input, got %d", len(requests))
	}
}

func TestOpenAIProvider_Embed_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded"}}`))
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider("test-key", server.URL, "", 0)
	if err != nil {
		t.Fatalf("NewOpenAIProvider failed: %v", err)
	}

	if _, err := provider.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("Expected provider error to propagate")
	}
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider("", "", "", 0); err == nil {
		t.Fatal("Expected error for missing API key")
	}
}

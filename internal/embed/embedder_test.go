package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apca/claimaudit/internal/model"
)

func TestNewOpenAIEmbedderValidation(t *testing.T) {
	_, err := NewOpenAIEmbedder(model.EmbeddingConfig{Model: "text-embedding-3-small", Dimension: 384})
	if err == nil {
		t.Error("Expected error for missing API key")
	}

	_, err = NewOpenAIEmbedder(model.EmbeddingConfig{Model: "text-embedding-3-small", APIKey: "key", Dimension: 0})
	if err == nil {
		t.Error("Expected error for non-positive dimension")
	}
}

func TestOpenAIEmbedderEmbedDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			t.Errorf("Expected embeddings path, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Expected Bearer test-key, got %s", auth)
		}

		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions int      `json:"dimensions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Dimensions != 3 {
			t.Errorf("Expected dimensions 3, got %d", req.Dimensions)
		}

		type datum struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]datum, len(req.Input))
		for i := range req.Input {
			data[i] = datum{Object: "embedding", Embedding: []float32{float32(i), 1, 0}, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		}); err != nil {
			t.Fatalf("Failed to encode response: %v", err)
		}
	}))
	defer server.Close()

	embedder, err := NewOpenAIEmbedder(model.EmbeddingConfig{
		Model:     "text-embedding-3-small",
		APIKey:    "test-key",
		BaseURL:   server.URL,
		Dimension: 3,
		Timeout:   5,
	})
	if err != nil {
		t.Fatalf("Failed to create embedder: %v", err)
	}

	vectors, err := embedder.EmbedDocuments(context.Background(), []string{"first chunk", "second chunk"})
	if err != nil {
		t.Fatalf("EmbedDocuments failed: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("Expected 2 vectors, got %d", len(vectors))
	}
	if vectors[1][0] != 1 {
		t.Errorf("Expected vectors in input order, got %v", vectors[1])
	}
	if embedder.Dimension() != 3 {
		t.Errorf("Expected dimension 3, got %d", embedder.Dimension())
	}
}

package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, req map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	if _, err := New("", "all-minilm"); err == nil {
		t.Error("expected error for empty base url")
	}
	if _, err := New("http://localhost:11434", ""); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestEmbed(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, func(w http.ResponseWriter, req map[string]any) {
		if got := req["model"]; got != "all-minilm" {
			t.Errorf("model = %v, want all-minilm", got)
		}
		if got := req["input"]; got != "open chrome" {
			t.Errorf("input = %v, want open chrome", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	})

	p, err := New(srv.URL, "all-minilm")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vec, err := p.Embed(context.Background(), "open chrome")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("len(vec) = %d, want 3", len(vec))
	}
}

func TestEmbedBatch(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, func(w http.ResponseWriter, req map[string]any) {
		inputs, ok := req["input"].([]any)
		if !ok || len(inputs) != 2 {
			t.Errorf("input = %v, want 2 strings", req["input"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{1, 0}, {0, 1}},
		})
	})

	p, err := New(srv.URL, "all-minilm")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vecs, err := p.EmbedBatch(context.Background(), []string{"close tab", "new tab"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("len(vecs) = %d, want 2", len(vecs))
	}
}

func TestEmbedBatchLengthMismatch(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, func(w http.ResponseWriter, _ map[string]any) {
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{1, 0}},
		})
	})

	p, err := New(srv.URL, "all-minilm")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected error on embedding count mismatch")
	}
}

func TestEmbedServerError(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, func(w http.ResponseWriter, _ map[string]any) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	p, err := New(srv.URL, "all-minilm")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error on non-200 status")
	}
}

func TestDimensions(t *testing.T) {
	t.Parallel()

	t.Run("known model", func(t *testing.T) {
		t.Parallel()
		p, err := New("http://localhost:11434", "nomic-embed-text:latest")
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if got := p.Dimensions(); got != 768 {
			t.Errorf("Dimensions() = %d, want 768", got)
		}
	})

	t.Run("fixed via option", func(t *testing.T) {
		t.Parallel()
		p, err := New("http://localhost:11434", "custom-model", WithDimensions(512))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if got := p.Dimensions(); got != 512 {
			t.Errorf("Dimensions() = %d, want 512", got)
		}
	})

	t.Run("probed", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t, func(w http.ResponseWriter, _ map[string]any) {
			json.NewEncoder(w).Encode(map[string]any{
				"embeddings": [][]float32{{0, 0, 0, 0}},
			})
		})
		p, err := New(srv.URL, "custom-model")
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if got := p.Dimensions(); got != 4 {
			t.Errorf("Dimensions() = %d, want 4", got)
		}
	})
}

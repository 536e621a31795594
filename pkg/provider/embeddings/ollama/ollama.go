// Package ollama implements embeddings.Provider against a local Ollama
// server's /api/embed endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/varnahq/varna/pkg/provider/embeddings"
)

// Provider embeds text through a running Ollama instance. No API key is
// needed; the server must have the model pulled already.
type Provider struct {
	baseURL string
	model   string
	client  *http.Client

	detectOnce sync.Once
	dimensions int
}

var _ embeddings.Provider = (*Provider)(nil)

// Option customizes Provider construction.
type Option func(*Provider)

// WithTimeout sets the HTTP client timeout. Defaults to 60s; local models
// can be slow on first load.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.client.Timeout = d
	}
}

// WithDimensions fixes the vector dimensionality up front, skipping the
// probe request that Dimensions otherwise performs for unknown models.
func WithDimensions(n int) Option {
	return func(p *Provider) {
		p.dimensions = n
	}
}

// New creates a Provider talking to an Ollama server at baseURL
// (e.g. "http://localhost:11434").
func New(baseURL, model string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("ollama: base url must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("ollama: model must not be empty")
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		client:     &http.Client{Timeout: 60 * time.Second},
		dimensions: knownDimensions(model),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type embedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("ollama: embed: expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := p.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("ollama: embed batch: expected %d embeddings, got %d", len(texts), len(vecs))
	}
	return vecs, nil
}

func (p *Provider) embed(ctx context.Context, input any) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: p.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: request: unexpected status %s", resp.Status)
	}
	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	return er.Embeddings, nil
}

// Dimensions implements embeddings.Provider. For models not in the built-in
// table it probes the server once with a short input and caches the result;
// if the probe fails it returns 0 and will retry on the next call only if
// the probe never ran.
func (p *Provider) Dimensions() int {
	if p.dimensions > 0 {
		return p.dimensions
	}
	p.detectOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		vec, err := p.Embed(ctx, "dimension probe")
		if err == nil {
			p.dimensions = len(vec)
		}
	})
	return p.dimensions
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	return p.model
}

func knownDimensions(model string) int {
	// Tags like ":latest" do not change the vector size.
	name, _, _ := strings.Cut(model, ":")
	switch name {
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	default:
		return 0
	}
}

// Package mock provides a call-recording embeddings.Provider for tests.
package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/varnahq/varna/pkg/provider/embeddings"
)

// Provider is a test double. Zero value is usable: unless fixed results are
// set it returns deterministic vectors derived from the input text, so equal
// texts always embed identically and different texts almost never do.
type Provider struct {
	mu sync.Mutex

	// EmbedResult, when non-nil, is returned by every Embed call.
	EmbedResult []float32
	// EmbedBatchResult, when non-nil, is returned by every EmbedBatch call.
	EmbedBatchResult [][]float32
	// EmbedErr, when non-nil, is returned by Embed and EmbedBatch.
	EmbedErr error
	// Dims is the reported dimensionality. Defaults to 8.
	Dims int
	// Model is the reported model ID. Defaults to "mock".
	Model string

	// EmbedCalls records every text passed to Embed.
	EmbedCalls []string
	// EmbedBatchCalls records every slice passed to EmbedBatch.
	EmbedBatchCalls [][]string
}

var _ embeddings.Provider = (*Provider)(nil)

// Embed implements embeddings.Provider.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, text)
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	if p.EmbedResult != nil {
		return p.EmbedResult, nil
	}
	return p.synthesize(text), nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, append([]string(nil), texts...))
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	if p.EmbedBatchResult != nil {
		return p.EmbedBatchResult, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.synthesize(t)
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.Dims > 0 {
		return p.Dims
	}
	return 8
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	if p.Model != "" {
		return p.Model
	}
	return "mock"
}

// Reset clears recorded calls and fixed results.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedResult = nil
	p.EmbedBatchResult = nil
	p.EmbedErr = nil
	p.EmbedCalls = nil
	p.EmbedBatchCalls = nil
}

// synthesize derives a unit-norm-ish vector from the text hash. Callers
// holding p.mu only; no shared state touched.
func (p *Provider) synthesize(text string) []float32 {
	dims := p.Dims
	if dims <= 0 {
		dims = 8
	}
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	vec := make([]float32, dims)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>32)) / float32(1<<31)
	}
	return vec
}

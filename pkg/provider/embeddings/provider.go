// Package embeddings defines the Provider interface for vector embedding
// backends.
//
// The semantic matcher uses embeddings to recognise paraphrased commands:
// "launch the web browser" lands near "open chrome" in vector space even
// though the strings share almost nothing. A Provider wraps whatever service
// computes those vectors — a hosted API or a local model server.
//
// The backend is optional by design: when no Provider can be constructed the
// assistant falls back to its literal, fuzzy, and phonetic matchers. Callers
// therefore treat construction errors as a degradation, not a failure.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over a text-embedding backend.
//
// All vectors returned by one Provider instance share the dimensionality
// reported by Dimensions. Vectors from different Provider instances must not
// be mixed in a similarity computation unless both use the same model.
type Provider interface {
	// Embed computes the embedding vector for a single text. The returned
	// slice has length Dimensions(). Text is passed to the backend verbatim;
	// any model-specific prompt formatting is the caller's responsibility.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes vectors for a slice of texts in one backend call,
	// which is far cheaper than looping over Embed. The result is ordered
	// identically to texts. On error the entire result is nil — partial
	// results are never returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length produced by this provider,
	// constant for the provider's lifetime.
	Dimensions() int

	// ModelID returns the backend-specific model identifier, for logging and
	// for keying persisted vectors to the model that produced them.
	ModelID() string
}

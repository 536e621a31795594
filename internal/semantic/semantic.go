// Package semantic scores utterances against command phrases by cosine
// similarity of embedding vectors, so paraphrases like "launch the web
// browser" can match "open chrome".
//
// The matcher degrades gracefully: if the embedding backend errors, the
// matcher latches unavailable and every subsequent Score returns 0 without
// touching the network. The rest of the matching stack keeps working.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/varnahq/varna/pkg/provider/embeddings"
)

// ErrUnavailable is returned once the embedding backend has failed and the
// matcher has latched into its disabled state.
var ErrUnavailable = errors.New("semantic: embedding backend unavailable")

// VectorStore persists candidate phrase vectors across restarts so that a
// stable catalog never needs re-embedding. Implementations must key vectors
// by the model that produced them; vectors from different models are not
// comparable.
type VectorStore interface {
	// Load returns the stored vectors for the given phrases, keyed by phrase.
	// Phrases with no stored vector are simply absent from the result.
	Load(ctx context.Context, modelID string, phrases []string) (map[string][]float32, error)

	// Save upserts the given vectors under modelID.
	Save(ctx context.Context, modelID string, vectors map[string][]float32) error
}

// Scored pairs a candidate phrase with its similarity to the query.
type Scored struct {
	Phrase string
	Score  float64
}

const (
	defaultChunkSize  = 64
	maxQueryCacheSize = 256
)

// Option customizes Matcher construction.
type Option func(*Matcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(m *Matcher) {
		m.log = log
	}
}

// WithStore attaches a persistent vector store. Without one, candidate
// vectors live only in memory and are re-embedded on every start.
func WithStore(store VectorStore) Option {
	return func(m *Matcher) {
		m.store = store
	}
}

// WithChunkSize sets how many phrases go into one batch embedding request
// during precomputation. Values < 1 are ignored.
func WithChunkSize(n int) Option {
	return func(m *Matcher) {
		if n >= 1 {
			m.chunkSize = n
		}
	}
}

// Matcher holds precomputed candidate vectors and a small cache of query
// vectors. Safe for concurrent use.
type Matcher struct {
	provider  embeddings.Provider
	store     VectorStore
	log       *slog.Logger
	chunkSize int

	unavailable atomic.Bool
	failOnce    sync.Once

	mu         sync.RWMutex
	candidates map[string][]float32
	queries    map[string][]float32
}

// New creates a Matcher on top of the given embedding provider.
func New(provider embeddings.Provider, opts ...Option) (*Matcher, error) {
	if provider == nil {
		return nil, errors.New("semantic: provider must not be nil")
	}
	m := &Matcher{
		provider:   provider,
		log:        slog.Default(),
		chunkSize:  defaultChunkSize,
		candidates: make(map[string][]float32),
		queries:    make(map[string][]float32),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Available reports whether the embedding backend is still usable.
func (m *Matcher) Available() bool {
	return !m.unavailable.Load()
}

// PrecomputeCandidates embeds every phrase not already cached, loading from
// the vector store first when one is attached. Missing phrases are embedded
// in chunks of the configured size, concurrently, and newly computed vectors
// are written back to the store best-effort.
func (m *Matcher) PrecomputeCandidates(ctx context.Context, phrases []string) error {
	if m.unavailable.Load() {
		return ErrUnavailable
	}

	missing := m.missingPhrases(phrases)
	if len(missing) == 0 {
		return nil
	}

	if m.store != nil {
		stored, err := m.store.Load(ctx, m.provider.ModelID(), missing)
		if err != nil {
			m.log.Warn("semantic: vector store load failed, embedding from scratch", "error", err)
		} else if len(stored) > 0 {
			m.mu.Lock()
			for phrase, vec := range stored {
				m.candidates[phrase] = vec
			}
			m.mu.Unlock()
			missing = m.missingPhrases(phrases)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	fresh := make(map[string][]float32, len(missing))
	var freshMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for start := 0; start < len(missing); start += m.chunkSize {
		chunk := missing[start:min(start+m.chunkSize, len(missing))]
		g.Go(func() error {
			vecs, err := m.provider.EmbedBatch(gctx, chunk)
			if err != nil {
				return fmt.Errorf("semantic: precompute: %w", err)
			}
			freshMu.Lock()
			for i, phrase := range chunk {
				fresh[phrase] = vecs[i]
			}
			freshMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.markUnavailable(err)
		return err
	}

	m.mu.Lock()
	for phrase, vec := range fresh {
		m.candidates[phrase] = vec
	}
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Save(ctx, m.provider.ModelID(), fresh); err != nil {
			m.log.Warn("semantic: vector store save failed", "error", err)
		}
	}
	return nil
}

// Score returns the similarity of text to candidate in [0, 1]. A candidate
// without a precomputed vector is embedded on demand. Returns 0 with a nil
// error when the backend is unavailable; matching continues without the
// semantic signal.
func (m *Matcher) Score(ctx context.Context, text, candidate string) (float64, error) {
	if m.unavailable.Load() {
		return 0, nil
	}
	qv, err := m.queryVector(ctx, text)
	if err != nil {
		m.markUnavailable(err)
		return 0, nil
	}
	cv, err := m.candidateVector(ctx, candidate)
	if err != nil {
		m.markUnavailable(err)
		return 0, nil
	}
	return similarity(qv, cv), nil
}

// BestMatch scores text against every candidate and returns them ordered
// best-first. Returns nil when the backend is unavailable.
func (m *Matcher) BestMatch(ctx context.Context, text string, candidates []string) ([]Scored, error) {
	if m.unavailable.Load() {
		return nil, nil
	}
	qv, err := m.queryVector(ctx, text)
	if err != nil {
		m.markUnavailable(err)
		return nil, nil
	}
	out := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		cv, err := m.candidateVector(ctx, c)
		if err != nil {
			m.markUnavailable(err)
			return nil, nil
		}
		out = append(out, Scored{Phrase: c, Score: similarity(qv, cv)})
	}
	sortScored(out)
	return out, nil
}

func (m *Matcher) missingPhrases(phrases []string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var missing []string
	for _, p := range phrases {
		if _, ok := m.candidates[p]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

func (m *Matcher) queryVector(ctx context.Context, text string) ([]float32, error) {
	m.mu.RLock()
	vec, ok := m.queries[text]
	m.mu.RUnlock()
	if ok {
		return vec, nil
	}
	vec, err := m.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	if len(m.queries) >= maxQueryCacheSize {
		m.queries = make(map[string][]float32)
	}
	m.queries[text] = vec
	m.mu.Unlock()
	return vec, nil
}

func (m *Matcher) candidateVector(ctx context.Context, phrase string) ([]float32, error) {
	m.mu.RLock()
	vec, ok := m.candidates[phrase]
	m.mu.RUnlock()
	if ok {
		return vec, nil
	}
	vec, err := m.provider.Embed(ctx, phrase)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.candidates[phrase] = vec
	m.mu.Unlock()
	return vec, nil
}

// markUnavailable latches the matcher off after a backend failure. Caller
// cancellation and deadline expiry are not backend failures — the next call
// with a live context must still reach a healthy backend.
func (m *Matcher) markUnavailable(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	m.unavailable.Store(true)
	m.failOnce.Do(func() {
		m.log.Warn("semantic matching disabled after backend failure",
			"model", m.provider.ModelID(), "error", err)
	})
}

// similarity maps cosine similarity into [0, 1]. Negative cosine values are
// clamped to 0; for command phrases they carry no useful ranking signal.
func similarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}

func sortScored(s []Scored) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Score > s[j].Score })
}

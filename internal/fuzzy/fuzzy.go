// Package fuzzy implements edit-distance and pronunciation-based candidate
// matching for transcribed commands.
//
// Two families of matching are provided:
//
//   - Edit-distance similarity ([Similarity], [Matcher.Match]): a normalized
//     Levenshtein ratio, tolerant of transcription typos ("crome" → "chrome").
//
//   - Phonetic matching ([Matcher.PhoneticMatch]): words are reduced to a
//     pronunciation code pair — a digraph-folded consonant skeleton and a
//     classic Soundex code — so words that sound alike match even when their
//     spellings diverge.
//
// Thresholds adapt to input length ([Matcher.AdaptiveThreshold]): short
// strings leave little room for edit tolerance before collisions become
// likely, so they require stricter similarity.
//
// String metrics come from github.com/antzucaro/matchr.
package fuzzy

import (
	"hash/fnv"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

// maxCacheEntries bounds the memoisation cache. On overflow the cache is
// reset wholesale; match queries cluster around a small working set, so a
// full reset is cheaper than tracking recency.
const maxCacheEntries = 512

// Scored pairs a candidate with a match score.
type Scored struct {
	Candidate string
	Score     float64
}

// cacheKey identifies a (text, candidate-set, threshold) query. The
// candidate set is represented by a fingerprint so catalog reloads
// invalidate naturally.
type cacheKey struct {
	text      string
	setFP     uint64
	threshold float64
}

type cacheVal struct {
	candidate string
	score     float64
	ok        bool
}

// Option configures a [Matcher].
type Option func(*Matcher)

// WithThreshold sets the default similarity threshold. Default: 0.70.
func WithThreshold(t float64) Option {
	return func(m *Matcher) { m.threshold = t }
}

// Matcher performs fuzzy and phonetic candidate matching with memoisation.
// Safe for concurrent use.
type Matcher struct {
	threshold float64

	mu    sync.Mutex
	cache map[cacheKey]cacheVal
}

// New returns a Matcher with the supplied options applied.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		threshold: 0.70,
		cache:     make(map[cacheKey]cacheVal),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Threshold returns the default similarity threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Similarity is the normalized edit-distance similarity between a and b:
// 1 − Levenshtein(a,b)/max(len(a),len(b)). Two empty strings are identical
// (1.0); one empty string is entirely dissimilar (0.0).
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	return 1.0 - float64(matchr.Levenshtein(a, b))/float64(maxLen)
}

// Match returns the candidate most similar to text, provided its similarity
// meets threshold. Results are memoised per (text, candidate-set, threshold).
func (m *Matcher) Match(text string, candidates []string, threshold float64) (string, float64, bool) {
	if text == "" || len(candidates) == 0 {
		return "", 0, false
	}
	text = strings.ToLower(strings.TrimSpace(text))

	key := cacheKey{text: text, setFP: fingerprint(candidates), threshold: threshold}
	m.mu.Lock()
	if v, hit := m.cache[key]; hit {
		m.mu.Unlock()
		return v.candidate, v.score, v.ok
	}
	m.mu.Unlock()

	best, bestScore := "", 0.0
	for _, c := range candidates {
		s := Similarity(text, strings.ToLower(c))
		if s > bestScore {
			best, bestScore = c, s
		}
	}

	ok := best != "" && bestScore >= threshold
	if !ok {
		best, bestScore = "", 0
	} else {
		slog.Debug("fuzzy match", "text", text, "candidate", best, "score", bestScore)
	}

	m.mu.Lock()
	if len(m.cache) >= maxCacheEntries {
		m.cache = make(map[cacheKey]cacheVal)
	}
	m.cache[key] = cacheVal{candidate: best, score: bestScore, ok: ok}
	m.mu.Unlock()

	return best, bestScore, ok
}

// MatchAll returns up to n candidates scoring at or above threshold, sorted
// by descending similarity.
func (m *Matcher) MatchAll(text string, candidates []string, n int, threshold float64) []Scored {
	if text == "" || len(candidates) == 0 || n <= 0 {
		return nil
	}
	text = strings.ToLower(strings.TrimSpace(text))

	var out []Scored
	for _, c := range candidates {
		if s := Similarity(text, strings.ToLower(c)); s >= threshold {
			out = append(out, Scored{Candidate: c, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// AdaptiveThreshold returns the similarity threshold appropriate for the
// input length. Short inputs are strict; long inputs relax.
func (m *Matcher) AdaptiveThreshold(text string) float64 {
	switch l := len(text); {
	case l <= 3:
		return 0.90
	case l <= 6:
		return 0.80
	case l <= 12:
		return 0.70
	default:
		return 0.65
	}
}

// ClearCache drops all memoised results. The cache also invalidates
// naturally when the candidate set changes, via fingerprinting.
func (m *Matcher) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[cacheKey]cacheVal)
}

// fingerprint hashes a candidate set order-insensitively.
func fingerprint(candidates []string) uint64 {
	sorted := make([]string, len(candidates))
	copy(sorted, candidates)
	sort.Strings(sorted)

	h := fnv.New64a()
	for _, c := range sorted {
		io.WriteString(h, strings.ToLower(c))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// Package scoring fuses the signals of all matching stages into one weighted
// confidence per candidate and picks the best.
//
// The engine is deterministic: given the same text, candidates, and context
// snapshot it always produces the same scores. Session history and usage
// counts enter only through the injected readers, never through hidden
// internal state.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// DefaultMinConfidence is the floor below which the best candidate is still
// reported as unresolved.
const DefaultMinConfidence = 0.45

// Context bonus components. Their sum is capped at 1.0 before weighting.
const (
	recencyBoost   = 0.15
	frequencyBoost = 0.10
	modeBoost      = 0.20
	recencyWindow  = 5
)

// MethodNone marks an unresolved result. Callers must not execute on it.
const MethodNone = "none"

// Weights is the fixed table that converts subscores into a total. Exact is
// the heaviest signal, context the lightest. The defaults are a tuned
// starting point, not a law; they are configurable but validated.
type Weights struct {
	Exact    float64 `yaml:"exact"`
	Semantic float64 `yaml:"semantic"`
	Grammar  float64 `yaml:"grammar"`
	Fuzzy    float64 `yaml:"fuzzy"`
	Phonetic float64 `yaml:"phonetic"`
	Context  float64 `yaml:"context"`
}

// DefaultWeights returns the standard weight table.
func DefaultWeights() Weights {
	return Weights{
		Exact:    1.0,
		Semantic: 0.8,
		Grammar:  0.7,
		Fuzzy:    0.6,
		Phonetic: 0.5,
		Context:  0.3,
	}
}

// Validate checks that every weight is in [0, 1] and that exact matching
// still dominates.
func (w Weights) Validate() error {
	var errs []error
	check := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("weight %q must be in [0, 1], got %v", name, v))
		}
	}
	check("exact", w.Exact)
	check("semantic", w.Semantic)
	check("grammar", w.Grammar)
	check("fuzzy", w.Fuzzy)
	check("phonetic", w.Phonetic)
	check("context", w.Context)
	if w.Exact < w.Semantic || w.Exact < w.Grammar || w.Exact < w.Fuzzy || w.Exact < w.Phonetic {
		errs = append(errs, errors.New("exact weight must be the heaviest"))
	}
	return errors.Join(errs...)
}

// IntentScore is the per-candidate breakdown. Subscores are each in [0, 1].
type IntentScore struct {
	Command      string
	Exact        float64
	Fuzzy        float64
	Phonetic     float64
	Semantic     float64
	Grammar      float64
	ContextBonus float64
}

// Total is the weighted sum of all subscores, clamped to [0, 1]. Increasing
// any single subscore can never decrease it.
func (s IntentScore) Total(w Weights) float64 {
	total := s.Exact*w.Exact +
		s.Fuzzy*w.Fuzzy +
		s.Phonetic*w.Phonetic +
		s.Semantic*w.Semantic +
		s.Grammar*w.Grammar +
		s.ContextBonus*w.Context
	if total > 1 {
		return 1
	}
	if total < 0 {
		return 0
	}
	return total
}

// PrimaryMethod names the matcher whose weighted term contributed most to
// the total. Used for response phrasing only.
func (s IntentScore) PrimaryMethod(w Weights) string {
	best, bestTerm := "exact", s.Exact*w.Exact
	for _, m := range []struct {
		name string
		term float64
	}{
		{"semantic", s.Semantic * w.Semantic},
		{"grammar", s.Grammar * w.Grammar},
		{"fuzzy", s.Fuzzy * w.Fuzzy},
		{"phonetic", s.Phonetic * w.Phonetic},
	} {
		if m.term > bestTerm {
			best, bestTerm = m.name, m.term
		}
	}
	return best
}

// Result is the outcome of a Match call.
type Result struct {
	Command    string
	Confidence float64
	Method     string
	// Resolved is false when the best total fell below the minimum
	// confidence; the Command is then only the nearest miss.
	Resolved bool
}

// Suggestion pairs a candidate with its total for suggestion lists.
type Suggestion struct {
	Command string
	Score   float64
}

// Query carries one scoring request.
type Query struct {
	Text       string
	Candidates []string
	// Mode is the session's current mode, used for the mode-membership
	// bonus. Empty disables that bonus.
	Mode string
	// SkipSemantic suppresses the embedding stage for this call, typically
	// on an intent-router hint.
	SkipSemantic bool
}

// FuzzyScorer is the edit-distance and pronunciation stage.
// *fuzzy.Matcher satisfies it.
type FuzzyScorer interface {
	Match(text string, candidates []string, threshold float64) (string, float64, bool)
	PhoneticMatch(text string, candidates []string, threshold float64) (string, float64, bool)
}

// SemanticScorer is the embedding stage. *semantic.Matcher satisfies it.
type SemanticScorer interface {
	Score(ctx context.Context, text, candidate string) (float64, error)
	Available() bool
}

// GrammarScorer is the template stage. *grammar.Matcher satisfies it.
type GrammarScorer interface {
	Score(text, candidate string) float64
}

// HistoryReader exposes recent command keys for the recency bonus.
// *session.Context satisfies it.
type HistoryReader interface {
	RecentKeys(n int) []string
}

// UsageCounter exposes lifetime usage counts for the frequency bonus.
// *adapt.Store satisfies it.
type UsageCounter interface {
	UsageCount(command string) int
}

// defaultModeCommands lists, per mode, the commands that get the mode bonus.
var defaultModeCommands = map[string]map[string]bool{
	"browsing": set("search", "new tab", "close tab", "go back", "go forward", "refresh"),
	"coding":   set("save", "undo", "redo", "copy", "paste", "select all", "find"),
	"chatting": set("send", "type", "emoji"),
	"system":   set("shutdown", "restart", "lock", "sleep"),
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// Engine fuses matcher signals. Safe for concurrent use.
type Engine struct {
	weights       Weights
	minConfidence float64
	log           *slog.Logger

	fuzzy    FuzzyScorer
	semantic SemanticScorer
	grammar  GrammarScorer
	history  HistoryReader
	usage    UsageCounter

	modeCommands map[string]map[string]bool

	mu          sync.RWMutex
	corrections map[string]string
}

// Option customizes Engine construction.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithWeights overrides the weight table; New validates it.
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		e.weights = w
	}
}

// WithMinConfidence overrides the unresolved floor.
func WithMinConfidence(v float64) Option {
	return func(e *Engine) {
		e.minConfidence = v
	}
}

// WithFuzzy attaches the fuzzy/phonetic stage.
func WithFuzzy(f FuzzyScorer) Option {
	return func(e *Engine) {
		e.fuzzy = f
	}
}

// WithSemantic attaches the embedding stage.
func WithSemantic(s SemanticScorer) Option {
	return func(e *Engine) {
		e.semantic = s
	}
}

// WithGrammar attaches the template stage.
func WithGrammar(g GrammarScorer) Option {
	return func(e *Engine) {
		e.grammar = g
	}
}

// WithHistory attaches the recency signal source.
func WithHistory(h HistoryReader) Option {
	return func(e *Engine) {
		e.history = h
	}
}

// WithUsage attaches the frequency signal source.
func WithUsage(u UsageCounter) Option {
	return func(e *Engine) {
		e.usage = u
	}
}

// WithModeCommands replaces the per-mode bonus command sets.
func WithModeCommands(m map[string]map[string]bool) Option {
	return func(e *Engine) {
		e.modeCommands = m
	}
}

// New creates an Engine. Every stage is optional; a missing stage simply
// contributes a zero subscore.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		weights:       DefaultWeights(),
		minConfidence: DefaultMinConfidence,
		log:           slog.Default(),
		modeCommands:  defaultModeCommands,
		corrections:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.weights.Validate(); err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}
	if e.minConfidence < 0 || e.minConfidence > 1 {
		return nil, fmt.Errorf("scoring: min confidence must be in [0, 1], got %v", e.minConfidence)
	}
	return e, nil
}

// Weights returns the engine's weight table.
func (e *Engine) Weights() Weights {
	return e.weights
}

// MinConfidence returns the resolution floor.
func (e *Engine) MinConfidence() float64 {
	return e.minConfidence
}

// AddCorrection teaches the engine that misheard should be scored as
// intended from now on.
func (e *Engine) AddCorrection(misheard, intended string) {
	misheard = strings.ToLower(strings.TrimSpace(misheard))
	intended = strings.ToLower(strings.TrimSpace(intended))
	if misheard == "" || misheard == intended {
		return
	}
	e.mu.Lock()
	e.corrections[misheard] = intended
	e.mu.Unlock()
	e.log.Info("learned correction", "misheard", misheard, "intended", intended)
}

// ScoreAll scores every candidate and returns them sorted best-first.
// Learned corrections rewrite the text once before scoring.
func (e *Engine) ScoreAll(ctx context.Context, q Query) []IntentScore {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" || len(q.Candidates) == 0 {
		return nil
	}

	e.mu.RLock()
	corrected, ok := e.corrections[text]
	e.mu.RUnlock()
	if ok {
		e.log.Info("applying learned correction", "from", text, "to", corrected)
		text = corrected
	}

	recent := e.recentSet()
	scores := make([]IntentScore, 0, len(q.Candidates))
	for _, candidate := range q.Candidates {
		scores = append(scores, e.scoreCandidate(ctx, text, candidate, q, recent))
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Total(e.weights) > scores[j].Total(e.weights)
	})
	return scores
}

func (e *Engine) scoreCandidate(ctx context.Context, text, candidate string, q Query, recent map[string]bool) IntentScore {
	s := IntentScore{Command: candidate}
	lower := strings.ToLower(candidate)

	if text == lower {
		s.Exact = 1.0
		return s // nothing can outscore a weighted exact match
	}

	if e.fuzzy != nil {
		if _, score, ok := e.fuzzy.Match(text, []string{candidate}, 0); ok {
			s.Fuzzy = score
		}
		if _, score, ok := e.fuzzy.PhoneticMatch(text, []string{candidate}, 0); ok {
			s.Phonetic = score
		}
	}
	if e.semantic != nil && !q.SkipSemantic && e.semantic.Available() {
		if score, err := e.semantic.Score(ctx, text, candidate); err == nil {
			s.Semantic = score
		}
	}
	if e.grammar != nil {
		s.Grammar = e.grammar.Score(text, candidate)
	}
	s.ContextBonus = e.contextBonus(lower, q.Mode, recent)
	return s
}

func (e *Engine) recentSet() map[string]bool {
	if e.history == nil {
		return nil
	}
	keys := e.history.RecentKeys(recencyWindow)
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}

func (e *Engine) contextBonus(candidate, mode string, recent map[string]bool) float64 {
	bonus := 0.0
	if recent[candidate] {
		bonus += recencyBoost
	}
	if e.usage != nil {
		switch freq := e.usage.UsageCount(candidate); {
		case freq > 5:
			bonus += frequencyBoost
		case freq > 2:
			bonus += frequencyBoost / 2
		}
	}
	if mode != "" && e.modeCommands[mode][candidate] {
		bonus += modeBoost
	}
	if bonus > 1 {
		bonus = 1
	}
	return bonus
}

// Match scores all candidates and returns the best. A best total below the
// minimum confidence yields Resolved=false and MethodNone.
func (e *Engine) Match(ctx context.Context, q Query) Result {
	scores := e.ScoreAll(ctx, q)
	if len(scores) == 0 {
		return Result{Method: MethodNone}
	}
	best := scores[0]
	total := best.Total(e.weights)
	if total < e.minConfidence {
		e.log.Info("match below confidence floor",
			"text", q.Text, "nearest", best.Command, "score", total)
		return Result{Command: best.Command, Confidence: total, Method: MethodNone}
	}
	method := best.PrimaryMethod(e.weights)
	e.log.Info("intent matched",
		"text", q.Text, "command", best.Command, "score", total, "method", method)
	return Result{Command: best.Command, Confidence: total, Method: method, Resolved: true}
}

// Suggestions returns the top n candidates for ambiguous input.
func (e *Engine) Suggestions(ctx context.Context, q Query, n int) []Suggestion {
	scores := e.ScoreAll(ctx, q)
	if n > 0 && len(scores) > n {
		scores = scores[:n]
	}
	out := make([]Suggestion, len(scores))
	for i, s := range scores {
		out[i] = Suggestion{Command: s.Command, Score: s.Total(e.weights)}
	}
	return out
}

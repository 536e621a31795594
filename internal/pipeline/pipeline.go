// Package pipeline wires the matching stages into a single synchronous
// Process call: normalization, learned adaptations, pronoun resolution,
// intent routing, the grammar fast path, weighted scoring across the
// catalog, and finally the confidence policy. The output is a [Decision],
// the one object an executor needs to act on an utterance.
//
// Process never fails on bad input — unresolvable utterances come back as
// unresolved decisions with suggestions. Errors are reserved for context
// cancellation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/varnahq/varna/internal/adapt"
	"github.com/varnahq/varna/internal/analytics"
	"github.com/varnahq/varna/internal/catalog"
	"github.com/varnahq/varna/internal/fuzzy"
	"github.com/varnahq/varna/internal/grammar"
	"github.com/varnahq/varna/internal/normalize"
	"github.com/varnahq/varna/internal/observe"
	"github.com/varnahq/varna/internal/policy"
	"github.com/varnahq/varna/internal/router"
	"github.com/varnahq/varna/internal/scoring"
	"github.com/varnahq/varna/internal/semantic"
	"github.com/varnahq/varna/internal/session"
)

// maxSuggestions bounds the alternatives attached to an unresolved decision.
const maxSuggestions = 3

// entitySlots lists the candidate slot names that can carry the primary
// entity, in priority order.
var entitySlots = []string{"app", "folder", "query", "text", "path", "file"}

// Decision is the pipeline's verdict on one utterance.
type Decision struct {
	// Resolved is true when a candidate was bound with enough confidence
	// to act on (possibly after confirmation).
	Resolved bool

	// Candidate is the bound catalog phrase, or the nearest miss when
	// unresolved.
	Candidate string

	Intent    string
	Entity    string
	Parameter string

	Confidence float64

	// Method names the stage that carried the match: exact, grammar,
	// fuzzy, phonetic, semantic, context, or none.
	Method string

	Tier              policy.Tier
	ShouldExecute     bool
	ShouldSpeak       bool
	NeedsConfirmation bool

	// Speech is what the assistant says, empty for silent execution.
	Speech string

	// Suggestions carries ranked alternatives for ambiguous or
	// unresolved input.
	Suggestions []scoring.Suggestion
}

// Pipeline resolves utterances against a command catalog. Safe for
// concurrent use; SetCatalog may be called while Process runs.
type Pipeline struct {
	log     *slog.Logger
	router  *router.Router
	grammar *grammar.Matcher
	fuzzy   *fuzzy.Matcher
	policy  *policy.Policy
	engine  *scoring.Engine

	session *session.Context
	adapt   *adapt.Store
	sem     *semantic.Matcher
	stats   *analytics.DB
	metrics *observe.Metrics

	ambiguityBand  float64
	fuzzyThreshold float64
	minConfidence  float64
	weights        *scoring.Weights

	mu  sync.RWMutex
	cat *catalog.Catalog
	// entities is the slot-value lexicon of the current catalog, used to
	// repair misheard entities on the grammar fast path.
	entities []string
}

// Option configures a [Pipeline].
type Option func(*Pipeline) error

// WithLogger sets the logger. Default: slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) error {
		if log != nil {
			p.log = log
		}
		return nil
	}
}

// WithSession attaches the session context used for pronoun resolution,
// mode tracking, and command history. Default: a fresh session.
func WithSession(s *session.Context) Option {
	return func(p *Pipeline) error {
		if s != nil {
			p.session = s
		}
		return nil
	}
}

// WithAdapt attaches the adaptation store. Without it, shortcut expansion,
// pronunciation mapping, and frequency bonuses are disabled.
func WithAdapt(s *adapt.Store) Option {
	return func(p *Pipeline) error {
		p.adapt = s
		return nil
	}
}

// WithSemantic attaches the embedding matcher. Without it, the semantic
// stage is skipped entirely.
func WithSemantic(m *semantic.Matcher) Option {
	return func(p *Pipeline) error {
		p.sem = m
		return nil
	}
}

// WithAnalytics attaches the usage analytics database. Recording happens
// off the matching path.
func WithAnalytics(db *analytics.DB) Option {
	return func(p *Pipeline) error {
		p.stats = db
		return nil
	}
}

// WithMetrics attaches the metric instruments. Default: none.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) error {
		p.metrics = m
		return nil
	}
}

// WithThresholds replaces the default response tier boundaries.
func WithThresholds(t policy.Thresholds) Option {
	return func(p *Pipeline) error {
		pol, err := policy.New(t)
		if err != nil {
			return err
		}
		p.policy = pol
		return nil
	}
}

// WithWeights replaces the default scoring weights.
func WithWeights(w scoring.Weights) Option {
	return func(p *Pipeline) error {
		if err := w.Validate(); err != nil {
			return err
		}
		p.weights = &w
		return nil
	}
}

// WithMinConfidence sets the resolution floor.
func WithMinConfidence(v float64) Option {
	return func(p *Pipeline) error {
		p.minConfidence = v
		return nil
	}
}

// WithAmbiguityBand sets the score distance within which the runner-up
// forces disambiguation. Default: 0.08. Zero disables the check.
func WithAmbiguityBand(v float64) Option {
	return func(p *Pipeline) error {
		if v < 0 {
			return fmt.Errorf("pipeline: ambiguity band %v is negative", v)
		}
		p.ambiguityBand = v
		return nil
	}
}

// WithFuzzyThreshold sets the fuzzy matcher's similarity threshold.
func WithFuzzyThreshold(v float64) Option {
	return func(p *Pipeline) error {
		p.fuzzyThreshold = v
		return nil
	}
}

// New builds a Pipeline over the given catalog.
func New(cat *catalog.Catalog, opts ...Option) (*Pipeline, error) {
	if cat == nil {
		return nil, fmt.Errorf("pipeline: catalog is required")
	}

	pol, err := policy.New(policy.DefaultThresholds())
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		log:           slog.Default(),
		router:        router.New(),
		grammar:       grammar.New(),
		policy:        pol,
		ambiguityBand: 0.08,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.session == nil {
		p.session = session.New()
	}

	var fuzzyOpts []fuzzy.Option
	if p.fuzzyThreshold > 0 {
		fuzzyOpts = append(fuzzyOpts, fuzzy.WithThreshold(p.fuzzyThreshold))
	}
	p.fuzzy = fuzzy.New(fuzzyOpts...)

	engineOpts := []scoring.Option{
		scoring.WithLogger(p.log),
		scoring.WithFuzzy(p.fuzzy),
		scoring.WithGrammar(p.grammar),
		scoring.WithHistory(p.session),
	}
	if p.weights != nil {
		engineOpts = append(engineOpts, scoring.WithWeights(*p.weights))
	}
	if p.minConfidence > 0 {
		engineOpts = append(engineOpts, scoring.WithMinConfidence(p.minConfidence))
	}
	if p.adapt != nil {
		engineOpts = append(engineOpts, scoring.WithUsage(p.adapt))
	}
	if p.sem != nil {
		engineOpts = append(engineOpts, scoring.WithSemantic(p.sem))
	}
	if mc := cat.ModeCommands(); len(mc) > 0 {
		engineOpts = append(engineOpts, scoring.WithModeCommands(mc))
	}
	p.engine, err = scoring.New(engineOpts...)
	if err != nil {
		return nil, err
	}

	p.setCatalogLocked(cat)
	return p, nil
}

// SetCatalog swaps the command catalog, e.g. after a config reload. The
// fuzzy memoisation cache is invalidated; call [Pipeline.Warm] afterwards
// to re-prime semantic vectors.
func (p *Pipeline) SetCatalog(cat *catalog.Catalog) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cat != nil && cat.Fingerprint() == p.cat.Fingerprint() {
		return
	}
	p.setCatalogLocked(cat)
	p.fuzzy.ClearCache()
	p.log.Info("catalog swapped", "candidates", cat.Len())
}

func (p *Pipeline) setCatalogLocked(cat *catalog.Catalog) {
	p.cat = cat
	p.entities = entityLexicon(cat)
}

// Catalog returns the current catalog.
func (p *Pipeline) Catalog() *catalog.Catalog {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cat
}

// Warm precomputes candidate embedding vectors for the current catalog.
// Best-effort: without a semantic matcher, or with the backend latched
// unavailable, it is a no-op.
func (p *Pipeline) Warm(ctx context.Context) error {
	if p.sem == nil {
		return nil
	}
	start := time.Now()
	err := p.sem.PrecomputeCandidates(ctx, p.Catalog().Phrases())
	if p.metrics != nil {
		p.metrics.SemanticDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		if p.metrics != nil {
			p.metrics.SemanticErrors.Add(ctx, 1)
		}
		return fmt.Errorf("pipeline: warm semantic vectors: %w", err)
	}
	return nil
}

// Process resolves one utterance. The returned error is non-nil only when
// ctx was cancelled.
func (p *Pipeline) Process(ctx context.Context, utterance string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
		}
	}()

	text := normalize.Clean(utterance)
	if p.adapt != nil {
		text = p.adapt.ProcessInput(text)
	}
	if text == "" {
		return Decision{Method: scoring.MethodNone, Tier: policy.TierSuggest}, nil
	}

	// Pronouns resolve against the session before anything else; a
	// resolved reference becomes a concrete command key and flows through
	// the normal stages, where it lands as an exact catalog hit.
	if res, ok, err := p.session.ResolvePronoun(text); ok {
		if err != nil {
			p.log.Info("pronoun without context", "text", text, "err", err)
			return Decision{
				Method:      "context",
				Tier:        policy.TierAsk,
				ShouldSpeak: true,
				Speech:      "I'm not sure what you're referring to. Could you be more specific?",
			}, nil
		}
		p.log.Debug("pronoun resolved", "text", text, "key", res.Key)
		d := p.decideResolved(ctx, res.Key, 1.0, "context", start)
		if d.Intent == "" {
			// Resolved keys outside the catalog (e.g. project paths)
			// still carry a concrete action.
			switch res.Action.Kind {
			case session.ActionOpenApp, session.ActionOpenPath:
				d.Intent = "open"
			case session.ActionCloseApp:
				d.Intent = "close"
			}
			d.Entity = res.Action.Target
		}
		return d, nil
	}

	rr := p.router.Route(text)
	if p.metrics != nil {
		p.metrics.RecordRouterHit(ctx, string(rr.Category))
	}

	cat := p.Catalog()

	// Exact catalog hit short-circuits everything.
	if _, ok := cat.Lookup(text); ok {
		return p.decideResolved(ctx, text, 1.0, "exact", start), nil
	}

	// Grammar fast path: a template hit that binds a catalog phrase,
	// directly or after repairing a misheard entity.
	if phrase, conf, ok := p.grammarBind(text, cat); ok {
		return p.decideResolved(ctx, phrase, conf, "grammar", start), nil
	}

	semUp := p.sem != nil && p.sem.Available()
	q := scoring.Query{
		Text:         text,
		Candidates:   cat.Phrases(),
		Mode:         string(p.session.Mode()),
		SkipSemantic: rr.SkipSemantic || !semUp,
	}

	scores := p.engine.ScoreAll(ctx, q)
	if semUp && !p.sem.Available() && p.metrics != nil {
		// The backend latched off while scoring this utterance.
		p.metrics.SemanticErrors.Add(ctx, 1)
	}
	if len(scores) == 0 {
		return Decision{Method: scoring.MethodNone, Tier: policy.TierSuggest}, nil
	}
	w := p.engine.Weights()
	best := scores[0]
	total := best.Total(w)

	if total < p.engine.MinConfidence() {
		return p.decideUnresolved(text, best.Command, total, scores, w), nil
	}

	// Near-tie with the runner-up: ask instead of guessing.
	if p.ambiguityBand > 0 && len(scores) > 1 {
		if runnerUp := scores[1].Total(w); total-runnerUp <= p.ambiguityBand {
			p.log.Info("ambiguous match",
				"text", text, "best", best.Command, "runner_up", scores[1].Command,
				"delta", total-runnerUp)
			return p.decideAmbiguous(text, scores, w), nil
		}
	}

	return p.decideResolved(ctx, best.Command, total, best.PrimaryMethod(w), start), nil
}

// Correct records that the assistant matched wrong when the user meant
// right, feeding every learning surface at once.
func (p *Pipeline) Correct(ctx context.Context, wrong, right string) {
	p.engine.AddCorrection(wrong, right)
	if p.adapt != nil {
		p.adapt.RecordCorrection(wrong, right)
	}
	if p.stats != nil {
		if err := p.stats.RecordMisrecognition(ctx, wrong, right); err != nil {
			p.log.Warn("record misrecognition", "err", err)
		}
	}
	if p.metrics != nil {
		p.metrics.Corrections.Add(ctx, 1)
	}
}

// grammarBind maps a grammar template hit onto a catalog phrase. When the
// extracted entity is not in the catalog ("launch crome"), it is repaired
// against the slot-value lexicon and the bound confidence drops to the
// repair similarity.
func (p *Pipeline) grammarBind(text string, cat *catalog.Catalog) (string, float64, bool) {
	match, ok := p.grammar.Extract(text)
	if !ok {
		return "", 0, false
	}

	if phrase, conf, ok := p.grammar.MatchCommand(text, cat.Phrases()); ok {
		return phrase, conf, true
	}

	entity := primaryEntity(match)
	if entity == "" {
		return "", 0, false
	}

	p.mu.RLock()
	lexicon := p.entities
	p.mu.RUnlock()

	fixed, sim, ok := p.fuzzy.Match(entity, lexicon, p.fuzzy.Threshold())
	if !ok {
		return "", 0, false
	}
	phrase := match.Intent + " " + fixed
	if match.Intent == "switch" {
		phrase = "switch to " + fixed
	}
	if _, ok := cat.Lookup(phrase); !ok {
		return "", 0, false
	}
	p.log.Info("entity repaired", "heard", entity, "bound", fixed, "similarity", sim)
	return phrase, sim, true
}

// decideResolved finalises a successful match: policy action, session and
// adaptation bookkeeping, analytics.
func (p *Pipeline) decideResolved(ctx context.Context, phrase string, conf float64, method string, start time.Time) Decision {
	act := p.policy.ActionFor(conf, phrase)

	d := Decision{
		Resolved:          true,
		Candidate:         phrase,
		Confidence:        conf,
		Method:            method,
		Tier:              act.Tier,
		ShouldExecute:     act.ShouldExecute,
		ShouldSpeak:       act.ShouldSpeak,
		NeedsConfirmation: act.NeedsConfirmation,
		Speech:            act.Speech,
	}
	if cand, ok := p.Catalog().Lookup(phrase); ok {
		d.Intent = cand.Intent
		d.Entity = slotEntity(cand)
		d.Parameter = cand.Slots["parameter"]
	}

	p.session.RecordCommand(session.CommandRecord{
		Key:       phrase,
		Intent:    d.Intent,
		Entity:    d.Entity,
		Parameter: d.Parameter,
		Undo:      undoFor(d.Intent, d.Entity),
	})
	if p.adapt != nil {
		p.adapt.RecordUsage(phrase)
	}
	if p.metrics != nil {
		p.metrics.RecordMatch(ctx, method, string(act.Tier))
	}
	if p.stats != nil {
		// Off the matching path; the decision does not wait on SQLite.
		elapsed := time.Since(start)
		go func() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := p.stats.RecordCommand(rctx, phrase, true, float64(elapsed.Milliseconds())); err != nil {
				p.log.Warn("record command stats", "err", err)
			}
		}()
	}

	return d
}

// decideUnresolved reports a best total below the confidence floor.
func (p *Pipeline) decideUnresolved(text, nearest string, total float64, scores []scoring.IntentScore, w scoring.Weights) Decision {
	alts := p.suggestions(text, scores, w)
	return Decision{
		Candidate:   nearest,
		Confidence:  total,
		Method:      scoring.MethodNone,
		Tier:        policy.TierSuggest,
		ShouldSpeak: true,
		Speech:      p.policy.SuggestSpeech(nearest, commandsOf(alts)),
		Suggestions: alts,
	}
}

// decideAmbiguous reports a near-tie between the top candidates.
func (p *Pipeline) decideAmbiguous(text string, scores []scoring.IntentScore, w scoring.Weights) Decision {
	alts := p.suggestions(text, scores, w)
	best := scores[0]
	return Decision{
		Candidate:         best.Command,
		Confidence:        best.Total(w),
		Method:            best.PrimaryMethod(w),
		Tier:              policy.TierSuggest,
		ShouldSpeak:       true,
		NeedsConfirmation: true,
		Speech:            p.policy.SuggestSpeech(best.Command, commandsOf(alts)),
		Suggestions:       alts,
	}
}

// suggestions merges the pronunciation-aware fuzzy ranking of the raw text
// with the scoring totals. Phrases whose Double Metaphone codes overlap the
// input rank first: a suggestion that sounds like what was heard beats one
// that merely scores well.
func (p *Pipeline) suggestions(text string, scores []scoring.IntentScore, w scoring.Weights) []scoring.Suggestion {
	totals := make(map[string]float64, len(scores))
	for _, s := range scores {
		totals[s.Command] = s.Total(w)
	}

	out := make([]scoring.Suggestion, 0, maxSuggestions)
	seen := make(map[string]struct{}, maxSuggestions)
	add := func(cmd string, score float64) {
		if _, dup := seen[cmd]; dup || len(out) == maxSuggestions {
			return
		}
		seen[cmd] = struct{}{}
		if t, ok := totals[cmd]; ok && t > score {
			score = t
		}
		out = append(out, scoring.Suggestion{Command: cmd, Score: score})
	}

	for _, r := range fuzzy.Rank(text, p.Catalog().Phrases(), maxSuggestions) {
		add(r.Candidate, r.Score)
	}
	for _, s := range scores {
		add(s.Command, s.Total(w))
	}
	return out
}

func commandsOf(s []scoring.Suggestion) []string {
	out := make([]string, len(s))
	for i, alt := range s {
		out[i] = alt.Command
	}
	return out
}

// primaryEntity returns the most significant named capture of a template
// match.
func primaryEntity(m *grammar.Match) string {
	for _, slot := range entitySlots {
		if v := m.Entities[slot]; v != "" {
			return v
		}
	}
	return ""
}

// slotEntity returns the first recognised entity slot of a candidate.
func slotEntity(c catalog.Candidate) string {
	for _, slot := range entitySlots {
		if v := c.Slots[slot]; v != "" {
			return v
		}
	}
	return ""
}

// undoFor names the inverse command, empty when there is none.
func undoFor(intent, entity string) string {
	if intent == "open" && entity != "" {
		return "close " + entity
	}
	return ""
}

// entityLexicon collects the distinct slot values of a catalog, for entity
// repair.
func entityLexicon(cat *catalog.Catalog) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, cand := range cat.Candidates() {
		for _, slot := range entitySlots {
			v := cand.Slots[slot]
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// Package grammar implements template-based command recognition: an ordered
// list of literal patterns with named capture slots, each carrying a fixed
// confidence. The first matching rule wins, so rules are ordered
// most-specific-first (e.g. "minimize this" before "minimize <target>") and
// the ordering is part of the contract.
//
// Grammar matching is the fast, high-precision stage of the pipeline — it
// resolves well-formed commands without touching the similarity matchers.
package grammar

import (
	"fmt"
	"regexp"
	"strings"
)

// Match is the result of a successful template match.
type Match struct {
	// RuleName identifies the matching rule, for logging.
	RuleName string

	// Intent is the intent the rule maps to.
	Intent string

	// Entities holds the named captures that matched non-empty text.
	Entities map[string]string

	// Confidence is the rule's fixed confidence constant.
	Confidence float64
}

// rule pairs a compiled template with its intent and confidence.
type rule struct {
	name       string
	re         *regexp.Regexp
	intent     string
	confidence float64
}

// Matcher recognises commands against an ordered template list.
// Safe for concurrent use after construction; AddRule must not be called
// concurrently with matching.
type Matcher struct {
	rules []rule
}

// partialCredit is applied by Score when a grammar rule matched but the
// candidate phrase does not echo the matched intent.
const partialCredit = 0.7

// New returns a Matcher with the built-in rule set.
func New() *Matcher {
	return &Matcher{rules: defaultRules()}
}

// Extract runs the input through the template list and returns the first
// match. The boolean is false when no template matches.
func (m *Matcher) Extract(text string) (*Match, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil, false
	}

	for _, r := range m.rules {
		sub := r.re.FindStringSubmatch(text)
		if sub == nil {
			continue
		}

		entities := make(map[string]string)
		for i, name := range r.re.SubexpNames() {
			if i == 0 || name == "" || sub[i] == "" {
				continue
			}
			entities[name] = sub[i]
		}

		return &Match{
			RuleName:   r.name,
			Intent:     r.intent,
			Entities:   entities,
			Confidence: r.confidence,
		}, true
	}
	return nil, false
}

// Intent returns just the matched intent, or "" when nothing matches.
func (m *Matcher) Intent(text string) string {
	match, ok := m.Extract(text)
	if !ok {
		return ""
	}
	return match.Intent
}

// Score rates how well text grammar-matches a specific candidate phrase, for
// use as the grammar subscore in weighted fusion. A template hit whose intent
// the candidate echoes scores the rule confidence; a hit with an unrelated
// candidate earns partial credit; no hit scores zero.
func (m *Matcher) Score(text, candidate string) float64 {
	match, ok := m.Extract(text)
	if !ok {
		return 0
	}
	if candidate == "" {
		return match.Confidence
	}

	cand := strings.ToLower(candidate)
	if strings.HasPrefix(cand, match.Intent) || strings.Contains(cand, match.Intent) {
		return match.Confidence
	}
	return match.Confidence * partialCredit
}

// MatchCommand maps a template hit onto a concrete candidate phrase from
// phrases, rebuilding the expected phrase from the extracted entities
// ("open" + app "chrome" → "open chrome"). Returns false when no template
// matches or no phrase corresponds.
func (m *Matcher) MatchCommand(text string, phrases []string) (string, float64, bool) {
	match, ok := m.Extract(text)
	if !ok {
		return "", 0, false
	}

	expected := match.Intent
	switch {
	case match.Intent == "open" && match.Entities["app"] != "":
		expected = "open " + match.Entities["app"]
	case match.Intent == "close" && match.Entities["app"] != "":
		expected = "close " + match.Entities["app"]
	case match.Intent == "switch" && match.Entities["app"] != "":
		expected = "switch to " + match.Entities["app"]
	case match.Intent == "search" && match.Entities["query"] != "":
		expected = "search " + match.Entities["query"]
	case match.Intent == "type" && match.Entities["text"] != "":
		expected = "type " + match.Entities["text"]
	}

	expected = strings.ToLower(expected)
	for _, phrase := range phrases {
		p := strings.ToLower(phrase)
		if p == expected || strings.Contains(p, expected) {
			return phrase, match.Confidence, true
		}
	}
	return "", 0, false
}

// AddRule appends a template at the end of the rule list (lowest priority).
// The pattern must be a valid regular expression; confidence must be in (0,1].
func (m *Matcher) AddRule(name, pattern, intent string, confidence float64) error {
	if confidence <= 0 || confidence > 1 {
		return fmt.Errorf("grammar: rule %q: confidence %v out of range (0,1]", name, confidence)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("grammar: rule %q: %w", name, err)
	}
	m.rules = append(m.rules, rule{name: name, re: re, intent: intent, confidence: confidence})
	return nil
}

// Len returns the number of rules.
func (m *Matcher) Len() int { return len(m.rules) }

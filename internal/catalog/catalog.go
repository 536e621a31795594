// Package catalog holds the set of canonical command phrases the assistant
// can recognise, together with the mode-affinity and browser tables used for
// context scoring.
//
// A Catalog is loaded once at startup (from YAML or via [Default]) and is
// read-only afterwards. Reloading produces a new Catalog value; consumers
// that cache per-catalog state key it on [Catalog.Fingerprint].
package catalog

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Candidate is one canonical command phrase with its associated intent and
// optional entity slots. Candidates are immutable after load.
type Candidate struct {
	// Phrase is the canonical spoken form, e.g. "open chrome".
	Phrase string `yaml:"phrase"`

	// Intent is the intent name the phrase resolves to, e.g. "open".
	Intent string `yaml:"intent"`

	// Slots carries pre-bound entities, e.g. {"app": "chrome"}.
	Slots map[string]string `yaml:"slots"`
}

// Catalog is the full recognisable command set. Safe for concurrent use —
// all fields are fixed at construction.
type Catalog struct {
	candidates  []Candidate
	phrases     []string
	byPhrase    map[string]Candidate
	modeCmds    map[string]map[string]struct{}
	browsers    map[string]struct{}
	fingerprint uint64
}

// file is the YAML document shape.
type file struct {
	Candidates   []Candidate         `yaml:"candidates"`
	ModeCommands map[string][]string `yaml:"mode_commands"`
	Browsers     []string            `yaml:"browsers"`
}

// Load reads a catalog from the YAML file at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()

	c, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %q: %w", path, err)
	}
	return c, nil
}

// LoadFromReader decodes a YAML catalog from r. Unknown fields are rejected.
func LoadFromReader(r io.Reader) (*Catalog, error) {
	var doc file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	return New(doc.Candidates, doc.ModeCommands, doc.Browsers)
}

// New builds a Catalog from explicit parts. Phrases are lowercased and
// trimmed; duplicate phrases are an error because matching semantics would
// silently depend on load order otherwise.
func New(candidates []Candidate, modeCommands map[string][]string, browsers []string) (*Catalog, error) {
	c := &Catalog{
		byPhrase: make(map[string]Candidate, len(candidates)),
		modeCmds: make(map[string]map[string]struct{}, len(modeCommands)),
		browsers: make(map[string]struct{}, len(browsers)),
	}

	for _, cand := range candidates {
		phrase := strings.ToLower(strings.TrimSpace(cand.Phrase))
		if phrase == "" {
			return nil, fmt.Errorf("catalog: candidate with empty phrase (intent %q)", cand.Intent)
		}
		if _, dup := c.byPhrase[phrase]; dup {
			return nil, fmt.Errorf("catalog: duplicate phrase %q", phrase)
		}
		cand.Phrase = phrase
		c.byPhrase[phrase] = cand
		c.candidates = append(c.candidates, cand)
		c.phrases = append(c.phrases, phrase)
	}

	for mode, cmds := range modeCommands {
		set := make(map[string]struct{}, len(cmds))
		for _, cmd := range cmds {
			set[strings.ToLower(strings.TrimSpace(cmd))] = struct{}{}
		}
		c.modeCmds[strings.ToLower(mode)] = set
	}

	for _, b := range browsers {
		c.browsers[strings.ToLower(strings.TrimSpace(b))] = struct{}{}
	}

	c.fingerprint = fingerprintPhrases(c.phrases)
	return c, nil
}

// fingerprintPhrases hashes the sorted phrase set so equal candidate sets
// produce equal fingerprints regardless of declaration order.
func fingerprintPhrases(phrases []string) uint64 {
	sorted := make([]string, len(phrases))
	copy(sorted, phrases)
	sort.Strings(sorted)

	h := fnv.New64a()
	for _, p := range sorted {
		io.WriteString(h, p)
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// Phrases returns all candidate phrases in declaration order. The returned
// slice must not be modified.
func (c *Catalog) Phrases() []string { return c.phrases }

// Candidates returns all candidates in declaration order. The returned slice
// must not be modified.
func (c *Catalog) Candidates() []Candidate { return c.candidates }

// Lookup returns the candidate for an exact (case-insensitive) phrase.
func (c *Catalog) Lookup(phrase string) (Candidate, bool) {
	cand, ok := c.byPhrase[strings.ToLower(strings.TrimSpace(phrase))]
	return cand, ok
}

// InMode reports whether phrase belongs to the suggested-command set of the
// named mode.
func (c *Catalog) InMode(mode, phrase string) bool {
	set, ok := c.modeCmds[strings.ToLower(mode)]
	if !ok {
		return false
	}
	_, ok = set[strings.ToLower(strings.TrimSpace(phrase))]
	return ok
}

// ModeCommands returns the mode-affinity table as mode → phrase set.
// The result is freshly allocated and safe to modify.
func (c *Catalog) ModeCommands() map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(c.modeCmds))
	for mode, set := range c.modeCmds {
		cmds := make(map[string]bool, len(set))
		for cmd := range set {
			cmds[cmd] = true
		}
		out[mode] = cmds
	}
	return out
}

// IsBrowser reports whether app names a known web browser.
func (c *Catalog) IsBrowser(app string) bool {
	_, ok := c.browsers[strings.ToLower(strings.TrimSpace(app))]
	return ok
}

// Len returns the number of candidates.
func (c *Catalog) Len() int { return len(c.candidates) }

// Fingerprint identifies the candidate set. Two catalogs with the same
// phrases share a fingerprint; consumers use it to invalidate per-catalog
// caches on reload.
func (c *Catalog) Fingerprint() uint64 { return c.fingerprint }

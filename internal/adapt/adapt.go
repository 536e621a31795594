// Package adapt is the per-user learning layer. It remembers pronunciation
// variants ("crome" means "chrome"), preferred apps for generic words
// ("browser" means "edge"), phrase shortcuts, repeated corrections, and
// command usage counts, and persists all of it as a JSON file.
//
// Everything here is plain lookup tables, no model training. Repetition is
// the learning signal: a correction seen twice gets promoted into a
// pronunciation so it applies automatically from then on.
package adapt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// schemaVersion is bumped when the on-disk layout changes; migrate upgrades
// older files in place on load.
const schemaVersion = 1

// promoteAfter is how many times the same correction must be seen before its
// word-level differences become pronunciations.
const promoteAfter = 2

// saveEvery batches usage-stat persistence: the file is written once per
// this many recorded usages rather than on every command.
const saveEvery = 10

// Correction tracks one wrong-to-right phrase mapping the user has made.
type Correction struct {
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

type memory struct {
	Version         int                   `json:"version"`
	Pronunciation   map[string]string     `json:"pronunciation"`
	AppPreferences  map[string]string     `json:"app_preferences"`
	PhraseShortcuts map[string]string     `json:"phrase_shortcuts"`
	Corrections     map[string]Correction `json:"corrections"`
	UsageStats      map[string]int        `json:"usage_stats"`
	LastUpdated     time.Time             `json:"last_updated"`
}

func newMemory() memory {
	return memory{
		Version:         schemaVersion,
		Pronunciation:   make(map[string]string),
		AppPreferences:  make(map[string]string),
		PhraseShortcuts: make(map[string]string),
		Corrections:     make(map[string]Correction),
		UsageStats:      make(map[string]int),
	}
}

// Summary is a snapshot of what the store has learned, for status output.
type Summary struct {
	Pronunciations  int
	AppPreferences  int
	PhraseShortcuts int
	Corrections     int
	TotalCommands   int
	UniqueCommands  int
	LastUpdated     time.Time
}

// Store is the adaptation memory. Safe for concurrent use. Persistence is
// asynchronous: mutating operations snapshot the data and hand the file
// write to a background goroutine, so callers on the matching path never
// wait on disk I/O.
type Store struct {
	path string
	log  *slog.Logger

	// writeMu serializes file writes; writers snapshot while holding it,
	// so a later write never lands with older data.
	writeMu sync.Mutex
	writers sync.WaitGroup

	mu   sync.Mutex
	data memory
}

// Option customizes Store construction.
type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// Open loads the adaptation memory at path, creating an empty one if the
// file does not exist. A corrupt file is logged and replaced with an empty
// memory rather than failing startup; learned data is a cache, not a source
// of truth.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("adapt: path must not be empty")
	}
	s := &Store{
		path: path,
		log:  slog.Default(),
		data: newMemory(),
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run.
	case err != nil:
		return nil, fmt.Errorf("adapt: read %s: %w", path, err)
	default:
		var loaded memory
		if jsonErr := json.Unmarshal(raw, &loaded); jsonErr != nil {
			s.log.Warn("adaptation memory corrupt, starting empty", "path", path, "error", jsonErr)
		} else {
			s.data = migrate(loaded)
		}
	}

	s.log.Info("adaptation memory loaded",
		"pronunciations", len(s.data.Pronunciation),
		"app_preferences", len(s.data.AppPreferences))
	return s, nil
}

// migrate fills in nil maps and upgrades older schema versions.
func migrate(m memory) memory {
	if m.Pronunciation == nil {
		m.Pronunciation = make(map[string]string)
	}
	if m.AppPreferences == nil {
		m.AppPreferences = make(map[string]string)
	}
	if m.PhraseShortcuts == nil {
		m.PhraseShortcuts = make(map[string]string)
	}
	if m.Corrections == nil {
		m.Corrections = make(map[string]Correction)
	}
	if m.UsageStats == nil {
		m.UsageStats = make(map[string]int)
	}
	m.Version = schemaVersion
	return m
}

// AddPronunciation records that the user says spoken when they mean correct.
// A no-op when the two are equal.
func (s *Store) AddPronunciation(spoken, correct string) {
	spoken = canon(spoken)
	correct = canon(correct)
	if spoken == correct || spoken == "" {
		return
	}
	s.mu.Lock()
	s.data.Pronunciation[spoken] = correct
	s.mu.Unlock()
	s.saveAsync()
	s.log.Info("learned pronunciation", "spoken", spoken, "correct", correct)
}

// Pronunciation returns the learned correction for spoken, or "" if none.
func (s *Store) Pronunciation(spoken string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Pronunciation[canon(spoken)]
}

// ApplyPronunciations rewrites each word of text through the learned
// pronunciation table. Output is lowercased.
func (s *Store) ApplyPronunciations(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapWordsLocked(text, s.data.Pronunciation)
}

// SetAppPreference maps a generic term ("browser") to the user's preferred
// app ("edge").
func (s *Store) SetAppPreference(generic, specific string) {
	generic = canon(generic)
	specific = canon(specific)
	if generic == "" || specific == "" {
		return
	}
	s.mu.Lock()
	s.data.AppPreferences[generic] = specific
	s.mu.Unlock()
	s.saveAsync()
	s.log.Info("set app preference", "generic", generic, "app", specific)
}

// AppPreference returns the preferred app for a generic term, or "".
func (s *Store) AppPreference(generic string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.AppPreferences[canon(generic)]
}

// ResolveAppReferences replaces generic app words in text with the user's
// preferred apps. Output is lowercased.
func (s *Store) ResolveAppReferences(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapWordsLocked(text, s.data.AppPreferences)
}

// AddShortcut maps a short phrase to a full command.
func (s *Store) AddShortcut(shortcut, expansion string) {
	shortcut = canon(shortcut)
	if shortcut == "" || expansion == "" {
		return
	}
	s.mu.Lock()
	s.data.PhraseShortcuts[shortcut] = expansion
	s.mu.Unlock()
	s.saveAsync()
	s.log.Info("added phrase shortcut", "shortcut", shortcut, "expansion", expansion)
}

// Expansion returns the stored expansion when text is exactly a shortcut,
// or "".
func (s *Store) Expansion(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.PhraseShortcuts[canon(text)]
}

// RecordCorrection notes that the user corrected wrong into correct. Once
// the same correction has been seen promoteAfter times, word-level
// differences are promoted into pronunciations, provided the phrases have
// the same word count and the differing word is longer than two runes.
func (s *Store) RecordCorrection(wrong, correct string) {
	wrong = canon(wrong)
	correct = canon(correct)
	if wrong == correct || wrong == "" {
		return
	}
	s.mu.Lock()

	key := wrong + "|" + correct
	c := s.data.Corrections[key]
	if c.Count == 0 {
		c.FirstSeen = time.Now()
	}
	c.Count++
	c.LastSeen = time.Now()
	s.data.Corrections[key] = c

	if c.Count >= promoteAfter {
		wrongWords := strings.Fields(wrong)
		correctWords := strings.Fields(correct)
		if len(wrongWords) == len(correctWords) {
			for i, w := range wrongWords {
				if w != correctWords[i] && len([]rune(w)) > 2 {
					s.data.Pronunciation[w] = correctWords[i]
				}
			}
		}
	}
	s.mu.Unlock()
	s.saveAsync()
}

// CorrectionCount returns how many times wrong has been corrected into
// correct.
func (s *Store) CorrectionCount(wrong, correct string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Corrections[canon(wrong)+"|"+canon(correct)].Count
}

// RecordUsage bumps the usage count for command. The file is written only
// every saveEvery-th recorded usage, keeping the hot path cheap.
func (s *Store) RecordUsage(command string) {
	command = canon(command)
	if command == "" {
		return
	}
	s.mu.Lock()
	s.data.UsageStats[command]++
	total := 0
	for _, n := range s.data.UsageStats {
		total += n
	}
	s.mu.Unlock()
	if total%saveEvery == 0 {
		s.saveAsync()
	}
}

// UsageCount returns how often command has been used.
func (s *Store) UsageCount(command string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.UsageStats[canon(command)]
}

// CommandCount is a command with its usage count.
type CommandCount struct {
	Command string
	Count   int
}

// FrequentCommands returns the n most used commands, most frequent first.
// Ties break alphabetically so the ordering is stable.
func (s *Store) FrequentCommands(n int) []CommandCount {
	s.mu.Lock()
	out := make([]CommandCount, 0, len(s.data.UsageStats))
	for cmd, count := range s.data.UsageStats {
		out = append(out, CommandCount{Command: cmd, Count: count})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Command < out[j].Command
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ProcessInput applies all adaptations to an utterance, in order: exact
// shortcut expansion first (which short-circuits), then pronunciations,
// then app preference resolution. Output is lowercased.
func (s *Store) ProcessInput(text string) string {
	if expansion := s.Expansion(text); expansion != "" {
		s.log.Info("expanded shortcut", "input", text, "expansion", expansion)
		return expansion
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	text = s.mapWordsLocked(text, s.data.Pronunciation)
	return s.mapWordsLocked(text, s.data.AppPreferences)
}

// Summary reports counts of everything learned.
func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.data.UsageStats {
		total += n
	}
	return Summary{
		Pronunciations:  len(s.data.Pronunciation),
		AppPreferences:  len(s.data.AppPreferences),
		PhraseShortcuts: len(s.data.PhraseShortcuts),
		Corrections:     len(s.data.Corrections),
		TotalCommands:   total,
		UniqueCommands:  len(s.data.UsageStats),
		LastUpdated:     s.data.LastUpdated,
	}
}

// Flush waits for in-flight background writes and then writes the current
// state to disk regardless of batching. Call on shutdown.
func (s *Store) Flush() error {
	s.writers.Wait()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return writeFile(s.path, snap)
}

// saveAsync persists best-effort in the background; persistence failures
// must not break command handling, and command handling must not wait on
// disk I/O. The snapshot is taken under writeMu so a later write never
// lands with older data.
func (s *Store) saveAsync() {
	s.writers.Add(1)
	go func() {
		defer s.writers.Done()
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		s.mu.Lock()
		snap := s.snapshotLocked()
		s.mu.Unlock()
		if err := writeFile(s.path, snap); err != nil {
			s.log.Error("failed to save adaptation memory", "path", s.path, "error", err)
		}
	}()
}

// snapshotLocked deep-copies the memory so it can be marshalled and written
// without holding s.mu. Caller holds s.mu.
func (s *Store) snapshotLocked() memory {
	s.data.LastUpdated = time.Now()
	return memory{
		Version:         s.data.Version,
		Pronunciation:   maps.Clone(s.data.Pronunciation),
		AppPreferences:  maps.Clone(s.data.AppPreferences),
		PhraseShortcuts: maps.Clone(s.data.PhraseShortcuts),
		Corrections:     maps.Clone(s.data.Corrections),
		UsageStats:      maps.Clone(s.data.UsageStats),
		LastUpdated:     s.data.LastUpdated,
	}
}

// writeFile writes atomically via a temp file rename so a crash mid-write
// never corrupts the memory.
func writeFile(path string, m memory) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("adapt: marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".adapt-*.json")
	if err != nil {
		return fmt.Errorf("adapt: create temp: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("adapt: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("adapt: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("adapt: rename: %w", err)
	}
	return nil
}

// mapWordsLocked replaces each whitespace-separated word of text via table.
// Caller holds s.mu.
func (s *Store) mapWordsLocked(text string, table map[string]string) string {
	words := strings.Fields(strings.ToLower(text))
	for i, w := range words {
		if repl, ok := table[w]; ok {
			words[i] = repl
		}
	}
	return strings.Join(words, " ")
}

func canon(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

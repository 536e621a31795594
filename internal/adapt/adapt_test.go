package adapt

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "adapt.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	if got := s.Summary(); got.Pronunciations != 0 || got.TotalCommands != 0 {
		t.Errorf("fresh store not empty: %+v", got)
	}
}

func TestOpenCorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "adapt.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open on corrupt file: %v", err)
	}
	if got := s.Summary().Pronunciations; got != 0 {
		t.Errorf("corrupt file should yield empty store, got %d pronunciations", got)
	}
}

func TestPronunciations(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	s.AddPronunciation("Crome", "chrome")
	s.AddPronunciation("same", "same") // no-op

	if got := s.Pronunciation("crome"); got != "chrome" {
		t.Errorf("Pronunciation = %q, want chrome", got)
	}
	if got := s.Pronunciation("same"); got != "" {
		t.Errorf("identical pair should not be stored, got %q", got)
	}
	if got := s.ApplyPronunciations("open Crome now"); got != "open chrome now" {
		t.Errorf("ApplyPronunciations = %q", got)
	}
}

func TestAppPreferences(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	s.SetAppPreference("browser", "edge")
	if got := s.AppPreference("Browser"); got != "edge" {
		t.Errorf("AppPreference = %q, want edge", got)
	}
	if got := s.ResolveAppReferences("open browser"); got != "open edge" {
		t.Errorf("ResolveAppReferences = %q", got)
	}
}

func TestShortcuts(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	s.AddShortcut("dev mode", "open vscode and open terminal")
	if got := s.Expansion("Dev Mode"); got != "open vscode and open terminal" {
		t.Errorf("Expansion = %q", got)
	}
	if got := s.Expansion("dev"); got != "" {
		t.Errorf("partial shortcut should not expand, got %q", got)
	}
}

func TestCorrectionPromotion(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	s.RecordCorrection("open crome", "open chrome")
	if got := s.Pronunciation("crome"); got != "" {
		t.Errorf("single correction should not promote, got %q", got)
	}

	s.RecordCorrection("open crome", "open chrome")
	if got := s.CorrectionCount("open crome", "open chrome"); got != 2 {
		t.Errorf("CorrectionCount = %d, want 2", got)
	}
	if got := s.Pronunciation("crome"); got != "chrome" {
		t.Errorf("second correction should promote to pronunciation, got %q", got)
	}
}

func TestCorrectionPromotionSkipsShortWords(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	s.RecordCorrection("go up", "go on")
	s.RecordCorrection("go up", "go on")
	if got := s.Pronunciation("up"); got != "" {
		t.Errorf("two-rune word should not be promoted, got %q", got)
	}
}

func TestCorrectionPromotionRequiresEqualWordCount(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	s.RecordCorrection("open crome please", "open chrome")
	s.RecordCorrection("open crome please", "open chrome")
	if got := s.Pronunciation("crome"); got != "" {
		t.Errorf("unequal word counts should not promote, got %q", got)
	}
}

func TestUsageStats(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	for range 3 {
		s.RecordUsage("open chrome")
	}
	s.RecordUsage("close tab")

	if got := s.UsageCount("open chrome"); got != 3 {
		t.Errorf("UsageCount = %d, want 3", got)
	}
	top := s.FrequentCommands(1)
	if len(top) != 1 || top[0].Command != "open chrome" || top[0].Count != 3 {
		t.Errorf("FrequentCommands(1) = %v", top)
	}
}

func TestConcurrentUsageRecordingAndScoring(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	// Usage recording triggers batched background saves; concurrent readers
	// on the scoring path must never wait on those writes or race them.
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				s.RecordUsage("open chrome")
				s.UsageCount("open chrome")
			}
		}()
	}
	wg.Wait()

	if got := s.UsageCount("open chrome"); got != 100 {
		t.Errorf("UsageCount = %d, want 100", got)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	s2, err := Open(s.path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := s2.UsageCount("open chrome"); got != 100 {
		t.Errorf("usage count on disk = %d, want 100", got)
	}
}

func TestProcessInput(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	s.AddShortcut("dev mode", "open vscode")
	s.AddPronunciation("crome", "chrome")
	s.SetAppPreference("browser", "edge")

	tests := []struct {
		in, want string
	}{
		{"dev mode", "open vscode"},       // shortcut short-circuits
		{"open crome", "open chrome"},     // pronunciation
		{"open browser", "open edge"},     // app preference
		{"open crome browser", "open chrome edge"},
		{"close tab", "close tab"}, // untouched
	}
	for _, tt := range tests {
		if got := s.ProcessInput(tt.in); got != tt.want {
			t.Errorf("ProcessInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "adapt.json")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s1.AddPronunciation("crome", "chrome")
	s1.SetAppPreference("browser", "firefox")
	s1.RecordUsage("open chrome")
	if err := s1.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := s2.Pronunciation("crome"); got != "chrome" {
		t.Errorf("pronunciation lost across restart, got %q", got)
	}
	if got := s2.AppPreference("browser"); got != "firefox" {
		t.Errorf("app preference lost across restart, got %q", got)
	}
	if got := s2.UsageCount("open chrome"); got != 1 {
		t.Errorf("usage count lost across restart, got %d", got)
	}
}

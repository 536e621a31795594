package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/varnahq/varna/internal/catalog"
	"github.com/varnahq/varna/internal/config"
)

const watcherValidYAML = `
logging:
  level: info
matching:
  fuzzy_threshold: 0.70
embeddings:
  name: ollama
  model: nomic-embed-text
`

const watcherUpdatedYAML = `
logging:
  level: debug
matching:
  fuzzy_threshold: 0.70
embeddings:
  name: ollama
  model: nomic-embed-text
`

const watcherInvalidYAML = `
logging:
  level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	w, err := config.NewWatcher(cfgPath, nil, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if cfg.Logging.Level != config.LogLevelInfo {
		t.Errorf("logging.level: got %q, want %q", cfg.Logging.Level, config.LogLevelInfo)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	var mu sync.Mutex
	var callbackOld, callbackNew *config.Config
	called := make(chan struct{}, 1)

	w, err := config.NewWatcher(cfgPath, func(old, new *config.Config) {
		mu.Lock()
		callbackOld = old
		callbackNew = new
		mu.Unlock()
		select {
		case called <- struct{}{}:
		default:
		}
	}, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	// Give the initial poll a moment, then update the file.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, cfgPath, watcherUpdatedYAML)

	// Wait for callback.
	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked within timeout")
	}

	mu.Lock()
	defer mu.Unlock()

	if callbackOld == nil || callbackNew == nil {
		t.Fatal("callback received nil configs")
	}
	if callbackOld.Logging.Level != config.LogLevelInfo {
		t.Errorf("old logging.level: got %q, want %q", callbackOld.Logging.Level, config.LogLevelInfo)
	}
	if callbackNew.Logging.Level != config.LogLevelDebug {
		t.Errorf("new logging.level: got %q, want %q", callbackNew.Logging.Level, config.LogLevelDebug)
	}

	// Current should return the new config.
	cur := w.Current()
	if cur.Logging.Level != config.LogLevelDebug {
		t.Errorf("Current() logging.level: got %q, want %q", cur.Logging.Level, config.LogLevelDebug)
	}
}

func TestWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	callCount := 0
	var mu sync.Mutex

	w, err := config.NewWatcher(cfgPath, func(old, new *config.Config) {
		mu.Lock()
		callCount++
		mu.Unlock()
	}, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	// Write invalid config.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, cfgPath, watcherInvalidYAML)

	// Wait enough polls for it to notice the change.
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	calls := callCount
	mu.Unlock()

	if calls != 0 {
		t.Errorf("callback should not be called for invalid config, got %d calls", calls)
	}

	// Current should still be the old valid config.
	cur := w.Current()
	if cur.Logging.Level != config.LogLevelInfo {
		t.Errorf("Current() should still have old config, got logging.level=%q", cur.Logging.Level)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	_, err := config.NewWatcher("/nonexistent/path.yaml", nil)
	if err == nil {
		t.Fatal("expected error for non-existent file, got nil")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	w, err := config.NewWatcher(cfgPath, nil, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Multiple stops should not panic.
	w.Stop()
	w.Stop()
	w.Stop()
}

const watcherCatalogYAML = `
candidates:
  - phrase: open chrome
    intent: open
    slots:
      app: chrome
browsers: [chrome]
`

const watcherCatalogUpdatedYAML = `
candidates:
  - phrase: open chrome
    intent: open
    slots:
      app: chrome
  - phrase: open firefox
    intent: open
    slots:
      app: firefox
browsers: [chrome, firefox]
`

func TestWatcher_CatalogReload(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	catPath := filepath.Join(dir, "catalog.yaml")
	writeFile(t, cfgPath, watcherValidYAML)
	writeFile(t, catPath, watcherCatalogYAML)

	reloaded := make(chan *catalog.Catalog, 1)
	w, err := config.NewWatcher(cfgPath, nil,
		config.WithInterval(50*time.Millisecond),
		config.WithCatalog(catPath, func(c *catalog.Catalog) {
			select {
			case reloaded <- c:
			default:
			}
		}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	if got := w.Catalog(); got == nil || got.Len() != 1 {
		t.Fatalf("initial catalog = %v, want 1 candidate", got)
	}

	time.Sleep(100 * time.Millisecond)
	writeFile(t, catPath, watcherCatalogUpdatedYAML)

	select {
	case c := <-reloaded:
		if c.Len() != 2 {
			t.Errorf("reloaded catalog has %d candidates, want 2", c.Len())
		}
		if _, ok := c.Lookup("open firefox"); !ok {
			t.Error("reloaded catalog missing \"open firefox\"")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("catalog callback was not invoked within timeout")
	}

	if got := w.Catalog().Len(); got != 2 {
		t.Errorf("Catalog() has %d candidates after reload, want 2", got)
	}
}

func TestWatcher_CatalogInitialLoadFails(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	_, err := config.NewWatcher(cfgPath, nil,
		config.WithCatalog(filepath.Join(dir, "missing.yaml"), nil))
	if err == nil {
		t.Fatal("expected error for missing catalog file, got nil")
	}
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	callCount := 0
	var mu sync.Mutex

	w, err := config.NewWatcher(cfgPath, func(old, new *config.Config) {
		mu.Lock()
		callCount++
		mu.Unlock()
	}, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	// Touch the file (update mtime) without changing content.
	time.Sleep(100 * time.Millisecond)
	now := time.Now().Add(time.Second)
	if err := os.Chtimes(cfgPath, now, now); err != nil {
		t.Fatalf("failed to touch file: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	calls := callCount
	mu.Unlock()

	if calls != 0 {
		t.Errorf("callback should not fire for touch-only, got %d calls", calls)
	}
}

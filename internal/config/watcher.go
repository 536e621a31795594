package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/varnahq/varna/internal/catalog"
)

// fileState is the last observed state of one polled file.
type fileState struct {
	mtime time.Time
	hash  [sha256.Size]byte
}

// Watcher polls the config file — and, when configured, the candidate
// catalog file — and delivers freshly parsed values when either changes.
// Polling (not fsnotify) keeps dependencies minimal; an mtime gate avoids
// hashing unchanged files and a content hash gate avoids re-parsing files
// that were touched without being edited.
//
// A file that stops parsing is warned about and its previous value kept;
// the broken revision is remembered, so the warning fires once per edit,
// not once per poll.
type Watcher struct {
	configPath  string
	catalogPath string
	interval    time.Duration
	onConfig    func(old, new *Config)
	onCatalog   func(*catalog.Catalog)

	mu      sync.Mutex
	current *Config
	cat     *catalog.Catalog
	files   map[string]fileState

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithCatalog adds the candidate catalog file at path to the poll set.
// onCatalog receives each newly parsed catalog; the caller typically hands
// it straight to the pipeline, which swaps its candidate set and drops the
// per-catalog matcher caches.
func WithCatalog(path string, onCatalog func(*catalog.Catalog)) WatcherOption {
	return func(w *Watcher) {
		w.catalogPath = path
		w.onCatalog = onCatalog
	}
}

// NewWatcher creates a watcher over the config file at configPath. Both the
// config and, when [WithCatalog] is given, the catalog are loaded immediately;
// an initial load failure of either is fatal. Polling starts in a background
// goroutine.
func NewWatcher(configPath string, onConfig func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		configPath: configPath,
		interval:   5 * time.Second,
		onConfig:   onConfig,
		files:      make(map[string]fileState),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	err := w.prime(configPath, func(data []byte) error {
		cfg, err := LoadFromReader(bytes.NewReader(data))
		if err != nil {
			return err
		}
		w.current = cfg
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}

	if w.catalogPath != "" {
		err := w.prime(w.catalogPath, func(data []byte) error {
			cat, err := catalog.LoadFromReader(bytes.NewReader(data))
			if err != nil {
				return err
			}
			w.cat = cat
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("config: watcher catalog load: %w", err)
		}
	}

	go w.poll()
	return w, nil
}

// Current returns the most recently parsed valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Catalog returns the most recently parsed valid catalog, or nil when no
// catalog file is watched.
func (w *Watcher) Catalog() *catalog.Catalog {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cat
}

// Stop stops the file watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.checkConfig()
			if w.catalogPath != "" {
				w.checkCatalog()
			}
		}
	}
}

func (w *Watcher) checkConfig() {
	data, ok := w.changed(w.configPath)
	if !ok {
		return
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		slog.Warn("watcher: config did not parse, keeping previous", "path", w.configPath, "err", err)
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.mu.Unlock()

	slog.Info("watcher: configuration reloaded", "path", w.configPath)
	// Outside the lock so the callback can safely call Current().
	if w.onConfig != nil {
		w.onConfig(old, cfg)
	}
}

func (w *Watcher) checkCatalog() {
	data, ok := w.changed(w.catalogPath)
	if !ok {
		return
	}
	cat, err := catalog.LoadFromReader(bytes.NewReader(data))
	if err != nil {
		slog.Warn("watcher: catalog did not parse, keeping previous", "path", w.catalogPath, "err", err)
		return
	}

	w.mu.Lock()
	w.cat = cat
	w.mu.Unlock()

	slog.Info("watcher: catalog reloaded", "path", w.catalogPath, "candidates", cat.Len())
	if w.onCatalog != nil {
		w.onCatalog(cat)
	}
}

// prime loads a file for the first time and records its state. Parse errors
// are fatal here: a file that is broken at startup is a deployment problem,
// not a transient edit.
func (w *Watcher) prime(path string, parse func(data []byte) error) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := parse(data); err != nil {
		return err
	}
	w.files[path] = fileState{mtime: info.ModTime(), hash: sha256.Sum256(data)}
	return nil
}

// changed reports whether the file at path has new content since the last
// poll, returning that content when it does. The observed state is recorded
// whether or not the caller ends up accepting the content.
func (w *Watcher) changed(path string) ([]byte, bool) {
	info, err := os.Stat(path)
	if err != nil {
		slog.Warn("watcher: cannot stat file", "path", path, "err", err)
		return nil, false
	}

	w.mu.Lock()
	last := w.files[path]
	w.mu.Unlock()

	if info.ModTime().Equal(last.mtime) {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("watcher: cannot read file", "path", path, "err", err)
		return nil, false
	}
	hash := sha256.Sum256(data)

	w.mu.Lock()
	w.files[path] = fileState{mtime: info.ModTime(), hash: hash}
	w.mu.Unlock()

	return data, hash != last.hash
}

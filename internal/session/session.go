// Package session tracks what the user is doing across a session: the
// operating mode, the active and previous app, the last browser and project,
// and a bounded command history. It resolves context-dependent phrases like
// "close it" against that state.
//
// Mode never changes through free-text inference. Transitions happen only
// through the app-to-mode table (driven by foreground window titles) or
// through explicit open/close observations.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mode is the coarse operating state of the session.
type Mode string

const (
	ModeIdle        Mode = "idle"
	ModeBrowsing    Mode = "browsing"
	ModeCoding      Mode = "coding"
	ModeChatting    Mode = "chatting"
	ModeSystem      Mode = "system"
	ModeFileManager Mode = "file_manager"
)

// ErrNoContext is returned when a pronoun phrase is recognized but the
// session holds no referent for it. Callers should ask the user to be
// specific instead of guessing.
var ErrNoContext = errors.New("session: no context for reference")

// defaultHistoryCapacity bounds the command history ring.
const defaultHistoryCapacity = 50

// ActionKind classifies the concrete action a resolved reference maps to.
type ActionKind string

const (
	ActionOpenApp  ActionKind = "open_app"
	ActionCloseApp ActionKind = "close_app"
	ActionOpenPath ActionKind = "open_path"
)

// Action is the concrete operation a resolved pronoun stands for. The
// session only names it; execution happens elsewhere.
type Action struct {
	Kind   ActionKind
	Target string
}

// Resolution is a pronoun phrase resolved to a command key and action.
type Resolution struct {
	Key    string
	Action Action
}

// CommandRecord is one resolved command kept in the history ring.
type CommandRecord struct {
	ID        string
	Key       string // e.g. "open chrome"
	Intent    string
	Entity    string
	Parameter string
	// Undo names the inverse operation, empty when the command cannot be
	// undone.
	Undo      string
	Timestamp time.Time
}

// defaultAppModes maps app or window-title substrings to modes. Lookup picks
// the longest matching key so "visual studio code" beats "studio".
var defaultAppModes = map[string]Mode{
	"chrome":        ModeBrowsing,
	"firefox":       ModeBrowsing,
	"edge":          ModeBrowsing,
	"msedge":        ModeBrowsing,
	"code":          ModeCoding,
	"visual studio": ModeCoding,
	"terminal":      ModeCoding,
	"powershell":    ModeCoding,
	"cmd":           ModeCoding,
	"vim":           ModeCoding,
	"discord":       ModeChatting,
	"slack":         ModeChatting,
	"teams":         ModeChatting,
	"whatsapp":      ModeChatting,
	"task manager":  ModeSystem,
	"taskmgr":       ModeSystem,
	"settings":      ModeSystem,
	"control panel": ModeSystem,
	"explorer":      ModeFileManager,
	"file explorer": ModeFileManager,
	"files":         ModeFileManager,
}

// defaultAppProcesses maps spoken app names to their process names, for apps
// where the two differ.
var defaultAppProcesses = map[string]string{
	"notepad":    "notepad",
	"chrome":     "chrome",
	"firefox":    "firefox",
	"edge":       "msedge",
	"calc":       "CalculatorApp",
	"calculator": "CalculatorApp",
	"paint":      "mspaint",
	"explorer":   "explorer",
	"cmd":        "cmd",
	"powershell": "powershell",
	"code":       "Code",
	"vscode":     "Code",
	"word":       "WINWORD",
	"excel":      "EXCEL",
	"powerpoint": "POWERPNT",
}

var defaultBrowsers = map[string]bool{
	"chrome":  true,
	"firefox": true,
	"edge":    true,
}

// folderTargets are "open X" targets that are places, not apps; they never
// become the active app.
var folderTargets = map[string]bool{
	"downloads": true,
	"documents": true,
	"desktop":   true,
}

var (
	openRe  = regexp.MustCompile(`^open\s+(.+)$`)
	closeRe = regexp.MustCompile(`^close\s+(.+)$`)
)

// Context is the session state machine. Safe for concurrent use.
type Context struct {
	log *slog.Logger

	mu             sync.Mutex
	mode           Mode
	activeApp      string
	previousApp    string
	lastBrowser    string
	lastProject    string
	lastIntent     string
	lastEntity     string
	lastParameter  string
	lastActionTime time.Time

	history  []CommandRecord
	start    int // index of oldest record
	capacity int

	appModes     map[string]Mode
	appProcesses map[string]string
	browsers     map[string]bool
}

// Option customizes Context construction.
type Option func(*Context)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *Context) {
		c.log = log
	}
}

// WithHistoryCapacity overrides the command history capacity. Values < 1 are
// ignored.
func WithHistoryCapacity(n int) Option {
	return func(c *Context) {
		if n >= 1 {
			c.capacity = n
		}
	}
}

// WithAppModeTable replaces the app-to-mode table.
func WithAppModeTable(table map[string]Mode) Option {
	return func(c *Context) {
		c.appModes = table
	}
}

// WithBrowsers replaces the set of apps treated as browsers.
func WithBrowsers(browsers map[string]bool) Option {
	return func(c *Context) {
		c.browsers = browsers
	}
}

// New creates a Context in ModeIdle with empty history.
func New(opts ...Option) *Context {
	c := &Context{
		log:          slog.Default(),
		mode:         ModeIdle,
		capacity:     defaultHistoryCapacity,
		appModes:     defaultAppModes,
		appProcesses: defaultAppProcesses,
		browsers:     defaultBrowsers,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode returns the current operating mode.
func (c *Context) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// ActiveApp returns the most recently opened or closed app.
func (c *Context) ActiveApp() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeApp
}

// PreviousApp returns the app that was active before the current one.
func (c *Context) PreviousApp() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.previousApp
}

// LastBrowser returns the most recently used browser, or "".
func (c *Context) LastBrowser() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastBrowser
}

// LastProject returns the most recently opened project path, or "".
func (c *Context) LastProject() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastProject
}

// SetProject records a project or folder path the user opened.
func (c *Context) SetProject(path string) {
	if path == "" {
		return
	}
	c.mu.Lock()
	c.lastProject = path
	c.mu.Unlock()
	c.log.Info("session: project updated", "path", path)
}

// ObserveWindowTitle updates the mode from a foreground window title via
// the app-to-mode table, preferring the longest matching key. Unmatched
// titles leave the mode unchanged.
func (c *Context) ObserveWindowTitle(title string) {
	title = strings.ToLower(title)
	c.mu.Lock()
	defer c.mu.Unlock()

	bestLen := 0
	var bestMode Mode
	for key, mode := range c.appModes {
		if strings.Contains(title, key) && len(key) > bestLen {
			bestLen = len(key)
			bestMode = mode
		}
	}
	if bestLen == 0 || bestMode == c.mode {
		return
	}
	c.log.Info("session: mode transition", "from", c.mode, "to", bestMode, "title", title)
	c.mode = bestMode
}

// RecordCommand appends a resolved command to the history ring and updates
// app tracking from "open X"/"close X" keys. A record without an ID or
// timestamp gets them filled in. Oldest records are evicted once the ring is
// full.
func (c *Context) RecordCommand(rec CommandRecord) CommandRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	key := strings.ToLower(strings.TrimSpace(rec.Key))

	c.mu.Lock()
	defer c.mu.Unlock()

	if m := openRe.FindStringSubmatch(key); m != nil {
		app := strings.TrimSpace(m[1])
		if !folderTargets[app] {
			c.trackAppLocked(app)
			if mode, ok := c.appModes[app]; ok && mode != c.mode {
				c.log.Info("session: mode transition", "from", c.mode, "to", mode, "app", app)
				c.mode = mode
			}
		}
	} else if m := closeRe.FindStringSubmatch(key); m != nil {
		c.trackAppLocked(strings.TrimSpace(m[1]))
	}

	c.lastIntent = rec.Intent
	c.lastEntity = rec.Entity
	c.lastParameter = rec.Parameter
	c.lastActionTime = rec.Timestamp

	if len(c.history) < c.capacity {
		c.history = append(c.history, rec)
	} else {
		c.history[c.start] = rec
		c.start = (c.start + 1) % c.capacity
	}
	return rec
}

func (c *Context) trackAppLocked(app string) {
	if app == "" || app == c.activeApp {
		return
	}
	c.previousApp = c.activeApp
	c.activeApp = app
	if c.browsers[app] {
		c.lastBrowser = app
	}
}

// ResolvePronoun resolves the fixed set of context phrases. Unrecognized
// text returns (zero, false, nil); a recognized phrase with no referent
// returns ErrNoContext.
func (c *Context) ResolvePronoun(text string) (Resolution, bool, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	c.mu.Lock()
	defer c.mu.Unlock()

	switch text {
	case "close it", "close that":
		if c.activeApp == "" {
			return Resolution{}, true, fmt.Errorf("%w: no app to close", ErrNoContext)
		}
		return Resolution{
			Key:    "close " + c.activeApp,
			Action: Action{Kind: ActionCloseApp, Target: c.processFor(c.activeApp)},
		}, true, nil

	case "open it", "open it again", "reopen it", "open that again":
		if c.activeApp == "" {
			return Resolution{}, true, fmt.Errorf("%w: no app to reopen", ErrNoContext)
		}
		return Resolution{
			Key:    "open " + c.activeApp,
			Action: Action{Kind: ActionOpenApp, Target: c.activeApp},
		}, true, nil

	case "open last project", "open last folder":
		if c.lastProject == "" {
			return Resolution{}, true, fmt.Errorf("%w: no project recorded", ErrNoContext)
		}
		return Resolution{
			Key:    "open " + c.lastProject,
			Action: Action{Kind: ActionOpenPath, Target: c.lastProject},
		}, true, nil

	case "go back":
		// "go back" doubles as a browser command; without a recorded project
		// it falls through to normal matching instead of failing.
		if c.lastProject == "" {
			return Resolution{}, false, nil
		}
		return Resolution{
			Key:    "open " + c.lastProject,
			Action: Action{Kind: ActionOpenPath, Target: c.lastProject},
		}, true, nil
	}
	return Resolution{}, false, nil
}

func (c *Context) processFor(app string) string {
	if proc, ok := c.appProcesses[app]; ok {
		return proc
	}
	return app
}

// Last returns the n most recent records in chronological order. n <= 0 or
// n larger than the history returns everything.
func (c *Context) Last(n int) []CommandRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := len(c.history)
	if n <= 0 || n > size {
		n = size
	}
	out := make([]CommandRecord, 0, n)
	for i := size - n; i < size; i++ {
		out = append(out, c.history[(c.start+i)%size])
	}
	return out
}

// RecentKeys returns the keys of the n most recent commands, oldest first.
func (c *Context) RecentKeys(n int) []string {
	recs := c.Last(n)
	keys := make([]string, len(recs))
	for i, r := range recs {
		keys[i] = strings.ToLower(r.Key)
	}
	return keys
}

// UndoableCommand returns the most recent record with a non-empty undo
// handler, scanning newest to oldest.
func (c *Context) UndoableCommand() (CommandRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := len(c.history)
	for i := size - 1; i >= 0; i-- {
		rec := c.history[(c.start+i)%size]
		if rec.Undo != "" {
			return rec, true
		}
	}
	return CommandRecord{}, false
}

// HistoryLen returns the number of records currently held.
func (c *Context) HistoryLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// Status returns a short human-readable summary for spoken status replies.
func (c *Context) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var parts []string
	if c.activeApp != "" {
		parts = append(parts, "Active app: "+c.activeApp)
	}
	if c.lastProject != "" {
		parts = append(parts, "Last project: "+c.lastProject)
	}
	parts = append(parts, "Mode: "+string(c.mode))
	return strings.Join(parts, ". ")
}

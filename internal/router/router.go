// Package router pre-classifies utterances into high-level intent
// categories before the full matching pipeline runs. Obvious commands get a
// category and handler hint from a single regexp pass, which lets the
// pipeline skip the embedding-backed semantic stage entirely for them.
package router

import (
	"regexp"
	"strings"
	"sync"
)

// Category is a coarse intent class used for routing decisions.
type Category string

// Routing categories, roughly one per handler family.
const (
	CategoryAppControl Category = "app_control"
	CategorySearch     Category = "search"
	CategoryNavigation Category = "navigation"
	CategoryTyping     Category = "typing"
	CategorySystem     Category = "system"
	CategoryFileOp     Category = "file_operation"
	CategorySelection  Category = "selection"
	CategoryClipboard  Category = "clipboard"
	CategoryDeveloper  Category = "developer"
	CategoryContext    Category = "context"
	CategoryUnknown    Category = "unknown"
)

// routeConfidence is assigned to every pattern hit. The patterns are anchored
// and unambiguous, so a hit is near-certain.
const routeConfidence = 0.95

// Result describes how an utterance was routed.
type Result struct {
	Category   Category
	Confidence float64
	// Handler is a hint naming the handler family for the utterance, empty
	// for CategoryUnknown.
	Handler string
	// Entity is the last captured group of the matching pattern, typically
	// the argument of the command ("chrome" in "open chrome").
	Entity string
	// SkipSemantic is true when the category is simple enough that the
	// embedding stage adds nothing.
	SkipSemantic bool
}

type route struct {
	re           *regexp.Regexp
	category     Category
	handler      string
	skipSemantic bool
}

// routes are tried in order; first match wins, so specific patterns come
// before catch-alls within a category.
var routes = []route{
	{regexp.MustCompile(`^open\s+(.+)$`), CategoryAppControl, "open_app", true},
	{regexp.MustCompile(`^close\s+(.+)$`), CategoryAppControl, "close_app", true},
	{regexp.MustCompile(`^switch\s+to\s+(.+)$`), CategoryAppControl, "switch_app", true},
	{regexp.MustCompile(`^minimize\s+(.+)$`), CategoryAppControl, "minimize_app", true},
	{regexp.MustCompile(`^maximize\s+(.+)$`), CategoryAppControl, "maximize_app", true},
	{regexp.MustCompile(`^(?:launch|start|fire up|bring up)\s+(.+)$`), CategoryAppControl, "open_app", true},

	{regexp.MustCompile(`^search\s+youtube\s+(.+)$`), CategorySearch, "search_youtube", true},
	{regexp.MustCompile(`^search\s+(.+)$`), CategorySearch, "search_web", true},
	{regexp.MustCompile(`^google\s+(.+)$`), CategorySearch, "search_web", true},
	{regexp.MustCompile(`^youtube\s+(.+)$`), CategorySearch, "search_youtube", true},

	{regexp.MustCompile(`^scroll\s+(up|down|left|right)`), CategoryNavigation, "scroll", true},
	{regexp.MustCompile(`^go\s+to\s+tab\s+(\d+)$`), CategoryNavigation, "go_to_tab", true},
	{regexp.MustCompile(`^(next|previous)\s+tab$`), CategoryNavigation, "tab_nav", true},
	{regexp.MustCompile(`^(new|close|reopen)\s+tab$`), CategoryNavigation, "tab_control", true},
	{regexp.MustCompile(`^go\s+(back|forward)$`), CategoryNavigation, "browser_nav", true},
	{regexp.MustCompile(`^refresh$`), CategoryNavigation, "refresh", true},

	{regexp.MustCompile(`^(?:type|write|enter)\s+(.+)$`), CategoryTyping, "type_text", true},

	{regexp.MustCompile(`^(increase|decrease|mute)\s+volume$`), CategorySystem, "volume", true},
	{regexp.MustCompile(`^screenshot`), CategorySystem, "screenshot", true},
	// Power commands keep the semantic stage so the confirmation logic sees
	// the full picture.
	{regexp.MustCompile(`^(shutdown|restart|log off)$`), CategorySystem, "power", false},
	{regexp.MustCompile(`^lock\s+screen$`), CategorySystem, "lock", true},

	{regexp.MustCompile(`^(?:copy|cut|paste|delete|undo|redo|save)(\s+.+)?$`), CategoryFileOp, "file_op", true},

	{regexp.MustCompile(`^select\s+(all|line|word)`), CategorySelection, "select", true},
	{regexp.MustCompile(`^select\s+(.+)$`), CategorySelection, "select_text", true},

	{regexp.MustCompile(`^(?:read\s+)?clipboard$`), CategoryClipboard, "clipboard", true},
	{regexp.MustCompile(`^paste\s+(\d+)`), CategoryClipboard, "paste_item", true},

	{regexp.MustCompile(`^git\s+(.+)$`), CategoryDeveloper, "git", true},
	{regexp.MustCompile(`^npm\s+(.+)$`), CategoryDeveloper, "npm", true},
	{regexp.MustCompile(`^kill\s+port\s+(\d+)$`), CategoryDeveloper, "kill_port", true},

	{regexp.MustCompile(`^(repeat|again|do it again|one more time)$`), CategoryContext, "repeat", true},
	{regexp.MustCompile(`^(?:undo|redo)\s+(that|this)?$`), CategoryContext, "undo_redo", true},
	{regexp.MustCompile(`^(?:close|minimize|maximize)\s+this$`), CategoryContext, "this_window", true},
}

// Router classifies utterances against the fixed route table and keeps
// per-category hit counts. Safe for concurrent use.
type Router struct {
	mu    sync.Mutex
	stats map[Category]int
}

// New creates a Router with zeroed statistics.
func New() *Router {
	return &Router{stats: make(map[Category]int)}
}

// Route classifies text. Unmatched or empty input yields CategoryUnknown
// with zero confidence, meaning the full pipeline must run.
func (r *Router) Route(text string) Result {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		r.count(CategoryUnknown)
		return Result{Category: CategoryUnknown}
	}
	for _, rt := range routes {
		m := rt.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		entity := ""
		if len(m) > 1 {
			entity = strings.TrimSpace(m[len(m)-1])
		}
		r.count(rt.category)
		return Result{
			Category:     rt.category,
			Confidence:   routeConfidence,
			Handler:      rt.handler,
			Entity:       entity,
			SkipSemantic: rt.skipSemantic,
		}
	}
	r.count(CategoryUnknown)
	return Result{Category: CategoryUnknown}
}

// ShouldSkipSemantic reports whether the semantic stage can be skipped for
// text.
func (r *Router) ShouldSkipSemantic(text string) bool {
	return r.Route(text).SkipSemantic
}

// Stats returns a copy of the per-category hit counts.
func (r *Router) Stats() map[Category]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Category]int, len(r.stats))
	for k, v := range r.stats {
		out[k] = v
	}
	return out
}

// ResetStats zeroes the hit counts.
func (r *Router) ResetStats() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = make(map[Category]int)
}

func (r *Router) count(c Category) {
	r.mu.Lock()
	r.stats[c]++
	r.mu.Unlock()
}

// Len returns the number of routing patterns, for startup logging.
func Len() int {
	return len(routes)
}

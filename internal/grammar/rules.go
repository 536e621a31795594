package grammar

import "regexp"

// defaultRules returns the built-in template list. Order is significant:
// fixed phrases and "this/it" forms come before the open-capture rules that
// would otherwise swallow them ("minimize this" must hit minimize_this, not
// minimize with target="this").
func defaultRules() []rule {
	mk := func(name, pattern, intent string, confidence float64) rule {
		return rule{
			name:       name,
			re:         regexp.MustCompile(pattern),
			intent:     intent,
			confidence: confidence,
		}
	}

	return []rule{
		// Context phrases and fixed forms first.
		mk("repeat", `^(?:repeat|do it again|again)$`, "repeat", 0.95),
		mk("close_this", `^close\s+(?:this|it)$`, "close_this", 0.95),
		mk("minimize_this", `^minimi[sz]e\s+(?:this|it)$`, "minimize_this", 0.95),
		mk("maximize_this", `^maximi[sz]e\s+(?:this|it)$`, "maximize_this", 0.95),

		// Tabs.
		mk("new_tab", `^(?:new|open)\s+tab$`, "new_tab", 0.95),
		mk("close_tab", `^close\s+tab$`, "close_tab", 0.95),
		mk("next_tab", `^(?:next|right)\s+tab$`, "next_tab", 0.95),
		mk("prev_tab", `^(?:previous|prev|left)\s+tab$`, "prev_tab", 0.95),
		mk("tab_number", `^(?:go to\s+)?tab\s+(?P<number>\d+)$`, "tab_number", 0.95),

		// Navigation.
		mk("go_back", `^go\s+back$`, "go_back", 0.95),
		mk("go_forward", `^go\s+forward$`, "go_forward", 0.95),

		// Scrolling.
		mk("scroll_top", `^scroll\s+(?:to\s+)?top$`, "scroll_top", 0.95),
		mk("scroll_bottom", `^scroll\s+(?:to\s+)?bottom$`, "scroll_bottom", 0.95),
		mk("scroll_down", `^scroll\s+(?:a\s+)?(?P<amount>little|lot|bit)?\s*down$`, "scroll_down", 0.90),
		mk("scroll_up", `^scroll\s+(?:a\s+)?(?P<amount>little|lot|bit)?\s*up$`, "scroll_up", 0.90),

		// Selection.
		mk("select_all", `^select\s+all(?:\s+text)?$`, "select_all", 0.95),
		mk("select_line", `^select\s+(?:this\s+)?line$`, "select_line", 0.95),
		mk("select_word", `^select\s+(?P<word>\w+)$`, "select_word", 0.90),

		// Clipboard.
		mk("copy", `^(?:copy|copy this)$`, "copy", 0.95),
		mk("paste", `^(?:paste|paste it)$`, "paste", 0.95),
		mk("cut", `^(?:cut|cut this)$`, "cut", 0.95),

		// Undo/redo.
		mk("undo", `^undo$`, "undo", 0.95),
		mk("redo", `^redo$`, "redo", 0.95),

		// Keys.
		mk("send_enter", `^(?:send|send it|press enter)$`, "send_enter", 0.95),
		mk("press_key", `^press\s+(?P<key>.+)$`, "press_key", 0.90),

		// Files.
		mk("save_as", `^save\s+as\s+(?P<filename>.+)$`, "save_as", 0.90),
		mk("save", `^save(?:\s+file)?$`, "save", 0.95),

		// Screenshot.
		mk("screenshot", `^(?:screenshot|capture|take screenshot)(?:\s+as\s+(?P<name>.+))?$`, "screenshot", 0.90),

		// System.
		mk("shutdown", `^(?:shutdown|shut down)(?:\s+(?:system|computer))?$`, "shutdown", 0.90),
		mk("restart", `^restart(?:\s+(?:system|computer))?$`, "restart", 0.90),
		mk("lock", `^lock(?:\s+(?:screen|computer))?$`, "lock", 0.90),

		// Volume.
		mk("volume_up", `^(?:volume up|increase volume|louder)$`, "volume_up", 0.90),
		mk("volume_down", `^(?:volume down|decrease volume|quieter|softer)$`, "volume_down", 0.90),
		mk("mute", `^(?:mute|unmute)$`, "mute", 0.95),

		// Monitoring and scheduling.
		mk("monitor_process", `^(?:monitor|check|watch)\s+(?P<process>.+?)\s+(?:memory|cpu|usage)$`, "monitor", 0.85),
		mk("schedule_command", `^schedule\s+(?P<command>.+?)\s+(?:at|in)\s+(?P<time>.+)$`, "schedule", 0.85),

		// Open-capture app and content rules last.
		mk("open_app", `^(?:open|launch|start|run|fire up|bring up)\s+(?P<app>.+)$`, "open", 0.95),
		mk("close_app", `^(?:close|quit|exit|kill|terminate|stop|end)\s+(?P<app>.+)$`, "close", 0.95),
		mk("switch_app", `^(?:switch to|go to|focus|activate)\s+(?P<app>.+)$`, "switch", 0.90),
		mk("search_web", `^(?:search|google|look up|find)\s+(?:for\s+)?(?P<query>.+)$`, "search", 0.90),
		mk("type_text", `^(?:type|write|enter)\s+(?P<text>.+)$`, "type", 0.95),
		mk("go_to_location", `^go\s+to\s+(?P<location>.+)$`, "go_to", 0.90),
	}
}

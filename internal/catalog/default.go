package catalog

// Default returns the built-in catalog: the stock desktop command set, mode
// affinities, and browser list. Used when no catalog file is configured and
// by tests that need a realistic candidate set.
func Default() *Catalog {
	candidates := []Candidate{
		{Phrase: "open chrome", Intent: "open", Slots: map[string]string{"app": "chrome"}},
		{Phrase: "open firefox", Intent: "open", Slots: map[string]string{"app": "firefox"}},
		{Phrase: "open edge", Intent: "open", Slots: map[string]string{"app": "edge"}},
		{Phrase: "open notepad", Intent: "open", Slots: map[string]string{"app": "notepad"}},
		{Phrase: "open vscode", Intent: "open", Slots: map[string]string{"app": "vscode"}},
		{Phrase: "open calculator", Intent: "open", Slots: map[string]string{"app": "calculator"}},
		{Phrase: "open file explorer", Intent: "open", Slots: map[string]string{"app": "file explorer"}},
		{Phrase: "open task manager", Intent: "open", Slots: map[string]string{"app": "task manager"}},
		{Phrase: "open command prompt", Intent: "open", Slots: map[string]string{"app": "command prompt"}},
		{Phrase: "open powershell", Intent: "open", Slots: map[string]string{"app": "powershell"}},
		{Phrase: "open downloads", Intent: "open", Slots: map[string]string{"folder": "downloads"}},
		{Phrase: "open documents", Intent: "open", Slots: map[string]string{"folder": "documents"}},
		{Phrase: "close chrome", Intent: "close", Slots: map[string]string{"app": "chrome"}},
		{Phrase: "close firefox", Intent: "close", Slots: map[string]string{"app": "firefox"}},
		{Phrase: "close edge", Intent: "close", Slots: map[string]string{"app": "edge"}},
		{Phrase: "close notepad", Intent: "close", Slots: map[string]string{"app": "notepad"}},
		{Phrase: "close vscode", Intent: "close", Slots: map[string]string{"app": "vscode"}},
		{Phrase: "close calculator", Intent: "close", Slots: map[string]string{"app": "calculator"}},
		{Phrase: "switch to chrome", Intent: "switch", Slots: map[string]string{"app": "chrome"}},
		{Phrase: "switch to vscode", Intent: "switch", Slots: map[string]string{"app": "vscode"}},
		{Phrase: "new tab", Intent: "new_tab"},
		{Phrase: "close tab", Intent: "close_tab"},
		{Phrase: "next tab", Intent: "next_tab"},
		{Phrase: "previous tab", Intent: "prev_tab"},
		{Phrase: "go back", Intent: "go_back"},
		{Phrase: "go forward", Intent: "go_forward"},
		{Phrase: "refresh", Intent: "refresh"},
		{Phrase: "scroll down", Intent: "scroll_down"},
		{Phrase: "scroll up", Intent: "scroll_up"},
		{Phrase: "copy", Intent: "copy"},
		{Phrase: "paste", Intent: "paste"},
		{Phrase: "cut", Intent: "cut"},
		{Phrase: "undo", Intent: "undo"},
		{Phrase: "redo", Intent: "redo"},
		{Phrase: "save", Intent: "save"},
		{Phrase: "select all", Intent: "select_all"},
		{Phrase: "take screenshot", Intent: "screenshot"},
		{Phrase: "lock screen", Intent: "lock"},
		{Phrase: "volume up", Intent: "volume_up"},
		{Phrase: "volume down", Intent: "volume_down"},
		{Phrase: "mute", Intent: "mute"},
	}

	modeCommands := map[string][]string{
		"browsing":     {"search", "new tab", "close tab", "next tab", "previous tab", "go back", "go forward", "refresh", "scroll down", "scroll up"},
		"coding":       {"save", "undo", "redo", "copy", "paste", "cut", "select all", "find"},
		"chatting":     {"send", "type", "emoji"},
		"system":       {"shutdown", "restart", "lock screen", "sleep"},
		"file_manager": {"copy", "paste", "cut", "open downloads", "open documents"},
	}

	browsers := []string{"chrome", "firefox", "edge"}

	c, err := New(candidates, modeCommands, browsers)
	if err != nil {
		// The built-in table is validated by tests; a failure here is a
		// programming error.
		panic(err)
	}
	return c
}

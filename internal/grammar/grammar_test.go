package grammar_test

import (
	"testing"

	"github.com/varnahq/varna/internal/grammar"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	m := grammar.New()

	tests := []struct {
		text       string
		wantIntent string
		wantEnts   map[string]string
		wantConf   float64
	}{
		{"open chrome", "open", map[string]string{"app": "chrome"}, 0.95},
		{"launch firefox", "open", map[string]string{"app": "firefox"}, 0.95},
		{"close notepad", "close", map[string]string{"app": "notepad"}, 0.95},
		{"switch to vscode", "switch", map[string]string{"app": "vscode"}, 0.90},
		{"search for golang slices", "search", map[string]string{"query": "golang slices"}, 0.90},
		{"type hello world", "type", map[string]string{"text": "hello world"}, 0.95},
		{"go back", "go_back", map[string]string{}, 0.95},
		{"tab 3", "tab_number", map[string]string{"number": "3"}, 0.95},
		{"save as notes.txt", "save_as", map[string]string{"filename": "notes.txt"}, 0.90},
		{"schedule backup at midnight", "schedule", map[string]string{"command": "backup", "time": "midnight"}, 0.85},
	}

	for _, tt := range tests {
		match, ok := m.Extract(tt.text)
		if !ok {
			t.Errorf("Extract(%q): no match", tt.text)
			continue
		}
		if match.Intent != tt.wantIntent {
			t.Errorf("Extract(%q): intent %q, want %q", tt.text, match.Intent, tt.wantIntent)
		}
		if match.Confidence != tt.wantConf {
			t.Errorf("Extract(%q): confidence %v, want %v", tt.text, match.Confidence, tt.wantConf)
		}
		for k, v := range tt.wantEnts {
			if match.Entities[k] != v {
				t.Errorf("Extract(%q): entity %q = %q, want %q", tt.text, k, match.Entities[k], v)
			}
		}
	}
}

func TestExtract_OrderingMostSpecificFirst(t *testing.T) {
	t.Parallel()

	m := grammar.New()

	// "this/it" and fixed-phrase forms must win over the open-capture rules.
	tests := []struct {
		text       string
		wantIntent string
	}{
		{"close it", "close_this"},
		{"close this", "close_this"},
		{"minimize this", "minimize_this"},
		{"new tab", "new_tab"},
		{"open tab", "new_tab"},
		{"select all", "select_all"},
		{"select line", "select_line"},
		{"go to tab 4", "tab_number"},
		{"go to chrome", "switch"},
	}

	for _, tt := range tests {
		match, ok := m.Extract(tt.text)
		if !ok {
			t.Errorf("Extract(%q): no match", tt.text)
			continue
		}
		if match.Intent != tt.wantIntent {
			t.Errorf("Extract(%q): intent %q, want %q", tt.text, match.Intent, tt.wantIntent)
		}
	}
}

func TestExtract_NoMatch(t *testing.T) {
	t.Parallel()

	m := grammar.New()
	for _, text := range []string{"", "asdf qwerty zxcv", "the weather is nice"} {
		if _, ok := m.Extract(text); ok {
			t.Errorf("Extract(%q): matched, want no match", text)
		}
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	m := grammar.New()

	full := m.Score("open chrome", "open chrome")
	if full != 0.95 {
		t.Errorf("Score(open chrome, open chrome) = %v, want 0.95", full)
	}

	partial := m.Score("open chrome", "new tab")
	if partial >= full {
		t.Errorf("unrelated candidate score %v, want < %v", partial, full)
	}
	if partial == 0 {
		t.Error("unrelated candidate should earn partial credit, got 0")
	}

	if got := m.Score("gibberish input", "open chrome"); got != 0 {
		t.Errorf("Score with no template hit = %v, want 0", got)
	}
}

func TestMatchCommand(t *testing.T) {
	t.Parallel()

	m := grammar.New()
	phrases := []string{"open chrome", "open firefox", "close chrome", "new tab"}

	cmd, conf, ok := m.MatchCommand("launch chrome", phrases)
	if !ok {
		t.Fatal("MatchCommand(launch chrome): no match")
	}
	if cmd != "open chrome" {
		t.Errorf("MatchCommand = %q, want %q", cmd, "open chrome")
	}
	if conf != 0.95 {
		t.Errorf("confidence = %v, want 0.95", conf)
	}

	if _, _, ok := m.MatchCommand("open spotify", phrases); ok {
		t.Error("MatchCommand(open spotify): matched, want none (not in phrase list)")
	}
}

func TestAddRule(t *testing.T) {
	t.Parallel()

	m := grammar.New()
	n := m.Len()

	if err := m.AddRule("deploy", `^deploy\s+(?P<target>.+)$`, "deploy", 0.9); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	if m.Len() != n+1 {
		t.Errorf("Len = %d, want %d", m.Len(), n+1)
	}

	match, ok := m.Extract("deploy staging")
	if !ok || match.Intent != "deploy" || match.Entities["target"] != "staging" {
		t.Errorf("Extract(deploy staging) = %+v, %v", match, ok)
	}

	if err := m.AddRule("bad", `([`, "x", 0.9); err == nil {
		t.Error("AddRule with invalid pattern: want error")
	}
	if err := m.AddRule("badconf", `^x$`, "x", 1.5); err == nil {
		t.Error("AddRule with out-of-range confidence: want error")
	}
}

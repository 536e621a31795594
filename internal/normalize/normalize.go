// Package normalize strips filler and politeness phrases from transcribed
// utterances before they reach the matching stages.
//
// Spoken commands arrive wrapped in conversational padding ("can you please
// open notepad for me") that carries no intent. [Clean] removes a fixed set
// of such phrases using word-boundary matching, longest phrase first, and
// collapses the remaining whitespace. The result feeds every downstream
// matcher, so Clean must be cheap, deterministic, and idempotent.
package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// fillerPhrases is the removal inventory. Multi-word politeness phrases come
// before their shorter substrings; the slice is re-sorted longest-first at
// init so "can you help me to" is removed before "can you" can match inside it.
var fillerPhrases = []string{
	"can you help me to", "can you help me", "could you help me to", "could you help me",
	"would you help me to", "would you help me",
	"i would like to", "i'd like to", "i would like you to",
	"i want you to", "i want to", "i need you to", "i need to",
	"do me a favor and", "do me a favour and",
	"be kind enough to", "go ahead and",
	"can you please", "could you please", "would you please",
	"will you please", "can you just", "could you just",
	"can you", "could you", "would you", "will you",
	"i want", "i need",
	"please", "kindly",
	"for me please", "for me", "right now", "now",
	"quickly", "fast", "immediately", "asap",
	"if you can", "if possible", "if you don't mind",
	"thanks", "thank you very much", "thank you",
	"hey varna", "hi varna", "ok varna", "varna",
	"just", "actually", "basically", "like", "maybe",
	"try to", "try and",
	"um", "uh", "hmm", "ah",
	"the", "a", "an",
	"hey", "hi", "hello", "yo", "ok", "okay",
}

// appAliases maps alternate spoken names to canonical application names.
var appAliases = map[string]string{
	"chrome": "chrome", "google chrome": "chrome", "google": "chrome",
	"edge": "edge", "microsoft edge": "edge",
	"firefox": "firefox", "mozilla": "firefox",
	"notepad": "notepad", "notes": "notepad", "text editor": "notepad",
	"vscode": "vscode", "vs code": "vscode", "visual studio code": "vscode", "code editor": "vscode",
	"calculator": "calculator", "calc": "calculator",
	"paint": "paint", "ms paint": "paint",
	"file explorer": "file explorer", "explorer": "file explorer", "files": "file explorer",
	"task manager": "task manager",
	"command prompt": "command prompt", "cmd": "command prompt", "terminal": "command prompt",
	"powershell": "powershell",
	"word": "word", "ms word": "word", "microsoft word": "word",
	"excel": "excel", "ms excel": "excel",
	"powerpoint": "powerpoint", "ms powerpoint": "powerpoint", "ppt": "powerpoint",
	"downloads": "downloads", "download folder": "downloads",
	"documents": "documents", "my documents": "documents",
	"desktop": "desktop",
}

var (
	fillerPatterns []*regexp.Regexp
	spaceRun       = regexp.MustCompile(`\s+`)
)

func init() {
	sorted := make([]string, len(fillerPhrases))
	copy(sorted, fillerPhrases)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	fillerPatterns = make([]*regexp.Regexp, len(sorted))
	for i, phrase := range sorted {
		fillerPatterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
	}
}

// Clean removes filler phrases from text and collapses whitespace.
//
//	Clean("can you please open notepad for me") == "open notepad"
//	Clean("hey varna launch chrome quickly")    == "launch chrome"
//
// Clean is idempotent: Clean(Clean(x)) == Clean(x). Removal runs to a fixed
// point, so a phrase that only becomes contiguous after an earlier removal is
// still stripped in the same call. Empty input returns the empty string.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	// Each changed pass strictly shortens the string, so the fixed point is
	// always reached.
	cleaned := strings.ToLower(strings.TrimSpace(text))
	for {
		next := cleaned
		for _, p := range fillerPatterns {
			next = p.ReplaceAllString(next, " ")
		}
		next = strings.TrimSpace(spaceRun.ReplaceAllString(next, " "))
		if next == cleaned {
			return cleaned
		}
		cleaned = next
	}
}

// CanonicalApp maps an application name, as spoken, to its canonical form.
// Unknown names are returned lowercased and trimmed.
func CanonicalApp(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := appAliases[n]; ok {
		return canonical
	}
	return n
}

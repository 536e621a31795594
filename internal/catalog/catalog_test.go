package catalog_test

import (
	"strings"
	"testing"

	"github.com/varnahq/varna/internal/catalog"
)

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	const doc = `
candidates:
  - phrase: open chrome
    intent: open
    slots:
      app: chrome
  - phrase: close chrome
    intent: close
mode_commands:
  browsing: [new tab, go back]
browsers: [chrome]
`
	c, err := catalog.LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}

	cand, ok := c.Lookup("Open Chrome")
	if !ok {
		t.Fatal("Lookup(\"Open Chrome\") not found")
	}
	if cand.Intent != "open" || cand.Slots["app"] != "chrome" {
		t.Errorf("Lookup = %+v, want intent open, app chrome", cand)
	}

	if !c.InMode("browsing", "new tab") {
		t.Error("InMode(browsing, new tab) = false, want true")
	}
	if c.InMode("coding", "new tab") {
		t.Error("InMode(coding, new tab) = true, want false")
	}
	if !c.IsBrowser("chrome") || c.IsBrowser("notepad") {
		t.Error("IsBrowser table wrong")
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := catalog.LoadFromReader(strings.NewReader("commandz: []\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestNew_DuplicatePhrase(t *testing.T) {
	t.Parallel()

	_, err := catalog.New([]catalog.Candidate{
		{Phrase: "open chrome", Intent: "open"},
		{Phrase: "Open Chrome", Intent: "open"},
	}, nil, nil)
	if err == nil {
		t.Fatal("expected duplicate phrase error, got nil")
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a, err := catalog.New([]catalog.Candidate{
		{Phrase: "open chrome", Intent: "open"},
		{Phrase: "close chrome", Intent: "close"},
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Same phrases, different declaration order.
	b, err := catalog.New([]catalog.Candidate{
		{Phrase: "close chrome", Intent: "close"},
		{Phrase: "open chrome", Intent: "open"},
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprints differ for identical phrase sets")
	}

	c, err := catalog.New([]catalog.Candidate{
		{Phrase: "open firefox", Intent: "open"},
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("fingerprints equal for different phrase sets")
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()

	c := catalog.Default()
	if c.Len() == 0 {
		t.Fatal("default catalog is empty")
	}
	if _, ok := c.Lookup("open chrome"); !ok {
		t.Error("default catalog missing \"open chrome\"")
	}
	if !c.IsBrowser("firefox") {
		t.Error("default catalog: firefox not a browser")
	}
	if !c.InMode("coding", "save") {
		t.Error("default catalog: save not in coding mode set")
	}
}

func TestModeCommands(t *testing.T) {
	t.Parallel()

	c := catalog.Default()
	mc := c.ModeCommands()
	if !mc["coding"]["save"] {
		t.Error("ModeCommands missing coding/save")
	}

	// The returned map is a copy; mutating it must not affect the catalog.
	delete(mc, "coding")
	if !c.InMode("coding", "save") {
		t.Error("mutating ModeCommands result changed the catalog")
	}
}

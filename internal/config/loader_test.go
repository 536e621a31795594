package config

import (
	"strings"
	"testing"

	"github.com/varnahq/varna/internal/scoring"
)

func TestLoadFromReaderDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if cfg.Logging.Level != LogLevelInfo {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, LogLevelInfo)
	}
	if cfg.Matching.MinConfidence != scoring.DefaultMinConfidence {
		t.Errorf("Matching.MinConfidence = %v, want %v", cfg.Matching.MinConfidence, scoring.DefaultMinConfidence)
	}
	if cfg.Matching.Weights != scoring.DefaultWeights() {
		t.Errorf("Matching.Weights = %+v, want defaults", cfg.Matching.Weights)
	}
	if cfg.Storage.AdaptPath == "" || cfg.Storage.AnalyticsPath == "" {
		t.Errorf("storage paths not defaulted: %+v", cfg.Storage)
	}
}

func TestLoadFromReaderFull(t *testing.T) {
	t.Parallel()

	const doc = `
logging:
  level: debug
matching:
  fuzzy_threshold: 0.65
  min_confidence: 0.50
  ambiguity_band: 0.10
  weights:
    exact: 1.0
    semantic: 0.85
    grammar: 0.7
    fuzzy: 0.6
    phonetic: 0.5
    context: 0.3
response:
  immediate: 0.92
  confirmed: 0.72
  ask: 0.52
embeddings:
  name: ollama
  base_url: http://localhost:11434
  model: nomic-embed-text
storage:
  postgres_dsn: postgres://localhost/varna
  embedding_dimensions: 768
  adapt_path: /var/lib/varna/adapt.json
  analytics_path: /var/lib/varna/analytics.db
catalog_path: /etc/varna/catalog.yaml
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if cfg.Logging.Level != LogLevelDebug {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Matching.FuzzyThreshold != 0.65 {
		t.Errorf("FuzzyThreshold = %v, want 0.65", cfg.Matching.FuzzyThreshold)
	}
	if cfg.Matching.Weights.Semantic != 0.85 {
		t.Errorf("Weights.Semantic = %v, want 0.85", cfg.Matching.Weights.Semantic)
	}
	if cfg.Response.Immediate != 0.92 {
		t.Errorf("Response.Immediate = %v, want 0.92", cfg.Response.Immediate)
	}
	if cfg.Embeddings.Name != "ollama" || cfg.Embeddings.Model != "nomic-embed-text" {
		t.Errorf("Embeddings = %+v", cfg.Embeddings)
	}
	if cfg.Storage.EmbeddingDimensions != 768 {
		t.Errorf("EmbeddingDimensions = %d, want 768", cfg.Storage.EmbeddingDimensions)
	}
	if cfg.CatalogPath != "/etc/varna/catalog.yaml" {
		t.Errorf("CatalogPath = %q", cfg.CatalogPath)
	}
}

func TestLoadFromReaderPartialWeights(t *testing.T) {
	t.Parallel()

	// Only one weight overridden; the rest keep their defaults.
	const doc = `
matching:
  weights:
    semantic: 0.9
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if cfg.Matching.Weights.Semantic != 0.9 {
		t.Errorf("Weights.Semantic = %v, want 0.9", cfg.Matching.Weights.Semantic)
	}
	if cfg.Matching.Weights.Exact != scoring.DefaultWeights().Exact {
		t.Errorf("Weights.Exact = %v, want default", cfg.Matching.Weights.Exact)
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("matchng:\n  fuzzy_threshold: 0.7\n"))
	if err == nil {
		t.Fatal("LoadFromReader() accepted an unknown top-level field")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantStr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantStr: "logging.level",
		},
		{
			name:    "fuzzy threshold zero",
			mutate:  func(c *Config) { c.Matching.FuzzyThreshold = 0 },
			wantStr: "fuzzy_threshold",
		},
		{
			name:    "min confidence too high",
			mutate:  func(c *Config) { c.Matching.MinConfidence = 1.0 },
			wantStr: "min_confidence",
		},
		{
			name:    "ambiguity band negative",
			mutate:  func(c *Config) { c.Matching.AmbiguityBand = -0.1 },
			wantStr: "ambiguity_band",
		},
		{
			name:    "exact weight not heaviest",
			mutate:  func(c *Config) { c.Matching.Weights.Exact = 0.4 },
			wantStr: "matching.weights",
		},
		{
			name: "thresholds not descending",
			mutate: func(c *Config) {
				c.Response.Confirmed = 0.95
			},
			wantStr: "response",
		},
		{
			name: "dsn without dimensions",
			mutate: func(c *Config) {
				c.Storage.PostgresDSN = "postgres://localhost/varna"
				c.Storage.EmbeddingDimensions = 0
			},
			wantStr: "embedding_dimensions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantStr) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantStr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Logging.Level = "loud"
	cfg.Matching.FuzzyThreshold = 2
	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"logging.level", "fuzzy_threshold"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(t.TempDir() + "/absent.yaml"); err == nil {
		t.Fatal("Load() on a missing file = nil error")
	}
}

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidEmbeddingsProviders lists the known embeddings provider names.
// [Validate] warns about names outside this list but does not reject them.
var ValidEmbeddingsProviders = []string{"openai", "ollama"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Unknown fields are rejected so typos surface as
// errors instead of silently falling back to defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Logging.Level != "" && !cfg.Logging.Level.IsValid() {
		errs = append(errs, fmt.Errorf("logging.level %q is invalid; valid values: debug, info, warn, error", cfg.Logging.Level))
	}

	if cfg.Matching.FuzzyThreshold <= 0 || cfg.Matching.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("matching.fuzzy_threshold %.2f is out of range (0, 1]", cfg.Matching.FuzzyThreshold))
	}
	if cfg.Matching.MinConfidence <= 0 || cfg.Matching.MinConfidence >= 1 {
		errs = append(errs, fmt.Errorf("matching.min_confidence %.2f is out of range (0, 1)", cfg.Matching.MinConfidence))
	}
	if cfg.Matching.AmbiguityBand < 0 || cfg.Matching.AmbiguityBand > 0.5 {
		errs = append(errs, fmt.Errorf("matching.ambiguity_band %.2f is out of range [0, 0.5]", cfg.Matching.AmbiguityBand))
	}
	if err := cfg.Matching.Weights.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("matching.weights: %w", err))
	}

	if err := cfg.Response.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("response: %w", err))
	}

	// Embeddings provider name — warn, don't reject, so third-party
	// OpenAI-compatible endpoints still work.
	if name := cfg.Embeddings.Name; name != "" && !slices.Contains(ValidEmbeddingsProviders, name) {
		slog.Warn("unknown embeddings provider name — may be a typo or third-party provider",
			"name", name,
			"known", ValidEmbeddingsProviders,
		)
	}

	// Embeddings ↔ storage cross-checks.
	if cfg.Storage.PostgresDSN != "" {
		if cfg.Embeddings.Name == "" {
			slog.Warn("storage.postgres_dsn is set but no embeddings provider is configured; the vector cache will be unused")
		}
		if cfg.Storage.EmbeddingDimensions <= 0 {
			errs = append(errs, errors.New("storage.embedding_dimensions is required when storage.postgres_dsn is set"))
		}
	}
	if cfg.Embeddings.Name == "openai" && cfg.Embeddings.APIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
		slog.Warn("embeddings.api_key is empty and OPENAI_API_KEY is not set; semantic matching will be unavailable")
	}

	return errors.Join(errs...)
}

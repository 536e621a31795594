// Package config defines the YAML configuration schema for the assistant,
// a strict loader, and a polling file watcher for live reloads.
package config

import (
	"log/slog"

	"github.com/varnahq/varna/internal/policy"
	"github.com/varnahq/varna/internal/scoring"
)

// LogLevel is one of: debug, info, warn, error.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// Slog converts l to the corresponding [slog.Level]. Unknown values map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure, loaded from YAML.
type Config struct {
	Logging    LoggingConfig     `yaml:"logging"`
	Matching   MatchingConfig    `yaml:"matching"`
	Response   policy.Thresholds `yaml:"response"`
	Embeddings ProviderEntry     `yaml:"embeddings"`
	Storage    StorageConfig     `yaml:"storage"`

	// CatalogPath points to the command catalog YAML. Empty means the
	// built-in catalog.
	CatalogPath string `yaml:"catalog_path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level LogLevel `yaml:"level"`
}

// MatchingConfig holds tunables for the matching pipeline.
type MatchingConfig struct {
	// FuzzyThreshold is the minimum edit-distance similarity for a fuzzy
	// candidate to count as a match.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// MinConfidence is the floor below which a command stays unresolved.
	MinConfidence float64 `yaml:"min_confidence"`

	// AmbiguityBand is the score distance within which the runner-up is
	// considered a tie and the user is asked to disambiguate.
	AmbiguityBand float64 `yaml:"ambiguity_band"`

	Weights scoring.Weights `yaml:"weights"`
}

// ProviderEntry configures a single backend provider, selected by name.
type ProviderEntry struct {
	Name    string         `yaml:"name"`
	APIKey  string         `yaml:"api_key"`
	BaseURL string         `yaml:"base_url"`
	Model   string         `yaml:"model"`
	Options map[string]any `yaml:"options"`
}

// StorageConfig configures the persistence backends.
type StorageConfig struct {
	// PostgresDSN enables the shared embedding vector cache when set.
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimensions is the vector width of the configured embeddings
	// model. Required when PostgresDSN is set.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`

	// AdaptPath is the JSON file holding learned user adaptations.
	AdaptPath string `yaml:"adapt_path"`

	// AnalyticsPath is the SQLite database for usage analytics.
	AnalyticsPath string `yaml:"analytics_path"`
}

// Default returns a Config populated with sensible defaults. Load decodes
// on top of it, so absent YAML fields keep these values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: LogLevelInfo},
		Matching: MatchingConfig{
			FuzzyThreshold: 0.70,
			MinConfidence:  scoring.DefaultMinConfidence,
			AmbiguityBand:  0.08,
			Weights:        scoring.DefaultWeights(),
		},
		Response: policy.DefaultThresholds(),
		Storage: StorageConfig{
			AdaptPath:     "varna_adapt.json",
			AnalyticsPath: "varna_analytics.db",
		},
	}
}

package config

// ConfigDiff describes what changed between two configs. Matching and
// response tunables can be applied live; storage and embeddings changes
// need a restart to take effect.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	WeightsChanged    bool
	MatchingChanged   bool // fuzzy threshold, min confidence, or ambiguity band
	ThresholdsChanged bool
	CatalogChanged    bool

	EmbeddingsChanged bool
	StorageChanged    bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Logging.Level != new.Logging.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Logging.Level
	}

	if old.Matching.Weights != new.Matching.Weights {
		d.WeightsChanged = true
	}
	if old.Matching.FuzzyThreshold != new.Matching.FuzzyThreshold ||
		old.Matching.MinConfidence != new.Matching.MinConfidence ||
		old.Matching.AmbiguityBand != new.Matching.AmbiguityBand {
		d.MatchingChanged = true
	}
	if old.Response != new.Response {
		d.ThresholdsChanged = true
	}
	if old.CatalogPath != new.CatalogPath {
		d.CatalogChanged = true
	}

	if !equalProviderEntry(old.Embeddings, new.Embeddings) {
		d.EmbeddingsChanged = true
	}
	if old.Storage != new.Storage {
		d.StorageChanged = true
	}

	return d
}

// HotReloadable reports whether every change in d can be applied without
// restarting the process.
func (d ConfigDiff) HotReloadable() bool {
	return !d.EmbeddingsChanged && !d.StorageChanged
}

// Any reports whether d records any change at all.
func (d ConfigDiff) Any() bool {
	return d != ConfigDiff{}
}

// equalProviderEntry compares entries field by field; ProviderEntry is not
// comparable because of the Options map.
func equalProviderEntry(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, v := range a.Options {
		if bv, ok := b.Options[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

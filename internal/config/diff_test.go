package config

import "testing"

func TestDiffNoChanges(t *testing.T) {
	t.Parallel()

	d := Diff(Default(), Default())
	if d.Any() {
		t.Errorf("Diff() of identical configs = %+v, want zero", d)
	}
	if !d.HotReloadable() {
		t.Error("empty diff should be hot-reloadable")
	}
}

func TestDiffFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(ConfigDiff) bool
		hot    bool
	}{
		{
			name:   "log level",
			mutate: func(c *Config) { c.Logging.Level = LogLevelDebug },
			check:  func(d ConfigDiff) bool { return d.LogLevelChanged && d.NewLogLevel == LogLevelDebug },
			hot:    true,
		},
		{
			name:   "weights",
			mutate: func(c *Config) { c.Matching.Weights.Semantic = 0.9 },
			check:  func(d ConfigDiff) bool { return d.WeightsChanged },
			hot:    true,
		},
		{
			name:   "ambiguity band",
			mutate: func(c *Config) { c.Matching.AmbiguityBand = 0.12 },
			check:  func(d ConfigDiff) bool { return d.MatchingChanged },
			hot:    true,
		},
		{
			name:   "thresholds",
			mutate: func(c *Config) { c.Response.Ask = 0.55 },
			check:  func(d ConfigDiff) bool { return d.ThresholdsChanged },
			hot:    true,
		},
		{
			name:   "catalog path",
			mutate: func(c *Config) { c.CatalogPath = "/tmp/catalog.yaml" },
			check:  func(d ConfigDiff) bool { return d.CatalogChanged },
			hot:    true,
		},
		{
			name:   "embeddings model",
			mutate: func(c *Config) { c.Embeddings.Model = "all-minilm" },
			check:  func(d ConfigDiff) bool { return d.EmbeddingsChanged },
			hot:    false,
		},
		{
			name:   "embeddings options",
			mutate: func(c *Config) { c.Embeddings.Options = map[string]any{"dimensions": 512} },
			check:  func(d ConfigDiff) bool { return d.EmbeddingsChanged },
			hot:    false,
		},
		{
			name:   "storage",
			mutate: func(c *Config) { c.Storage.AnalyticsPath = "/tmp/a.db" },
			check:  func(d ConfigDiff) bool { return d.StorageChanged },
			hot:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old := Default()
			updated := Default()
			tt.mutate(updated)
			d := Diff(old, updated)
			if !tt.check(d) {
				t.Errorf("Diff() = %+v, expected change not recorded", d)
			}
			if d.HotReloadable() != tt.hot {
				t.Errorf("HotReloadable() = %v, want %v", d.HotReloadable(), tt.hot)
			}
		})
	}
}

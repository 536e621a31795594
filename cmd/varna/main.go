// Command varna is the voice-command matching core: it reads transcribed
// utterances on stdin and prints the resolved decision for each.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/varnahq/varna/internal/adapt"
	"github.com/varnahq/varna/internal/analytics"
	"github.com/varnahq/varna/internal/catalog"
	"github.com/varnahq/varna/internal/config"
	"github.com/varnahq/varna/internal/observe"
	"github.com/varnahq/varna/internal/pipeline"
	"github.com/varnahq/varna/internal/semantic"
	"github.com/varnahq/varna/internal/semantic/pgcache"
	"github.com/varnahq/varna/internal/session"
	"github.com/varnahq/varna/pkg/provider/embeddings"
	ollamaembed "github.com/varnahq/varna/pkg/provider/embeddings/ollama"
	oaembed "github.com/varnahq/varna/pkg/provider/embeddings/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	watchConfig := true
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "varna: %v\n", err)
			return 1
		}
		// No config file is fine: everything has a default.
		cfg = config.Default()
		watchConfig = false
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Logging.Level.Slog(),
	}))
	slog.SetDefault(logger)

	slog.Info("varna starting",
		"config", *configPath,
		"log_level", cfg.Logging.Level,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	metricsShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "varna"})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Catalog ───────────────────────────────────────────────────────────────
	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		slog.Error("failed to load catalog", "err", err)
		return 1
	}

	// ── Stores ────────────────────────────────────────────────────────────────
	adaptStore, err := adapt.Open(cfg.Storage.AdaptPath, adapt.WithLogger(logger))
	if err != nil {
		slog.Error("failed to open adaptation store", "err", err)
		return 1
	}

	stats, err := analytics.Open(ctx, cfg.Storage.AnalyticsPath)
	if err != nil {
		slog.Error("failed to open analytics database", "err", err)
		return 1
	}
	defer stats.Close()
	if err := stats.StartSession(ctx); err != nil {
		slog.Warn("failed to start analytics session", "err", err)
	}

	// ── Embeddings (optional) ─────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerEmbeddingsProviders(reg)
	sem := buildSemantic(ctx, cfg, reg, logger)

	// ── Pipeline ──────────────────────────────────────────────────────────────
	sess := session.New(session.WithLogger(logger))
	pipe, err := buildPipeline(cfg, cat, logger, sess, adaptStore, sem, stats, metrics)
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		return 1
	}

	var current atomic.Pointer[pipeline.Pipeline]
	current.Store(pipe)

	if sem != nil {
		go func() {
			if err := pipe.Warm(ctx); err != nil {
				slog.Warn("semantic warm-up failed", "err", err)
			}
		}()
	}

	// ── Config and catalog watcher ────────────────────────────────────────────
	if watchConfig {
		watchOpts := []config.WatcherOption{}
		if cfg.CatalogPath != "" {
			// Catalog edits swap the candidate set in place; SetCatalog
			// drops the per-catalog matcher caches.
			watchOpts = append(watchOpts, config.WithCatalog(cfg.CatalogPath, func(cat *catalog.Catalog) {
				current.Load().SetCatalog(cat)
			}))
		}
		w, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			d := config.Diff(old, new)
			if !d.HotReloadable() {
				slog.Warn("embeddings or storage configuration changed; restart to apply")
			}
			if !d.Any() {
				return
			}
			reloaded, err := buildPipeline(new, pickCatalog(new, current.Load()), logger, sess, adaptStore, sem, stats, metrics)
			if err != nil {
				slog.Warn("config reload rejected", "err", err)
				return
			}
			current.Store(reloaded)
			slog.Info("pipeline reconfigured")
		}, watchOpts...)
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	printStartupSummary(cfg, cat)

	// ── Input loop ────────────────────────────────────────────────────────────
	slog.Info("ready — type an utterance, Ctrl+C to quit")
	if err := loop(ctx, &current, sess); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("input loop error", "err", err)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutting down…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := adaptStore.Flush(); err != nil {
		slog.Warn("failed to flush adaptations", "err", err)
	}
	if err := stats.EndSession(shutdownCtx); err != nil {
		slog.Warn("failed to end analytics session", "err", err)
	}
	if err := metricsShutdown(shutdownCtx); err != nil {
		slog.Warn("metrics shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// loop reads utterances line by line and prints the decision for each.
// "status" prints the session state; "correct <wrong> => <right>" records a
// correction.
func loop(ctx context.Context, current *atomic.Pointer[pipeline.Pipeline], sess *session.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
				continue
			case line == "quit", line == "exit":
				return nil
			case line == "status":
				fmt.Println(sess.Status())
				continue
			case strings.HasPrefix(line, "correct "):
				wrong, right, found := strings.Cut(strings.TrimPrefix(line, "correct "), "=>")
				if !found {
					fmt.Println("usage: correct <wrong> => <right>")
					continue
				}
				current.Load().Correct(ctx, strings.TrimSpace(wrong), strings.TrimSpace(right))
				fmt.Println("noted.")
				continue
			}

			d, err := current.Load().Process(ctx, line)
			if err != nil {
				return err
			}
			printDecision(d)
		}
	}
}

func printDecision(d pipeline.Decision) {
	if !d.Resolved {
		fmt.Printf("✗ unresolved (%.2f)\n", d.Confidence)
	} else {
		fmt.Printf("✓ %s  [%s/%s %.2f]\n", d.Candidate, d.Method, d.Tier, d.Confidence)
	}
	if d.Speech != "" {
		fmt.Printf("  🗣 %s\n", d.Speech)
	}
	for _, s := range d.Suggestions {
		fmt.Printf("  ? %s (%.2f)\n", s.Command, s.Score)
	}
}

// registerEmbeddingsProviders wires the built-in embeddings factories.
func registerEmbeddingsProviders(reg *config.Registry) {
	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		apiKey := entry.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return oaembed.New(apiKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if dims := optInt(entry.Options, "dimensions"); dims > 0 {
			opts = append(opts, ollamaembed.WithDimensions(dims))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})
}

// buildSemantic constructs the semantic matcher from config, or returns nil
// when no embeddings provider is configured or construction fails —
// matching degrades gracefully without it.
func buildSemantic(ctx context.Context, cfg *config.Config, reg *config.Registry, logger *slog.Logger) *semantic.Matcher {
	if cfg.Embeddings.Name == "" {
		return nil
	}

	provider, err := reg.CreateEmbeddings(cfg.Embeddings)
	if err != nil {
		slog.Warn("embeddings provider unavailable; semantic matching disabled",
			"name", cfg.Embeddings.Name, "err", err)
		return nil
	}
	slog.Info("embeddings provider created", "name", cfg.Embeddings.Name, "model", provider.ModelID())

	opts := []semantic.Option{semantic.WithLogger(logger)}
	if cfg.Storage.PostgresDSN != "" {
		cache, err := pgcache.New(ctx, cfg.Storage.PostgresDSN, cfg.Storage.EmbeddingDimensions)
		if err != nil {
			slog.Warn("vector cache unavailable; embedding on demand", "err", err)
		} else {
			opts = append(opts, semantic.WithStore(cache))
			slog.Info("vector cache connected")
		}
	}

	m, err := semantic.New(provider, opts...)
	if err != nil {
		slog.Warn("semantic matcher unavailable", "err", err)
		return nil
	}
	return m
}

func buildPipeline(cfg *config.Config, cat *catalog.Catalog, logger *slog.Logger,
	sess *session.Context, adaptStore *adapt.Store, sem *semantic.Matcher,
	stats *analytics.DB, metrics *observe.Metrics) (*pipeline.Pipeline, error) {

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithSession(sess),
		pipeline.WithAdapt(adaptStore),
		pipeline.WithAnalytics(stats),
		pipeline.WithMetrics(metrics),
		pipeline.WithThresholds(cfg.Response),
		pipeline.WithWeights(cfg.Matching.Weights),
		pipeline.WithMinConfidence(cfg.Matching.MinConfidence),
		pipeline.WithAmbiguityBand(cfg.Matching.AmbiguityBand),
		pipeline.WithFuzzyThreshold(cfg.Matching.FuzzyThreshold),
	}
	if sem != nil {
		opts = append(opts, pipeline.WithSemantic(sem))
	}
	return pipeline.New(cat, opts...)
}

// loadCatalog loads the catalog file, or the built-in set when none is
// configured.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}

// pickCatalog resolves the catalog for a reloaded config, keeping the
// running pipeline's catalog when the file cannot be loaded.
func pickCatalog(cfg *config.Config, pipe *pipeline.Pipeline) *catalog.Catalog {
	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		slog.Warn("catalog reload failed; keeping current", "err", err)
		return pipe.Catalog()
	}
	return cat
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, cat *catalog.Catalog) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          varna — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Catalog", fmt.Sprintf("%d commands", cat.Len()))
	if cfg.Embeddings.Name != "" {
		printField("Embeddings", cfg.Embeddings.Name+" / "+cfg.Embeddings.Model)
	} else {
		printField("Embeddings", "(not configured)")
	}
	if cfg.Storage.PostgresDSN != "" {
		printField("Vector cache", "postgres")
	} else {
		printField("Vector cache", "(disabled)")
	}
	printField("Adaptations", cfg.Storage.AdaptPath)
	printField("Analytics", cfg.Storage.AnalyticsPath)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(name, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", name, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optInt extracts an integer from a provider Options map[string]any. YAML
// decodes numbers as int; anything else yields 0.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

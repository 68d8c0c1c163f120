package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/talk-less/talkless/internal/bias"
	"github.com/talk-less/talkless/internal/config"
	"github.com/talk-less/talkless/internal/core/embeddings"
	"github.com/talk-less/talkless/internal/grouper"
	"github.com/talk-less/talkless/internal/ingest"
	"github.com/talk-less/talkless/internal/output"
	"github.com/talk-less/talkless/internal/pipeline"
	"github.com/talk-less/talkless/internal/platform/worker"
	"github.com/talk-less/talkless/internal/summarizer"
)

var errUnknownProvider = errors.New("unknown summarization provider")

func newRunCmd() *cobra.Command {
	var (
		configDir   string
		once        bool
		scheduled   bool
		outDir      string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the processing pipeline",
		Long: `Run the pipeline over the configured sources: fetch, bias detection,
grouping, summarization, reporting and artifact emission.

By default the pipeline runs once and exits. With --scheduled (or
--once=false) it keeps running at the configured interval until
interrupted. Partial summary failures are reported in the run report,
not via the exit code.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runPipeline(configDir, outDir, metricsAddr, scheduled || !once)
		},
	}

	cmd.Flags().StringVarP(&configDir, "config", "c", "config", "Directory holding sources.yaml, bias_rules.yaml and pipeline.yaml")
	cmd.Flags().BoolVar(&once, "once", true, "Run a single pass and exit")
	cmd.Flags().BoolVar(&scheduled, "scheduled", false, "Keep running at the configured schedule interval")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Override the artifact output directory")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (disabled when empty)")
	cmd.MarkFlagsMutuallyExclusive("once", "scheduled")

	return cmd
}

func runPipeline(configDir, outDir, metricsAddr string, scheduled bool) error {
	cfg, rulesPath, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := newLogger(cfg.Env.LogLevel)

	rules, err := bias.LoadRules(rulesPath)
	if err != nil {
		return fmt.Errorf("load bias rules: %w", err)
	}

	if outDir == "" {
		outDir = cfg.Pipeline.OutDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, &logger)
	}

	p, cache, err := buildPipeline(cfg, rules, outDir, &logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	run := func(ctx context.Context) {
		if _, err := p.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("pipeline run failed")
		}
	}

	if scheduled {
		return worker.TickerLoop(ctx, worker.TickerConfig{
			Name:     "pipeline",
			Interval: cfg.Pipeline.ScheduleInterval.Std(),
			Run:      run,
			Logger:   &logger,
		})
	}

	if _, err := p.Run(ctx); err != nil {
		return err
	}

	return nil
}

func buildPipeline(cfg *config.Config, rules *bias.RuleSet, outDir string, logger *zerolog.Logger) (*pipeline.Pipeline, ingest.Cache, error) {
	cache, err := newCache(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect cache: %w", err)
	}

	ingestor := ingest.New(ingest.Options{
		Fetch: ingest.FetchOptions{
			MaxArticleAge: cfg.Pipeline.MaxArticleAge.Std(),
			StrictDates:   cfg.Pipeline.StrictDates,
			Timeout:       cfg.Pipeline.FetchTimeout.Std(),
		},
		MaxConcurrentFetches: cfg.Pipeline.MaxConcurrentFetches,
		CacheTTL:             cfg.Pipeline.CacheTTL.Std(),
	}, cache, logger)

	emb, err := newEmbeddings(cfg)
	if err != nil {
		_ = cache.Close()

		return nil, nil, err
	}

	g := grouper.New(emb, grouper.Options{
		SimilarityThreshold: cfg.Pipeline.Grouping.SimilarityThreshold,
		MinArticlesPerGroup: cfg.Pipeline.Grouping.MinArticlesPerGroup,
		MaxArticlesPerGroup: cfg.Pipeline.Grouping.MaxArticlesPerGroup,
		SnippetLen:          cfg.Pipeline.Grouping.EmbedSnippetLen,
	}, logger)

	completer, err := newCompleter(cfg)
	if err != nil {
		_ = cache.Close()

		return nil, nil, err
	}

	sum := cfg.Pipeline.Summarization
	s := summarizer.New(completer, summarizer.Options{
		Model:                    sum.Model,
		Temperature:              sum.Temperature,
		MaxTemperature:           sum.MaxTemperature,
		MinLength:                sum.MinSummaryLength,
		MaxLength:                sum.MaxSummaryLength,
		MaxRetries:               sum.MaxRetries,
		RequiredCitationCoverage: sum.RequiredCitationCoverage,
		MinCopiedSpan:            sum.MinCopiedSpan,
		PerArticleChars:          sum.PerArticleChars,
		MaxConcurrent:            sum.MaxConcurrentSummaries,
		MinArticles:              cfg.Pipeline.Grouping.MinArticlesPerGroup,
		MinSources:               cfg.Pipeline.Grouping.MinSourcesPerSummary,
		GenerationSalt:           sum.GenerationSalt,
		LLMTimeout:               sum.LLMTimeout.Std(),
	}, logger)

	p := pipeline.New(pipeline.Deps{
		Config:     cfg,
		Rules:      rules,
		Ingestor:   ingestor,
		Grouper:    g,
		Summarizer: s,
		Detector:   bias.New(rules, logger),
		Store:      output.NewDirStore(outDir),
		Logger:     logger,
	})

	return p, cache, nil
}

func newCache(cfg *config.Config, logger *zerolog.Logger) (ingest.Cache, error) {
	if cfg.Env.CacheURL == "" {
		logger.Info().Msg("CACHE_URL not set, running without content cache")

		return ingest.NopCache{}, nil
	}

	return ingest.NewRedisCache(cfg.Env.CacheURL, cfg.Pipeline.CacheOpTimeout.Std(), logger)
}

// newEmbeddings resolves the embedding provider. A missing credential is a
// configuration error, the same as for the completer.
func newEmbeddings(cfg *config.Config) (embeddings.Provider, error) {
	if cfg.Env.OpenAIAPIKey == "" {
		return nil, errors.New("embeddings require OPENAI_API_KEY")
	}

	return embeddings.NewOpenAIProvider(embeddings.OpenAIConfig{
		APIKey:     cfg.Env.OpenAIAPIKey,
		Model:      cfg.Pipeline.Grouping.EmbeddingModel,
		Dimensions: cfg.Pipeline.Grouping.EmbeddingDimensions,
		RateLimit:  cfg.Pipeline.Grouping.EmbeddingRequestsPS,
	}), nil
}

// newCompleter resolves the configured summarization provider. A missing
// credential for the configured provider is a configuration error.
func newCompleter(cfg *config.Config) (summarizer.Completer, error) {
	sum := cfg.Pipeline.Summarization

	switch summarizer.ProviderName(sum.Provider) {
	case summarizer.ProviderOpenAI:
		if cfg.Env.OpenAIAPIKey == "" {
			return nil, errors.New("summarization provider openai requires OPENAI_API_KEY")
		}

		return summarizer.NewOpenAICompleter(summarizer.OpenAIConfig{
			APIKey:    cfg.Env.OpenAIAPIKey,
			RateLimit: sum.ProviderRPS,
		}), nil
	case summarizer.ProviderAnthropic:
		if cfg.Env.AnthropicAPIKey == "" {
			return nil, errors.New("summarization provider anthropic requires ANTHROPIC_API_KEY")
		}

		return summarizer.NewAnthropicCompleter(summarizer.AnthropicConfig{
			APIKey:    cfg.Env.AnthropicAPIKey,
			RateLimit: sum.ProviderRPS,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownProvider, sum.Provider)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func serveMetrics(addr string, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger.Info().Str("addr", addr).Msg("serving metrics")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

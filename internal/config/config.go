// Package config loads run configuration: process environment plus the
// three YAML documents (sources, bias rules, pipeline options) that drive a
// pipeline run. Configuration errors are the only fatal errors in the
// system, so validation here is strict.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config file names expected under the --config directory.
const (
	SourcesFile  = "sources.yaml"
	RulesFile    = "bias_rules.yaml"
	PipelineFile = "pipeline.yaml"
)

// Configuration errors.
var (
	ErrDuplicateSourceID  = errors.New("duplicate source id")
	ErrInvalidSourceKind  = errors.New("invalid source kind")
	ErrMissingSourceURL   = errors.New("source url is required")
	ErrInvalidLengths     = errors.New("min_summary_length must be below max_summary_length")
	ErrInvalidThreshold   = errors.New("similarity_threshold must be in (0, 1)")
	ErrInvalidGroupBounds = errors.New("min_articles_per_group must not exceed max_articles_per_group")
	ErrUnknownKeys        = errors.New("unknown configuration keys")
)

// Env holds process-environment configuration.
type Env struct {
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	CacheURL        string `env:"CACHE_URL"`
	DBURL           string `env:"DB_URL"`
}

// LoadEnv reads environment configuration, consulting .env for local runs.
func LoadEnv() (*Env, error) {
	_ = godotenv.Load()

	cfg := &Env{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

// Config is the full per-run configuration.
type Config struct {
	Env      *Env
	Sources  []SourceConfig
	Pipeline Pipeline
}

// Load reads and validates all configuration under dir. The bias rule file
// path is returned alongside so the detector can parse its own document.
func Load(dir string) (*Config, string, error) {
	envCfg, err := LoadEnv()
	if err != nil {
		return nil, "", err
	}

	pipeline, err := loadPipeline(filepath.Join(dir, PipelineFile))
	if err != nil {
		return nil, "", err
	}

	sources, err := loadSources(filepath.Join(dir, SourcesFile), pipeline.StrictConfig)
	if err != nil {
		return nil, "", err
	}

	rulesPath := filepath.Join(dir, RulesFile)
	if _, err := os.Stat(rulesPath); err != nil {
		return nil, "", fmt.Errorf("bias rules file: %w", err)
	}

	return &Config{Env: envCfg, Sources: sources, Pipeline: pipeline}, rulesPath, nil
}

// SourceConfig is one entry of sources.yaml.
type SourceConfig struct {
	ID                string            `yaml:"id"`
	Name              string            `yaml:"name"`
	Kind              string            `yaml:"kind"`
	URL               string            `yaml:"url"`
	CredentialEnv     string            `yaml:"credential_env"`
	DeclaredLean      string            `yaml:"declared_lean"`
	Enabled           *bool             `yaml:"enabled"`
	RequestsPerMinute int               `yaml:"requests_per_minute"`
	FieldMap          map[string]string `yaml:"field_map"`
}

// IsEnabled treats an absent enabled flag as true.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Grouping holds clustering options.
type Grouping struct {
	SimilarityThreshold  float64 `yaml:"similarity_threshold"`
	MinArticlesPerGroup  int     `yaml:"min_articles_per_group"`
	MaxArticlesPerGroup  int     `yaml:"max_articles_per_group"`
	EmbeddingModel       string  `yaml:"embedding_model"`
	EmbeddingDimensions  int     `yaml:"embedding_dimensions"`
	EmbedSnippetLen      int     `yaml:"embed_snippet_len"`
	EmbeddingRequestsPS  int     `yaml:"embedding_rps"`
	MinSourcesPerSummary int     `yaml:"min_sources_per_summary"`
}

// Summarization holds LLM options.
type Summarization struct {
	Provider                 string   `yaml:"provider"`
	Model                    string   `yaml:"model"`
	Temperature              float32  `yaml:"temperature"`
	MaxTemperature           float32  `yaml:"max_temperature"`
	MinSummaryLength         int      `yaml:"min_summary_length"`
	MaxSummaryLength         int      `yaml:"max_summary_length"`
	MaxRetries               int      `yaml:"max_retries"`
	RequiredCitationCoverage int      `yaml:"required_citation_coverage"`
	MinCopiedSpan            int      `yaml:"min_copied_span"`
	PerArticleChars          int      `yaml:"per_article_chars"`
	MaxConcurrentSummaries   int      `yaml:"max_concurrent_summaries"`
	ProviderRPS              float64  `yaml:"provider_rps"`
	LLMTimeout               Duration `yaml:"llm_timeout"`
	GenerationSalt           string   `yaml:"generation_salt"`
}

// Pipeline is the top-level pipeline.yaml document.
type Pipeline struct {
	MaxArticleAge        Duration      `yaml:"max_article_age"`
	StrictDates          bool          `yaml:"strict_dates"`
	MaxConcurrentFetches int           `yaml:"max_concurrent_fetches"`
	FetchTimeout         Duration      `yaml:"fetch_timeout"`
	CacheTTL             Duration      `yaml:"cache_ttl"`
	CacheOpTimeout       Duration      `yaml:"cache_op_timeout"`
	RunDeadline          Duration      `yaml:"run_deadline"`
	ScheduleInterval     Duration      `yaml:"schedule_interval"`
	StrictConfig         bool          `yaml:"strict_config"`
	OutDir               string        `yaml:"out_dir"`
	Grouping             Grouping      `yaml:"grouping"`
	Summarization        Summarization `yaml:"summarization"`
}

// Defaults applied after decoding pipeline.yaml.
const (
	defaultMaxArticleAge   = 24 * time.Hour
	defaultMaxFetches      = 4
	defaultFetchTimeout    = 30 * time.Second
	defaultCacheTTL        = time.Hour
	defaultCacheOpTimeout  = 250 * time.Millisecond
	defaultScheduleEvery   = time.Hour
	defaultSimilarity      = 0.7
	defaultMinPerGroup     = 2
	defaultMaxPerGroup     = 12
	defaultEmbedModel      = "text-embedding-3-small"
	defaultEmbedDims       = 384
	defaultSnippetLen      = 1000
	defaultMinSources      = 2
	defaultProvider        = "openai"
	defaultModel           = "gpt-4o-mini"
	defaultTemperature     = 0.3
	defaultMaxTemperature  = 0.3
	defaultMinSummaryLen   = 300
	defaultMaxSummaryLen   = 2500
	defaultMaxRetries      = 2
	defaultCopiedSpan      = 10
	defaultPerArticleChars = 4000
	defaultMaxSummaries    = 3
	defaultProviderRPS     = 1.0
	defaultLLMTimeout      = 90 * time.Second
	defaultOutDir          = "out"
)

func (p *Pipeline) applyDefaults() {
	if p.MaxArticleAge == 0 {
		p.MaxArticleAge = Duration(defaultMaxArticleAge)
	}

	if p.MaxConcurrentFetches == 0 {
		p.MaxConcurrentFetches = defaultMaxFetches
	}

	if p.FetchTimeout == 0 {
		p.FetchTimeout = Duration(defaultFetchTimeout)
	}

	if p.CacheTTL == 0 {
		p.CacheTTL = Duration(defaultCacheTTL)
	}

	if p.CacheOpTimeout == 0 {
		p.CacheOpTimeout = Duration(defaultCacheOpTimeout)
	}

	if p.ScheduleInterval == 0 {
		p.ScheduleInterval = Duration(defaultScheduleEvery)
	}

	if p.OutDir == "" {
		p.OutDir = defaultOutDir
	}

	g := &p.Grouping
	if g.SimilarityThreshold == 0 {
		g.SimilarityThreshold = defaultSimilarity
	}

	if g.MinArticlesPerGroup == 0 {
		g.MinArticlesPerGroup = defaultMinPerGroup
	}

	if g.MaxArticlesPerGroup == 0 {
		g.MaxArticlesPerGroup = defaultMaxPerGroup
	}

	if g.EmbeddingModel == "" {
		g.EmbeddingModel = defaultEmbedModel
	}

	if g.EmbeddingDimensions == 0 {
		g.EmbeddingDimensions = defaultEmbedDims
	}

	if g.EmbedSnippetLen == 0 {
		g.EmbedSnippetLen = defaultSnippetLen
	}

	if g.MinSourcesPerSummary == 0 {
		g.MinSourcesPerSummary = defaultMinSources
	}

	s := &p.Summarization
	if s.Provider == "" {
		s.Provider = defaultProvider
	}

	if s.Model == "" {
		s.Model = defaultModel
	}

	if s.Temperature == 0 {
		s.Temperature = defaultTemperature
	}

	if s.MaxTemperature == 0 {
		s.MaxTemperature = defaultMaxTemperature
	}

	if s.MinSummaryLength == 0 {
		s.MinSummaryLength = defaultMinSummaryLen
	}

	if s.MaxSummaryLength == 0 {
		s.MaxSummaryLength = defaultMaxSummaryLen
	}

	if s.MaxRetries == 0 {
		s.MaxRetries = defaultMaxRetries
	}

	if s.MinCopiedSpan == 0 {
		s.MinCopiedSpan = defaultCopiedSpan
	}

	if s.PerArticleChars == 0 {
		s.PerArticleChars = defaultPerArticleChars
	}

	if s.MaxConcurrentSummaries == 0 {
		s.MaxConcurrentSummaries = defaultMaxSummaries
	}

	if s.ProviderRPS == 0 {
		s.ProviderRPS = defaultProviderRPS
	}

	if s.LLMTimeout == 0 {
		s.LLMTimeout = Duration(defaultLLMTimeout)
	}
}

func (p *Pipeline) validate() error {
	g := p.Grouping
	if g.SimilarityThreshold <= 0 || g.SimilarityThreshold >= 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, g.SimilarityThreshold)
	}

	if g.MinArticlesPerGroup > g.MaxArticlesPerGroup {
		return fmt.Errorf("%w: min %d, max %d", ErrInvalidGroupBounds, g.MinArticlesPerGroup, g.MaxArticlesPerGroup)
	}

	s := p.Summarization
	if s.MinSummaryLength >= s.MaxSummaryLength {
		return fmt.Errorf("%w: min %d, max %d", ErrInvalidLengths, s.MinSummaryLength, s.MaxSummaryLength)
	}

	return nil
}

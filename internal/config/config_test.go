package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigDir(t *testing.T, sources, pipeline string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SourcesFile), []byte(sources), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, PipelineFile), []byte(pipeline), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, RulesFile), []byte("loaded_words: []\n"), 0o600))

	return dir
}

const validSources = `
sources:
  - id: reuters
    name: Reuters
    kind: rss
    url: https://example.com/feed.xml
    requests_per_minute: 60
  - id: newsapi
    name: NewsAPI
    kind: api
    url: https://example.com/v2/top
    credential_env: NEWSAPI_KEY
    enabled: false
`

func TestLoadValidConfig(t *testing.T) {
	dir := writeConfigDir(t, validSources, `
max_article_age: 48h
fetch_timeout: 10s
grouping:
  similarity_threshold: 0.7
summarization:
  provider: mock
  min_summary_length: 100
  max_summary_length: 500
`)

	cfg, rulesPath, err := Load(dir)
	require.NoError(t, err)

	assert.Len(t, cfg.Sources, 2)
	assert.True(t, cfg.Sources[0].IsEnabled())
	assert.False(t, cfg.Sources[1].IsEnabled())
	assert.Equal(t, filepath.Join(dir, RulesFile), rulesPath)

	p := cfg.Pipeline
	assert.Equal(t, 48*time.Hour, p.MaxArticleAge.Std())
	assert.Equal(t, 10*time.Second, p.FetchTimeout.Std())
	// Defaults fill everything not set explicitly.
	assert.Equal(t, time.Hour, p.CacheTTL.Std())
	assert.Equal(t, 250*time.Millisecond, p.CacheOpTimeout.Std())
	assert.Equal(t, 0.7, p.Grouping.SimilarityThreshold)
	assert.Equal(t, 2, p.Grouping.MinArticlesPerGroup)
	assert.Equal(t, "mock", p.Summarization.Provider)
	assert.Equal(t, float32(0.3), p.Summarization.Temperature)
	assert.Equal(t, 10, p.Summarization.MinCopiedSpan)
}

func TestLoadBareSecondsDuration(t *testing.T) {
	dir := writeConfigDir(t, validSources, "fetch_timeout: 15\n")

	cfg, _, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Pipeline.FetchTimeout.Std())
}

func TestLoadRejectsDuplicateSourceIDs(t *testing.T) {
	dir := writeConfigDir(t, `
sources:
  - {id: a, name: A, kind: rss, url: https://a.example/feed}
  - {id: a, name: A2, kind: rss, url: https://a2.example/feed}
`, "")

	_, _, err := Load(dir)
	require.ErrorIs(t, err, ErrDuplicateSourceID)
}

func TestLoadRejectsUnknownSourceKind(t *testing.T) {
	dir := writeConfigDir(t, `
sources:
  - {id: a, name: A, kind: scraper, url: https://a.example}
`, "")

	_, _, err := Load(dir)
	require.ErrorIs(t, err, ErrInvalidSourceKind)
}

func TestStrictConfigRejectsUnknownKeys(t *testing.T) {
	dir := writeConfigDir(t, validSources, `
strict_config: true
max_article_age: 24h
no_such_option: true
`)

	_, _, err := Load(dir)
	require.ErrorIs(t, err, ErrUnknownKeys)
}

func TestLenientConfigIgnoresUnknownKeys(t *testing.T) {
	dir := writeConfigDir(t, validSources, `
max_article_age: 24h
no_such_option: true
`)

	_, _, err := Load(dir)
	require.NoError(t, err)
}

func TestValidationBounds(t *testing.T) {
	tests := []struct {
		name     string
		pipeline string
		wantErr  error
	}{
		{
			name:     "similarity threshold out of range",
			pipeline: "grouping: {similarity_threshold: 1.5}",
			wantErr:  ErrInvalidThreshold,
		},
		{
			name:     "group bounds inverted",
			pipeline: "grouping: {min_articles_per_group: 10, max_articles_per_group: 3}",
			wantErr:  ErrInvalidGroupBounds,
		},
		{
			name:     "summary lengths inverted",
			pipeline: "summarization: {min_summary_length: 500, max_summary_length: 100}",
			wantErr:  ErrInvalidLengths,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeConfigDir(t, validSources, tt.pipeline)
			_, _, err := Load(dir)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMissingRulesFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SourcesFile), []byte(validSources), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, PipelineFile), []byte(""), 0o600))

	_, _, err := Load(dir)
	require.Error(t, err)
}

func TestLoadEnvReadsLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

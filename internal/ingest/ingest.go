// Package ingest fetches and normalizes articles from configured sources.
// It owns in-flight fetch state, per-source rate limiting, and the content
// cache handle. Source failures degrade; they never fail a run.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/talk-less/talkless/internal/core/domain"
	"github.com/talk-less/talkless/internal/observability"
)

const cacheKeyPrefix = "article:"

// Options configures the Ingestor.
type Options struct {
	Fetch                FetchOptions
	MaxConcurrentFetches int
	CacheTTL             time.Duration
}

// Result is the outcome of one ingestion pass.
type Result struct {
	Articles      []domain.Article
	SourcesFailed int
	CacheHits     int
}

// Ingestor coordinates fetching across all enabled sources.
type Ingestor struct {
	fetchers map[domain.SourceKind]Fetcher
	limiter  *KeyedLimiter
	cache    Cache
	opts     Options
	logger   *zerolog.Logger
}

// New creates an Ingestor. The cache may be a NopCache.
func New(opts Options, cache Cache, logger *zerolog.Logger) *Ingestor {
	if opts.MaxConcurrentFetches <= 0 {
		opts.MaxConcurrentFetches = 1
	}

	return &Ingestor{
		fetchers: map[domain.SourceKind]Fetcher{
			domain.SourceKindRSS: NewRSSFetcher(opts.Fetch, logger),
			domain.SourceKindAPI: NewAPIFetcher(opts.Fetch, logger),
		},
		limiter: NewKeyedLimiter(),
		cache:   cache,
		opts:    opts,
		logger:  logger,
	}
}

// FetchAll fetches every enabled source concurrently (bounded) and returns
// the deduplicated batch. Articles keep publication order within a source;
// sources keep configuration order in the aggregate.
func (i *Ingestor) FetchAll(ctx context.Context, sources []domain.Source) Result {
	perSource := make([][]domain.Article, len(sources))
	failed := make([]bool, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opts.MaxConcurrentFetches)

	for idx, source := range sources {
		if !source.Enabled {
			continue
		}

		g.Go(func() error {
			articles, err := i.fetchSource(gctx, source)
			if err != nil {
				i.logFetchError(source, err)
				observability.FetchErrors.WithLabelValues(source.ID).Inc()

				failed[idx] = true

				return nil // source-level failures degrade, never abort
			}

			observability.ArticlesIngested.WithLabelValues(source.ID).Add(float64(len(articles)))

			perSource[idx] = articles

			return nil
		})
	}

	_ = g.Wait()

	var result Result

	seen := make(map[string]struct{})

	for idx := range sources {
		if failed[idx] {
			result.SourcesFailed++
			continue
		}

		for _, article := range perSource[idx] {
			if _, dup := seen[article.ID]; dup {
				continue
			}

			seen[article.ID] = struct{}{}

			cached, hit := i.throughCache(ctx, article)
			if hit {
				result.CacheHits++
			}

			result.Articles = append(result.Articles, cached)
		}
	}

	i.logger.Info().
		Int("articles", len(result.Articles)).
		Int("sources_failed", result.SourcesFailed).
		Int("cache_hits", result.CacheHits).
		Msg("ingestion complete")

	return result
}

// fetchSource waits out the source's rate limit and dispatches on kind.
// The limiter slot is taken at request-issue time.
func (i *Ingestor) fetchSource(ctx context.Context, source domain.Source) ([]domain.Article, error) {
	fetcher, ok := i.fetchers[source.Kind]
	if !ok {
		return nil, errors.New("no fetcher for kind " + string(source.Kind))
	}

	if err := i.limiter.Wait(ctx, source.ID, source.RequestsPerMinute); err != nil {
		return nil, err
	}

	return fetcher.Fetch(ctx, source)
}

// throughCache returns the cached rendition of an article when one exists
// and stores fresh articles. Cache failures are already logged by the cache
// itself and degrade to the freshly fetched value.
func (i *Ingestor) throughCache(ctx context.Context, article domain.Article) (domain.Article, bool) {
	key := cacheKeyPrefix + article.ID

	if data, ok, err := i.cache.Get(ctx, key); err == nil && ok {
		var cached domain.Article
		if err := json.Unmarshal(data, &cached); err == nil && cached.ID == article.ID {
			return cached, true
		}
	}

	if data, err := json.Marshal(article); err == nil {
		_ = i.cache.Set(ctx, key, data, i.opts.CacheTTL)
	}

	return article, false
}

func (i *Ingestor) logFetchError(source domain.Source, err error) {
	msg := "source fetch failed, continuing without it"
	if errors.Is(err, ErrMissingCredential) {
		msg = "source skipped: credential not set"
	}

	i.logger.Warn().Err(err).Str("source", source.ID).Msg(msg)
}

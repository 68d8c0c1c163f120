package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/talk-less/talkless/internal/core/domain"
	"github.com/talk-less/talkless/internal/platform/htmlutils"
)

const (
	headerUserAgent   = "User-Agent"
	defaultUserAgent  = "talkless/1.0 (+https://github.com/talk-less/talkless)"
	wrapCreateRequest = "create request: %w"
	wrapHTTPStatusFmt = "%w: status %d"
)

// Fetch errors.
var errHTTPError = errors.New("HTTP error")

// Fetcher retrieves and normalizes articles for one source.
type Fetcher interface {
	Fetch(ctx context.Context, source domain.Source) ([]domain.Article, error)
}

// rssFetcher parses RSS/Atom feeds.
type rssFetcher struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	opts       FetchOptions
	logger     *zerolog.Logger
	now        func() time.Time
}

// FetchOptions carries the filtering knobs shared by all fetchers.
type FetchOptions struct {
	MaxArticleAge time.Duration
	StrictDates   bool
	Timeout       time.Duration
	UserAgent     string
}

func (o *FetchOptions) applyDefaults() {
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}

	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
}

// NewRSSFetcher creates the feed-based fetcher.
func NewRSSFetcher(opts FetchOptions, logger *zerolog.Logger) Fetcher {
	opts.applyDefaults()

	return &rssFetcher{
		httpClient: &http.Client{Timeout: opts.Timeout},
		parser:     gofeed.NewParser(),
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// Fetch retrieves the feed and normalizes its entries, preserving feed
// order. Per-entry failures are logged and skipped.
func (f *rssFetcher) Fetch(ctx context.Context, source domain.Source) ([]domain.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf(wrapCreateRequest, err)
	}

	req.Header.Set(headerUserAgent, f.opts.UserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(wrapHTTPStatusFmt, errHTTPError, resp.StatusCode)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	fetchedAt := f.now()
	articles := make([]domain.Article, 0, len(feed.Items))

	for _, item := range feed.Items {
		article, ok := f.normalizeItem(source, item, fetchedAt)
		if !ok {
			continue
		}

		articles = append(articles, article)
	}

	return articles, nil
}

// normalizeItem converts one feed entry to an Article, applying the age
// filter and id rules.
func (f *rssFetcher) normalizeItem(source domain.Source, item *gofeed.Item, fetchedAt time.Time) (domain.Article, bool) {
	if item.Title == "" {
		return domain.Article{}, false
	}

	published, ok := entryPublished(item, fetchedAt, f.opts.StrictDates)
	if !ok {
		f.logger.Debug().Str("source", source.ID).Str("title", item.Title).Msg("entry has no published time, skipping")
		return domain.Article{}, false
	}

	if tooOld(published, fetchedAt, f.opts.MaxArticleAge) {
		return domain.Article{}, false
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}

	author := ""
	if len(item.Authors) > 0 {
		author = item.Authors[0].Name
	}

	canonical := CanonicalURL(item.Link)

	id := domain.ArticleID(canonical)
	if item.Link == "" {
		id = domain.ArticleIDFallback(source.ID, item.Title, published)
	}

	return domain.Article{
		ID:          id,
		SourceID:    source.ID,
		SourceName:  source.Name,
		Title:       htmlutils.ToText(item.Title),
		URL:         canonical,
		Author:      author,
		PublishedAt: published.UTC(),
		Content:     htmlutils.ToText(content),
		FetchedAt:   fetchedAt.UTC(),
	}, true
}

// entryPublished resolves an entry's published time. Entries without one
// are dropped in strict mode and stamped with the fetch time otherwise.
func entryPublished(item *gofeed.Item, fetchedAt time.Time, strict bool) (time.Time, bool) {
	switch {
	case item.PublishedParsed != nil:
		return *item.PublishedParsed, true
	case item.UpdatedParsed != nil:
		return *item.UpdatedParsed, true
	case strict:
		return time.Time{}, false
	default:
		return fetchedAt, true
	}
}

func tooOld(published, now time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && now.Sub(published) > maxAge
}

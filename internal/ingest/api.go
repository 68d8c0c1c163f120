package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/talk-less/talkless/internal/core/domain"
	"github.com/talk-less/talkless/internal/platform/htmlutils"
)

const maxAPIBodySize = 10 * 1024 * 1024 // 10MB

// API fetch errors.
var (
	// ErrMissingCredential indicates the source's credential env var is
	// unset; the source is skipped, never fatal.
	ErrMissingCredential = errors.New("missing credential")

	errNoItemsField = errors.New("items field not found in response")
)

// Default field names when the source declares no mapping.
const (
	defaultFieldItems       = "items"
	defaultFieldTitle       = "title"
	defaultFieldURL         = "url"
	defaultFieldContent     = "content"
	defaultFieldPublishedAt = "published_at"
	defaultFieldAuthor      = "author"
)

// apiFetcher pulls articles from a JSON HTTP API.
type apiFetcher struct {
	httpClient *http.Client
	opts       FetchOptions
	logger     *zerolog.Logger
	now        func() time.Time
	getenv     func(string) string
}

// NewAPIFetcher creates the JSON API fetcher.
func NewAPIFetcher(opts FetchOptions, logger *zerolog.Logger) Fetcher {
	opts.applyDefaults()

	return &apiFetcher{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		logger:     logger,
		now:        time.Now,
		getenv:     os.Getenv,
	}
}

// Fetch issues the authenticated request and maps the configured fields.
func (f *apiFetcher) Fetch(ctx context.Context, source domain.Source) ([]domain.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf(wrapCreateRequest, err)
	}

	req.Header.Set(headerUserAgent, f.opts.UserAgent)

	if source.CredentialEnv != "" {
		key := f.getenv(source.CredentialEnv)
		if key == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingCredential, source.CredentialEnv)
		}

		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(wrapHTTPStatusFmt, errHTTPError, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	items, err := extractItems(body, source.FieldMap.Items)
	if err != nil {
		return nil, err
	}

	fetchedAt := f.now()
	articles := make([]domain.Article, 0, len(items))

	for _, raw := range items {
		article, ok := f.mapItem(source, raw, fetchedAt)
		if !ok {
			continue
		}

		articles = append(articles, article)
	}

	return articles, nil
}

// extractItems locates the article array: either the payload itself or the
// configured items field of a wrapping object.
func extractItems(body []byte, itemsField string) ([]map[string]json.RawMessage, error) {
	var direct []map[string]json.RawMessage
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}

	if itemsField == "" {
		itemsField = defaultFieldItems
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	raw, ok := wrapper[itemsField]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errNoItemsField, itemsField)
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse items field %q: %w", itemsField, err)
	}

	return items, nil
}

// mapItem converts one API object to an Article using the source's field
// mapping. Malformed items are skipped, not fatal.
func (f *apiFetcher) mapItem(source domain.Source, raw map[string]json.RawMessage, fetchedAt time.Time) (domain.Article, bool) {
	fm := source.FieldMap

	title := stringField(raw, fm.Title, defaultFieldTitle)
	link := stringField(raw, fm.URL, defaultFieldURL)

	if title == "" {
		return domain.Article{}, false
	}

	published, ok := f.parsePublished(stringField(raw, fm.PublishedAt, defaultFieldPublishedAt), fetchedAt)
	if !ok {
		f.logger.Debug().Str("source", source.ID).Str("title", title).Msg("item has no parseable date, skipping")
		return domain.Article{}, false
	}

	if tooOld(published, fetchedAt, f.opts.MaxArticleAge) {
		return domain.Article{}, false
	}

	canonical := CanonicalURL(link)

	id := domain.ArticleID(canonical)
	if link == "" {
		id = domain.ArticleIDFallback(source.ID, title, published)
	}

	return domain.Article{
		ID:          id,
		SourceID:    source.ID,
		SourceName:  source.Name,
		Title:       htmlutils.ToText(title),
		URL:         canonical,
		Author:      stringField(raw, fm.Author, defaultFieldAuthor),
		PublishedAt: published.UTC(),
		Content:     htmlutils.ToText(stringField(raw, fm.Content, defaultFieldContent)),
		FetchedAt:   fetchedAt.UTC(),
	}, true
}

func (f *apiFetcher) parsePublished(value string, fetchedAt time.Time) (time.Time, bool) {
	if value == "" {
		if f.opts.StrictDates {
			return time.Time{}, false
		}

		return fetchedAt, true
	}

	parsed, err := dateparse.ParseAny(value)
	if err != nil {
		if f.opts.StrictDates {
			return time.Time{}, false
		}

		return fetchedAt, true
	}

	return parsed, true
}

func stringField(raw map[string]json.RawMessage, field, fallback string) string {
	if field == "" {
		field = fallback
	}

	val, ok := raw[field]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(val, &s); err != nil {
		return ""
	}

	return s
}

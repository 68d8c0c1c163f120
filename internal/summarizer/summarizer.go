package summarizer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/talk-less/talkless/internal/core/domain"
	"github.com/talk-less/talkless/internal/observability"
)

// Options configures the summarization pass.
type Options struct {
	Model                    string
	Temperature              float32
	MaxTemperature           float32
	MinLength                int
	MaxLength                int
	MaxRetries               int
	RequiredCitationCoverage int
	MinCopiedSpan            int
	PerArticleChars          int
	MaxConcurrent            int
	MinArticles              int
	MinSources               int
	GenerationSalt           string
	LLMTimeout               time.Duration
}

// Result is the outcome of one summarization pass.
type Result struct {
	Summaries []domain.Summary
	Failures  []domain.GroupFailure
}

// Summarizer produces one validated summary per eligible group.
type Summarizer struct {
	completer Completer
	opts      Options
	logger    *zerolog.Logger
	now       func() time.Time
}

// New creates a Summarizer.
func New(completer Completer, opts Options, logger *zerolog.Logger) *Summarizer {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}

	return &Summarizer{completer: completer, opts: opts, logger: logger, now: time.Now}
}

// SummarizeAll processes the groups concurrently and reassembles results
// sorted by group id, so worker completion order never affects output.
func (s *Summarizer) SummarizeAll(ctx context.Context, groups []domain.Group, articlesByID map[string]domain.Article) Result {
	type outcome struct {
		summary *domain.Summary
		failure *domain.GroupFailure
	}

	outcomes := make([]outcome, len(groups))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.opts.MaxConcurrent)

	for i, group := range groups {
		eg.Go(func() error {
			summary, failure := s.summarizeGroup(gctx, group, articlesByID)
			outcomes[i] = outcome{summary: summary, failure: failure}

			return nil
		})
	}

	_ = eg.Wait()

	var result Result

	for _, o := range outcomes {
		if o.summary != nil {
			result.Summaries = append(result.Summaries, *o.summary)
		}

		if o.failure != nil {
			result.Failures = append(result.Failures, *o.failure)
		}
	}

	sort.Slice(result.Summaries, func(i, j int) bool { return result.Summaries[i].GroupID < result.Summaries[j].GroupID })
	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].GroupID < result.Failures[j].GroupID })

	return result
}

// summarizeGroup runs the attempt loop for one group. Exactly one of the
// return values is non-nil.
func (s *Summarizer) summarizeGroup(ctx context.Context, group domain.Group, articlesByID map[string]domain.Article) (*domain.Summary, *domain.GroupFailure) {
	articles := make([]domain.Article, 0, len(group.MemberArticleIDs))

	for _, id := range group.MemberArticleIDs {
		if article, ok := articlesByID[id]; ok {
			articles = append(articles, article)
		}
	}

	if reason := s.eligibility(group, articles); reason != "" {
		s.logger.Debug().Str("group", group.ID).Str("reason", reason).Msg("group not eligible for summarization")

		return nil, &domain.GroupFailure{GroupID: group.ID, Reason: reason}
	}

	rules := validationRules{
		MinLength:        s.opts.MinLength,
		MaxLength:        s.opts.MaxLength,
		MaxTemperature:   s.opts.MaxTemperature,
		CitationCoverage: s.opts.RequiredCitationCoverage,
		MinCopiedSpan:    s.opts.MinCopiedSpan,
	}

	basePrompt := buildPrompt(articles, s.opts.MinLength, s.opts.MaxLength, s.opts.PerArticleChars)
	prompt := basePrompt

	var lastViolation *violation

	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		resp, err := s.complete(ctx, prompt)
		if err != nil {
			kind := KindOf(err)
			s.logger.Warn().Err(err).Str("group", group.ID).Int("attempt", attempt).Msg("summary generation failed")

			return nil, &domain.GroupFailure{GroupID: group.ID, Reason: string(kind), Attempts: attempt + 1}
		}

		citations := extractCitations(resp.Text, articles)

		lastViolation = validate(resp.Text, s.opts.Temperature, citations, articles, rules)
		if lastViolation == nil {
			observability.SummariesValidated.WithLabelValues(observability.OutcomeAccepted).Inc()

			return &domain.Summary{
				ID:            domain.SummaryID(group.ID, s.opts.GenerationSalt),
				GroupID:       group.ID,
				Text:          resp.Text,
				Citations:     citations,
				Model:         s.opts.Model,
				Temperature:   s.opts.Temperature,
				PromptVersion: PromptVersion,
				Retries:       attempt,
				Status:        domain.ValidationAccepted,
				CreatedAt:     s.now().UTC(),
			}, nil
		}

		observability.SummariesValidated.WithLabelValues(observability.OutcomeRejected).Inc()

		s.logger.Info().
			Str("group", group.ID).
			Int("attempt", attempt).
			Str("reason", lastViolation.reason).
			Msg("summary rejected by validation")

		prompt = refinePrompt(basePrompt, lastViolation)
	}

	observability.SummariesValidated.WithLabelValues(observability.OutcomeExhausted).Inc()

	return nil, &domain.GroupFailure{
		GroupID:  group.ID,
		Reason:   lastViolation.reason,
		Attempts: s.opts.MaxRetries + 1,
	}
}

// complete issues one provider call, retrying transient failures with
// exponential backoff. Permanent and quota errors are returned as-is.
func (s *Summarizer) complete(ctx context.Context, prompt string) (Response, error) {
	req := Request{
		Model:       s.opts.Model,
		Temperature: s.opts.Temperature,
		Prompt:      prompt,
	}

	var resp Response

	operation := func() error {
		callCtx := ctx

		if s.opts.LLMTimeout > 0 {
			var cancel context.CancelFunc

			callCtx, cancel = context.WithTimeout(ctx, s.opts.LLMTimeout)
			defer cancel()
		}

		var err error

		resp, err = s.completer.Complete(callCtx, req)
		if err != nil && KindOf(err) != ErrKindTransient {
			return backoff.Permanent(err)
		}

		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.opts.MaxRetries)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return Response{}, fmt.Errorf("complete: %w", err)
	}

	return resp, nil
}

// eligibility returns a failure reason, or empty when the group qualifies.
func (s *Summarizer) eligibility(group domain.Group, articles []domain.Article) string {
	if len(articles) < s.opts.MinArticles {
		return domain.FailureIneligible
	}

	sources := make(map[string]bool)
	for _, article := range articles {
		sources[article.SourceID] = true
	}

	if len(sources) < s.opts.MinSources {
		return domain.FailureIneligible
	}

	return ""
}

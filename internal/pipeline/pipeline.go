// Package pipeline orchestrates one run: fetch, detect, group,
// perspective, summarize, report, emit. Stages own their failure handling;
// the orchestrator only aggregates and never aborts mid-run for anything
// short of a configuration error.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/talk-less/talkless/internal/bias"
	"github.com/talk-less/talkless/internal/config"
	"github.com/talk-less/talkless/internal/core/domain"
	"github.com/talk-less/talkless/internal/grouper"
	"github.com/talk-less/talkless/internal/ingest"
	"github.com/talk-less/talkless/internal/observability"
	"github.com/talk-less/talkless/internal/output"
	"github.com/talk-less/talkless/internal/summarizer"
)

// Stage names, in execution order.
const (
	StageFetch       = "fetch"
	StageDetect      = "detect"
	StageGroup       = "group"
	StagePerspective = "perspective"
	StageSummarize   = "summarize"
	StageReport      = "report"
	StageEmit        = "emit"
)

// Deps are the stage implementations a Pipeline drives.
type Deps struct {
	Config     *config.Config
	Rules      *bias.RuleSet
	Ingestor   *ingest.Ingestor
	Grouper    *grouper.Grouper
	Summarizer *summarizer.Summarizer
	Detector   *bias.Detector
	Store      output.ArtifactStore
	Logger     *zerolog.Logger
}

// Pipeline runs the processing stages over the configured sources.
type Pipeline struct {
	deps Deps
	now  func() time.Time
}

// New creates a Pipeline.
func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps, now: time.Now}
}

// Run executes one full pipeline pass and emits its artifacts. The
// returned report mirrors what was emitted. Only emission and
// configuration problems surface as errors; everything else degrades into
// the report.
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	report := domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: p.now().UTC(),
	}

	logger := p.deps.Logger.With().Str("run", report.RunID).Logger()
	logger.Info().Msg("pipeline run starting")

	runCtx := ctx

	if deadline := p.deps.Config.Pipeline.RunDeadline.Std(); deadline > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	sources, enabledIDs := p.sources()
	report.Counts.SourcesConfigured = len(sources)

	// Stage 1: fetch.
	var ingested ingest.Result

	p.stage(&logger, StageFetch, func() {
		ingested = p.deps.Ingestor.FetchAll(runCtx, sources)
	})

	report.Counts.SourcesFailed = ingested.SourcesFailed
	report.Counts.ArticlesFetched = len(ingested.Articles)
	report.Counts.ArticlesCached = ingested.CacheHits

	// Stage 2: detect bias on source articles.
	indicatorsBySubject := make(map[string][]domain.BiasIndicator)

	var indicators []domain.BiasIndicator

	p.stage(&logger, StageDetect, func() {
		for _, article := range ingested.Articles {
			found := p.deps.Detector.ScanArticle(article)
			if len(found) == 0 {
				continue
			}

			indicatorsBySubject[article.ID] = found
			indicators = append(indicators, found...)
		}
	})

	// Stage 3: group.
	var grouped grouper.Result

	p.stage(&logger, StageGroup, func() {
		grouped = p.deps.Grouper.Group(runCtx, ingested.Articles, enabledIDs)
	})

	report.Counts.ArticlesEmbedded = grouped.Embedded
	report.Counts.GroupsFormed = len(grouped.Groups)
	report.Counts.ArticlesUngrouped = len(grouped.UngroupedIDs)

	// Stage 4: perspective. Diversity and coverage gaps are annotated on
	// the groups; this stage surfaces the aggregate for operators.
	p.stage(&logger, StagePerspective, func() {
		var gaps int
		for _, group := range grouped.Groups {
			gaps += len(group.CoverageGaps)
		}

		logger.Info().Int("groups", len(grouped.Groups)).Int("coverage_gaps", gaps).Msg("perspective annotated")
	})

	// Stage 5: summarize.
	articlesByID := make(map[string]domain.Article, len(ingested.Articles))
	for _, article := range ingested.Articles {
		articlesByID[article.ID] = article
	}

	var summarized summarizer.Result

	p.stage(&logger, StageSummarize, func() {
		summarized = p.deps.Summarizer.SummarizeAll(runCtx, grouped.Groups, articlesByID)
	})

	report.Counts.SummariesCreated = len(summarized.Summaries)
	report.Counts.SummariesFailed = len(summarized.Failures)
	report.Failures = summarized.Failures

	// Generated text is scanned too; indicators attach to the summary id.
	for _, summary := range summarized.Summaries {
		found := p.deps.Detector.ScanSummary(summary)
		if len(found) == 0 {
			continue
		}

		indicatorsBySubject[summary.ID] = found
		indicators = append(indicators, found...)
	}

	// Stage 6: report.
	var biasReport bias.Report

	p.stage(&logger, StageReport, func() {
		biasReport = p.deps.Rules.BuildReport(ingested.Articles, indicatorsBySubject)

		report.Counts.Indicators = len(indicators)
		report.BiasTotals = totalsByKind(indicators)
		report.Partial = runCtx.Err() != nil
		report.FinishedAt = p.now().UTC()
	})

	// Stage 7: emit. A partial run still emits what it completed, so
	// emission must survive the expired run deadline.
	var emitErr error

	p.stage(&logger, StageEmit, func() {
		emitErr = p.deps.Store.SaveRun(context.WithoutCancel(ctx), output.RunArtifacts{
			Articles:   ingested.Articles,
			Groups:     grouped.Groups,
			Summaries:  summarized.Summaries,
			Indicators: indicators,
			Bias:       biasReport,
			Report:     report,
		})
	})

	if emitErr != nil {
		return report, fmt.Errorf("emit artifacts: %w", emitErr)
	}

	logger.Info().
		Int("articles", report.Counts.ArticlesFetched).
		Int("groups", report.Counts.GroupsFormed).
		Int("summaries", report.Counts.SummariesCreated).
		Bool("partial", report.Partial).
		Msg("pipeline run finished")

	return report, nil
}

// sources converts configured sources to domain records and collects the
// enabled ids for coverage-gap annotation.
func (p *Pipeline) sources() ([]domain.Source, []string) {
	configured := p.deps.Config.Sources
	sources := make([]domain.Source, 0, len(configured))

	var enabledIDs []string

	for _, sc := range configured {
		source := domain.Source{
			ID:                sc.ID,
			Name:              sc.Name,
			Kind:              domain.SourceKind(sc.Kind),
			URL:               sc.URL,
			CredentialEnv:     sc.CredentialEnv,
			DeclaredLean:      sc.DeclaredLean,
			Enabled:           sc.IsEnabled(),
			RequestsPerMinute: sc.RequestsPerMinute,
			FieldMap: domain.FieldMap{
				Items:       sc.FieldMap["items"],
				Title:       sc.FieldMap["title"],
				URL:         sc.FieldMap["url"],
				Content:     sc.FieldMap["content"],
				PublishedAt: sc.FieldMap["published_at"],
				Author:      sc.FieldMap["author"],
			},
		}

		sources = append(sources, source)

		if source.Enabled {
			enabledIDs = append(enabledIDs, source.ID)
		}
	}

	return sources, enabledIDs
}

func (p *Pipeline) stage(logger *zerolog.Logger, name string, fn func()) {
	start := p.now()
	fn()
	elapsed := time.Since(start)

	observability.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	logger.Debug().Str("stage", name).Dur("took", elapsed).Msg("stage complete")
}

func totalsByKind(indicators []domain.BiasIndicator) map[string]int {
	totals := make(map[string]int)
	for _, ind := range indicators {
		totals[string(ind.Kind)]++
	}

	return totals
}

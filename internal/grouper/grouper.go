// Package grouper partitions an article batch into per-topic groups by
// density clustering in embedding space, then annotates each group with
// perspective and coverage metrics.
package grouper

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/talk-less/talkless/internal/core/domain"
	"github.com/talk-less/talkless/internal/core/embeddings"
	"github.com/talk-less/talkless/internal/observability"
)

// Options configures the grouping pass.
type Options struct {
	SimilarityThreshold float64
	MinArticlesPerGroup int
	MaxArticlesPerGroup int
	SnippetLen          int
}

// Result is the outcome of one grouping pass.
type Result struct {
	Groups       []domain.Group
	UngroupedIDs []string
	Embedded     int
	EmbedFailed  int
}

// Grouper owns the embedding provider and clustering parameters.
type Grouper struct {
	provider embeddings.Provider
	opts     Options
	logger   *zerolog.Logger
}

// New creates a Grouper.
func New(provider embeddings.Provider, opts Options, logger *zerolog.Logger) *Grouper {
	if opts.SnippetLen <= 0 {
		opts.SnippetLen = 1000
	}

	return &Grouper{provider: provider, opts: opts, logger: logger}
}

// Group clusters the batch. Grouping never fails globally; articles whose
// embedding fails are excluded and reported as ungrouped. enabledSources
// feeds the coverage-gap annotation.
func (g *Grouper) Group(ctx context.Context, articles []domain.Article, enabledSources []string) Result {
	if len(articles) == 0 {
		return Result{}
	}

	// Sort a copy by id so group composition is invariant under input
	// article order.
	sorted := make([]domain.Article, len(articles))
	copy(sorted, articles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	texts := make([]string, len(sorted))
	for i, article := range sorted {
		texts[i] = embedText(article, g.opts.SnippetLen)
	}

	vectors, err := g.provider.Embed(ctx, texts)
	if err != nil {
		g.logger.Error().Err(err).Msg("embedding batch failed, producing no groups")
		return Result{UngroupedIDs: idsOf(sorted)}
	}

	var result Result

	byID := make(map[string]domain.Article, len(sorted))
	points := make([]point, 0, len(sorted))

	for i, article := range sorted {
		byID[article.ID] = article

		if i >= len(vectors) || vectors[i] == nil {
			g.logger.Warn().Str("article", article.ID).Msg("embedding failed, excluding article from grouping")

			result.EmbedFailed++
			result.UngroupedIDs = append(result.UngroupedIDs, article.ID)

			continue
		}

		points = append(points, point{id: article.ID, vec: vectors[i]})
	}

	result.Embedded = len(points)

	eps := 1 - g.opts.SimilarityThreshold
	clusters, noise := cluster(points, eps, g.opts.MinArticlesPerGroup)

	for _, idx := range noise {
		result.UngroupedIDs = append(result.UngroupedIDs, points[idx].id)
	}

	for _, members := range clusters {
		group, overflow := g.buildGroup(points, members, byID, enabledSources)
		result.UngroupedIDs = append(result.UngroupedIDs, overflow...)

		if group == nil {
			continue
		}

		result.Groups = append(result.Groups, *group)
	}

	// Deterministic report order.
	sort.Slice(result.Groups, func(i, j int) bool { return result.Groups[i].ID < result.Groups[j].ID })
	sort.Strings(result.UngroupedIDs)

	observability.GroupsFormed.Set(float64(len(result.Groups)))

	g.logger.Info().
		Int("articles", len(articles)).
		Int("groups", len(result.Groups)).
		Int("ungrouped", len(result.UngroupedIDs)).
		Msg("grouping complete")

	return result
}

// buildGroup finalizes one cluster: applies the size cap (keeping the
// members closest to the centroid), computes the deterministic id and the
// perspective metrics. Returns nil if the cluster fell under the minimum
// size; its members are returned as overflow.
func (g *Grouper) buildGroup(points []point, members []int, byID map[string]domain.Article, enabledSources []string) (*domain.Group, []string) {
	if len(members) < g.opts.MinArticlesPerGroup {
		var ids []string
		for _, m := range members {
			ids = append(ids, points[m].id)
		}

		return nil, ids
	}

	vecs := make([][]float32, len(members))
	for i, m := range members {
		vecs[i] = points[m].vec
	}

	centroid := centroidOf(vecs)

	// Size cap: retain the articles closest to the centroid; overflow
	// stays available as ungrouped input to later reports.
	var overflow []string

	if max := g.opts.MaxArticlesPerGroup; max > 0 && len(members) > max {
		sort.Slice(members, func(i, j int) bool {
			di := cosineDistance(points[members[i]].vec, centroid)
			dj := cosineDistance(points[members[j]].vec, centroid)

			if di != dj {
				return di < dj
			}

			return points[members[i]].id < points[members[j]].id
		})

		for _, m := range members[max:] {
			overflow = append(overflow, points[m].id)
		}

		members = members[:max]

		vecs = vecs[:0]
		for _, m := range members {
			vecs = append(vecs, points[m].vec)
		}

		centroid = centroidOf(vecs)
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = points[m].id
	}

	sort.Strings(ids)

	present := make(map[string]bool)

	for _, id := range ids {
		present[byID[id].SourceID] = true
	}

	sources := make([]string, 0, len(present))
	for src := range present {
		sources = append(sources, src)
	}

	sort.Strings(sources)

	var gaps []string

	for _, src := range enabledSources {
		if !present[src] {
			gaps = append(gaps, src)
		}
	}

	sort.Strings(gaps)

	return &domain.Group{
		ID:               domain.GroupID(ids),
		MemberArticleIDs: ids,
		Sources:          sources,
		Centroid:         centroid,
		SourceDiversity:  float64(len(sources)) / float64(len(ids)),
		CoverageGaps:     gaps,
	}, overflow
}

func embedText(article domain.Article, snippetLen int) string {
	content := article.Content
	if runes := []rune(content); len(runes) > snippetLen {
		content = string(runes[:snippetLen])
	}

	return article.Title + "\n\n" + content
}

func idsOf(articles []domain.Article) []string {
	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}

	return ids
}

package grouper

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talk-less/talkless/internal/core/domain"
	"github.com/talk-less/talkless/internal/core/embeddings"
)

func testOptions() Options {
	return Options{
		SimilarityThreshold: 0.7,
		MinArticlesPerGroup: 2,
		MaxArticlesPerGroup: 12,
	}
}

func testArticle(sourceID, title, content string) domain.Article {
	url := fmt.Sprintf("https://%s.example/%x", sourceID, title)

	return domain.Article{
		ID:       domain.ArticleID(url),
		SourceID: sourceID,
		Title:    title,
		URL:      url,
		Content:  content,
	}
}

func newTestGrouper(t *testing.T, provider embeddings.Provider, opts Options) *Grouper {
	t.Helper()

	logger := zerolog.Nop()

	return New(provider, opts, &logger)
}

func TestGroupSharedStory(t *testing.T) {
	shared := "Central bank raises rate by a quarter point"
	articles := []domain.Article{
		testArticle("reuters", shared, "The central bank raised its policy rate today citing inflation."),
		testArticle("apnews", shared, "The central bank raised its policy rate today citing prices."),
		testArticle("reuters", "Local team wins championship final", "A dramatic overtime goal decided the championship on Sunday."),
		testArticle("apnews", "New species of frog discovered in rainforest", "Biologists described a tiny amphibian found deep in the rainforest."),
	}

	g := newTestGrouper(t, embeddings.NewMockProvider(), testOptions())

	result := g.Group(context.Background(), articles, []string{"apnews", "bbc", "reuters"})

	require.Len(t, result.Groups, 1)
	assert.Equal(t, 4, result.Embedded)
	assert.Zero(t, result.EmbedFailed)

	group := result.Groups[0]
	assert.ElementsMatch(t, []string{articles[0].ID, articles[1].ID}, group.MemberArticleIDs)
	assert.Equal(t, []string{"apnews", "reuters"}, group.Sources)
	assert.InDelta(t, 1.0, group.SourceDiversity, 1e-9)
	assert.Equal(t, []string{"bbc"}, group.CoverageGaps)
	assert.Equal(t, domain.GroupID(group.MemberArticleIDs), group.ID)

	assert.ElementsMatch(t, []string{articles[2].ID, articles[3].ID}, result.UngroupedIDs)
}

func TestGroupOrderInvariance(t *testing.T) {
	shared := "Parliament passes the new budget after long debate"
	articles := []domain.Article{
		testArticle("alpha", shared, "Lawmakers approved the budget bill late on Thursday evening."),
		testArticle("beta", shared, "Lawmakers approved the budget bill late on Thursday night."),
		testArticle("gamma", "Storm closes coastal roads", "Heavy rain flooded several coastal roads overnight."),
	}

	g := newTestGrouper(t, embeddings.NewMockProvider(), testOptions())

	first := g.Group(context.Background(), articles, nil)

	reversed := []domain.Article{articles[2], articles[1], articles[0]}
	second := g.Group(context.Background(), reversed, nil)

	require.Len(t, first.Groups, 1)
	require.Len(t, second.Groups, 1)
	assert.Equal(t, first.Groups[0].ID, second.Groups[0].ID)
	assert.Equal(t, first.Groups[0].MemberArticleIDs, second.Groups[0].MemberArticleIDs)
	assert.Equal(t, first.UngroupedIDs, second.UngroupedIDs)
}

func TestGroupSizeCap(t *testing.T) {
	shared := "Wildfire spreads across the northern valley region"
	articles := []domain.Article{
		testArticle("one", shared, "Crews battled the wildfire through the night as winds shifted."),
		testArticle("two", shared, "Crews battled the wildfire through the night as winds rose."),
		testArticle("three", shared, "Crews battled the wildfire through the night as winds eased."),
	}

	opts := testOptions()
	opts.MaxArticlesPerGroup = 2

	g := newTestGrouper(t, embeddings.NewMockProvider(), opts)

	result := g.Group(context.Background(), articles, nil)

	require.Len(t, result.Groups, 1)
	require.Len(t, result.Groups[0].MemberArticleIDs, 2)
	require.Len(t, result.UngroupedIDs, 1)

	all := append([]string{}, result.Groups[0].MemberArticleIDs...)
	all = append(all, result.UngroupedIDs...)
	assert.ElementsMatch(t, []string{articles[0].ID, articles[1].ID, articles[2].ID}, all)
}

func TestGroupEmbedFailureExcludesArticle(t *testing.T) {
	shared := "Port workers end strike after wage agreement"
	articles := []domain.Article{
		testArticle("one", shared, "Dock workers returned after the union accepted the wage offer."),
		testArticle("two", shared, "Dock workers returned after the union accepted the pay offer."),
		testArticle("three", "UNEMBEDDABLE headline", "This article cannot be embedded."),
	}

	provider := embeddings.NewMockProvider()
	provider.FailOn("UNEMBEDDABLE")

	g := newTestGrouper(t, provider, testOptions())

	result := g.Group(context.Background(), articles, nil)

	require.Len(t, result.Groups, 1)
	assert.Equal(t, 2, result.Embedded)
	assert.Equal(t, 1, result.EmbedFailed)
	assert.Equal(t, []string{articles[2].ID}, result.UngroupedIDs)
}

func TestGroupNoSharedStories(t *testing.T) {
	articles := []domain.Article{
		testArticle("one", "Museum reopens after renovation", "The city museum reopened its doors this weekend."),
		testArticle("two", "Satellite launch delayed again", "Engineers postponed the launch over a valve fault."),
		testArticle("three", "Bakery wins national prize", "A small bakery took the top national pastry award."),
	}

	g := newTestGrouper(t, embeddings.NewMockProvider(), testOptions())

	result := g.Group(context.Background(), articles, nil)

	assert.Empty(t, result.Groups)
	assert.Len(t, result.UngroupedIDs, 3)
}

func TestGroupEmptyBatch(t *testing.T) {
	g := newTestGrouper(t, embeddings.NewMockProvider(), testOptions())

	result := g.Group(context.Background(), nil, nil)

	assert.Empty(t, result.Groups)
	assert.Empty(t, result.UngroupedIDs)
	assert.Zero(t, result.Embedded)
}

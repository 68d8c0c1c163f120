package output

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talk-less/talkless/internal/bias"
	"github.com/talk-less/talkless/internal/core/domain"
)

func TestDirStoreSaveRun(t *testing.T) {
	base := t.TempDir()
	store := NewDirStore(base)

	started := time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC)

	artifacts := RunArtifacts{
		Articles: []domain.Article{{ID: "a1", SourceID: "alpha", Title: "Title"}},
		Groups:   []domain.Group{{ID: "g1", MemberArticleIDs: []string{"a1"}}},
		Summaries: []domain.Summary{{
			ID:      "s1",
			GroupID: "g1",
			Text:    "Summary text [Source: Alpha Wire].",
			Status:  domain.ValidationAccepted,
		}},
		Indicators: []domain.BiasIndicator{{Kind: domain.IndicatorLoadedLanguage, SubjectID: "a1", Matched: "slammed"}},
		Bias:       bias.Report{TotalIndicators: 1, ByKind: map[string]int{"loaded_language": 1}},
		Report: domain.RunReport{
			RunID:      "run-123",
			StartedAt:  started,
			FinishedAt: started.Add(time.Minute),
			Counts:     domain.StageCounts{ArticlesFetched: 1, GroupsFormed: 1, SummariesCreated: 1},
			BiasTotals: map[string]int{"loaded_language": 1},
		},
	}

	require.NoError(t, store.SaveRun(context.Background(), artifacts))

	dir := filepath.Join(base, "run-123")

	for _, name := range []string{ArticlesFile, GroupsFile, SummariesFile, ReportFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	raw, err := os.ReadFile(filepath.Join(dir, ReportFile))
	require.NoError(t, err)

	var doc struct {
		Run struct {
			RunID  string `json:"run_id"`
			Counts struct {
				SummariesCreated int `json:"summaries_created"`
			} `json:"counts"`
		} `json:"run"`
		Indicators []json.RawMessage `json:"indicators"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "run-123", doc.Run.RunID)
	assert.Equal(t, 1, doc.Run.Counts.SummariesCreated)
	assert.Len(t, doc.Indicators, 1)

	var articles []domain.Article
	raw, err = os.ReadFile(filepath.Join(dir, ArticlesFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &articles))
	assert.Equal(t, "a1", articles[0].ID)
}

func TestDirStoreCancelledContext(t *testing.T) {
	store := NewDirStore(t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.SaveRun(ctx, RunArtifacts{Report: domain.RunReport{RunID: "run-x"}})
	assert.Error(t, err)
}

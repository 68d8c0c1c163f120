package bias

import (
	"sort"

	"github.com/talk-less/talkless/internal/core/domain"
)

const topTokenCount = 3

// SourceAggregate summarizes indicator activity for one source.
type SourceAggregate struct {
	SourceID         string   `json:"source_id"`
	Articles         int      `json:"articles"`
	Indicators       int      `json:"indicators"`
	MeanIndicators   float64  `json:"mean_indicators_per_article"`
	TopMatchedTokens []string `json:"top_matched_tokens,omitempty"`
}

// FlaggedArticle is an article whose filtered score exceeds the flag
// threshold.
type FlaggedArticle struct {
	ArticleID       string  `json:"article_id"`
	SourceID        string  `json:"source_id"`
	Score           float64 `json:"score"`
	NormalizedScore float64 `json:"normalized_score"`
}

// Report is the per-run transparency report. It is deterministic from its
// inputs: all slices are sorted and all aggregates derive from counts.
type Report struct {
	TotalIndicators int               `json:"total_indicators"`
	ByKind          map[string]int    `json:"by_kind"`
	Sources         []SourceAggregate `json:"sources"`
	Flagged         []FlaggedArticle  `json:"flagged_articles"`
}

// BuildReport aggregates raw indicators into the transparency report.
// MinConfidence filters what the report counts; the raw indicator lists
// passed in remain untouched.
func (s *RuleSet) BuildReport(articles []domain.Article, indicatorsBySubject map[string][]domain.BiasIndicator) Report {
	report := Report{ByKind: make(map[string]int)}

	type sourceAcc struct {
		articles   int
		indicators int
		tokens     map[string]int
	}

	accBySource := make(map[string]*sourceAcc)

	for _, article := range articles {
		acc := accBySource[article.SourceID]
		if acc == nil {
			acc = &sourceAcc{tokens: make(map[string]int)}
			accBySource[article.SourceID] = acc
		}

		acc.articles++

		var score float64

		for _, ind := range indicatorsBySubject[article.ID] {
			if ind.Confidence.Rank() < s.MinConfidence.Rank() {
				continue
			}

			report.TotalIndicators++
			report.ByKind[string(ind.Kind)]++
			acc.indicators++
			acc.tokens[ind.Matched]++
			score += ind.Weight
		}

		if score > s.FlagThreshold {
			report.Flagged = append(report.Flagged, FlaggedArticle{
				ArticleID:       article.ID,
				SourceID:        article.SourceID,
				Score:           score,
				NormalizedScore: NormalizedScore(score, len([]rune(article.Content))),
			})
		}
	}

	for sourceID, acc := range accBySource {
		aggregate := SourceAggregate{
			SourceID:         sourceID,
			Articles:         acc.articles,
			Indicators:       acc.indicators,
			TopMatchedTokens: topTokens(acc.tokens),
		}

		if acc.articles > 0 {
			aggregate.MeanIndicators = float64(acc.indicators) / float64(acc.articles)
		}

		report.Sources = append(report.Sources, aggregate)
	}

	sort.Slice(report.Sources, func(i, j int) bool { return report.Sources[i].SourceID < report.Sources[j].SourceID })

	sort.Slice(report.Flagged, func(i, j int) bool {
		if report.Flagged[i].Score != report.Flagged[j].Score {
			return report.Flagged[i].Score > report.Flagged[j].Score
		}

		return report.Flagged[i].ArticleID < report.Flagged[j].ArticleID
	})

	return report
}

// topTokens picks the most frequent matched tokens, ties broken
// alphabetically.
func topTokens(counts map[string]int) []string {
	tokens := make([]string, 0, len(counts))
	for token := range counts {
		tokens = append(tokens, token)
	}

	sort.Slice(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}

		return tokens[i] < tokens[j]
	})

	if len(tokens) > topTokenCount {
		tokens = tokens[:topTokenCount]
	}

	return tokens
}

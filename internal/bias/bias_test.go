package bias

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talk-less/talkless/internal/core/domain"
)

const testRulesYAML = `
loaded_words:
  - pattern: slammed
  - pattern: witch hunt
    confidence: high
    weight: 2.0
attribution_patterns:
  - pattern: 'sources (say|claim)'
    scope: body
framing_patterns:
  - pattern: shocking
min_confidence: low
flag_threshold: 2.5
`

func writeRules(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bias_rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func loadTestRules(t *testing.T) *RuleSet {
	t.Helper()

	rules, err := LoadRules(writeRules(t, testRulesYAML))
	require.NoError(t, err)

	return rules
}

func newTestDetector(t *testing.T) *Detector {
	t.Helper()

	logger := zerolog.Nop()

	return New(loadTestRules(t), &logger)
}

func TestScanLoadedLanguage(t *testing.T) {
	article := domain.Article{
		ID:       "a1",
		SourceID: "alpha",
		Title:    "Committee reviews zoning change",
		Content:  "During the hearing, the council member slammed the proposal as rushed and incomplete.",
	}

	indicators := newTestDetector(t).ScanArticle(article)

	require.Len(t, indicators, 1)
	assert.Equal(t, domain.IndicatorLoadedLanguage, indicators[0].Kind)
	assert.Equal(t, "slammed", indicators[0].Matched)
	assert.Contains(t, indicators[0].Context, "slammed the proposal")
	assert.Equal(t, domain.ConfidenceMedium, indicators[0].Confidence)
	assert.GreaterOrEqual(t, Score(indicators), 1.0)
}

func TestScanLoadedWordBoundary(t *testing.T) {
	article := domain.Article{
		ID:      "a1",
		Content: "The door slammed-shut metaphor aside, grandslammed is not a match.",
	}

	indicators := newTestDetector(t).ScanArticle(article)

	// "slammed-shut" hits the token on a boundary; "grandslammed" does not.
	require.Len(t, indicators, 1)
	assert.Equal(t, "slammed", indicators[0].Matched)
}

func TestScanAttributionRegex(t *testing.T) {
	article := domain.Article{
		ID:      "a2",
		Title:   "Sources say budget talks stall",
		Content: "Sources claim the negotiations broke down late on Tuesday.",
	}

	indicators := newTestDetector(t).ScanArticle(article)

	// Scope is body, so the title occurrence is ignored.
	require.Len(t, indicators, 1)
	assert.Equal(t, domain.IndicatorAttribution, indicators[0].Kind)
	assert.Equal(t, "Sources claim", indicators[0].Matched)
}

func TestAttributionLiteralFallback(t *testing.T) {
	rules, err := LoadRules(writeRules(t, `
attribution_patterns:
  - pattern: 'experts believe ('
`))
	require.NoError(t, err)

	logger := zerolog.Nop()
	detector := New(rules, &logger)

	indicators := detector.ScanArticle(domain.Article{
		ID:      "a3",
		Content: "Many experts believe (without naming any) that rates will fall.",
	})

	require.Len(t, indicators, 1)
	assert.Equal(t, "experts believe (", indicators[0].Matched)
}

func TestScanFramingHeadlineOnly(t *testing.T) {
	detector := newTestDetector(t)

	headlineOnly := domain.Article{
		ID:      "a4",
		Title:   "Shocking twist in merger case",
		Content: "The appeals court reversed the earlier ruling on procedural grounds.",
	}

	indicators := detector.ScanArticle(headlineOnly)
	require.Len(t, indicators, 1)
	assert.Equal(t, domain.IndicatorFraming, indicators[0].Kind)
	assert.Equal(t, domain.ConfidenceLow, indicators[0].Confidence)

	supported := headlineOnly
	supported.Content += " Observers called the shocking reversal unprecedented."

	assert.Empty(t, detector.ScanArticle(supported))
}

func TestScanSummaryLoadedOnly(t *testing.T) {
	summary := domain.Summary{
		ID:   "s1",
		Text: "Critics slammed the plan, and sources claim more changes are coming.",
	}

	indicators := newTestDetector(t).ScanSummary(summary)

	require.Len(t, indicators, 1)
	assert.Equal(t, domain.IndicatorLoadedLanguage, indicators[0].Kind)
	assert.Equal(t, "s1", indicators[0].SubjectID)
}

func TestContextSpanLength(t *testing.T) {
	long := make([]byte, 0, 600)
	for i := 0; i < 60; i++ {
		long = append(long, "filler tex"...)
	}

	text := string(long) + " slammed " + string(long)

	indicators := newTestDetector(t).ScanArticle(domain.Article{ID: "a5", Content: text})

	require.Len(t, indicators, 1)
	assert.LessOrEqual(t, len([]rune(indicators[0].Context)), 120)
	assert.Contains(t, indicators[0].Context, "slammed")
}

func TestLoadRulesRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad scope", yaml: "loaded_words:\n  - pattern: x\n    scope: headline\n"},
		{name: "framing scope", yaml: "framing_patterns:\n  - pattern: shocking\n    scope: title\n"},
		{name: "bad confidence", yaml: "loaded_words:\n  - pattern: x\n    confidence: certain\n"},
		{name: "empty pattern", yaml: "loaded_words:\n  - pattern: ''\n"},
		{name: "bad min confidence", yaml: "min_confidence: maybe\n"},
		{name: "not yaml", yaml: "{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules(writeRules(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRulesKeepsExplicitZeroes(t *testing.T) {
	rules, err := LoadRules(writeRules(t, `
loaded_words:
  - pattern: muted
    weight: 0
flag_threshold: 0
`))
	require.NoError(t, err)

	assert.Zero(t, rules.FlagThreshold)
	require.Len(t, rules.loaded, 1)
	assert.Zero(t, rules.loaded[0].weight)

	defaulted, err := LoadRules(writeRules(t, "loaded_words:\n  - pattern: muted\n"))
	require.NoError(t, err)

	assert.Equal(t, defaultFlagThreshold, defaulted.FlagThreshold)
	require.Len(t, defaulted.loaded, 1)
	assert.Equal(t, defaultWeight, defaulted.loaded[0].weight)
}

func TestBuildReport(t *testing.T) {
	rules, err := LoadRules(writeRules(t, `
loaded_words:
  - pattern: slammed
  - pattern: witch hunt
    confidence: high
    weight: 2.0
framing_patterns:
  - pattern: shocking
min_confidence: medium
flag_threshold: 2.5
`))
	require.NoError(t, err)

	logger := zerolog.Nop()
	detector := New(rules, &logger)

	articles := []domain.Article{
		{
			ID:       "a1",
			SourceID: "alpha",
			Title:    "Shocking claims in hearing",
			Content:  "The mayor slammed the audit, calling it a witch hunt, and slammed its authors again.",
		},
		{
			ID:       "b1",
			SourceID: "beta",
			Content:  "The audit found routine accounting discrepancies in three departments.",
		},
	}

	indicators := map[string][]domain.BiasIndicator{
		"a1": detector.ScanArticle(articles[0]),
		"b1": detector.ScanArticle(articles[1]),
	}

	report := rules.BuildReport(articles, indicators)

	// The low-confidence framing indicator is filtered from the report.
	assert.Equal(t, 3, report.TotalIndicators)
	assert.Equal(t, map[string]int{"loaded_language": 3}, report.ByKind)

	require.Len(t, report.Sources, 2)
	assert.Equal(t, "alpha", report.Sources[0].SourceID)
	assert.Equal(t, 3, report.Sources[0].Indicators)
	assert.InDelta(t, 3.0, report.Sources[0].MeanIndicators, 1e-9)
	assert.Equal(t, []string{"slammed", "witch hunt"}, report.Sources[0].TopMatchedTokens)
	assert.Equal(t, "beta", report.Sources[1].SourceID)
	assert.Zero(t, report.Sources[1].Indicators)

	// slammed (1.0) * 2 + witch hunt (2.0) = 4.0 > 2.5.
	require.Len(t, report.Flagged, 1)
	assert.Equal(t, "a1", report.Flagged[0].ArticleID)
	assert.InDelta(t, 4.0, report.Flagged[0].Score, 1e-9)

	// Raw indicator lists keep the filtered framing entry.
	assert.Len(t, indicators["a1"], 4)
}

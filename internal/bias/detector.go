package bias

import (
	"github.com/rs/zerolog"

	"github.com/talk-less/talkless/internal/core/domain"
	"github.com/talk-less/talkless/internal/observability"
)

const contextSpanChars = 120

// Detector scans text against a compiled rule set.
type Detector struct {
	rules  *RuleSet
	logger *zerolog.Logger
}

// New creates a Detector.
func New(rules *RuleSet, logger *zerolog.Logger) *Detector {
	return &Detector{rules: rules, logger: logger}
}

// ScanArticle runs all three rule families over one article.
func (d *Detector) ScanArticle(article domain.Article) []domain.BiasIndicator {
	var indicators []domain.BiasIndicator

	for _, r := range d.rules.loaded {
		indicators = append(indicators, scanScoped(r, article)...)
	}

	for _, r := range d.rules.attribution {
		indicators = append(indicators, scanScoped(r, article)...)
	}

	// Framing fires when the headline matches but the body never does.
	for _, r := range d.rules.framing {
		if loc := r.re.FindStringIndex(article.Title); loc != nil && !r.re.MatchString(article.Content) {
			indicators = append(indicators, indicatorAt(r, article.ID, article.Title, loc))
		}
	}

	for i := range indicators {
		observability.BiasIndicators.WithLabelValues(string(indicators[i].Kind)).Inc()
	}

	return indicators
}

// ScanSummary checks generated text with the loaded-language family only;
// attribution and framing rules assume reported, headlined articles.
func (d *Detector) ScanSummary(summary domain.Summary) []domain.BiasIndicator {
	var indicators []domain.BiasIndicator

	for _, r := range d.rules.loaded {
		for _, loc := range r.re.FindAllStringIndex(summary.Text, -1) {
			indicators = append(indicators, indicatorAt(r, summary.ID, summary.Text, loc))
		}
	}

	for i := range indicators {
		observability.BiasIndicators.WithLabelValues(string(indicators[i].Kind)).Inc()
	}

	return indicators
}

// Score is the raw per-subject aggregate: the sum of indicator weights.
func Score(indicators []domain.BiasIndicator) float64 {
	var sum float64
	for _, ind := range indicators {
		sum += ind.Weight
	}

	return sum
}

// NormalizedScore scales a raw score per 1000 runes of body text, so long
// articles are not penalized for sheer length.
func NormalizedScore(score float64, bodyRunes int) float64 {
	if bodyRunes <= 0 {
		return score
	}

	return score * 1000 / float64(bodyRunes)
}

func scanScoped(r rule, article domain.Article) []domain.BiasIndicator {
	var indicators []domain.BiasIndicator

	if r.scope == ScopeTitle || r.scope == ScopeAny {
		for _, loc := range r.re.FindAllStringIndex(article.Title, -1) {
			indicators = append(indicators, indicatorAt(r, article.ID, article.Title, loc))
		}
	}

	if r.scope == ScopeBody || r.scope == ScopeAny {
		for _, loc := range r.re.FindAllStringIndex(article.Content, -1) {
			indicators = append(indicators, indicatorAt(r, article.ID, article.Content, loc))
		}
	}

	return indicators
}

func indicatorAt(r rule, subjectID, text string, loc []int) domain.BiasIndicator {
	return domain.BiasIndicator{
		Kind:       r.kind,
		SubjectID:  subjectID,
		Matched:    text[loc[0]:loc[1]],
		Context:    contextSpan(text, loc[0], loc[1]),
		Confidence: r.confidence,
		Weight:     r.weight,
	}
}

// contextSpan returns up to contextSpanChars runes centered on the match.
func contextSpan(text string, start, end int) string {
	before := []rune(text[:start])
	match := []rune(text[start:end])
	after := []rune(text[end:])

	if len(match) >= contextSpanChars {
		return string(match[:contextSpanChars])
	}

	budget := contextSpanChars - len(match)
	lead := budget / 2
	trail := budget - lead

	if lead > len(before) {
		trail += lead - len(before)
		lead = len(before)
	}

	if trail > len(after) {
		extra := trail - len(after)
		trail = len(after)

		if lead+extra <= len(before) {
			lead += extra
		} else {
			lead = len(before)
		}
	}

	return string(before[len(before)-lead:]) + string(match) + string(after[:trail])
}

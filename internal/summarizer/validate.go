package summarizer

import (
	"fmt"
	"strings"

	"github.com/talk-less/talkless/internal/core/domain"
)

// Validation failure reason constants. The first failing check names the
// attempt's reason.
const (
	reasonTemperature      = "temperature"
	reasonLength           = "length"
	reasonCitationCoverage = "citation_coverage"
	reasonCopiedSpan       = "copied_span"
)

// violation is one failed validation check.
type violation struct {
	reason string
	detail string
}

// validationRules are the acceptance bounds for one summary attempt.
type validationRules struct {
	MinLength        int
	MaxLength        int
	MaxTemperature   float32
	CitationCoverage int // 0 means every group source must be cited
	MinCopiedSpan    int
}

// validate runs the acceptance checks in a fixed order and returns the
// first violation, or nil when the summary is acceptable.
func validate(text string, temperature float32, citations map[string]string, articles []domain.Article, rules validationRules) *violation {
	if temperature > rules.MaxTemperature {
		return &violation{
			reason: reasonTemperature,
			detail: fmt.Sprintf("%.2f exceeds cap %.2f", temperature, rules.MaxTemperature),
		}
	}

	if length := len([]rune(text)); length < rules.MinLength || length > rules.MaxLength {
		return &violation{
			reason: reasonLength,
			detail: fmt.Sprintf("%d chars, bounds [%d, %d]", length, rules.MinLength, rules.MaxLength),
		}
	}

	if v := checkCitationCoverage(citations, articles, rules.CitationCoverage); v != nil {
		return v
	}

	return checkCopiedSpan(text, articles, rules.MinCopiedSpan)
}

func checkCitationCoverage(citations map[string]string, articles []domain.Article, coverage int) *violation {
	distinct := make(map[string]bool)
	for _, article := range articles {
		distinct[strings.ToLower(article.SourceName)] = true
	}

	required := len(distinct)
	if coverage > 0 && coverage < required {
		required = coverage
	}

	if len(citations) < required {
		return &violation{
			reason: reasonCitationCoverage,
			detail: fmt.Sprintf("cited %d of %d required sources", len(citations), required),
		}
	}

	return nil
}

// checkCopiedSpan rejects the summary if any minSpan consecutive words of
// it occur verbatim in a source body. Word streams are lowercased and
// whitespace-normalized before comparison.
func checkCopiedSpan(text string, articles []domain.Article, minSpan int) *violation {
	if minSpan <= 0 {
		return nil
	}

	summaryWords := normalizeWords(text)
	if len(summaryWords) < minSpan {
		return nil
	}

	sourceGrams := make(map[string]bool)

	for _, article := range articles {
		words := normalizeWords(article.Content)
		for i := 0; i+minSpan <= len(words); i++ {
			sourceGrams[strings.Join(words[i:i+minSpan], " ")] = true
		}
	}

	for i := 0; i+minSpan <= len(summaryWords); i++ {
		gram := strings.Join(summaryWords[i:i+minSpan], " ")
		if sourceGrams[gram] {
			return &violation{reason: reasonCopiedSpan, detail: gram}
		}
	}

	return nil
}

// normalizeWords lowercases and splits on whitespace, trimming common
// punctuation so quoted or sentence-final words still line up.
func normalizeWords(s string) []string {
	fields := strings.Fields(strings.ToLower(s))

	words := make([]string, 0, len(fields))

	for _, f := range fields {
		f = strings.Trim(f, `.,;:!?"'()[]`)
		if f != "" {
			words = append(words, f)
		}
	}

	return words
}

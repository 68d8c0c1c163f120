package summarizer

import (
	"fmt"
	"strings"

	"github.com/talk-less/talkless/internal/core/domain"
)

// PromptVersion pins the template; it is recorded on every summary so
// regenerated output can be traced to the wording that produced it.
const PromptVersion = "v1"

const promptHeader = `You are a news analyst. Synthesize ONE multi-perspective summary of the story covered by the articles below.

Rules:
- Do not copy sentences or long phrases from the articles; write transformatively in your own words.
- Cite every substantive claim inline as [Source: <source name>], using the source names exactly as given.
- Cover the perspective of each source at least once.
- The summary must be between %d and %d characters long.

Articles:
`

const perArticleFormat = "--- Source: %s ---\nTitle: %s\n%s\n\n"

// buildPrompt renders the v1 template for a group's articles.
func buildPrompt(articles []domain.Article, minLen, maxLen, perArticleChars int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(promptHeader, minLen, maxLen))

	for _, article := range articles {
		body := article.Content
		if runes := []rune(body); perArticleChars > 0 && len(runes) > perArticleChars {
			body = string(runes[:perArticleChars])
		}

		sb.WriteString(fmt.Sprintf(perArticleFormat, article.SourceName, article.Title, body))
	}

	return sb.String()
}

// refinePrompt appends a note naming the previous attempt's violation so
// the retry can correct it.
func refinePrompt(base string, v *violation) string {
	var note string

	switch v.reason {
	case reasonCopiedSpan:
		note = fmt.Sprintf("The previous attempt copied the phrase %q from a source article; rewrite to be transformative.", v.detail)
	case reasonLength:
		note = fmt.Sprintf("The previous attempt had an invalid length (%s); stay within the bounds above.", v.detail)
	case reasonCitationCoverage:
		note = fmt.Sprintf("The previous attempt cited too few sources (%s); cite each source at least once as [Source: <source name>].", v.detail)
	default:
		note = fmt.Sprintf("The previous attempt was rejected (%s); follow the rules above strictly.", v.reason)
	}

	return base + "IMPORTANT: " + note + "\n"
}

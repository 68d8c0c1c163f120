package summarizer

import (
	"regexp"
	"strings"

	"github.com/talk-less/talkless/internal/core/domain"
)

// citationPattern matches [Source: <name>] tokens. The bracket token is
// case-sensitive; the captured name is matched case-insensitively against
// the group's known source names.
var citationPattern = regexp.MustCompile(`\[Source: ([^\]]+)\]`)

// extractCitations maps cited source names to a member article id of that
// source. Citations naming sources outside the group are ignored. Multiple
// articles from the same source resolve to the lowest article id for
// deterministic output.
func extractCitations(text string, articles []domain.Article) map[string]string {
	articleBySource := make(map[string]domain.Article)

	for _, article := range articles {
		key := strings.ToLower(article.SourceName)

		if existing, ok := articleBySource[key]; !ok || article.ID < existing.ID {
			articleBySource[key] = article
		}
	}

	citations := make(map[string]string)

	for _, match := range citationPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(match[1])

		article, ok := articleBySource[strings.ToLower(name)]
		if !ok {
			continue
		}

		citations[article.SourceName] = article.ID
	}

	return citations
}

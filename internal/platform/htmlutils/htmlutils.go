// Package htmlutils converts feed and API HTML payloads into plain text
// suitable for embedding, summarization, and rule matching.
package htmlutils

import (
	"strings"

	"golang.org/x/net/html"
)

// blockTags are elements that terminate a paragraph when closed.
var blockTags = map[string]bool{
	"p":          true,
	"div":        true,
	"br":         true,
	"li":         true,
	"ul":         true,
	"ol":         true,
	"h1":         true,
	"h2":         true,
	"h3":         true,
	"h4":         true,
	"h5":         true,
	"h6":         true,
	"blockquote": true,
	"pre":        true,
	"table":      true,
	"tr":         true,
	"article":    true,
	"section":    true,
}

// skipTags are elements whose text content is never article prose.
var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"svg":      true,
}

// ToText strips HTML to plain text, preserving paragraph boundaries as
// blank lines. Input that is already plain text passes through with only
// whitespace normalization. The tokenizer never fails on malformed markup;
// it consumes what it can.
func ToText(s string) string {
	if !strings.ContainsRune(s, '<') {
		return normalizeWhitespace(s)
	}

	var (
		sb      strings.Builder
		skip    int
		z       = html.NewTokenizer(strings.NewReader(s))
		pending bool // paragraph break owed before next text
	)

	for {
		tt := z.Next()

		switch tt {
		case html.ErrorToken:
			return normalizeWhitespace(sb.String())
		case html.TextToken:
			if skip > 0 {
				continue
			}

			text := strings.TrimSpace(string(z.Text()))
			if text == "" {
				continue
			}

			if pending && sb.Len() > 0 {
				sb.WriteString("\n\n")
			} else if sb.Len() > 0 {
				sb.WriteByte(' ')
			}

			pending = false

			sb.WriteString(text)
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)

			if skipTags[tag] {
				// A self-closing skip tag has no end tag to balance it.
				if tt == html.StartTagToken {
					skip++
				}

				continue
			}

			if blockTags[tag] {
				pending = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)

			if skipTags[tag] && skip > 0 {
				skip--
				continue
			}

			if blockTags[tag] {
				pending = true
			}
		}
	}
}

// normalizeWhitespace collapses runs of spaces and limits consecutive
// newlines to a single blank line.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true

	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}

			blank = true

			continue
		}

		out = append(out, line)
		blank = false
	}

	// Trim a trailing blank line left by the loop.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}

	return strings.Join(out, "\n")
}

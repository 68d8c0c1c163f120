package ingest

import (
	"net/url"
	"strings"
)

// CanonicalURL normalizes a URL so the same story fetched twice yields the
// same article id: scheme and host lowercased, default ports and trailing
// slashes trimmed, fragments and tracking parameters removed.
func CanonicalURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return strings.TrimSpace(raw)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	switch parsed.Scheme {
	case "http":
		parsed.Host = strings.TrimSuffix(parsed.Host, ":80")
	case "https":
		parsed.Host = strings.TrimSuffix(parsed.Host, ":443")
	}

	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	if parsed.RawQuery != "" {
		query := parsed.Query()
		for param := range query {
			if strings.HasPrefix(param, "utm_") {
				query.Del(param)
			}
		}

		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// idLen is the number of hex characters kept from the sha256 digest.
const idLen = 16

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:idLen]
}

// ArticleID derives the deterministic article id from a canonical URL.
func ArticleID(canonicalURL string) string {
	return shortHash(canonicalURL)
}

// ArticleIDFallback derives an article id when no usable URL exists.
func ArticleIDFallback(sourceID, title string, published time.Time) string {
	return shortHash(sourceID + "|" + title + "|" + published.UTC().Format(time.RFC3339))
}

// GroupID derives the group id from its member article ids. The id is
// invariant under permutation of the input order.
func GroupID(memberIDs []string) string {
	sorted := make([]string, len(memberIDs))
	copy(sorted, memberIDs)
	sort.Strings(sorted)

	return shortHash(strings.Join(sorted, "\n"))
}

// SummaryID derives the summary id from its group id and a generation salt.
func SummaryID(groupID, salt string) string {
	return shortHash(groupID + "|" + salt)
}

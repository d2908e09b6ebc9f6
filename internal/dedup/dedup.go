// Package dedup merges article lists across providers, treating same-URL
// or highly-similar-title articles as duplicates.
package dedup

import (
	"strings"
	"unicode"

	"github.com/dmarins/newsbrief/internal/news"
)

// containmentMinLen guards the substring check: only titles longer than
// this may match by containment, so short generic titles don't collapse
// distinct stories.
const containmentMinLen = 20

// IsDuplicate reports whether two articles describe the same story:
// identical URLs, or normalized titles that are equal or where one
// (sufficiently long) contains the other. The containment case handles
// truncated headlines from different providers.
func IsDuplicate(a, b news.Article) bool {
	if a.URL != "" && a.URL == b.URL {
		return true
	}

	ta := normalizeTitle(a.Title)
	tb := normalizeTitle(b.Title)
	if ta == "" || tb == "" {
		return false
	}
	if ta == tb {
		return true
	}
	if len(ta) > containmentMinLen && strings.Contains(tb, ta) {
		return true
	}
	if len(tb) > containmentMinLen && strings.Contains(ta, tb) {
		return true
	}
	return false
}

// Merge appends each incoming article to dst unless it duplicates an
// already-present one, and returns the grown slice plus the number of
// articles actually added. Incoming articles are tested against
// everything already merged, so earlier providers win ties (first-seen
// wins) and provider call order is a stable tie-break.
func Merge(dst []news.Article, incoming []news.Article) ([]news.Article, int) {
	added := 0
	for _, candidate := range incoming {
		dup := false
		for _, have := range dst {
			if IsDuplicate(have, candidate) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		dst = append(dst, candidate)
		added++
	}
	return dst, added
}

// normalizeTitle lowercases, strips punctuation and collapses whitespace.
func normalizeTitle(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Package freshness rejects articles whose publish time cannot be
// determined or whose age exceeds a topic's freshness tier, and orders
// survivors newest-first.
package freshness

import (
	"sort"
	"time"

	"github.com/dmarins/newsbrief/internal/news"
)

// IsFresh reports whether the article's age, measured at now, is within
// maxAgeHours. Articles without a resolvable publish time are never fresh.
func IsFresh(a news.Article, maxAgeHours int, now time.Time) bool {
	published, ok := a.PublishedTime()
	if !ok {
		return false
	}
	return now.Sub(published) <= time.Duration(maxAgeHours)*time.Hour
}

// Filter keeps the fresh articles, preserving order. It is applied once,
// over the merged cross-provider list, never per provider.
func Filter(articles []news.Article, maxAgeHours int, now time.Time) []news.Article {
	out := make([]news.Article, 0, len(articles))
	for _, a := range articles {
		if IsFresh(a, maxAgeHours, now) {
			out = append(out, a)
		}
	}
	return out
}

// SortNewestFirst orders articles by descending publish time. Articles
// without a resolvable time sort as oldest.
func SortNewestFirst(articles []news.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		ti, oki := articles[i].PublishedTime()
		tj, okj := articles[j].PublishedTime()
		if oki != okj {
			return oki
		}
		return ti.After(tj)
	})
}

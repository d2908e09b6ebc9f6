package news

import (
	"strings"
	"time"
)

const (
	// MinTitleLen is the minimum title length for an article to be usable.
	MinTitleLen = 10

	// MinSummaryLen is the minimum summary length for an article to be usable.
	MinSummaryLen = 30
)

// Article is the common shape every provider's records are normalized into.
// PublishedAt is an ISO-8601 timestamp; it may be empty when a provider
// could not supply one, in which case the article never survives the
// freshness filter.
type Article struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Source      string `json:"source"`
	URL         string `json:"url,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

// Content is one topic's aggregated article set for a single run,
// ordered newest-first.
type Content struct {
	Topic    string    `json:"topic"`
	Articles []Article `json:"articles"`
}

// Usable reports whether an article carries enough substance to keep.
// Under-qualified records are dropped at normalization, not defaulted.
func (a Article) Usable() bool {
	if len(strings.TrimSpace(a.Title)) <= MinTitleLen {
		return false
	}
	if len(strings.TrimSpace(a.Summary)) <= MinSummaryLen {
		return false
	}
	return a.Source != ""
}

var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
}

// PublishedTime resolves PublishedAt into a time. The second return is
// false when the timestamp is absent or unparsable.
func (a Article) PublishedTime() (time.Time, bool) {
	if a.PublishedAt == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, a.PublishedAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

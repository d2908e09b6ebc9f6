package source

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dmarins/newsbrief/internal/news"
)

const (
	serperURL        = "https://google.serper.dev/news"
	serperMaxResults = 3
)

// Serper is the metered backup provider (small daily sample budget). It
// reports article ages as relative strings ("2 hours ago"), which are
// resolved against call-time now; records whose age cannot be derived
// are dropped rather than given a fabricated timestamp.
type Serper struct {
	apiKey  string
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewSerper(apiKey string) *Serper {
	return &Serper{
		apiKey:  apiKey,
		baseURL: serperURL,
		client:  &http.Client{Timeout: 20 * time.Second},
		now:     time.Now,
	}
}

type serperRequest struct {
	Q   string `json:"q"`
	TBS string `json:"tbs,omitempty"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	News []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
		Source  string `json:"source"`
	} `json:"news"`
}

func (s *Serper) Name() string  { return "serper" }
func (s *Serper) Enabled() bool { return s.apiKey != "" }

// tbsFor encodes the freshness window the way the provider expects:
// relative tokens, not absolute dates.
func tbsFor(maxAgeHours int) string {
	switch {
	case maxAgeHours <= 24:
		return "qdr:d"
	case maxAgeHours <= 7*24:
		return "qdr:w"
	default:
		return "qdr:m"
	}
}

func (s *Serper) Fetch(ctx context.Context, query string, maxAgeHours int) []news.Article {
	if s.apiKey == "" {
		log.Printf("serper: no API key configured, skipping")
		return nil
	}

	body, _ := json.Marshal(serperRequest{Q: query, TBS: tbsFor(maxAgeHours), Num: serperMaxResults})
	newReq := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-KEY", s.apiKey)
		return req, nil
	}

	var sr serperResponse
	if err := getJSON(ctx, s.client, newReq, &sr); err != nil {
		logFetchError("serper", err)
		return nil
	}

	now := s.now()
	articles := make([]news.Article, 0, len(sr.News))
	for _, r := range sr.News {
		published, ok := resolveAge(r.Date, now)
		if !ok {
			continue
		}
		a := news.Article{
			Title:       r.Title,
			Summary:     r.Snippet,
			Source:      r.Source,
			URL:         r.Link,
			PublishedAt: published.UTC().Format(time.RFC3339),
		}
		if !a.Usable() {
			continue
		}
		articles = append(articles, a)
		if len(articles) == serperMaxResults {
			break
		}
	}
	return articles
}

// resolveAge turns a relative age string ("5 minutes ago", "2 hours ago",
// "3 days ago", "yesterday") into an absolute time anchored at now.
// Absolute timestamps are accepted as-is. The second return is false when
// no timestamp can be derived.
func resolveAge(raw string, now time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	s := strings.ToLower(raw)
	if s == "" {
		return time.Time{}, false
	}
	if s == "just now" {
		return now, true
	}
	if s == "yesterday" {
		return now.Add(-24 * time.Hour), true
	}

	if strings.HasSuffix(s, " ago") {
		fields := strings.Fields(strings.TrimSuffix(s, " ago"))
		if len(fields) != 2 {
			return time.Time{}, false
		}
		n := 0
		for _, r := range fields[0] {
			if r < '0' || r > '9' {
				return time.Time{}, false
			}
			n = n*10 + int(r-'0')
		}
		unit := strings.TrimSuffix(fields[1], "s")
		switch unit {
		case "second":
			return now.Add(-time.Duration(n) * time.Second), true
		case "minute":
			return now.Add(-time.Duration(n) * time.Minute), true
		case "hour":
			return now.Add(-time.Duration(n) * time.Hour), true
		case "day":
			return now.Add(-time.Duration(n) * 24 * time.Hour), true
		case "week":
			return now.Add(-time.Duration(n) * 7 * 24 * time.Hour), true
		case "month":
			return now.Add(-time.Duration(n) * 30 * 24 * time.Hour), true
		}
		return time.Time{}, false
	}

	// Some results carry absolute ISO timestamps instead of relative ages.
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

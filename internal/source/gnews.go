package source

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dmarins/newsbrief/internal/news"
)

const (
	gnewsURL        = "https://gnews.io/api/v4/search"
	gnewsMaxResults = 4
)

// GNews is the primary provider: generous quota, absolute RFC 3339
// timestamps, `from=` time window, key as a query parameter.
type GNews struct {
	apiKey  string
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewGNews(apiKey string) *GNews {
	return &GNews{
		apiKey:  apiKey,
		baseURL: gnewsURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		now:     time.Now,
	}
}

type gnewsResponse struct {
	TotalArticles int `json:"totalArticles"`
	Articles      []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"source"`
	} `json:"articles"`
}

func (g *GNews) Name() string  { return "gnews" }
func (g *GNews) Enabled() bool { return g.apiKey != "" }

func (g *GNews) Fetch(ctx context.Context, query string, maxAgeHours int) []news.Article {
	return g.search(ctx, query, time.Duration(maxAgeHours)*time.Hour, false)
}

// FetchRelaxed widens the window to a week and keeps undated records
// (with an empty PublishedAt), for the targeted-fallback path.
func (g *GNews) FetchRelaxed(ctx context.Context, query string) []news.Article {
	return g.search(ctx, query, 7*24*time.Hour, true)
}

func (g *GNews) search(ctx context.Context, query string, window time.Duration, keepUndated bool) []news.Article {
	if g.apiKey == "" {
		log.Printf("gnews: no API key configured, skipping")
		return nil
	}

	from := g.now().Add(-window).UTC().Format(time.RFC3339)
	newReq := func() (*http.Request, error) {
		q := url.Values{}
		q.Set("q", query)
		q.Set("lang", "en")
		q.Set("max", strconv.Itoa(gnewsMaxResults))
		q.Set("from", from)
		q.Set("apikey", g.apiKey)
		return http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	}

	var gr gnewsResponse
	if err := getJSON(ctx, g.client, newReq, &gr); err != nil {
		logFetchError("gnews", err)
		return nil
	}

	articles := make([]news.Article, 0, len(gr.Articles))
	for _, r := range gr.Articles {
		a := news.Article{
			Title:       r.Title,
			Summary:     r.Description,
			Source:      r.Source.Name,
			URL:         r.URL,
			PublishedAt: r.PublishedAt,
		}
		if !a.Usable() {
			continue
		}
		if _, ok := a.PublishedTime(); !ok {
			if !keepUndated {
				continue
			}
			a.PublishedAt = ""
		}
		articles = append(articles, a)
		if len(articles) == gnewsMaxResults {
			break
		}
	}
	return articles
}

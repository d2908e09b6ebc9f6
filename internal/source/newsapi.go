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
	newsapiURL        = "https://newsapi.org/v2/everything"
	newsapiMaxResults = 4
)

// NewsAPI is the primary backup provider. It takes its key in the
// X-Api-Key header and its time window as an absolute `from=` date.
type NewsAPI struct {
	apiKey  string
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewNewsAPI(apiKey string) *NewsAPI {
	return &NewsAPI{
		apiKey:  apiKey,
		baseURL: newsapiURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		now:     time.Now,
	}
}

type newsapiResponse struct {
	Status       string `json:"status"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (n *NewsAPI) Name() string  { return "newsapi" }
func (n *NewsAPI) Enabled() bool { return n.apiKey != "" }

func (n *NewsAPI) Fetch(ctx context.Context, query string, maxAgeHours int) []news.Article {
	if n.apiKey == "" {
		log.Printf("newsapi: no API key configured, skipping")
		return nil
	}

	from := n.now().Add(-time.Duration(maxAgeHours) * time.Hour).UTC().Format("2006-01-02")
	newReq := func() (*http.Request, error) {
		q := url.Values{}
		q.Set("q", query)
		q.Set("language", "en")
		q.Set("sortBy", "publishedAt")
		q.Set("pageSize", strconv.Itoa(newsapiMaxResults))
		q.Set("from", from)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Api-Key", n.apiKey)
		return req, nil
	}

	var nr newsapiResponse
	if err := getJSON(ctx, n.client, newReq, &nr); err != nil {
		logFetchError("newsapi", err)
		return nil
	}
	if nr.Status != "ok" {
		log.Printf("newsapi: unexpected response status %q", nr.Status)
		return nil
	}

	articles := make([]news.Article, 0, len(nr.Articles))
	for _, r := range nr.Articles {
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
			continue
		}
		articles = append(articles, a)
		if len(articles) == newsapiMaxResults {
			break
		}
	}
	return articles
}

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
	// The free tier only serves plain HTTP. Known constraint, not a bug.
	mediastackURL        = "http://api.mediastack.com/v1/news"
	mediastackMaxResults = 4
)

// Mediastack is the scarce backup provider, called only under a strict
// daily cap. Key goes in the access_key parameter; the freshness window
// is a `date=` range of calendar days.
type Mediastack struct {
	apiKey  string
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewMediastack(apiKey string) *Mediastack {
	return &Mediastack{
		apiKey:  apiKey,
		baseURL: mediastackURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		now:     time.Now,
	}
}

type mediastackResponse struct {
	Data []struct {
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Source      string `json:"source"`
		PublishedAt string `json:"published_at"`
	} `json:"data"`
}

func (m *Mediastack) Name() string  { return "mediastack" }
func (m *Mediastack) Enabled() bool { return m.apiKey != "" }

func (m *Mediastack) Fetch(ctx context.Context, query string, maxAgeHours int) []news.Article {
	if m.apiKey == "" {
		log.Printf("mediastack: no API key configured, skipping")
		return nil
	}

	now := m.now().UTC()
	from := now.Add(-time.Duration(maxAgeHours) * time.Hour).Format("2006-01-02")
	to := now.Format("2006-01-02")

	newReq := func() (*http.Request, error) {
		q := url.Values{}
		q.Set("access_key", m.apiKey)
		q.Set("keywords", query)
		q.Set("languages", "en")
		q.Set("sort", "published_desc")
		q.Set("limit", strconv.Itoa(mediastackMaxResults))
		q.Set("date", from+","+to)
		return http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"?"+q.Encode(), nil)
	}

	var mr mediastackResponse
	if err := getJSON(ctx, m.client, newReq, &mr); err != nil {
		logFetchError("mediastack", err)
		return nil
	}

	articles := make([]news.Article, 0, len(mr.Data))
	for _, r := range mr.Data {
		a := news.Article{
			Title:       r.Title,
			Summary:     r.Description,
			Source:      r.Source,
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
		if len(articles) == mediastackMaxResults {
			break
		}
	}
	return articles
}

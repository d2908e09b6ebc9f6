package aggregate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmarins/newsbrief/internal/config"
	"github.com/dmarins/newsbrief/internal/dailycache"
	"github.com/dmarins/newsbrief/internal/news"
	"github.com/dmarins/newsbrief/internal/usage"
)

// fakeAdapter records calls and serves canned articles, optionally keyed
// by query so fallback retries can return different results.
type fakeAdapter struct {
	name    string
	enabled bool

	mu       sync.Mutex
	calls    int
	queries  []string
	articles []news.Article
	byQuery  map[string][]news.Article
}

func (f *fakeAdapter) Name() string  { return f.name }
func (f *fakeAdapter) Enabled() bool { return f.enabled }

func (f *fakeAdapter) Fetch(ctx context.Context, query string, maxAgeHours int) []news.Article {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, query)
	if f.byQuery != nil {
		return f.byQuery[query]
	}
	return f.articles
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAdapter) seenQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeRelaxed struct {
	mu       sync.Mutex
	calls    int
	articles []news.Article
}

func (f *fakeRelaxed) FetchRelaxed(ctx context.Context, query string) []news.Article {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.articles
}

func fresh(title, url string, age time.Duration) news.Article {
	return news.Article{
		Title:       title,
		Summary:     "A summary that clears the thirty character minimum easily.",
		Source:      "Test Wire",
		URL:         url,
		PublishedAt: time.Now().Add(-age).UTC().Format(time.RFC3339),
	}
}

func disabled(name string) *fakeAdapter {
	return &fakeAdapter{name: name}
}

func topic(name string) config.Topic {
	return config.Topic{Name: name, Query: name + " query", FreshnessHours: 24}
}

func newTestAggregator(t *testing.T, topics []config.Topic, p Providers, opts Options) (*Aggregator, *dailycache.Store) {
	t.Helper()
	cache := dailycache.New(t.TempDir(), false)
	if opts.BatchSize == 0 {
		opts.BatchSize = 4
	}
	return New(topics, p, usage.NewTracker(usage.NewMemoryStore()), cache, opts), cache
}

func TestScrapeNewsPrimarySatisfiesMinimum(t *testing.T) {
	primary := &fakeAdapter{name: "gnews", enabled: true, articles: []news.Article{
		fresh("Lakers win season opener in style", "https://a.com/1", time.Hour),
		fresh("Warriors lose at home to the Suns", "https://a.com/2", 2*time.Hour),
	}}
	backup := &fakeAdapter{name: "newsapi", enabled: true}
	metered := &fakeAdapter{name: "serper", enabled: true}
	scarce := &fakeAdapter{name: "mediastack", enabled: true}

	agg, _ := newTestAggregator(t, []config.Topic{topic("NBA")}, Providers{
		Primary: primary, PrimaryBackup: backup, MeteredBackup: metered, ScarceBackup: scarce,
	}, Options{})

	got := agg.scrapeNews(context.Background(), topic("NBA"), "NBA query")

	if len(got.Articles) != 2 {
		t.Fatalf("result = %d articles, want 2", len(got.Articles))
	}
	if backup.callCount() != 0 || metered.callCount() != 0 || scarce.callCount() != 0 {
		t.Errorf("escalation ran past the primary: backup=%d metered=%d scarce=%d",
			backup.callCount(), metered.callCount(), scarce.callCount())
	}
}

// The NBA scenario: provider A has one article, provider B has the same
// article (same URL) plus another. Merged unique count is 2, both kept,
// metered providers never touched.
func TestScrapeNewsCrossProviderDedup(t *testing.T) {
	shared := "https://news.example.com/lakers-opener"
	primary := &fakeAdapter{name: "gnews", enabled: true, articles: []news.Article{
		fresh("Lakers win season opener in style", shared, time.Hour),
	}}
	backup := &fakeAdapter{name: "newsapi", enabled: true, articles: []news.Article{
		fresh("Lakers win season opener in style", shared, time.Hour),
		fresh("Warriors lose at home to the Suns", "https://news.example.com/warriors", 2*time.Hour),
	}}
	metered := &fakeAdapter{name: "serper", enabled: true}
	scarce := &fakeAdapter{name: "mediastack", enabled: true}

	nba := config.Topic{Name: "NBA", Query: "NBA query", FreshnessHours: 24}
	agg, _ := newTestAggregator(t, []config.Topic{nba}, Providers{
		Primary: primary, PrimaryBackup: backup, MeteredBackup: metered, ScarceBackup: scarce,
	}, Options{})

	got := agg.scrapeNews(context.Background(), nba, nba.Query)

	if len(got.Articles) != 2 {
		t.Fatalf("merged unique count = %d, want 2", len(got.Articles))
	}
	if metered.callCount() != 0 || scarce.callCount() != 0 {
		t.Error("metered providers were called despite satisfied coverage")
	}
}

func TestScrapeNewsEscalatesToMeteredProviders(t *testing.T) {
	primary := &fakeAdapter{name: "gnews", enabled: true}
	backup := &fakeAdapter{name: "newsapi", enabled: true}
	metered := &fakeAdapter{name: "serper", enabled: true, articles: []news.Article{
		fresh("Lakers win season opener in style", "https://a.com/1", time.Hour),
		fresh("Warriors lose at home to the Suns", "https://a.com/2", 2*time.Hour),
	}}
	scarce := &fakeAdapter{name: "mediastack", enabled: true}

	store := usage.NewMemoryStore()
	agg := New([]config.Topic{topic("NBA")}, Providers{
		Primary: primary, PrimaryBackup: backup, MeteredBackup: metered, ScarceBackup: scarce,
	}, usage.NewTracker(store), dailycache.New(t.TempDir(), false), Options{BatchSize: 1})

	got := agg.scrapeNews(context.Background(), topic("NBA"), "NBA query")

	if metered.callCount() != 1 {
		t.Fatalf("metered calls = %d, want 1", metered.callCount())
	}
	if scarce.callCount() != 0 {
		t.Error("scarce backup called although the metered one satisfied coverage")
	}
	if len(got.Articles) != 2 {
		t.Errorf("result = %d articles, want 2", len(got.Articles))
	}
	rec, ok, _ := store.Read("serper")
	if !ok || rec.Count != 1 {
		t.Errorf("usage record = %+v, want count 1", rec)
	}
}

func TestScrapeNewsRespectsDailyBudgets(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	store := usage.NewMemoryStore()
	store.Write("serper", usage.Record{Date: today, Count: SerperDailyBudget})
	store.Write("mediastack", usage.Record{Date: today, Count: MediastackDailyCap})

	primary := &fakeAdapter{name: "gnews", enabled: true}
	backup := &fakeAdapter{name: "newsapi", enabled: true}
	metered := &fakeAdapter{name: "serper", enabled: true}
	scarce := &fakeAdapter{name: "mediastack", enabled: true}

	agg := New([]config.Topic{topic("NBA")}, Providers{
		Primary: primary, PrimaryBackup: backup, MeteredBackup: metered, ScarceBackup: scarce,
	}, usage.NewTracker(store), dailycache.New(t.TempDir(), false), Options{BatchSize: 1})

	agg.scrapeNews(context.Background(), topic("NBA"), "NBA query")

	if metered.callCount() != 0 {
		t.Error("metered backup called over budget")
	}
	if scarce.callCount() != 0 {
		t.Error("scarce backup called over its cap")
	}
}

// The flagship topic samples the metered backup once a day even when
// coverage is already satisfied, and only once.
func TestScrapeNewsFlagshipSamplingFloor(t *testing.T) {
	primary := &fakeAdapter{name: "gnews", enabled: true, articles: []news.Article{
		fresh("Lakers win season opener in style", "https://a.com/1", time.Hour),
		fresh("Warriors lose at home to the Suns", "https://a.com/2", 2*time.Hour),
		fresh("Celtics drop third straight road game", "https://a.com/3", 3*time.Hour),
	}}
	metered := &fakeAdapter{name: "serper", enabled: true}

	nba := topic("NBA")
	agg, _ := newTestAggregator(t, []config.Topic{nba}, Providers{
		Primary: primary, PrimaryBackup: disabled("newsapi"),
		MeteredBackup: metered, ScarceBackup: disabled("mediastack"),
	}, Options{FlagshipTopic: "NBA"})

	agg.scrapeNews(context.Background(), nba, nba.Query)
	if metered.callCount() != 1 {
		t.Fatalf("flagship first run: metered calls = %d, want 1 sampling call", metered.callCount())
	}

	agg.scrapeNews(context.Background(), nba, nba.Query)
	if metered.callCount() != 1 {
		t.Errorf("flagship second run: metered calls = %d, want still 1", metered.callCount())
	}
}

func TestScrapeNewsBoundsAndOrder(t *testing.T) {
	var many []news.Article
	for i := 0; i < 7; i++ {
		many = append(many, fresh(
			fmt.Sprintf("A sufficiently long headline number %d", i),
			fmt.Sprintf("https://a.com/%d", i),
			time.Duration(7-i)*time.Hour))
	}
	primary := &fakeAdapter{name: "gnews", enabled: true, articles: many}

	agg, _ := newTestAggregator(t, []config.Topic{topic("NBA")}, Providers{
		Primary: primary, PrimaryBackup: disabled("newsapi"),
		MeteredBackup: disabled("serper"), ScarceBackup: disabled("mediastack"),
	}, Options{})

	got := agg.scrapeNews(context.Background(), topic("NBA"), "NBA query")

	if len(got.Articles) != MaxArticlesPerTopic {
		t.Fatalf("result = %d articles, want truncation to %d", len(got.Articles), MaxArticlesPerTopic)
	}
	for i := 0; i < len(got.Articles)-1; i++ {
		ti, _ := got.Articles[i].PublishedTime()
		tj, _ := got.Articles[i+1].PublishedTime()
		if ti.Before(tj) {
			t.Fatalf("articles not newest-first at %d", i)
		}
	}
}

// Dedup runs before the freshness filter over the merged list, so a
// stale first-seen article suppresses its fresh duplicate rather than
// being refreshed by it.
func TestScrapeNewsFreshnessAfterMerge(t *testing.T) {
	shared := "https://news.example.com/stale-story"
	primary := &fakeAdapter{name: "gnews", enabled: true, articles: []news.Article{
		fresh("A story that went out two days ago", shared, 48*time.Hour),
	}}
	backup := &fakeAdapter{name: "newsapi", enabled: true, articles: []news.Article{
		fresh("A story that went out two days ago", shared, time.Hour),
		fresh("An unrelated story from this morning", "https://news.example.com/other", 2*time.Hour),
	}}

	agg, _ := newTestAggregator(t, []config.Topic{topic("NBA")}, Providers{
		Primary: primary, PrimaryBackup: backup,
		MeteredBackup: disabled("serper"), ScarceBackup: disabled("mediastack"),
	}, Options{})

	got := agg.scrapeNews(context.Background(), topic("NBA"), "NBA query")

	if len(got.Articles) != 1 {
		t.Fatalf("result = %d articles, want 1", len(got.Articles))
	}
	if got.Articles[0].URL != "https://news.example.com/other" {
		t.Errorf("stale story survived via its fresh duplicate: %q", got.Articles[0].URL)
	}
}

// All providers only have 48h-old articles against a 24h tier: the topic
// comes up empty in Phase 1 and is retried with its fallback query.
func TestScrapeAllRetriesStaleTopicsWithFallback(t *testing.T) {
	stale := []news.Article{fresh("A story that went out two days ago", "https://a.com/old", 48*time.Hour)}
	primary := &fakeAdapter{name: "gnews", enabled: true, byQuery: map[string][]news.Article{
		"NBA query":    stale,
		"NBA fallback": {fresh("Lakers win season opener in style", "https://a.com/new", time.Hour)},
	}}

	topics := []config.Topic{{Name: "NBA", Query: "NBA query", FallbackQuery: "NBA fallback", FreshnessHours: 24}}
	agg, _ := newTestAggregator(t, topics, Providers{
		Primary: primary, PrimaryBackup: disabled("newsapi"),
		MeteredBackup: disabled("serper"), ScarceBackup: disabled("mediastack"),
	}, Options{})

	got := agg.scrapeAll(context.Background(), nil)

	queries := primary.seenQueries()
	found := false
	for _, q := range queries {
		if q == "NBA fallback" {
			found = true
		}
	}
	if !found {
		t.Fatalf("fallback query never used; saw %v", queries)
	}
	if len(got) != 1 || len(got[0].Articles) != 1 {
		t.Fatalf("final result = %+v, want the fallback article", got)
	}
}

// Phase 1 covers 10 of 13 topics; the 3 failures with fallback queries
// are retried sequentially, exactly those, with the fallback substituted.
func TestScrapeAllPhaseTwoSelection(t *testing.T) {
	byQuery := map[string][]news.Article{}
	var topics []config.Topic
	for i := 0; i < 13; i++ {
		name := fmt.Sprintf("Topic %02d", i)
		tp := config.Topic{Name: name, Query: name + " query", FreshnessHours: 24}
		if i < 10 {
			byQuery[tp.Query] = []news.Article{fresh(
				"A sufficiently long headline for "+name,
				fmt.Sprintf("https://a.com/%d", i), time.Hour)}
		} else {
			tp.FallbackQuery = name + " fallback"
			byQuery[tp.FallbackQuery] = []news.Article{fresh(
				"A fallback headline long enough for "+name,
				fmt.Sprintf("https://a.com/fb/%d", i), time.Hour)}
		}
		topics = append(topics, tp)
	}

	primary := &fakeAdapter{name: "gnews", enabled: true, byQuery: byQuery}
	agg, _ := newTestAggregator(t, topics, Providers{
		Primary: primary, PrimaryBackup: disabled("newsapi"),
		MeteredBackup: disabled("serper"), ScarceBackup: disabled("mediastack"),
	}, Options{})

	got := agg.scrapeAll(context.Background(), nil)

	if len(got) != 13 {
		t.Fatalf("final result covers %d topics, want 13", len(got))
	}
	// Discovery order matches the catalog.
	for i, c := range got {
		if c.Topic != topics[i].Name {
			t.Fatalf("result[%d] = %q, want %q", i, c.Topic, topics[i].Name)
		}
	}

	fallbacks := 0
	for _, q := range primary.seenQueries() {
		if strings.HasSuffix(q, "fallback") {
			fallbacks++
		}
	}
	if fallbacks != 3 {
		t.Errorf("fallback attempts = %d, want exactly 3", fallbacks)
	}
}

func TestScrapeAllPhaseThree(t *testing.T) {
	relaxed := &fakeRelaxed{articles: []news.Article{{
		Title:   "A headline whose age nobody knows",
		Summary: "A summary that clears the thirty character minimum easily.",
		Source:  "Test Wire",
		URL:     "https://a.com/undated",
	}}}

	topics := []config.Topic{topic("Obscure"), topic("Ignored")}
	agg, _ := newTestAggregator(t, topics, Providers{
		Primary: disabled("gnews"), PrimaryBackup: disabled("newsapi"),
		MeteredBackup: disabled("serper"), ScarceBackup: disabled("mediastack"),
		Relaxed: relaxed,
	}, Options{})

	before := time.Now()
	got := agg.scrapeAll(context.Background(), []string{"Obscure"})

	if relaxed.calls != 1 {
		t.Fatalf("relaxed searches = %d, want 1 (only the underrepresented topic)", relaxed.calls)
	}
	if len(got) != 1 || got[0].Topic != "Obscure" {
		t.Fatalf("final result = %+v, want only Obscure", got)
	}

	// The undateable article gets "now" in this path, and only here.
	published, ok := got[0].Articles[0].PublishedTime()
	if !ok {
		t.Fatal("phase 3 article kept an unresolvable timestamp")
	}
	if published.Before(before.Add(-time.Minute)) || published.After(time.Now().Add(time.Minute)) {
		t.Errorf("fabricated publish time = %v, want approximately now", published)
	}
}

func TestScrapeAllPhaseThreeCap(t *testing.T) {
	relaxed := &fakeRelaxed{}
	var topics []config.Topic
	var under []string
	for i := 0; i < phase3TopicCap+2; i++ {
		name := fmt.Sprintf("Topic %d", i)
		topics = append(topics, topic(name))
		under = append(under, name)
	}

	agg, _ := newTestAggregator(t, topics, Providers{
		Primary: disabled("gnews"), PrimaryBackup: disabled("newsapi"),
		MeteredBackup: disabled("serper"), ScarceBackup: disabled("mediastack"),
		Relaxed: relaxed,
	}, Options{})

	agg.scrapeAll(context.Background(), under)

	if relaxed.calls != phase3TopicCap {
		t.Errorf("relaxed searches = %d, want the cap of %d", relaxed.calls, phase3TopicCap)
	}
}

func TestAggregateServesFromCache(t *testing.T) {
	dir := t.TempDir()
	cache := dailycache.New(dir, false)
	today := time.Now().Format("2006-01-02")

	var cached []news.Content
	for i := 0; i < 6; i++ {
		cached = append(cached, news.Content{
			Topic:    fmt.Sprintf("Topic %d", i),
			Articles: []news.Article{fresh("A cached headline long enough to pass", fmt.Sprintf("https://a.com/%d", i), time.Hour)},
		})
	}
	if err := cache.Write(cached, today); err != nil {
		t.Fatal(err)
	}

	primary := &fakeAdapter{name: "gnews", enabled: true}
	agg := New([]config.Topic{topic("NBA")}, Providers{
		Primary: primary, PrimaryBackup: disabled("newsapi"),
		MeteredBackup: disabled("serper"), ScarceBackup: disabled("mediastack"),
	}, usage.NewTracker(usage.NewMemoryStore()), cache, Options{BatchSize: 1})

	got := agg.Aggregate(context.Background(), false, nil)
	if len(got) != 6 {
		t.Fatalf("cache hit returned %d topics, want 6", len(got))
	}
	if primary.callCount() != 0 {
		t.Error("providers were called despite a usable cache entry")
	}

	// forceRefresh bypasses the cache.
	agg.Aggregate(context.Background(), true, nil)
	if primary.callCount() == 0 {
		t.Error("forceRefresh did not run a live aggregation")
	}
}

func TestAggregateWritesCache(t *testing.T) {
	dir := t.TempDir()
	cache := dailycache.New(dir, false)

	byQuery := map[string][]news.Article{}
	var topics []config.Topic
	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("Topic %d", i)
		tp := config.Topic{Name: name, Query: name + " query", FreshnessHours: 24}
		byQuery[tp.Query] = []news.Article{fresh(
			"A sufficiently long headline for "+name,
			fmt.Sprintf("https://a.com/%d", i), time.Hour)}
		topics = append(topics, tp)
	}

	primary := &fakeAdapter{name: "gnews", enabled: true, byQuery: byQuery}
	agg := New(topics, Providers{
		Primary: primary, PrimaryBackup: disabled("newsapi"),
		MeteredBackup: disabled("serper"), ScarceBackup: disabled("mediastack"),
	}, usage.NewTracker(usage.NewMemoryStore()), cache, Options{BatchSize: 3})

	got := agg.Aggregate(context.Background(), false, nil)
	if len(got) != 6 {
		t.Fatalf("aggregation covered %d topics, want 6", len(got))
	}

	today := time.Now().Format("2006-01-02")
	if cache.Read(today) == nil {
		t.Error("aggregation result was not cached")
	}
}

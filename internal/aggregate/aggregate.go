// Package aggregate drives the per-topic provider escalation policy and
// the three-phase whole-catalog run, producing one merged, deduplicated,
// freshness-filtered article set per topic per day.
package aggregate

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmarins/newsbrief/internal/config"
	"github.com/dmarins/newsbrief/internal/dailycache"
	"github.com/dmarins/newsbrief/internal/news"
	"github.com/dmarins/newsbrief/internal/source"
	"github.com/dmarins/newsbrief/internal/usage"
)

const (
	// MaxArticlesPerTopic bounds every topic's final article list.
	MaxArticlesPerTopic = 5

	// MinArticlesPerTopic is the coverage level at which escalation to
	// further providers stops.
	MinArticlesPerTopic = 2

	// SerperDailyBudget and MediastackDailyCap are the advisory daily
	// call budgets for the metered backup providers.
	SerperDailyBudget  = 10
	MediastackDailyCap = 5

	phase3TopicCap = 3
	dateLayout     = "2006-01-02"
)

// Providers holds the escalation chain. Relaxed is the wide-window
// search used by Phase 3, normally the primary adapter itself; nil
// disables Phase 3.
type Providers struct {
	Primary       source.Adapter
	PrimaryBackup source.Adapter
	MeteredBackup source.Adapter
	ScarceBackup  source.Adapter
	Relaxed       source.RelaxedSearcher
}

// Options tunes the run shape. Delays are rate-limit courtesy only,
// never load-bearing, so tests run them at zero.
type Options struct {
	BatchSize     int
	BatchDelay    time.Duration
	RetryCooldown time.Duration
	RetryDelay    time.Duration
	// FlagshipTopic always samples the metered backup at least once a
	// day so its quality keeps being monitored even when coverage is
	// already satisfied.
	FlagshipTopic string
}

// DefaultOptions returns the production run shape.
func DefaultOptions() Options {
	return Options{
		BatchSize:     4,
		BatchDelay:    2 * time.Second,
		RetryCooldown: 5 * time.Second,
		RetryDelay:    time.Second,
	}
}

type Aggregator struct {
	topics    []config.Topic
	providers Providers
	usage     *usage.Tracker
	cache     *dailycache.Store
	opts      Options
	now       func() time.Time
}

func New(topics []config.Topic, providers Providers, tracker *usage.Tracker, cache *dailycache.Store, opts Options) *Aggregator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	return &Aggregator{
		topics:    topics,
		providers: providers,
		usage:     tracker,
		cache:     cache,
		opts:      opts,
		now:       time.Now,
	}
}

// Aggregate is the sole entry point. It consults the daily cache unless
// forceRefresh is set, otherwise runs the full three-phase scan and
// hands the result to the cache store (whose own gate decides whether
// it is persisted). underrepresented names topics eligible for the
// Phase 3 relaxed fallback; tracking chronic under-coverage is the
// caller's concern.
func (a *Aggregator) Aggregate(ctx context.Context, forceRefresh bool, underrepresented []string) []news.Content {
	date := a.now().Format(dateLayout)

	if !forceRefresh {
		if cached := a.cache.Read(date); cached != nil {
			log.Printf("aggregate: serving %d topics from cache", len(cached))
			return cached
		}
	}

	result := a.scrapeAll(ctx, underrepresented)
	if err := a.cache.Write(result, date); err != nil {
		log.Printf("aggregate: caching result: %v", err)
	}
	return result
}

// scrapeAll runs the three phases over the topic catalog. Results keep
// catalog slots so the final concatenation is in discovery order no
// matter which phase filled them.
func (a *Aggregator) scrapeAll(ctx context.Context, underrepresented []string) []news.Content {
	runID := uuid.NewString()[:8]
	results := make([]news.Content, len(a.topics))

	// Phase 1: batched concurrent scan.
	log.Printf("aggregate %s: phase 1: scanning %d topics in batches of %d",
		runID, len(a.topics), a.opts.BatchSize)
	for start := 0; start < len(a.topics); start += a.opts.BatchSize {
		end := start + a.opts.BatchSize
		if end > len(a.topics) {
			end = len(a.topics)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = a.scrapeNews(ctx, a.topics[i], a.topics[i].Query)
			}(i)
		}
		wg.Wait()

		if end < len(a.topics) {
			a.sleep(ctx, a.opts.BatchDelay)
		}
	}

	failed := a.failedIndexes(results)
	log.Printf("aggregate %s: phase 1 complete: %d/%d topics covered",
		runID, len(a.topics)-len(failed), len(a.topics))

	// Phase 2: sequential fallback-query retries.
	if len(failed) > 0 {
		a.sleep(ctx, a.opts.RetryCooldown)
		for _, i := range failed {
			t := a.topics[i]
			if t.FallbackQuery == "" {
				continue
			}
			log.Printf("aggregate %s: phase 2: retrying %q with fallback query", runID, t.Name)
			results[i] = a.scrapeNews(ctx, t, t.FallbackQuery)
			a.sleep(ctx, a.opts.RetryDelay)
		}
		failed = a.failedIndexes(results)
	}

	// Phase 3: targeted relaxed-freshness fallback for topics flagged
	// as chronically underrepresented, capped to conserve quota.
	if len(failed) > 0 && a.providers.Relaxed != nil {
		attempted := 0
		for _, i := range failed {
			if attempted >= phase3TopicCap {
				break
			}
			t := a.topics[i]
			if !contains(underrepresented, t.Name) {
				continue
			}
			attempted++
			log.Printf("aggregate %s: phase 3: relaxed search for %q", runID, t.Name)
			results[i] = a.relaxedSearch(ctx, t)
		}
	}

	final := make([]news.Content, 0, len(results))
	for _, c := range results {
		if len(c.Articles) > 0 {
			final = append(final, c)
		}
	}
	log.Printf("aggregate %s: done: %d topics with articles", runID, len(final))
	return final
}

func (a *Aggregator) failedIndexes(results []news.Content) []int {
	var failed []int
	for i, c := range results {
		if len(c.Articles) == 0 {
			failed = append(failed, i)
		}
	}
	return failed
}

func (a *Aggregator) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

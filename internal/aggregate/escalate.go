package aggregate

import (
	"context"
	"log"
	"time"

	"github.com/dmarins/newsbrief/internal/config"
	"github.com/dmarins/newsbrief/internal/dedup"
	"github.com/dmarins/newsbrief/internal/freshness"
	"github.com/dmarins/newsbrief/internal/news"
	"github.com/dmarins/newsbrief/internal/source"
)

// scrapeNews runs the per-topic escalation policy with the given query.
// Metered providers are only called while the topic is short of
// MinArticlesPerTopic; the short-circuit ordering is a quota-preservation
// invariant, not an optimization.
func (a *Aggregator) scrapeNews(ctx context.Context, t config.Topic, query string) news.Content {
	var merged []news.Article

	fetch := func(ad source.Adapter) {
		if ad == nil {
			return
		}
		got := ad.Fetch(ctx, query, t.FreshnessHours)
		var added int
		merged, added = dedup.Merge(merged, got)
		if len(got) > 0 {
			log.Printf("%s: %s contributed %d of %d articles", t.Name, ad.Name(), added, len(got))
		}
	}

	// 1. Primary provider, always.
	fetch(a.providers.Primary)

	// 2. Primary backup only when still short.
	if len(merged) < MinArticlesPerTopic {
		fetch(a.providers.PrimaryBackup)
	}

	// 3. Metered backup: when short and under budget, or when the
	//    flagship topic hasn't sampled it yet today.
	if mb := a.providers.MeteredBackup; mb != nil && mb.Enabled() {
		short := len(merged) < MinArticlesPerTopic
		underBudget := a.usage.Today(mb.Name()) < SerperDailyBudget
		sampleDue := t.Name == a.opts.FlagshipTopic && a.usage.Today(mb.Name()) == 0
		if (short && underBudget) || sampleDue {
			a.usage.Increment(mb.Name())
			fetch(mb)
		}
	}

	// 4. Scarce backup: last resort, under a strict daily cap.
	if sb := a.providers.ScarceBackup; sb != nil && sb.Enabled() {
		if len(merged) < MinArticlesPerTopic && a.usage.Today(sb.Name()) < MediastackDailyCap {
			a.usage.Increment(sb.Name())
			fetch(sb)
		}
	}

	// Dedup happened during merge; freshness is applied once over the
	// merged list so a stale article can't survive via a fresh duplicate.
	fresh := freshness.Filter(merged, t.FreshnessHours, a.now())
	freshness.SortNewestFirst(fresh)
	if len(fresh) > MaxArticlesPerTopic {
		fresh = fresh[:MaxArticlesPerTopic]
	}

	return news.Content{Topic: t.Name, Articles: fresh}
}

// relaxedSearch is the Phase 3 path: the primary provider's search with
// a weekly window. Articles whose age cannot be determined get "now" as
// their publish time here and only here, a deliberate scoped exception
// to the no-fabrication rule.
func (a *Aggregator) relaxedSearch(ctx context.Context, t config.Topic) news.Content {
	got := a.providers.Relaxed.FetchRelaxed(ctx, t.Query)

	now := a.now()
	for i := range got {
		if _, ok := got[i].PublishedTime(); !ok {
			got[i].PublishedAt = now.UTC().Format(time.RFC3339)
		}
	}

	merged, _ := dedup.Merge(nil, got)
	fresh := freshness.Filter(merged, 7*24, now)
	freshness.SortNewestFirst(fresh)
	if len(fresh) > MaxArticlesPerTopic {
		fresh = fresh[:MaxArticlesPerTopic]
	}
	return news.Content{Topic: t.Name, Articles: fresh}
}

// Package usage tracks per-provider daily call counters so the
// orchestrator can keep metered providers under their quotas. Budgets
// are soft advisory limits: the tracker never blocks and never
// propagates storage errors past a log line.
package usage

import (
	"log"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// Record is one provider's persisted counter.
type Record struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Store persists usage records keyed by provider name.
type Store interface {
	// Read returns the stored record and whether one exists.
	Read(provider string) (Record, bool, error)
	Write(provider string, rec Record) error
}

// Tracker answers "how many calls today" with a lazy daily reset: a
// record from a previous day reads as zero without being rewritten
// until the next increment.
type Tracker struct {
	store Store
	now   func() time.Time
}

func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Today returns the provider's call count for the current date.
// Storage errors read as zero.
func (t *Tracker) Today(provider string) int {
	rec, ok, err := t.store.Read(provider)
	if err != nil {
		log.Printf("usage: reading %s counter: %v", provider, err)
		return 0
	}
	if !ok || rec.Date != t.today() {
		return 0
	}
	return rec.Count
}

// Increment records one call for the provider, resetting the counter
// first when the stored date is not today.
func (t *Tracker) Increment(provider string) {
	rec := Record{Date: t.today(), Count: t.Today(provider) + 1}
	if err := t.store.Write(provider, rec); err != nil {
		log.Printf("usage: writing %s counter: %v", provider, err)
	}
}

func (t *Tracker) today() string {
	return t.now().Format(dateLayout)
}

// MemoryStore is an in-process Store, used in tests and as a fallback
// when the on-disk store cannot be opened.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]Record)}
}

func (m *MemoryStore) Read(provider string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[provider]
	return rec, ok, nil
}

func (m *MemoryStore) Write(provider string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[provider] = rec
	return nil
}

// Package dailycache persists one aggregation result per calendar date
// as a JSON file and refuses to serve results below a minimum topic
// coverage, so a partial run is never replayed as the day's answer.
package dailycache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dmarins/newsbrief/internal/news"
)

// MinTopicsForCache is the coverage gate: entries with fewer topics are
// neither written nor trusted on read.
const MinTopicsForCache = 5

const (
	filePrefix = "news_"
	fileSuffix = ".json"
)

// Store is a file-backed cache keyed by "YYYY-MM-DD" dates.
type Store struct {
	dir string
	// fallbackLatest allows Read to substitute the most recent prior
	// file when the requested date's file is missing. Used in
	// interactive mode to keep local runs from triggering paid calls.
	fallbackLatest bool
}

func New(dir string, fallbackLatest bool) *Store {
	return &Store{dir: dir, fallbackLatest: fallbackLatest}
}

func (s *Store) fileFor(date string) string {
	return filepath.Join(s.dir, filePrefix+date+fileSuffix)
}

// Read returns the cached entries for the date, or nil when the file is
// missing, unparsable, or under the coverage gate.
func (s *Store) Read(date string) []news.Content {
	path := s.fileFor(date)
	entries := s.readFile(path)
	if entries != nil {
		return entries
	}

	if !s.fallbackLatest {
		return nil
	}
	latest := s.latestBefore(date)
	if latest == "" {
		return nil
	}
	if entries := s.readFile(latest); entries != nil {
		log.Printf("cache: no entry for %s, substituting %s", date, filepath.Base(latest))
		return entries
	}
	return nil
}

func (s *Store) readFile(path string) []news.Content {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var entries []news.Content
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("cache: unparsable file %s: %v", filepath.Base(path), err)
		return nil
	}
	if len(entries) < MinTopicsForCache {
		log.Printf("cache: %s covers %d topics (< %d), ignoring",
			filepath.Base(path), len(entries), MinTopicsForCache)
		return nil
	}
	return entries
}

// latestBefore returns the path of the newest cache file older than the
// given date. Date-stamped names sort lexically.
func (s *Store) latestBefore(date string) string {
	names, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*"+fileSuffix))
	if err != nil || len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	cutoff := s.fileFor(date)
	for i := len(names) - 1; i >= 0; i-- {
		if names[i] < cutoff {
			return names[i]
		}
	}
	return ""
}

// Write persists the entries for the date. Entries under the coverage
// gate are not written: a failed run gets another chance on the next
// invocation instead of being cached as authoritative.
func (s *Store) Write(entries []news.Content, date string) error {
	if len(entries) < MinTopicsForCache {
		log.Printf("cache: not writing %s: %d topics (< %d)", date, len(entries), MinTopicsForCache)
		return nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := os.WriteFile(s.fileFor(date), data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// Clear deletes the date's cache file if present. Errors are swallowed.
func (s *Store) Clear(date string) {
	if err := os.Remove(s.fileFor(date)); err != nil && !os.IsNotExist(err) {
		log.Printf("cache: clearing %s: %v", date, err)
	}
}

// Dates lists the dates that currently have a cache file, oldest first.
func (s *Store) Dates() []string {
	names, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil
	}
	sort.Strings(names)
	dates := make([]string, 0, len(names))
	for _, n := range names {
		base := filepath.Base(n)
		dates = append(dates, strings.TrimSuffix(strings.TrimPrefix(base, filePrefix), fileSuffix))
	}
	return dates
}

package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/dmarins/newsbrief/internal/news"
)

// Adapter is the common fetch contract every provider implements.
// Fetch never returns an error to the caller: every failure mode
// (missing credential, 4xx/5xx, timeout, unparsable body) degrades to an
// empty article list plus a diagnostic log line. maxAgeHours is the
// topic's freshness tier, used to build the provider's time window.
type Adapter interface {
	Name() string
	// Enabled reports whether a credential is configured. Providers
	// without a key are silently skipped, never an error.
	Enabled() bool
	Fetch(ctx context.Context, query string, maxAgeHours int) []news.Article
}

// RelaxedSearcher is implemented by adapters whose search endpoint can
// serve a week-wide window for targeted fallback lookups. Unlike Fetch,
// records without a resolvable timestamp are kept with an empty
// PublishedAt so the caller decides their fate.
type RelaxedSearcher interface {
	FetchRelaxed(ctx context.Context, query string) []news.Article
}

const (
	maxRetries   = 2
	retryBase    = time.Second
	retryCeiling = 5 * time.Second
)

// getJSON issues the request built by newReq and decodes a 200 response
// into v. 5xx responses are retried up to maxRetries with exponential
// backoff; 429 and other 4xx are terminal. The request is rebuilt per
// attempt so POST bodies can be re-sent.
func getJSON(ctx context.Context, client *http.Client, newReq func() (*http.Request, error), v interface{}) error {
	backoff := retryBase
	for attempt := 0; ; attempt++ {
		req, err := newReq()
		if err != nil {
			return err
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(v)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			return errors.New("rate limited (429)")

		case resp.StatusCode >= 500 && attempt < maxRetries:
			resp.Body.Close()
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if backoff > retryCeiling {
				backoff = retryCeiling
			}

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// logFetchError keeps timeouts distinguishable from other failures in
// the diagnostics.
func logFetchError(provider string, err error) {
	if isTimeout(err) {
		log.Printf("%s: request timed out: %v", provider, err)
		return
	}
	log.Printf("%s: fetch failed: %v", provider, err)
}

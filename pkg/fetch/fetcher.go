// Package fetch resolves canonical URLs to page HTML: page cache first,
// then polite HTTP with a fixed attempt budget and exponential backoff.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"reg-scraper/pkg/cache"
	"reg-scraper/pkg/config"
	"reg-scraper/pkg/utils"
)

// Fetcher is the only component that talks to the regulation host. It
// never parses what it fetches.
type Fetcher struct {
	client      *http.Client
	cache       *cache.PageCache
	limiter     *Limiter
	userAgent   string
	attempts    int
	backoffBase time.Duration
	maxBytes    int64
	log         *logrus.Entry
}

// NewFetcher wires the fetcher. Attempt budget, backoff base, and the
// page size limit come from crawl configuration.
func NewFetcher(client *http.Client, pageCache *cache.PageCache, limiter *Limiter, site config.SiteConfig, crawl config.CrawlConfig, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client:      client,
		cache:       pageCache,
		limiter:     limiter,
		userAgent:   site.UserAgent,
		attempts:    crawl.RetryAttempts,
		backoffBase: crawl.BackoffBase,
		maxBytes:    crawl.MaxContentBytes,
		log:         log.WithField("component", "fetcher"),
	}
}

// Fetch returns the HTML for a canonical URL. A cache hit returns
// immediately with no network traffic, no politeness delay, and no budget
// spent. A miss goes to the network with the full attempt budget; any
// transport error or non-2xx status counts as a failed attempt, and every
// failed attempt (the last included) is followed by an exponential
// backoff of backoff_base * 2^attempt. Exhausting the budget returns
// ErrFetchFailed wrapping the last attempt error.
//
// Cancellation is cooperative: honored between attempts and during
// backoff, never mid-request. An in-flight request completes or fails on
// the client timeout.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.fetch(ctx, url, f.attempts)
}

// FetchOnce is the single-attempt variant used by the retry phase: cache
// first, then exactly one polite network attempt, no backoff.
func (f *Fetcher) FetchOnce(ctx context.Context, url string) (string, error) {
	return f.fetch(ctx, url, 1)
}

func (f *Fetcher) fetch(ctx context.Context, url string, attempts int) (string, error) {
	if html, ok := f.cache.Get(url); ok {
		f.log.WithField("url", url).Debug("Cache hit")
		return html, nil
	}

	urlLog := f.log.WithField("url", url)
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return "", err
		}

		html, err := f.attemptOnce(url)
		if err == nil {
			if cacheErr := f.cache.Put(url, html); cacheErr != nil {
				urlLog.Warnf("Page fetched but not cached: %v", cacheErr)
			}
			return html, nil
		}
		lastErr = err
		urlLog.WithFields(logrus.Fields{
			"attempt":  attempt + 1,
			"attempts": attempts,
			"category": utils.CategorizeError(err),
		}).Warnf("Fetch attempt failed: %v", err)

		if attempts > 1 {
			if err := f.backoff(ctx, attempt); err != nil {
				return "", err
			}
		}
	}

	return "", fmt.Errorf("%w: %s: %w", utils.ErrFetchFailed, url, lastErr)
}

// attemptOnce performs one GET. The request is deliberately not bound to
// the crawl context; the client timeout bounds it instead.
func (f *Fetcher) attemptOnce(url string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", utils.ErrRequestCreation, url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	f.limiter.Touch()
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status %d %s", utils.ErrHTTPStatus, resp.StatusCode, resp.Status)
	}

	limited := io.LimitReader(resp.Body, f.maxBytes+1) // +1 to detect exceeding the limit
	body, err := io.ReadAll(limited)
	if err != nil {
		return "", fmt.Errorf("%w: reading body from %s: %w", utils.ErrResponseBodyRead, url, err)
	}
	if int64(len(body)) > f.maxBytes {
		return "", fmt.Errorf("%w: page %s exceeds max size (%d bytes)", utils.ErrResponseBodyRead, url, f.maxBytes)
	}
	return string(body), nil
}

func (f *Fetcher) backoff(ctx context.Context, attempt int) error {
	delay := f.backoffBase * time.Duration(1<<uint(attempt))
	f.log.WithFields(logrus.Fields{"attempt": attempt + 1, "delay": delay}).Debug("Backing off")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

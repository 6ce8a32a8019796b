// Package cache stores fetched pages on disk, one JSON record per URL,
// keyed by the SHA-256 of the canonical URL. Records are immutable once
// written and trusted for the lifetime of a crawl session.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"reg-scraper/pkg/models"
	"reg-scraper/pkg/utils"
)

// PageCache is a file-per-URL page store. Get never touches the network;
// a record that cannot be read or decoded is treated as absent so the
// URL is simply fetched again.
type PageCache struct {
	dir string
	log *logrus.Entry
}

// NewPageCache creates the cache directory if needed and returns a cache
// rooted there.
func NewPageCache(dir string, log *logrus.Entry) (*PageCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating cache directory %s: %w", utils.ErrFilesystem, dir, err)
	}
	return &PageCache{dir: dir, log: log.WithField("component", "page_cache")}, nil
}

// Get returns the cached HTML for a canonical URL. Corrupt or unreadable
// records are logged and reported as absent.
func (c *PageCache) Get(url string) (string, bool) {
	path := c.recordPath(url)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.WithField("url", url).Warnf("Unreadable cache record %s, treating as absent: %v", path, err)
		}
		return "", false
	}

	var page models.CachedPage
	if err := json.Unmarshal(data, &page); err != nil {
		c.log.WithField("url", url).Warnf("Corrupt cache record %s, treating as absent: %v", path, err)
		return "", false
	}
	return page.HTML, true
}

// Put writes a page record. Callers treat a write failure as non-fatal:
// the page content is still usable, it just won't survive a restart.
func (c *PageCache) Put(url, html string) error {
	page := models.CachedPage{
		URL:       url,
		HTML:      html,
		FetchedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("%w: encoding cache record for %s: %w", utils.ErrCacheWrite, url, err)
	}
	if err := os.WriteFile(c.recordPath(url), data, 0644); err != nil {
		return fmt.Errorf("%w: writing cache record for %s: %w", utils.ErrCacheWrite, url, err)
	}
	return nil
}

// Scan calls fn for every readable record in the cache. It exists for the
// rebuild tool; the fetch path never iterates the cache. Corrupt records
// are logged and skipped; an error from fn stops the scan.
func (c *PageCache) Scan(fn func(page models.CachedPage) error) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("%w: reading cache directory %s: %w", utils.ErrFilesystem, c.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			c.log.Warnf("Skipping unreadable cache record %s: %v", path, readErr)
			continue
		}
		var page models.CachedPage
		if decodeErr := json.Unmarshal(data, &page); decodeErr != nil {
			c.log.Warnf("Skipping corrupt cache record %s: %v", path, decodeErr)
			continue
		}
		if err := fn(page); err != nil {
			return err
		}
	}
	return nil
}

func (c *PageCache) recordPath(url string) string {
	return filepath.Join(c.dir, utils.CalculateStringSHA256(url)+".json")
}

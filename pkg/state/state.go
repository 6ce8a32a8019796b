// Package state tracks which URLs a crawl has committed (visited or
// failed) and persists that knowledge at checkpoints so an interrupted
// crawl resumes without re-fetching committed work.
package state

import (
	"sort"
	"time"
)

// Progress is the persisted form of a checkpoint. PendingURLs carries the
// frontier in queue order so a resumed crawl continues deterministically
// from the checkpoint alone, without rescanning the cache directory.
type Progress struct {
	SessionID    string    `json:"session_id,omitempty"`
	VisitedURLs  []string  `json:"visited_urls"`
	PendingURLs  []string  `json:"pending_urls,omitempty"`
	TotalScraped int       `json:"total_scraped"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// CrawlState holds the visited and failed URL sets plus the scraped
// counter. It is owned by the single scheduling goroutine and is not
// safe for concurrent use; all URLs passed in must already be canonical.
type CrawlState struct {
	visited map[string]struct{}
	failed  map[string]struct{}
	scraped int
}

// NewCrawlState returns an empty state.
func NewCrawlState() *CrawlState {
	return &CrawlState{
		visited: make(map[string]struct{}),
		failed:  make(map[string]struct{}),
	}
}

// IsKnown reports whether the URL has been committed in this or a prior
// pass, either as visited or as failed. Known URLs are never re-queued
// outside the explicit retry phase.
func (s *CrawlState) IsKnown(url string) bool {
	return s.IsVisited(url) || s.IsFailed(url)
}

// IsVisited reports whether the URL was successfully scraped.
func (s *CrawlState) IsVisited(url string) bool {
	_, ok := s.visited[url]
	return ok
}

// IsFailed reports whether the URL exhausted its fetch budget.
func (s *CrawlState) IsFailed(url string) bool {
	_, ok := s.failed[url]
	return ok
}

// MarkVisited commits a URL as successfully scraped.
func (s *CrawlState) MarkVisited(url string) {
	s.visited[url] = struct{}{}
}

// MarkFailed commits a URL as failed for this run.
func (s *CrawlState) MarkFailed(url string) {
	s.failed[url] = struct{}{}
}

// UnmarkFailed removes a URL from the failed set. The retry phase calls
// this when a second-chance fetch succeeds, before marking it visited.
func (s *CrawlState) UnmarkFailed(url string) {
	delete(s.failed, url)
}

// RecordScraped bumps the scraped counter by one. Called once per
// RegulationRecord appended to the record stream.
func (s *CrawlState) RecordScraped() {
	s.scraped++
}

// Scraped returns the number of records produced across all passes.
func (s *CrawlState) Scraped() int {
	return s.scraped
}

// VisitedCount returns the size of the visited set.
func (s *CrawlState) VisitedCount() int {
	return len(s.visited)
}

// FailedCount returns the size of the failed set.
func (s *CrawlState) FailedCount() int {
	return len(s.failed)
}

// FailedURLs returns the failed set sorted lexically. The retry phase
// iterates this snapshot while mutating the live set.
func (s *CrawlState) FailedURLs() []string {
	urls := make([]string, 0, len(s.failed))
	for url := range s.failed {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// Snapshot produces the persisted form of this state. Visited URLs are
// sorted so checkpoint files diff cleanly; pending keeps queue order.
func (s *CrawlState) Snapshot(sessionID string, pending []string) Progress {
	visited := make([]string, 0, len(s.visited))
	for url := range s.visited {
		visited = append(visited, url)
	}
	sort.Strings(visited)

	pendingCopy := make([]string, len(pending))
	copy(pendingCopy, pending)

	return Progress{
		SessionID:    sessionID,
		VisitedURLs:  visited,
		PendingURLs:  pendingCopy,
		TotalScraped: s.scraped,
		UpdatedAt:    time.Now().UTC(),
	}
}

// Restore replaces the in-memory state with a loaded checkpoint. The
// caller seeds its frontier from progress.PendingURLs separately.
func (s *CrawlState) Restore(progress Progress, failed []string) {
	s.visited = make(map[string]struct{}, len(progress.VisitedURLs))
	for _, url := range progress.VisitedURLs {
		s.visited[url] = struct{}{}
	}
	s.failed = make(map[string]struct{}, len(failed))
	for _, url := range failed {
		s.failed[url] = struct{}{}
	}
	s.scraped = progress.TotalScraped
}

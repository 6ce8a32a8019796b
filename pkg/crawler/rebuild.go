package crawler

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"reg-scraper/pkg/cache"
	"reg-scraper/pkg/extract"
	"reg-scraper/pkg/models"
	"reg-scraper/pkg/parse"
	"reg-scraper/pkg/state"
)

// RebuildResult summarizes what a cache rebuild reconstructed.
type RebuildResult struct {
	CachedPages int
	Records     int
	Aggregate   int
	Pending     int
	Failed      int
}

// Rebuild reconstructs the record stream, the aggregate, and the
// checkpoint from the page cache alone: every cached page becomes a
// visited URL and a fresh RegulationRecord, and links found on cached
// pages that point nowhere known become the pending frontier. It is a
// repair tool for damaged checkpoints, not a crawl path; nothing is
// fetched. The failed list of the old checkpoint is preserved when it is
// still readable.
func Rebuild(
	pageCache *cache.PageCache,
	extractor *extract.Extractor,
	links *parse.LinkExtractor,
	checkpoints *state.Store,
	recordsPath string,
	aggregatePath string,
	log *logrus.Entry,
) (*RebuildResult, error) {
	log = log.WithField("component", "rebuild")
	log.Warn("Rebuilding crawl state from the page cache; record stream and checkpoint will be rewritten")

	var failed []string
	if checkpoints.Exists() {
		if _, salvaged, err := checkpoints.Load(); err != nil {
			log.Warnf("Existing checkpoint unreadable, rebuilding without a failed list: %v", err)
		} else {
			failed = salvaged
		}
	}

	crawlState := state.NewCrawlState()
	for _, url := range failed {
		crawlState.MarkFailed(url)
	}

	writer := NewRecordWriter(recordsPath, log)
	if err := writer.Open(false); err != nil {
		return nil, err
	}
	defer writer.Close()

	result := &RebuildResult{}
	var candidates []string
	seen := make(map[string]struct{})

	err := pageCache.Scan(func(page models.CachedPage) error {
		result.CachedPages++
		canonical, parsed, err := parse.Canonicalize(page.URL)
		if err != nil {
			log.WithField("url", page.URL).Warnf("Skipping cached page with unparseable URL: %v", err)
			return nil
		}

		record := extractor.Record(page.HTML, parsed)
		if err := writer.Append(record); err != nil {
			return err
		}
		// A failed URL with a cache record did succeed at some point;
		// the rebuilt state trusts the cache.
		crawlState.UnmarkFailed(canonical)
		crawlState.MarkVisited(canonical)
		crawlState.RecordScraped()
		result.Records++

		children, err := links.ExtractLinks(page.HTML, parsed)
		if err != nil {
			log.WithField("url", canonical).Warnf("Link extraction failed on cached page: %v", err)
			return nil
		}
		for _, child := range children {
			if _, ok := seen[child.URL]; ok {
				continue
			}
			seen[child.URL] = struct{}{}
			candidates = append(candidates, child.URL)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rebuilding from cache: %w", err)
	}

	var pending []string
	for _, url := range candidates {
		if crawlState.IsKnown(url) {
			continue
		}
		pending = append(pending, url)
	}
	result.Pending = len(pending)
	result.Failed = crawlState.FailedCount()

	writer.Close()
	stream, err := ReadStream(recordsPath, log)
	if err != nil {
		return nil, err
	}
	aggregate, err := CompileAggregate(stream, aggregatePath, log)
	if err != nil {
		return nil, err
	}
	result.Aggregate = len(aggregate)

	progress := crawlState.Snapshot(uuid.NewString(), pending)
	if err := checkpoints.Save(progress, crawlState.FailedURLs()); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"cached_pages": result.CachedPages,
		"records":      result.Records,
		"aggregate":    result.Aggregate,
		"pending":      result.Pending,
		"failed":       result.Failed,
	}).Info("Rebuild complete")
	return result, nil
}

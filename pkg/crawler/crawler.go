// Package crawler drives the breadth-first traversal of one regulation
// tree: seed the frontier, drain it, give failures one retry pass, then
// compile the aggregate artifact. The whole loop runs on a single
// goroutine and owns all crawl state, so the core needs no locks.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"reg-scraper/pkg/config"
	"reg-scraper/pkg/extract"
	"reg-scraper/pkg/fetch"
	"reg-scraper/pkg/models"
	"reg-scraper/pkg/parse"
	"reg-scraper/pkg/state"
	"reg-scraper/pkg/utils"
)

// Phase names the scheduler states. Transitions run strictly forward:
// Seeded -> Draining -> Retrying -> Done.
type Phase string

const (
	PhaseSeeded   Phase = "seeded"
	PhaseDraining Phase = "draining"
	PhaseRetrying Phase = "retrying"
	PhaseDone     Phase = "done"
)

// Progress is a point-in-time view of the crawl, delivered through the
// optional progress callback after every processed URL and on phase
// transitions. LastURL is empty for phase-only updates.
type Progress struct {
	Phase   Phase
	Scraped int
	Failed  int
	Queued  int
	LastURL string
}

// summaryTypeOrder fixes the per-type breakdown order in the final log.
var summaryTypeOrder = []models.LinkType{
	models.LinkTypeTitle,
	models.LinkTypeRegulation,
	models.LinkTypeChapter,
	models.LinkTypePart,
	models.LinkTypeSection,
	models.LinkTypeAppendix,
	models.LinkTypeUnknown,
}

// Crawler owns one crawl of the configured regulation tree.
type Crawler struct {
	log   *logrus.Entry
	site  config.SiteConfig
	crawl config.CrawlConfig

	fetcher   *fetch.Fetcher
	robots    *fetch.RobotsGate
	links     *parse.LinkExtractor
	extractor *extract.Extractor

	state       *state.CrawlState
	checkpoints *state.Store
	records     *RecordWriter

	frontier      *Frontier
	aggregatePath string
	sessionID     string
	phase         Phase

	onProgress func(Progress)

	// Per-run counters. TotalScraped lives in CrawlState because it
	// spans passes; these reset with every Run.
	newRecords      int
	skippedKnown    int
	skippedRobots   int
	retrySucceeded  int
	sinceCheckpoint int
	typeCounts      map[models.LinkType]int
}

// NewCrawler wires a crawler. The session ID stamps every checkpoint and
// log line of this run.
func NewCrawler(
	site config.SiteConfig,
	crawl config.CrawlConfig,
	fetcher *fetch.Fetcher,
	robots *fetch.RobotsGate,
	links *parse.LinkExtractor,
	extractor *extract.Extractor,
	crawlState *state.CrawlState,
	checkpoints *state.Store,
	records *RecordWriter,
	aggregatePath string,
	log *logrus.Entry,
) *Crawler {
	sessionID := uuid.NewString()
	return &Crawler{
		log:           log.WithFields(logrus.Fields{"component": "crawler", "session_id": sessionID}),
		site:          site,
		crawl:         crawl,
		fetcher:       fetcher,
		robots:        robots,
		links:         links,
		extractor:     extractor,
		state:         crawlState,
		checkpoints:   checkpoints,
		records:       records,
		frontier:      NewFrontier(),
		aggregatePath: aggregatePath,
		sessionID:     sessionID,
		phase:         PhaseSeeded,
		typeCounts:    make(map[models.LinkType]int),
	}
}

// SetProgressFunc installs the progress callback. Set it before Run; the
// callback executes on the scheduling goroutine and must not block.
func (c *Crawler) SetProgressFunc(fn func(Progress)) {
	c.onProgress = fn
}

// SessionID returns the session identifier stamped on this run.
func (c *Crawler) SessionID() string {
	return c.sessionID
}

// Run executes the crawl to completion or interruption. On a cancelled
// context the in-flight URL is returned to the frontier, a checkpoint is
// flushed, and ctx.Err() is returned alongside the partial summary; the
// caller decides that this is a clean operator stop.
func (c *Crawler) Run(ctx context.Context, resume bool) (*models.CrawlSummary, error) {
	start := time.Now().UTC()
	c.log.WithField("resume", resume).Info("Crawl starting")

	if err := c.records.Open(resume); err != nil {
		return nil, err
	}
	defer c.records.Close()

	if err := c.seed(ctx, resume); err != nil {
		return nil, err
	}

	c.setPhase(PhaseDraining)
	interrupted := c.drain(ctx)

	if !interrupted {
		c.setPhase(PhaseRetrying)
		interrupted = c.retryFailed(ctx)
	}

	// The final checkpoint is unconditional, interruption included.
	c.checkpoint()

	summary := c.buildSummary(start)
	if interrupted {
		c.log.WithField("pending", c.frontier.Len()).Warn("Crawl interrupted; checkpoint flushed for resume")
		return summary, ctx.Err()
	}

	c.setPhase(PhaseDone)
	c.records.Close()
	aggregate, err := c.compileAggregate()
	if err != nil {
		return summary, err
	}
	c.logSummary(summary, len(aggregate), time.Since(start))
	return summary, nil
}

// RunRetry executes only the retry pass over the failed set of the last
// checkpoint: one additional attempt per URL, no draining. It requires an
// existing checkpoint. The pending frontier is restored untouched so the
// final checkpoint does not lose queued work.
func (c *Crawler) RunRetry(ctx context.Context) (*models.CrawlSummary, error) {
	start := time.Now().UTC()

	if !c.checkpoints.Exists() {
		return nil, fmt.Errorf("%w: no checkpoint found; nothing to retry", utils.ErrStateCorrupt)
	}
	progress, failed, err := c.checkpoints.Load()
	if err != nil {
		return nil, err
	}
	c.state.Restore(progress, failed)
	c.frontier.PushAll(progress.PendingURLs)
	c.log.WithFields(logrus.Fields{
		"visited": c.state.VisitedCount(),
		"failed":  c.state.FailedCount(),
	}).Info("Retry pass over checkpointed failures")

	if err := c.records.Open(true); err != nil {
		return nil, err
	}
	defer c.records.Close()

	c.setPhase(PhaseRetrying)
	interrupted := c.retryFailed(ctx)

	c.checkpoint()

	summary := c.buildSummary(start)
	if interrupted {
		c.log.Warn("Retry pass interrupted; checkpoint flushed")
		return summary, ctx.Err()
	}

	c.setPhase(PhaseDone)
	c.records.Close()
	aggregate, err := c.compileAggregate()
	if err != nil {
		return summary, err
	}
	c.logSummary(summary, len(aggregate), time.Since(start))
	return summary, nil
}

// seed populates the frontier: from the persisted checkpoint on resume,
// otherwise from seed-pattern links on the base page.
func (c *Crawler) seed(ctx context.Context, resume bool) error {
	if resume && c.checkpoints.Exists() {
		progress, failed, err := c.checkpoints.Load()
		if err != nil {
			return err
		}
		c.state.Restore(progress, failed)
		c.frontier.PushAll(progress.PendingURLs)
		c.log.WithFields(logrus.Fields{
			"visited": c.state.VisitedCount(),
			"failed":  c.state.FailedCount(),
			"pending": c.frontier.Len(),
			"scraped": c.state.Scraped(),
		}).Info("Resumed from checkpoint")
		return nil
	}
	if resume {
		c.log.Warn("Resume requested but no checkpoint found; starting fresh")
	}

	canonical, base, err := parse.Canonicalize(c.site.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: invalid base URL %q: %w", utils.ErrNoSeeds, c.site.BaseURL, err)
	}
	if !c.robots.Allowed(base) {
		return fmt.Errorf("%w: base page %s disallowed by robots.txt", utils.ErrNoSeeds, canonical)
	}

	html, err := c.fetcher.Fetch(ctx, canonical)
	if err != nil {
		return fmt.Errorf("%w: fetching base page: %w", utils.ErrNoSeeds, err)
	}
	candidates, err := c.links.ExtractLinks(html, base)
	if err != nil {
		return fmt.Errorf("%w: parsing base page: %w", utils.ErrNoSeeds, err)
	}

	seeds := 0
	for _, candidate := range candidates {
		if !c.isSeed(candidate.URL) {
			continue
		}
		c.frontier.Push(candidate.URL)
		seeds++
	}
	if seeds == 0 {
		return fmt.Errorf("%w: no links matching %q on %s", utils.ErrNoSeeds, c.site.SeedPattern, canonical)
	}
	c.log.WithFields(logrus.Fields{"seeds": seeds, "base_url": canonical}).Info("Frontier seeded")
	return nil
}

// isSeed reports whether a URL's path matches the configured seed pattern.
func (c *Crawler) isSeed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.Contains(u.Path, c.site.SeedPattern)
}

// drain runs the breadth-first loop until the frontier empties, the page
// cap is hit, or the context is cancelled. Returns true on interruption.
func (c *Crawler) drain(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return true
		}
		if c.crawl.MaxPages > 0 && c.state.Scraped() >= c.crawl.MaxPages {
			c.log.WithField("max_pages", c.crawl.MaxPages).Info("Page cap reached; draining stops")
			return false
		}
		url, ok := c.frontier.Pop()
		if !ok {
			return false
		}
		if c.state.IsKnown(url) {
			c.skippedKnown++
			c.log.WithField("url", url).Debug("Skipping known URL")
			continue
		}
		if c.processURL(ctx, url) {
			return true
		}
	}
}

// processURL fetches one URL and commits the outcome to state. Returns
// true when a shutdown interrupted the fetch; the URL goes back to the
// head of the frontier so a resumed crawl retries it first.
func (c *Crawler) processURL(ctx context.Context, rawURL string) bool {
	canonical, parsed, err := parse.Canonicalize(rawURL)
	if err != nil {
		c.log.WithField("url", rawURL).Warnf("Unparseable URL treated as failed: %v", err)
		c.state.MarkFailed(rawURL)
		c.report(rawURL)
		return false
	}
	urlLog := c.log.WithField("url", canonical)

	// Robots skips touch neither visited nor failed: the URL simply
	// never entered the crawl.
	if !c.robots.Allowed(parsed) {
		c.skippedRobots++
		urlLog.Info("Disallowed by robots.txt; skipping")
		c.report(canonical)
		return false
	}

	urlLog.WithField("position", c.state.Scraped()+1).Info("Scraping page")
	html, err := c.fetcher.Fetch(ctx, canonical)
	if err != nil {
		if ctx.Err() != nil {
			c.frontier.PushFront(canonical)
			urlLog.Warn("Shutdown during fetch; URL returned to frontier")
			return true
		}
		c.state.MarkFailed(canonical)
		urlLog.WithField("category", utils.CategorizeError(err)).Warnf("URL marked failed: %v", err)
		c.report(canonical)
		return false
	}

	c.commitRecord(html, parsed, urlLog)
	c.enqueueChildren(html, parsed, urlLog)
	c.maybeCheckpoint()
	c.report(canonical)
	return false
}

// commitRecord extracts and persists one record, then updates state and
// counters. A record stream write failure is non-fatal: the page is in
// the cache and the rebuild tool can recover the record.
func (c *Crawler) commitRecord(html string, pageURL *url.URL, urlLog *logrus.Entry) {
	record := c.extractor.Record(html, pageURL)
	if err := c.records.Append(record); err != nil {
		urlLog.Errorf("Record write failed, continuing: %v", err)
	}
	c.state.MarkVisited(record.URL)
	c.state.RecordScraped()
	c.newRecords++
	c.typeCounts[record.URLType]++
	c.sinceCheckpoint++
}

// enqueueChildren pushes a page's unseen in-scope links to the back of
// the frontier. Extraction failure costs only the children, never the
// already-committed page.
func (c *Crawler) enqueueChildren(html string, pageURL *url.URL, urlLog *logrus.Entry) {
	candidates, err := c.links.ExtractLinks(html, pageURL)
	if err != nil {
		urlLog.Warnf("Link extraction failed; no children enqueued: %v", err)
		return
	}
	queued := 0
	for _, candidate := range candidates {
		if c.state.IsKnown(candidate.URL) {
			continue
		}
		c.frontier.Push(candidate.URL)
		queued++
	}
	urlLog.WithFields(logrus.Fields{"found": len(candidates), "queued": queued}).Debug("Children enqueued")
}

// retryFailed gives every failed URL exactly one more polite attempt,
// with a fixed delay between consecutive attempts. Success promotes the
// URL to visited; failure leaves it failed for this run.
func (c *Crawler) retryFailed(ctx context.Context) bool {
	failed := c.state.FailedURLs()
	if len(failed) == 0 {
		return false
	}
	c.log.Infof("Retrying %d failed URLs...", len(failed))

	for i, rawURL := range failed {
		if ctx.Err() != nil {
			return true
		}
		if i > 0 && !c.sleep(ctx, c.crawl.RetryPhaseDelay) {
			return true
		}

		canonical, parsed, err := parse.Canonicalize(rawURL)
		if err != nil {
			c.log.WithField("url", rawURL).Debugf("Unparseable failed URL stays failed: %v", err)
			continue
		}
		urlLog := c.log.WithField("url", canonical)
		urlLog.Info("Retrying failed URL")

		html, err := c.fetcher.FetchOnce(ctx, canonical)
		if err != nil {
			if ctx.Err() != nil {
				return true
			}
			urlLog.WithField("category", utils.CategorizeError(err)).Warnf("Retry failed; URL stays failed: %v", err)
			c.report(canonical)
			continue
		}

		c.state.UnmarkFailed(canonical)
		c.commitRecord(html, parsed, urlLog)
		c.retrySucceeded++
		urlLog.Info("Retry succeeded")
		c.maybeCheckpoint()
		c.report(canonical)
	}
	return false
}

// sleep waits for d unless the context ends first.
func (c *Crawler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// maybeCheckpoint writes a checkpoint once enough successes accumulated
// since the last one.
func (c *Crawler) maybeCheckpoint() {
	if c.crawl.CheckpointInterval <= 0 || c.sinceCheckpoint < c.crawl.CheckpointInterval {
		return
	}
	c.checkpoint()
}

// checkpoint persists CrawlState plus the pending frontier. Persistence
// failure is logged and the crawl continues in memory; the page cache
// still makes the work recoverable.
func (c *Crawler) checkpoint() {
	c.sinceCheckpoint = 0
	progress := c.state.Snapshot(c.sessionID, c.frontier.Snapshot())
	if err := c.checkpoints.Save(progress, c.state.FailedURLs()); err != nil {
		c.log.Errorf("Checkpoint failed; crawl continues in memory: %v", err)
		return
	}
	c.log.WithFields(logrus.Fields{
		"visited": c.state.VisitedCount(),
		"pending": c.frontier.Len(),
		"failed":  c.state.FailedCount(),
		"scraped": c.state.Scraped(),
	}).Info("Checkpoint saved")
}

func (c *Crawler) compileAggregate() ([]models.RegulationRecord, error) {
	stream, err := ReadStream(c.records.Path(), c.log)
	if err != nil {
		return nil, err
	}
	return CompileAggregate(stream, c.aggregatePath, c.log)
}

func (c *Crawler) setPhase(phase Phase) {
	c.phase = phase
	c.log.WithField("phase", phase).Debug("Phase transition")
	c.report("")
}

func (c *Crawler) report(lastURL string) {
	if c.onProgress == nil {
		return
	}
	c.onProgress(Progress{
		Phase:   c.phase,
		Scraped: c.state.Scraped(),
		Failed:  c.state.FailedCount(),
		Queued:  c.frontier.Len(),
		LastURL: lastURL,
	})
}

func (c *Crawler) buildSummary(start time.Time) *models.CrawlSummary {
	return &models.CrawlSummary{
		SessionID:      c.sessionID,
		StartTime:      start,
		EndTime:        time.Now().UTC(),
		NewRecords:     c.newRecords,
		TotalScraped:   c.state.Scraped(),
		FailedCount:    c.state.FailedCount(),
		SkippedKnown:   c.skippedKnown,
		RetrySucceeded: c.retrySucceeded,
		TypeCounts:     c.typeCounts,
	}
}

func (c *Crawler) logSummary(summary *models.CrawlSummary, aggregateSize int, duration time.Duration) {
	c.log.Info("========================================================================")
	c.log.Info("CRAWL FINISHED")
	c.log.Infof("Duration:      %v", duration)
	c.log.Infof("New records:   %d (total scraped: %d, aggregate: %d)", summary.NewRecords, summary.TotalScraped, aggregateSize)
	c.log.Infof("Failed:        %d. Skipped: %d known, %d robots. Retry rescued: %d.",
		summary.FailedCount, summary.SkippedKnown, c.skippedRobots, summary.RetrySucceeded)
	for _, linkType := range summaryTypeOrder {
		if n := summary.TypeCounts[linkType]; n > 0 {
			c.log.Infof("  %-11s %d", linkType, n)
		}
	}
	c.log.Info("========================================================================")
}

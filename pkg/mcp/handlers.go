package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"reg-scraper/pkg/cache"
	"reg-scraper/pkg/crawler"
	"reg-scraper/pkg/extract"
	"reg-scraper/pkg/fetch"
	"reg-scraper/pkg/models"
	"reg-scraper/pkg/parse"
	"reg-scraper/pkg/state"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// handleStartCrawl handles the start_crawl tool
func (s *Server) handleStartCrawl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resume := request.GetBool("resume", false)
	maxPages := request.GetInt("max_pages", 0)
	if maxPages < 0 {
		return mcp.NewToolResultError("max_pages must be zero or positive"), nil
	}

	job, err := s.jobs.CreateJob(resume, maxPages)
	if err != nil {
		if active, ok := s.jobs.ActiveJob(); ok {
			return mcp.NewToolResultError(fmt.Sprintf(
				"a crawl job is already active (job_id: %s, status: %s); cancel it or wait for it to finish",
				active.ID, active.Status)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Run in background; status is observable through crawl_status.
	go s.runCrawlJob(job.ID, resume, maxPages)

	result := map[string]interface{}{
		"status":    "started",
		"job_id":    job.ID,
		"resume":    resume,
		"max_pages": maxPages,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runCrawlJob wires a full crawl stack and runs it under the job's context.
func (s *Server) runCrawlJob(jobID string, resume bool, maxPages int) {
	s.jobs.UpdateStatus(jobID, JobStatusRunning, "")
	jobCtx := s.jobs.GetContext(jobID)

	crawlCfg := s.cfg.Crawl
	if maxPages > 0 {
		crawlCfg.MaxPages = maxPages
	}

	pageCache, err := cache.NewPageCache(s.cfg.Storage.CacheDir, s.log)
	if err != nil {
		s.jobs.UpdateStatus(jobID, JobStatusFailed, fmt.Sprintf("opening page cache: %v", err))
		return
	}
	extractor, err := extract.NewExtractor(s.cfg.Site.SkipPatterns, s.log)
	if err != nil {
		s.jobs.UpdateStatus(jobID, JobStatusFailed, fmt.Sprintf("building extractor: %v", err))
		return
	}

	client := fetch.NewClient(crawlCfg.HTTPClient, s.log)
	limiter := fetch.NewLimiter(crawlCfg.PolitenessDelay, s.log)
	fetcher := fetch.NewFetcher(client, pageCache, limiter, s.cfg.Site, crawlCfg, s.log)
	robots := fetch.NewRobotsGate(jobCtx, client, limiter, s.cfg.Site, s.log)
	links := parse.NewLinkExtractor(s.cfg.Site.AllowedHost, s.cfg.Site.PathPrefix, s.log)
	crawlState := state.NewCrawlState()
	checkpoints := state.NewStore(s.cfg.Storage.ProgressFile, s.cfg.Storage.FailedFile, s.log)
	records := crawler.NewRecordWriter(s.cfg.Storage.RecordsFile, s.log)

	c := crawler.NewCrawler(s.cfg.Site, crawlCfg, fetcher, robots, links, extractor,
		crawlState, checkpoints, records, s.cfg.Storage.AggregateFile, s.log)
	c.SetProgressFunc(func(p crawler.Progress) {
		s.jobs.UpdateProgress(jobID, p)
	})

	if _, err := c.Run(jobCtx, resume); err != nil {
		if errors.Is(err, context.Canceled) {
			s.jobs.UpdateStatus(jobID, JobStatusCancelled, "")
		} else {
			s.jobs.UpdateStatus(jobID, JobStatusFailed, err.Error())
		}
		return
	}

	s.jobs.UpdateStatus(jobID, JobStatusCompleted, "")
}

// handleCrawlStatus handles the crawl_status tool
func (s *Server) handleCrawlStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, ok := s.jobs.GetJob(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":     job.ID,
		"status":     job.Status,
		"resume":     job.Resume,
		"phase":      job.Phase,
		"scraped":    job.Scraped,
		"failed":     job.Failed,
		"queued":     job.Queued,
		"started_at": job.StartedAt.Format(time.RFC3339),
	}
	if job.MaxPages > 0 {
		result["max_pages"] = job.MaxPages
	}
	if job.LastURL != "" {
		result["last_url"] = job.LastURL
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCancelCrawl handles the cancel_crawl tool
func (s *Server) handleCancelCrawl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	if !s.jobs.CancelJob(jobID) {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found or already finished", jobID)), nil
	}

	result := map[string]interface{}{
		"status": "cancelled",
		"job_id": jobID,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListRegulations handles the list_regulations tool
func (s *Server) handleListRegulations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	offset := request.GetInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit := request.GetInt("limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	records, err := s.loadAggregate()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	page := pageOf(records, offset, limit)
	entries := make([]map[string]interface{}, 0, len(page))
	for _, record := range page {
		entries = append(entries, map[string]interface{}{
			"source_index": record.SourceIndex,
			"url":          record.URL,
			"title":        record.Title,
			"url_type":     record.URLType,
		})
	}

	result := map[string]interface{}{
		"total":       len(records),
		"offset":      offset,
		"returned":    len(entries),
		"regulations": entries,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetRegulation handles the get_regulation tool
func (s *Server) handleGetRegulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL := request.GetString("url", "")
	index := request.GetInt("index", -1)
	if rawURL == "" && index < 0 {
		return mcp.NewToolResultError("either url or index parameter is required"), nil
	}

	records, err := s.loadAggregate()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	record, ok := findRecord(records, rawURL, index)
	if !ok {
		if rawURL != "" {
			return mcp.NewToolResultError(fmt.Sprintf("no regulation with URL %s", rawURL)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("no regulation at index %d (aggregate holds %d records)", index, len(records))), nil
	}

	result := map[string]interface{}{
		"source_index":   record.SourceIndex,
		"url":            record.URL,
		"title":          record.Title,
		"url_type":       record.URLType,
		"content":        record.CleanedContent,
		"content_length": len(record.CleanedContent),
	}
	if !record.ScrapedAt.IsZero() {
		result["scraped_at"] = record.ScrapedAt.Format(time.RFC3339)
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

func (s *Server) loadAggregate() ([]models.RegulationRecord, error) {
	records, err := crawler.LoadAggregate(s.cfg.Storage.AggregateFile)
	if err != nil {
		return nil, fmt.Errorf("no aggregate at %s (run a crawl first): %v", s.cfg.Storage.AggregateFile, err)
	}
	return records, nil
}

// pageOf slices records to one page, clamping out-of-range bounds.
func pageOf(records []models.RegulationRecord, offset, limit int) []models.RegulationRecord {
	if offset >= len(records) {
		return nil
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end]
}

// findRecord looks a record up by URL (canonicalized, falling back to an
// exact match) or by source index.
func findRecord(records []models.RegulationRecord, rawURL string, index int) (models.RegulationRecord, bool) {
	if rawURL != "" {
		want := rawURL
		if canonical, _, err := parse.Canonicalize(rawURL); err == nil {
			want = canonical
		}
		for _, record := range records {
			if record.URL == want || record.URL == rawURL {
				return record, true
			}
		}
		return models.RegulationRecord{}, false
	}
	for _, record := range records {
		if record.SourceIndex == index {
			return record, true
		}
	}
	return models.RegulationRecord{}, false
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}

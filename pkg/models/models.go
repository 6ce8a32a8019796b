package models

import "time"

// CachedPage is the on-disk form of one fetched page. Records are immutable
// once written: the cache never rewrites or invalidates an entry within a
// crawl session.
type CachedPage struct {
	URL       string    `json:"url"`
	HTML      string    `json:"html"`
	FetchedAt time.Time `json:"fetched_at"`
}

// LinkCandidate is a navigational link discovered on a fetched page. It is
// consumed immediately by the scheduler and never persisted.
type LinkCandidate struct {
	Text string
	URL  string // normalized absolute URL
	Type LinkType
}

// Heading is one entry of a record's section outline, extracted from the
// markdown rendition.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// RegulationRecord is one successfully scraped regulation page. Created once
// per URL, appended to the record stream during the crawl, and serialized
// into the aggregate output. SourceIndex is assigned by aggregate position
// when the artifact is compiled; it is zero in stream rows.
type RegulationRecord struct {
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	CleanedContent string    `json:"cleaned_content"`
	URLType        LinkType  `json:"url_type"`
	SourceIndex    int       `json:"source_index"`
	Markdown       string    `json:"markdown,omitempty"`
	Headings       []Heading `json:"headings,omitempty"`
	ScrapedAt      time.Time `json:"scraped_at,omitempty"`
}

// StatuteReferences collects legal citations found in a record's cleaned
// content, plus the NYCRR title/section parsed from its URL. Feeds the
// statute_references table during migration.
type StatuteReferences struct {
	USCCitations []string `json:"usc_citations,omitempty"`
	CFRCitations []string `json:"cfr_citations,omitempty"`
	PublicLaws   []string `json:"public_laws,omitempty"`
	StateTitle   string   `json:"state_title,omitempty"`
	StateSection string   `json:"state_section,omitempty"`
}

// CrawlSummary is the operator-facing result of one crawl run.
type CrawlSummary struct {
	SessionID      string           `json:"session_id"`
	StartTime      time.Time        `json:"start_time"`
	EndTime        time.Time        `json:"end_time"`
	NewRecords     int              `json:"new_records"`
	TotalScraped   int              `json:"total_scraped"`
	FailedCount    int              `json:"failed_count"`
	SkippedKnown   int              `json:"skipped_known"`
	RetrySucceeded int              `json:"retry_succeeded"`
	TypeCounts     map[LinkType]int `json:"type_counts,omitempty"`
}

package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"reg-scraper/pkg/utils"
)

const (
	defaultLogLevel        = "info"
	defaultSeedPattern     = "/title-"
	defaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultPolitenessDelay = 500 * time.Millisecond
	defaultRetryAttempts   = 3
	defaultBackoffBase     = 1 * time.Second
	defaultRetryPhaseDelay = 1 * time.Second
	defaultCheckpointEvery = 50
	defaultMaxContentBytes = 10 * 1024 * 1024

	defaultHTTPTimeout         = 30 * time.Second
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 2
	defaultIdleConnTimeout     = 90 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
	defaultDialerTimeout       = 15 * time.Second
	defaultDialerKeepAlive     = 30 * time.Second

	defaultAnalysisModel  = "gpt-5-nano-2025-08-07"
	defaultAPIKeyEnv      = "OPENAI_API_KEY"
	defaultBatchSize      = 10
	defaultContentTokens  = 6000
	defaultCSVFlushEvery  = 5
	defaultMigrateState   = "NY"
	defaultMigrateDocType = "regulation"
	defaultCommitBatch    = 10
	defaultServeAddr      = ":8000"
)

// Validate applies defaults in place and reports problems. Warnings flag
// suspicious but workable values; a non-nil error means the configuration
// cannot be used.
func (c *Config) Validate() (warnings []string, err error) {
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}

	siteWarnings, err := c.Site.validate()
	warnings = append(warnings, siteWarnings...)
	if err != nil {
		return warnings, err
	}

	crawlWarnings, err := c.Crawl.validate()
	warnings = append(warnings, crawlWarnings...)
	if err != nil {
		return warnings, err
	}

	c.Storage.applyDefaults()

	warnings = append(warnings, c.Analysis.applyDefaults(c.Storage.DataDir)...)

	c.Migrate.applyDefaults(c.Storage.DataDir)

	if c.Serve.Addr == "" {
		c.Serve.Addr = defaultServeAddr
	}
	if c.Serve.Dir == "" {
		c.Serve.Dir = c.Storage.DataDir
	}

	if c.MCP.MaxConcurrentJobs <= 0 {
		c.MCP.MaxConcurrentJobs = 1
	}
	if c.MCP.MaxConcurrentJobs > 1 {
		warnings = append(warnings, fmt.Sprintf(
			"mcp.max_concurrent_jobs %d reduced to 1: crawl jobs share one state directory and must not overlap",
			c.MCP.MaxConcurrentJobs))
		c.MCP.MaxConcurrentJobs = 1
	}

	return warnings, nil
}

func (s *SiteConfig) validate() (warnings []string, err error) {
	if s.BaseURL == "" {
		return nil, fmt.Errorf("%w: site.base_url is required", utils.ErrConfigValidation)
	}
	base, parseErr := url.Parse(s.BaseURL)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: site.base_url %q is not a valid URL: %v", utils.ErrConfigValidation, s.BaseURL, parseErr)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: site.base_url %q must use http or https", utils.ErrConfigValidation, s.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("%w: site.base_url %q has no host", utils.ErrConfigValidation, s.BaseURL)
	}

	if s.AllowedHost == "" {
		s.AllowedHost = base.Hostname()
	}
	if s.PathPrefix == "" {
		s.PathPrefix = base.Path
	}
	if s.PathPrefix != "" && !strings.HasPrefix(s.PathPrefix, "/") {
		s.PathPrefix = "/" + s.PathPrefix
	}
	s.PathPrefix = strings.TrimSuffix(s.PathPrefix, "/")
	if s.PathPrefix == "" {
		warnings = append(warnings, fmt.Sprintf("site.path_prefix is empty, every path on %s is in scope", s.AllowedHost))
	}

	if s.SeedPattern == "" {
		s.SeedPattern = defaultSeedPattern
	}
	if s.UserAgent == "" {
		s.UserAgent = defaultUserAgent
	}
	return warnings, nil
}

func (c *CrawlConfig) validate() (warnings []string, err error) {
	if c.PolitenessDelay <= 0 {
		c.PolitenessDelay = defaultPolitenessDelay
	} else if c.PolitenessDelay < 100*time.Millisecond {
		warnings = append(warnings, fmt.Sprintf("crawl.politeness_delay %v is very aggressive for a public site", c.PolitenessDelay))
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = defaultRetryAttempts
	} else if c.RetryAttempts > 10 {
		warnings = append(warnings, fmt.Sprintf("crawl.retry_attempts %d will stall the frontier on dead URLs", c.RetryAttempts))
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.RetryPhaseDelay <= 0 {
		c.RetryPhaseDelay = defaultRetryPhaseDelay
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = defaultCheckpointEvery
	}
	if c.MaxPages < 0 {
		return warnings, fmt.Errorf("%w: crawl.max_pages must be >= 0, got %d", utils.ErrConfigValidation, c.MaxPages)
	}
	if c.MaxContentBytes <= 0 {
		c.MaxContentBytes = defaultMaxContentBytes
	}

	if c.HTTPClient.Timeout <= 0 {
		c.HTTPClient.Timeout = defaultHTTPTimeout
	}
	if c.HTTPClient.MaxIdleConns <= 0 {
		c.HTTPClient.MaxIdleConns = defaultMaxIdleConns
	}
	if c.HTTPClient.MaxIdleConnsPerHost <= 0 {
		c.HTTPClient.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}
	if c.HTTPClient.IdleConnTimeout <= 0 {
		c.HTTPClient.IdleConnTimeout = defaultIdleConnTimeout
	}
	if c.HTTPClient.TLSHandshakeTimeout <= 0 {
		c.HTTPClient.TLSHandshakeTimeout = defaultTLSHandshakeTimeout
	}
	if c.HTTPClient.DialerTimeout <= 0 {
		c.HTTPClient.DialerTimeout = defaultDialerTimeout
	}
	if c.HTTPClient.DialerKeepAlive <= 0 {
		c.HTTPClient.DialerKeepAlive = defaultDialerKeepAlive
	}
	return warnings, nil
}

func (s *StorageConfig) applyDefaults() {
	if s.DataDir == "" {
		s.DataDir = "data"
	}
	if s.CacheDir == "" {
		s.CacheDir = filepath.Join(s.DataDir, "cache")
	}
	if s.ProgressFile == "" {
		s.ProgressFile = filepath.Join(s.DataDir, "progress.json")
	}
	if s.FailedFile == "" {
		s.FailedFile = filepath.Join(s.DataDir, "failed_urls.json")
	}
	if s.RecordsFile == "" {
		s.RecordsFile = filepath.Join(s.DataDir, "records.jsonl")
	}
	if s.AggregateFile == "" {
		s.AggregateFile = filepath.Join(s.DataDir, "regulations.json")
	}
	if s.ExportDir == "" {
		s.ExportDir = filepath.Join(s.DataDir, "individual_regulations")
	}
}

func (a *AnalysisConfig) applyDefaults(dataDir string) (warnings []string) {
	if a.Model == "" {
		a.Model = defaultAnalysisModel
	}
	if a.APIKeyEnv == "" {
		a.APIKeyEnv = defaultAPIKeyEnv
	}
	if a.BatchSize <= 0 {
		a.BatchSize = defaultBatchSize
	}
	if a.Concurrency <= 0 {
		a.Concurrency = a.BatchSize
	}
	if a.Concurrency > a.BatchSize {
		warnings = append(warnings, fmt.Sprintf("analysis.concurrency %d exceeds batch_size %d, extra workers will idle", a.Concurrency, a.BatchSize))
	}
	if a.MaxContentTokens <= 0 {
		a.MaxContentTokens = defaultContentTokens
	}
	if a.CSVFlushEvery <= 0 {
		a.CSVFlushEvery = defaultCSVFlushEvery
	}
	if a.Limit < 0 {
		a.Limit = 0
	}
	if a.StoreDir == "" {
		a.StoreDir = filepath.Join(dataDir, "analysis-db")
	}
	if a.CSVFile == "" {
		a.CSVFile = filepath.Join(dataDir, "red_flag_analysis.csv")
	}
	return warnings
}

func (m *MigrateConfig) applyDefaults(dataDir string) {
	if m.DatabasePath == "" {
		m.DatabasePath = filepath.Join(dataDir, "regulations.db")
	}
	if m.State == "" {
		m.State = defaultMigrateState
	}
	if m.DocType == "" {
		m.DocType = defaultMigrateDocType
	}
	if m.CommitBatch <= 0 {
		m.CommitBatch = defaultCommitBatch
	}
}

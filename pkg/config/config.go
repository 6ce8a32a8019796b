package config

import "time"

// Config is the root of the pipeline configuration file (one YAML document
// covering every subcommand).
type Config struct {
	LogLevel string         `yaml:"log_level,omitempty"`
	Site     SiteConfig     `yaml:"site"`
	Crawl    CrawlConfig    `yaml:"crawl,omitempty"`
	Storage  StorageConfig  `yaml:"storage,omitempty"`
	Analysis AnalysisConfig `yaml:"analysis,omitempty"`
	Migrate  MigrateConfig  `yaml:"migrate,omitempty"`
	Serve    ServeConfig    `yaml:"serve,omitempty"`
	MCP      MCPConfig      `yaml:"mcp,omitempty"`
}

// SiteConfig pins the crawl to one regulation tree.
type SiteConfig struct {
	BaseURL       string   `yaml:"base_url"`
	AllowedHost   string   `yaml:"allowed_host,omitempty"`  // default: host of base_url
	PathPrefix    string   `yaml:"path_prefix,omitempty"`   // default: path of base_url
	SeedPattern   string   `yaml:"seed_pattern,omitempty"`  // path substring marking top-level index links
	UserAgent     string   `yaml:"user_agent,omitempty"`
	RespectRobots *bool    `yaml:"respect_robots,omitempty"` // nil = true
	SkipPatterns  []string `yaml:"extra_skip_patterns,omitempty"` // extra cleaner line filters (regex)
}

// CrawlConfig tunes the fetch/retry/checkpoint behavior of the core loop.
type CrawlConfig struct {
	PolitenessDelay    time.Duration    `yaml:"politeness_delay,omitempty"`
	RetryAttempts      int              `yaml:"retry_attempts,omitempty"`
	BackoffBase        time.Duration    `yaml:"backoff_base,omitempty"`
	RetryPhaseDelay    time.Duration    `yaml:"retry_phase_delay,omitempty"`
	CheckpointInterval int              `yaml:"checkpoint_interval,omitempty"`
	MaxPages           int              `yaml:"max_pages,omitempty"` // 0 = unlimited
	MaxContentBytes    int64            `yaml:"max_content_bytes,omitempty"`
	HTTPClient         HTTPClientConfig `yaml:"http_client,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client.
type HTTPClientConfig struct {
	Timeout             time.Duration `yaml:"timeout,omitempty"` // overall per-request timeout
	MaxIdleConns        int           `yaml:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host,omitempty"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	DialerTimeout       time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive     time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// StorageConfig names every artifact the pipeline reads or writes. Empty
// paths are derived from DataDir during validation.
type StorageConfig struct {
	DataDir       string `yaml:"data_dir,omitempty"`
	CacheDir      string `yaml:"cache_dir,omitempty"`
	ProgressFile  string `yaml:"progress_file,omitempty"`
	FailedFile    string `yaml:"failed_file,omitempty"`
	RecordsFile   string `yaml:"records_file,omitempty"`
	AggregateFile string `yaml:"aggregate_file,omitempty"`
	ExportDir     string `yaml:"export_dir,omitempty"`
}

// AnalysisConfig tunes the red-flag classification stage.
type AnalysisConfig struct {
	Model            string `yaml:"model,omitempty"`
	APIKeyEnv        string `yaml:"api_key_env,omitempty"`
	BatchSize        int    `yaml:"batch_size,omitempty"`
	Concurrency      int    `yaml:"concurrency,omitempty"` // default: batch_size
	MaxContentTokens int    `yaml:"max_content_tokens,omitempty"`
	CSVFlushEvery    int    `yaml:"csv_flush_every,omitempty"` // completions between CSV snapshots
	Limit            int    `yaml:"limit,omitempty"`           // 0 = analyze everything
	StoreDir         string `yaml:"store_dir,omitempty"`
	CSVFile          string `yaml:"csv_file,omitempty"`
}

// MigrateConfig tunes the relational migration stage.
type MigrateConfig struct {
	DatabasePath string `yaml:"database_path,omitempty"`
	State        string `yaml:"state,omitempty"`
	DocType      string `yaml:"doc_type,omitempty"`
	CommitBatch  int    `yaml:"commit_batch,omitempty"`
}

// ServeConfig tunes the static artifact file server.
type ServeConfig struct {
	Addr string `yaml:"addr,omitempty"`
	Dir  string `yaml:"dir,omitempty"`
}

// MCPConfig tunes the MCP server.
type MCPConfig struct {
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs,omitempty"`
}

// RobotsEnabled resolves the tri-state respect_robots flag (nil means on).
func (s SiteConfig) RobotsEnabled() bool {
	if s.RespectRobots != nil {
		return *s.RespectRobots
	}
	return true
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"reg-scraper/pkg/analyze"
	"reg-scraper/pkg/cache"
	"reg-scraper/pkg/config"
	"reg-scraper/pkg/crawler"
	"reg-scraper/pkg/database"
	"reg-scraper/pkg/export"
	"reg-scraper/pkg/extract"
	"reg-scraper/pkg/fetch"
	"reg-scraper/pkg/models"
	"reg-scraper/pkg/parse"
	"reg-scraper/pkg/serve"
	"reg-scraper/pkg/state"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "crawl":
		runCrawl(os.Args[2:], false)
	case "resume":
		runCrawl(os.Args[2:], true)
	case "retry":
		runRetry(os.Args[2:])
	case "rebuild":
		runRebuild(os.Args[2:])
	case "analyze":
		runAnalyze(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "mcp":
		runMcp(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("reg-scraper %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `reg-scraper - NY regulations harvest pipeline

Usage:
  reg-scraper <command> [options]

Commands:
  crawl      Start a fresh crawl of the regulation tree
  resume     Resume an interrupted crawl from its checkpoint
  retry      Re-attempt the failed URLs of the last checkpoint
  rebuild    Rebuild records, aggregate, and checkpoint from the page cache
  analyze    Run red-flag analysis over the crawled aggregate
  export     Write one JSON file per aggregate record
  migrate    Load the aggregate and analysis verdicts into SQLite
  serve      Serve the data directory over HTTP
  mcp        Start the MCP server for AI tool integration
  validate   Validate the configuration file
  version    Show version info

Run 'reg-scraper <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file.
func loadConfig(path string) (*config.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}

	return log
}

// loadAndValidateConfig loads the config file, applies defaults, and builds
// the logger. The -loglevel flag wins over the config's log_level.
func loadAndValidateConfig(configFile, logLevelFlag string) (*config.Config, *logrus.Logger) {
	cfg, err := loadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	warnings, validateErr := cfg.Validate()

	levelStr := cfg.LogLevel
	if logLevelFlag != "" {
		levelStr = logLevelFlag
	}
	log := setupLogger(levelStr)
	log.Infof("Loaded configuration from %s", configFile)
	for _, w := range warnings {
		log.Warn(w)
	}
	if validateErr != nil {
		log.Fatalf("Configuration error: %v", validateErr)
	}

	return cfg, log
}

// signalContext returns a context cancelled by the first SIGINT/SIGTERM.
// A second signal, or a 30s grace period after the first, forces exit.
func signalContext(log *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// startPprof starts the pprof HTTP server if addr is non-empty.
func startPprof(addr string, log *logrus.Logger) {
	if addr != "" {
		go func() {
			log.Infof("Starting pprof server at http://%s/debug/pprof/", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Errorf("pprof server error: %v", err)
			}
		}()
	}
}

// buildCrawler wires the full crawl stack from the validated config.
func buildCrawler(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*crawler.Crawler, error) {
	pageCache, err := cache.NewPageCache(cfg.Storage.CacheDir, log)
	if err != nil {
		return nil, err
	}
	extractor, err := extract.NewExtractor(cfg.Site.SkipPatterns, log)
	if err != nil {
		return nil, err
	}

	client := fetch.NewClient(cfg.Crawl.HTTPClient, log)
	limiter := fetch.NewLimiter(cfg.Crawl.PolitenessDelay, log)
	fetcher := fetch.NewFetcher(client, pageCache, limiter, cfg.Site, cfg.Crawl, log)
	robots := fetch.NewRobotsGate(ctx, client, limiter, cfg.Site, log)
	links := parse.NewLinkExtractor(cfg.Site.AllowedHost, cfg.Site.PathPrefix, log)
	crawlState := state.NewCrawlState()
	checkpoints := state.NewStore(cfg.Storage.ProgressFile, cfg.Storage.FailedFile, log)
	records := crawler.NewRecordWriter(cfg.Storage.RecordsFile, log)

	return crawler.NewCrawler(cfg.Site, cfg.Crawl, fetcher, robots, links, extractor,
		crawlState, checkpoints, records, cfg.Storage.AggregateFile, log), nil
}

// exitAfterRun applies the shared exit semantics of the crawl-family
// commands: an operator interrupt is a clean stop, everything else is a
// failure.
func exitAfterRun(log *logrus.Logger, what string, err error) {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warnf("%s cancelled gracefully.", what)
			os.Exit(0)
		}
		log.Errorf("%s finished with error: %v", what, err)
		os.Exit(1)
	}
	log.Infof("%s completed successfully.", what)
	os.Exit(0)
}

// runCrawl handles both the crawl and resume subcommands.
func runCrawl(args []string, isResume bool) {
	cmdName := "crawl"
	if isResume {
		cmdName = "resume"
	}

	fs := flag.NewFlagSet(cmdName, flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error; default from config)")
	maxPages := fs.Int("max-pages", 0, "Page cap for this run (0 = config value)")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: reg-scraper %s [options]\n\nOptions:\n", cmdName)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  reg-scraper %s -config config.yaml\n", cmdName)
		fmt.Fprintf(os.Stderr, "  reg-scraper %s -max-pages 50\n", cmdName)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, log := loadAndValidateConfig(*configFile, *logLevel)
	if *maxPages > 0 {
		cfg.Crawl.MaxPages = *maxPages
	}
	startPprof(*pprofAddr, log)

	ctx, stop := signalContext(log)
	defer stop()

	c, err := buildCrawler(ctx, cfg, log.WithField("command", cmdName))
	if err != nil {
		log.Fatalf("Failed to initialize crawler: %v", err)
	}

	_, err = c.Run(ctx, isResume)
	exitAfterRun(log, "Crawl", err)
}

// runRetry handles the retry subcommand: one more attempt for every URL
// the last checkpoint recorded as failed, nothing else.
func runRetry(args []string) {
	fs := flag.NewFlagSet("retry", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error; default from config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: reg-scraper retry [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, log := loadAndValidateConfig(*configFile, *logLevel)

	ctx, stop := signalContext(log)
	defer stop()

	c, err := buildCrawler(ctx, cfg, log.WithField("command", "retry"))
	if err != nil {
		log.Fatalf("Failed to initialize crawler: %v", err)
	}

	_, err = c.RunRetry(ctx)
	exitAfterRun(log, "Retry pass", err)
}

// runRebuild handles the rebuild subcommand: repair the record stream,
// aggregate, and checkpoint from the page cache.
func runRebuild(args []string) {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error; default from config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: reg-scraper rebuild [options]

Rebuild the record stream, the aggregate, and the crawl checkpoint from
the page cache. Use this when the checkpoint or record files are damaged;
the cache remains the source of truth for fetched pages.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, log := loadAndValidateConfig(*configFile, *logLevel)
	logEntry := log.WithField("command", "rebuild")

	pageCache, err := cache.NewPageCache(cfg.Storage.CacheDir, logEntry)
	if err != nil {
		log.Fatalf("Failed to open page cache: %v", err)
	}
	extractor, err := extract.NewExtractor(cfg.Site.SkipPatterns, logEntry)
	if err != nil {
		log.Fatalf("Failed to build extractor: %v", err)
	}
	links := parse.NewLinkExtractor(cfg.Site.AllowedHost, cfg.Site.PathPrefix, logEntry)
	checkpoints := state.NewStore(cfg.Storage.ProgressFile, cfg.Storage.FailedFile, logEntry)

	result, err := crawler.Rebuild(pageCache, extractor, links, checkpoints,
		cfg.Storage.RecordsFile, cfg.Storage.AggregateFile, logEntry)
	if err != nil {
		log.Fatalf("Rebuild failed: %v", err)
	}

	log.Infof("Rebuild complete: %d cached pages -> %d records (aggregate %d, pending %d, failed %d)",
		result.CachedPages, result.Records, result.Aggregate, result.Pending, result.Failed)
}

// runAnalyze handles the analyze subcommand.
func runAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error; default from config)")
	limit := fs.Int("limit", 0, "Analyze at most N records this run (0 = config value)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: reg-scraper analyze [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nThe API key is read from the environment variable named by analysis.api_key_env.\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, log := loadAndValidateConfig(*configFile, *logLevel)
	if *limit > 0 {
		cfg.Analysis.Limit = *limit
	}
	logEntry := log.WithField("command", "analyze")

	records, err := crawler.LoadAggregate(cfg.Storage.AggregateFile)
	if err != nil {
		log.Fatalf("Cannot load aggregate %s (run a crawl first): %v", cfg.Storage.AggregateFile, err)
	}

	apiKey := os.Getenv(cfg.Analysis.APIKeyEnv)
	if apiKey == "" {
		log.Fatalf("Environment variable %s is not set", cfg.Analysis.APIKeyEnv)
	}

	model, err := analyze.NewOpenAIModel(cfg.Analysis.Model, apiKey)
	if err != nil {
		log.Fatalf("Failed to initialize model client: %v", err)
	}
	analyzer, err := analyze.NewAnalyzer(model, cfg.Analysis.Model, cfg.Analysis.MaxContentTokens, logEntry)
	if err != nil {
		log.Fatalf("Failed to initialize analyzer: %v", err)
	}
	store, err := analyze.OpenResultStore(cfg.Analysis.StoreDir, logEntry)
	if err != nil {
		log.Fatalf("Failed to open result store: %v", err)
	}
	defer store.Close()

	ctx, stop := signalContext(log)
	defer stop()

	runner := analyze.NewRunner(analyzer, store, cfg.Analysis, logEntry)
	summary, err := runner.Run(ctx, records)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Analysis cancelled gracefully.")
			os.Exit(0)
		}
		log.Fatalf("Analysis failed: %v", err)
	}

	log.Infof("Analysis complete: %d analyzed, %d skipped, %d failed of %d records",
		summary.Analyzed, summary.Skipped, summary.Failed, summary.Total)
}

// runExport handles the export subcommand.
func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error; default from config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: reg-scraper export [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, log := loadAndValidateConfig(*configFile, *logLevel)
	logEntry := log.WithField("command", "export")

	records, err := crawler.LoadAggregate(cfg.Storage.AggregateFile)
	if err != nil {
		log.Fatalf("Cannot load aggregate %s (run a crawl first): %v", cfg.Storage.AggregateFile, err)
	}

	exporter := export.NewExporter(cfg.Storage.ExportDir, logEntry)
	summary, err := exporter.Run(records)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	log.Infof("Export complete: %d/%d files written to %s", summary.Written, summary.Records, cfg.Storage.ExportDir)
	if summary.Failed > 0 {
		log.Warnf("%d records failed to export", summary.Failed)
		os.Exit(1)
	}
}

// runMigrate handles the migrate subcommand.
func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error; default from config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: reg-scraper migrate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, log := loadAndValidateConfig(*configFile, *logLevel)
	logEntry := log.WithField("command", "migrate")

	records, err := crawler.LoadAggregate(cfg.Storage.AggregateFile)
	if err != nil {
		log.Fatalf("Cannot load aggregate %s (run a crawl first): %v", cfg.Storage.AggregateFile, err)
	}

	db, err := database.Open(cfg.Migrate.DatabasePath, logEntry)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, stop := signalContext(log)
	defer stop()

	summary, err := db.Migrate(ctx, records, loadVerdicts(cfg, log), cfg.Migrate)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Migration cancelled gracefully.")
			os.Exit(0)
		}
		log.Fatalf("Migration failed: %v", err)
	}

	log.Infof("Migration complete: %d documents, %d analyses, %d red flags, %d statute rows (%d skipped)",
		summary.Documents, summary.Analyses, summary.RedFlagRows, summary.StatuteRows, summary.Skipped)
}

// loadVerdicts reads the analysis CSV if one exists. A missing CSV is not an
// error: migration then loads documents without verdict rows.
func loadVerdicts(cfg *config.Config, log *logrus.Logger) []models.AnalysisRecord {
	if _, err := os.Stat(cfg.Analysis.CSVFile); err != nil {
		log.Warnf("No analysis CSV at %s; migrating documents without verdicts", cfg.Analysis.CSVFile)
		return nil
	}

	verdicts, err := analyze.ReadCSV(cfg.Analysis.CSVFile)
	if err != nil {
		log.Fatalf("Cannot read analysis CSV %s: %v", cfg.Analysis.CSVFile, err)
	}
	return verdicts
}

// runServe handles the serve subcommand.
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error; default from config)")
	addr := fs.String("addr", "", "Listen address (default from config, e.g. :8000)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: reg-scraper serve [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, log := loadAndValidateConfig(*configFile, *logLevel)
	if *addr != "" {
		cfg.Serve.Addr = *addr
	}

	ctx, stop := signalContext(log)
	defer stop()

	srv := serve.NewServer(cfg.Serve, log.WithField("command", "serve"))
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runValidate handles the validate subcommand.
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: reg-scraper validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "OK: crawling %s (host %s, prefix %s)\n",
		cfg.Site.BaseURL, cfg.Site.AllowedHost, cfg.Site.PathPrefix)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

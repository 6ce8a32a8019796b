// Package mcp exposes the scraping pipeline to agent tooling over the
// Model Context Protocol: crawl jobs (start/status/cancel) and read access
// to the aggregate artifact.
package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"reg-scraper/pkg/config"
)

const (
	serverName    = "reg-scraper"
	serverVersion = "1.0.0"
)

// ServerConfig holds what the MCP server needs to run crawls and read
// artifacts.
type ServerConfig struct {
	AppConfig *config.Config
	Logger    *logrus.Logger
}

// Server wraps the MCP server with the pipeline's tools.
type Server struct {
	mcpServer *server.MCPServer
	cfg       *config.Config
	log       *logrus.Entry
	jobs      *JobManager
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		cfg:       cfg.AppConfig,
		log:       cfg.Logger.WithField("component", "mcp"),
		jobs:      NewJobManager(cfg.AppConfig.MCP.MaxConcurrentJobs),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	// start_crawl - kick off a background crawl
	startCrawlTool := mcp.NewTool("start_crawl",
		mcp.WithDescription("Start a background crawl of the regulation tree. Returns immediately with a job ID. The crawl is polite and serial, so only one job may run at a time."),
		mcp.WithBoolean("resume",
			mcp.Description("Resume from the last checkpoint instead of starting fresh"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Cap on pages scraped this run (0 = unlimited)"),
		),
	)
	s.mcpServer.AddTool(startCrawlTool, s.handleStartCrawl)

	// crawl_status - check on a crawl job
	crawlStatusTool := mcp.NewTool("crawl_status",
		mcp.WithDescription("Get the status and progress of a crawl job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by start_crawl"),
		),
	)
	s.mcpServer.AddTool(crawlStatusTool, s.handleCrawlStatus)

	// cancel_crawl - stop a running crawl job
	cancelCrawlTool := mcp.NewTool("cancel_crawl",
		mcp.WithDescription("Cancel a running crawl job. Progress is checkpointed, so a later crawl can resume."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by start_crawl"),
		),
	)
	s.mcpServer.AddTool(cancelCrawlTool, s.handleCancelCrawl)

	// list_regulations - paged index of the aggregate
	listRegulationsTool := mcp.NewTool("list_regulations",
		mcp.WithDescription("List scraped regulations from the aggregate artifact, paged"),
		mcp.WithNumber("offset",
			mcp.Description("Index of the first record to return (default: 0)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of records to return (default: 20, max: 100)"),
		),
	)
	s.mcpServer.AddTool(listRegulationsTool, s.handleListRegulations)

	// get_regulation - one full record
	getRegulationTool := mcp.NewTool("get_regulation",
		mcp.WithDescription("Get one scraped regulation, by URL or by source index"),
		mcp.WithString("url",
			mcp.Description("The regulation URL"),
		),
		mcp.WithNumber("index",
			mcp.Description("The regulation's source index in the aggregate"),
		),
	)
	s.mcpServer.AddTool(getRegulationTool, s.handleGetRegulation)

	s.log.Infof("Registered %d MCP tools", 5)
}

// Run serves MCP over stdio until the client disconnects.
func (s *Server) Run() error {
	s.log.Info("Starting MCP server with stdio transport")
	return server.ServeStdio(s.mcpServer)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	// Cancel any running jobs
	s.jobs.CancelAll()
	return nil
}

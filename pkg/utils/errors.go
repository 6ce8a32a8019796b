package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrFetchFailed        = errors.New("fetch failed after all attempts") // Wraps the last underlying error
	ErrHTTPStatus         = errors.New("unexpected HTTP status")          // Wraps the status line
	ErrRobotsDisallowed   = errors.New("disallowed by robots.txt")
	ErrNoSeeds            = errors.New("no seed links found on base page")
	ErrCacheWrite         = errors.New("page cache write failed") // Non-fatal; page content is still returned
	ErrCacheCorrupt       = errors.New("page cache record corrupt")
	ErrStateCorrupt       = errors.New("crawl state file corrupt")
	ErrParsing            = errors.New("parsing error")    // Wraps specific parsing error (HTML, URL, JSON)
	ErrFilesystem         = errors.New("filesystem error") // Wraps os errors
	ErrDatabase           = errors.New("database error")   // Wraps badger/sqlite errors
	ErrRequestCreation    = errors.New("failed to create HTTP request")
	ErrResponseBodyRead   = errors.New("failed to read response body")
	ErrMarkdownConversion = errors.New("failed to convert HTML to markdown")
	ErrAnalysis           = errors.New("analysis request failed")
	ErrConfigValidation   = errors.New("configuration validation error")
)

// WrapErrorf wraps an error with formatted context, keeping the original
// reachable through errors.Is. Returns nil if err is nil.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// CategorizeError maps an error to a predefined category string for logging and summaries.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Check against sentinel errors first
	switch {
	case errors.Is(err, ErrFetchFailed):
		if errors.Is(err, ErrHTTPStatus) {
			errMsg := err.Error()
			if strings.Contains(errMsg, "404") {
				return "FetchFailed_HTTP404"
			}
			if strings.Contains(errMsg, "429") {
				return "FetchFailed_HTTP429"
			}
			if strings.Contains(errMsg, "status 5") {
				return "FetchFailed_HTTPServer"
			}
			return "FetchFailed_HTTPStatus"
		}
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded") {
			return "FetchFailed_NetworkTimeout"
		}
		if strings.Contains(errMsg, "connection refused") {
			return "FetchFailed_ConnectionRefused"
		}
		if strings.Contains(errMsg, "no such host") {
			return "FetchFailed_DNSLookup"
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "FetchFailed_NetworkTimeout"
		}
		return "FetchFailed_NetworkOther"
	case errors.Is(err, ErrHTTPStatus):
		return "HTTP_Status"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrNoSeeds):
		return "Crawl_NoSeeds"
	case errors.Is(err, ErrCacheWrite):
		return "Cache_Write"
	case errors.Is(err, ErrCacheCorrupt):
		return "Cache_Corrupt"
	case errors.Is(err, ErrStateCorrupt):
		return "State_Corrupt"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "JSON") {
			return "Content_ParsingJSON"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrMarkdownConversion):
		return "Content_Markdown"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrAnalysis):
		return "Analysis_Request"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "Network_Timeout"
		}
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate") {
		return "Network_TLS"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}
	if strings.Contains(lowerErrMsg, "broken pipe") {
		return "Network_BrokenPipe"
	}

	return "Unknown"
}

package parse

import (
	"net"
	"net/url"
	"strings"

	"reg-scraper/pkg/utils"
)

// CanonicalURL reduces a URL to the identity form used for every set
// membership test in the pipeline: lowercase scheme and host, default
// ports stripped, fragment and query dropped, trailing slash trimmed
// except for the root path. The input is not modified.
func CanonicalURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	canonical := *u

	canonical.Scheme = strings.ToLower(canonical.Scheme)
	canonical.Host = strings.ToLower(canonical.Host)

	if host, port, err := net.SplitHostPort(canonical.Host); err == nil {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	if canonical.Path == "" {
		canonical.Path = "/"
	} else if len(canonical.Path) > 1 && strings.HasSuffix(canonical.Path, "/") {
		canonical.Path = canonical.Path[:len(canonical.Path)-1]
	}

	canonical.Fragment = ""
	canonical.RawQuery = ""
	canonical.User = nil

	return canonical.String()
}

// Canonicalize parses an absolute URL string (scheme and host required)
// and returns its canonical form alongside the parsed URL.
func Canonicalize(rawURL string) (string, *url.URL, error) {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return "", nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", nil, utils.WrapErrorf(utils.ErrParsing, "not an absolute URL %q", rawURL)
	}
	return CanonicalURL(parsed), parsed, nil
}

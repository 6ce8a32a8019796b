package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"reg-scraper/pkg/config"
	"reg-scraper/pkg/utils"
)

// RobotsGate answers "may we fetch this URL" for the crawl's single host.
// robots.txt is fetched once at crawl start; failure to obtain or parse
// it fails open (everything allowed), same as an explicitly disabled gate.
type RobotsGate struct {
	userAgent string
	data      *robotstxt.RobotsData // nil when disabled or unavailable
	log       *logrus.Entry
}

// NewRobotsGate fetches and parses robots.txt for the site host. The
// fetch is one polite attempt through the shared client: it waits on the
// limiter first and touches it afterwards like any page fetch. Never
// returns an error; an unreachable robots.txt just means no restrictions.
func NewRobotsGate(ctx context.Context, client *http.Client, limiter *Limiter, site config.SiteConfig, log *logrus.Entry) *RobotsGate {
	gate := &RobotsGate{
		userAgent: site.UserAgent,
		log:       log.WithField("component", "robots"),
	}
	if !site.RobotsEnabled() {
		gate.log.Info("robots.txt checks disabled by configuration")
		return gate
	}

	base, err := url.Parse(site.BaseURL)
	if err != nil {
		gate.log.Warnf("Cannot derive robots.txt location from %q, failing open: %v", site.BaseURL, err)
		return gate
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", base.Scheme, base.Host)

	data, err := fetchRobots(ctx, client, limiter, robotsURL, site.UserAgent)
	if err != nil {
		gate.log.WithField("robots_url", robotsURL).Warnf("robots.txt unavailable, failing open: %v", err)
		return gate
	}
	gate.data = data
	gate.log.WithField("robots_url", robotsURL).Info("robots.txt loaded")
	return gate
}

func fetchRobots(ctx context.Context, client *http.Client, limiter *Limiter, robotsURL, userAgent string) (*robotstxt.RobotsData, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	limiter.Touch()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d %s", utils.ErrHTTPStatus, resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	return robotstxt.FromBytes(body)
}

// Allowed reports whether the configured user agent may fetch the URL.
// Always true when checks are disabled or robots.txt was unavailable.
func (g *RobotsGate) Allowed(u *url.URL) bool {
	if g.data == nil {
		return true
	}
	return g.data.TestAgent(u.RequestURI(), g.userAgent)
}

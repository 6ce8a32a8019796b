package parse

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"reg-scraper/pkg/models"
	"reg-scraper/pkg/utils"
)

// LinkExtractor pulls in-scope regulation links out of fetched pages.
// Scope is one host plus one path prefix; everything else is dropped.
type LinkExtractor struct {
	allowedHost string
	pathPrefix  string
	log         *logrus.Entry
}

// NewLinkExtractor creates a LinkExtractor for the given host and path
// prefix (both already normalized by config validation).
func NewLinkExtractor(allowedHost, pathPrefix string, log *logrus.Entry) *LinkExtractor {
	return &LinkExtractor{
		allowedHost: allowedHost,
		pathPrefix:  pathPrefix,
		log:         log,
	}
}

// ExtractLinks returns the in-scope link candidates of an HTML page in
// document order. Candidate URLs are canonical; duplicates are kept, the
// scheduler owns dedup. Anchors are skipped when the href is empty, a
// bare fragment, a mailto:/javascript: or other non-http(s) reference,
// or when the anchor has no display text.
func (e *LinkExtractor) ExtractLinks(html string, sourceURL *url.URL) ([]models.LinkCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "parsing page %s", sourceURL)
	}

	var candidates []models.LinkCandidate
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "javascript:") {
			return
		}

		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}

		linkURL, parseErr := sourceURL.Parse(href)
		if parseErr != nil {
			e.log.WithField("href", href).Debugf("Skipping unparseable link: %v", parseErr)
			return
		}
		if linkURL.Scheme != "http" && linkURL.Scheme != "https" {
			return
		}
		if !strings.EqualFold(linkURL.Hostname(), e.allowedHost) {
			return
		}

		if !strings.HasPrefix(linkURL.Path, e.pathPrefix) {
			return
		}

		candidates = append(candidates, models.LinkCandidate{
			Text: text,
			URL:  CanonicalURL(linkURL),
			Type: ClassifyPath(linkURL.Path),
		})
	})

	return candidates, nil
}

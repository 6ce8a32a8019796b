// Package extract turns fetched regulation HTML into RegulationRecords:
// title, container text, a cleaned rendition, markdown, a heading outline,
// and statute citations. Extraction is best-effort: a page with no
// recognizable content container still yields a record.
package extract

import (
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"reg-scraper/pkg/models"
	"reg-scraper/pkg/parse"
)

// containerSelectors are tried in order; the first match becomes the
// content container.
var containerSelectors = []string{"div#content", "main", "article"}

// stripFromContainer removes navigation chrome inside a matched container.
const stripFromContainer = "nav, aside, footer, script, style, noscript"

// stripFromDocument is the lighter fallback strip applied to the whole
// page when no container matches.
const stripFromDocument = "script, style, nav, footer"

// Extractor builds RegulationRecords from page HTML.
type Extractor struct {
	cleaner   *Cleaner
	converter *md.Converter
	log       *logrus.Entry
}

// NewExtractor creates an extractor. extraSkipPatterns extends the
// built-in navigation line filters of the cleaner.
func NewExtractor(extraSkipPatterns []string, log *logrus.Entry) (*Extractor, error) {
	cleaner, err := NewCleaner(extraSkipPatterns)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		cleaner:   cleaner,
		converter: md.NewConverter("", true, nil),
		log:       log.WithField("component", "extractor"),
	}, nil
}

// Record builds the full record for a fetched page. It never fails: pages
// without a content container fall back to whole-document text, and a
// markdown conversion error leaves the markdown field empty.
func (e *Extractor) Record(pageHTML string, pageURL *url.URL) models.RegulationRecord {
	canonical := parse.CanonicalURL(pageURL)
	record := models.RegulationRecord{
		URL:       canonical,
		Title:     "No title found",
		URLType:   parse.ClassifyPath(pageURL.Path),
		ScrapedAt: time.Now().UTC(),
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		e.log.WithField("url", canonical).Warnf("Unparseable HTML, emitting bare record: %v", err)
		return record
	}

	record.Title = extractTitle(doc)

	content, markdownSource := e.extractContent(doc)
	record.Content = content
	record.CleanedContent = e.cleaner.Clean(content)
	record.Markdown = e.markdown(markdownSource, canonical)
	record.Headings = OutlineHeadings(record.Markdown)
	return record
}

// extractTitle returns the first non-empty h1, else the title element,
// else a fixed placeholder.
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		return title
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return "No title found"
}

// extractContent locates the content container, strips chrome from it,
// and returns its newline-separated text plus the selection later used
// for the markdown rendition. With no container it falls back to the
// whole document body minus script/style/nav/footer.
func (e *Extractor) extractContent(doc *goquery.Document) (string, *goquery.Selection) {
	for _, selector := range containerSelectors {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}
		container.Find(stripFromContainer).Remove()
		return textWithNewlines(container), container
	}

	doc.Find(stripFromDocument).Remove()
	return textWithNewlines(doc.Selection), doc.Find("body").First()
}

// markdown converts the container selection to markdown. Conversion
// failure is logged and yields an empty rendition, never an error.
func (e *Extractor) markdown(sel *goquery.Selection, url string) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	rawHTML, err := goquery.OuterHtml(sel)
	if err != nil {
		e.log.WithField("url", url).Warnf("Could not serialize container for markdown: %v", err)
		return ""
	}
	markdown, err := e.converter.ConvertString(rawHTML)
	if err != nil {
		e.log.WithField("url", url).Warnf("Markdown conversion failed: %v", err)
		return ""
	}
	return markdown
}

// textWithNewlines extracts the text of a selection with one chunk per
// text node, trimmed and newline-joined.
func textWithNewlines(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, node := range sel.Nodes {
		walk(node)
	}
	return strings.Join(parts, "\n")
}

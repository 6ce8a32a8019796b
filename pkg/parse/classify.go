package parse

import (
	"strings"

	"reg-scraper/pkg/models"
)

// pathPatterns maps URL-path substrings to link types. Order matters:
// the first match wins.
var pathPatterns = []struct {
	substr string
	typ    models.LinkType
}{
	{"/title-", models.LinkTypeTitle},
	{"-NYCRR-", models.LinkTypeRegulation},
	{"/chapter-", models.LinkTypeChapter},
	{"/part-", models.LinkTypePart},
	{"/section-", models.LinkTypeSection},
	{"/app-", models.LinkTypeAppendix},
	{"/appendix", models.LinkTypeAppendix},
}

// ClassifyPath infers a link type from a URL path. Matching is
// case-sensitive; paths that match nothing come back as unknown.
func ClassifyPath(path string) models.LinkType {
	for _, p := range pathPatterns {
		if strings.Contains(path, p.substr) {
			return p.typ
		}
	}
	return models.LinkTypeUnknown
}

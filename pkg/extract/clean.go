package extract

import (
	"regexp"
	"strings"

	"reg-scraper/pkg/utils"
)

// navLinePatterns are whole-line navigation artifacts of the regulation
// site's page chrome, dropped line-by-line during cleaning. Matched
// case-insensitively.
var navLinePatterns = []string{
	`^\s*Menu\s*$`,
	`^\s*Search\s*$`,
	`^\s*Home\s*$`,
	`^\s*Back to top\s*$`,
	`^\s*Print\s*$`,
	`^\s*Share\s*$`,
	`^\s*LII\s*$`,
	`^\s*Legal Information Institute\s*$`,
	`^\s*Cornell Law School\s*$`,
	`^\s*Compare\s*$`,
	`^\s*Table of Contents\s*$`,
	`^\s*›\s*$`,
	`^\s*»\s*$`,
	`^\s*\|\s*$`,
	`^\s*Related\s*$`,
	`^\s*Previous\s*$`,
	`^\s*Next\s*$`,
	`^\s*Toggle navigation.*$`,
	`^\s*Skip to main content.*$`,
}

var (
	collapseBlankRuns = regexp.MustCompile(`\n\s*\n\s*\n+`)
	literalNewline    = regexp.MustCompile(`\\n`)
	digitParaBreak    = regexp.MustCompile(`([0-9)])\n([A-Z][a-z])`)
	lowerParaBreak    = regexp.MustCompile(`([a-z])\n([A-Z][a-z])`)
	sectionNumbering  = regexp.MustCompile(`(?m)^(\d+\.\d+\.\d+)\s+`)
	clauseMarker      = regexp.MustCompile(`(?m)^(\([a-z]\))\s+`)
	spaceBeforePunct  = regexp.MustCompile(`\s+([.,;:])`)
	spaceAfterPunct   = regexp.MustCompile(`([.,;:])\s+`)
)

// Cleaner normalizes extracted regulation text for readability: drops
// page chrome lines, repairs paragraph breaks, and tightens punctuation.
type Cleaner struct {
	skipLines []*regexp.Regexp
}

// NewCleaner compiles the built-in navigation filters plus any extra
// patterns from site configuration. Extra patterns are compiled as given;
// the built-ins match case-insensitively.
func NewCleaner(extraPatterns []string) (*Cleaner, error) {
	patterns := make([]string, 0, len(navLinePatterns)+len(extraPatterns))
	for _, p := range navLinePatterns {
		patterns = append(patterns, "(?i)"+p)
	}
	patterns = append(patterns, extraPatterns...)

	compiled, err := utils.CompileRegexPatterns(patterns)
	if err != nil {
		return nil, err
	}
	return &Cleaner{skipLines: compiled}, nil
}

// Clean runs the full pipeline. Order matters: blank-run collapsing and
// line filtering happen on the raw text, paragraph repair and punctuation
// tightening on the filtered lines.
func (c *Cleaner) Clean(content string) string {
	if content == "" {
		return ""
	}

	content = collapseBlankRuns.ReplaceAllString(content, "\n\n")

	var kept []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if c.isNavLine(line) {
			continue
		}
		kept = append(kept, strings.TrimSpace(line))
	}
	cleaned := strings.Join(kept, "\n")

	// Literal \n sequences sometimes survive as text.
	cleaned = literalNewline.ReplaceAllString(cleaned, "\n")

	// Re-break sentence/heading boundaries: "7802)\nChapter" and
	// "text\nChapter" become paragraph breaks.
	cleaned = digitParaBreak.ReplaceAllString(cleaned, "$1\n\n$2")
	cleaned = lowerParaBreak.ReplaceAllString(cleaned, "$1\n\n$2")

	cleaned = sectionNumbering.ReplaceAllString(cleaned, "$1. ")
	cleaned = clauseMarker.ReplaceAllString(cleaned, "$1 ")

	cleaned = spaceBeforePunct.ReplaceAllString(cleaned, "$1")
	cleaned = spaceAfterPunct.ReplaceAllString(cleaned, "$1 ")

	cleaned = collapseBlankRuns.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

func (c *Cleaner) isNavLine(line string) bool {
	for _, pattern := range c.skipLines {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}

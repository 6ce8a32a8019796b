package extract

import (
	"regexp"

	"reg-scraper/pkg/models"
)

var (
	uscCitation = regexp.MustCompile(`\b\d+\s+U\.S\.C\.\s+§{1,2}\s*\d[\w.\-]*`)
	cfrCitation = regexp.MustCompile(`\b\d+\s+C\.F\.R\.\s+(?:[Pp]art\s+)?\d+(?:\.\d+)*`)
	publicLaw   = regexp.MustCompile(`\bPub\.\s*L\.\s*(?:No\.\s*)?\d+-\d+`)
	nycrrPath   = regexp.MustCompile(`(\d+)-NYCRR-([\w.\-]+)`)
)

// ExtractCitations scans a record's cleaned content for federal statute
// citations and parses the NYCRR title/section out of its URL. Citation
// lists are deduplicated keeping first occurrence order. Feeds the
// statute_references table during migration.
func ExtractCitations(record models.RegulationRecord) models.StatuteReferences {
	refs := models.StatuteReferences{
		USCCitations: dedupe(uscCitation.FindAllString(record.CleanedContent, -1)),
		CFRCitations: dedupe(cfrCitation.FindAllString(record.CleanedContent, -1)),
		PublicLaws:   dedupe(publicLaw.FindAllString(record.CleanedContent, -1)),
	}
	if m := nycrrPath.FindStringSubmatch(record.URL); m != nil {
		refs.StateTitle = m[1]
		refs.StateSection = m[2]
	}
	return refs
}

// HasReferences reports whether any citation or state reference was found.
func HasReferences(refs models.StatuteReferences) bool {
	return len(refs.USCCitations) > 0 || len(refs.CFRCitations) > 0 ||
		len(refs.PublicLaws) > 0 || refs.StateTitle != "" || refs.StateSection != ""
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

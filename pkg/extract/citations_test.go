package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"reg-scraper/pkg/models"
)

func TestExtractCitations(t *testing.T) {
	record := models.RegulationRecord{
		URL: "https://www.law.cornell.edu/regulations/new-york/10-NYCRR-405.4",
		CleanedContent: "Facilities must comply with 42 U.S.C. § 1395x and 45 C.F.R. 164.512, " +
			"as amended by Pub. L. 104-191. See also 42 U.S.C. § 1395x for definitions " +
			"and 42 C.F.R. Part 2 for confidentiality.",
	}

	refs := ExtractCitations(record)

	// Duplicate USC citation is collapsed, first-occurrence order kept.
	assert.Equal(t, []string{"42 U.S.C. § 1395x"}, refs.USCCitations)
	assert.Equal(t, []string{"45 C.F.R. 164.512", "42 C.F.R. Part 2"}, refs.CFRCitations)
	assert.Equal(t, []string{"Pub. L. 104-191"}, refs.PublicLaws)
	assert.Equal(t, "10", refs.StateTitle)
	assert.Equal(t, "405.4", refs.StateSection)
	assert.True(t, HasReferences(refs))
}

func TestExtractCitations_NoMatches(t *testing.T) {
	record := models.RegulationRecord{
		URL:            "https://www.law.cornell.edu/regulations/new-york/title-10",
		CleanedContent: "Plain regulation text without any federal citations.",
	}

	refs := ExtractCitations(record)

	assert.Empty(t, refs.USCCitations)
	assert.Empty(t, refs.CFRCitations)
	assert.Empty(t, refs.PublicLaws)
	assert.Empty(t, refs.StateTitle)
	assert.Empty(t, refs.StateSection)
	assert.False(t, HasReferences(refs))
}

func TestExtractCitations_StateReferenceOnly(t *testing.T) {
	record := models.RegulationRecord{
		URL:            "https://www.law.cornell.edu/regulations/new-york/14-NYCRR-800.3",
		CleanedContent: "No federal citations here.",
	}

	refs := ExtractCitations(record)

	assert.Equal(t, "14", refs.StateTitle)
	assert.Equal(t, "800.3", refs.StateSection)
	assert.True(t, HasReferences(refs))
}

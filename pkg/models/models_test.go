package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkType_String(t *testing.T) {
	tests := []struct {
		linkType LinkType
		want     string
	}{
		{LinkType(""), "unknown"},
		{LinkTypeTitle, "title"},
		{LinkTypeRegulation, "regulation"},
		{LinkTypeChapter, "chapter"},
		{LinkTypePart, "part"},
		{LinkTypeSection, "section"},
		{LinkTypeAppendix, "appendix"},
		{LinkTypeUnknown, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.linkType.String())
	}
}

func TestLinkType_IsValid(t *testing.T) {
	tests := []struct {
		linkType LinkType
		want     bool
	}{
		{LinkTypeTitle, true},
		{LinkTypeRegulation, true},
		{LinkTypeChapter, true},
		{LinkTypePart, true},
		{LinkTypeSection, true},
		{LinkTypeAppendix, true},
		{LinkTypeUnknown, true},
		{LinkType(""), false},
		{LinkType("subsection"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.linkType.IsValid(), "LinkType(%q).IsValid()", string(tt.linkType))
	}
}

func TestRedFlagType_IsValid(t *testing.T) {
	for _, f := range AllRedFlagTypes {
		assert.True(t, f.IsValid(), "AllRedFlagTypes entry %q must validate", f)
	}
	assert.False(t, RedFlagType("made_up_flag").IsValid())
	assert.False(t, RedFlagType("").IsValid())
}

func TestAllRedFlagTypes_Complete(t *testing.T) {
	// The framework defines 21 patterns; the prompt contract depends on the
	// full list being present and free of duplicates.
	require.Len(t, AllRedFlagTypes, 21)

	seen := make(map[RedFlagType]bool)
	for _, f := range AllRedFlagTypes {
		assert.False(t, seen[f], "duplicate red flag %q", f)
		seen[f] = true
	}
}

func TestRegulationRecord_JSONShape(t *testing.T) {
	rec := RegulationRecord{
		URL:            "https://www.law.cornell.edu/regulations/new-york/10-NYCRR-405.4",
		Title:          "Section 405.4 - Medical staff",
		Content:        "raw text",
		CleanedContent: "clean text",
		URLType:        LinkTypeRegulation,
		SourceIndex:    12,
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "regulation", decoded["url_type"])
	assert.Equal(t, float64(12), decoded["source_index"])
	assert.Contains(t, decoded, "cleaned_content")
	assert.NotContains(t, decoded, "markdown", "empty markdown should be omitted")
}

func TestRegulationAnalysis_JSONRoundTrip(t *testing.T) {
	in := RegulationAnalysis{
		RedFlags:             []RedFlagType{RedFlagZeroRiskLanguage, RedFlagFrozenArchitecture},
		SpecificTextExamples: []string{"shall under no circumstances"},
		SeverityScore:        9,
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out RegulationAnalysis
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

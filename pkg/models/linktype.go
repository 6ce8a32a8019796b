package models

// LinkType classifies a URL within the regulation tree, inferred from
// URL-path substrings. The classifier applies patterns in a fixed order
// (title, regulation, chapter, part, section, appendix) with first match
// winning; anything else is unknown.
type LinkType string

const (
	LinkTypeTitle      LinkType = "title"      // top-level NYCRR title index
	LinkTypeRegulation LinkType = "regulation" // individual NYCRR regulation page
	LinkTypeChapter    LinkType = "chapter"
	LinkTypePart       LinkType = "part"
	LinkTypeSection    LinkType = "section"
	LinkTypeAppendix   LinkType = "appendix"
	LinkTypeUnknown    LinkType = "unknown"
)

// String implements fmt.Stringer for logging; the zero value reads as unknown.
func (t LinkType) String() string {
	if t == "" {
		return string(LinkTypeUnknown)
	}
	return string(t)
}

// IsValid returns true if the type is a known classification value.
func (t LinkType) IsValid() bool {
	switch t {
	case LinkTypeTitle, LinkTypeRegulation, LinkTypeChapter, LinkTypePart,
		LinkTypeSection, LinkTypeAppendix, LinkTypeUnknown:
		return true
	}
	return false
}

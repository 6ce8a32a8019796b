package extract

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"reg-scraper/pkg/models"
)

// OutlineHeadings parses a markdown rendition and returns its heading
// outline (level + text) in document order. Empty markdown yields nil.
func OutlineHeadings(markdown string) []models.Heading {
	if markdown == "" {
		return nil
	}
	source := []byte(markdown)
	reader := text.NewReader(source)
	doc := goldmark.DefaultParser().Parse(reader)

	var headings []models.Heading
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		for child := heading.FirstChild(); child != nil; child = child.NextSibling() {
			if textNode, ok := child.(*ast.Text); ok {
				buf.Write(textNode.Segment.Value(source))
			}
		}
		if buf.Len() > 0 {
			headings = append(headings, models.Heading{Level: heading.Level, Text: buf.String()})
		}
		return ast.WalkContinue, nil
	})
	return headings
}

// Package markup turns inline policy text (CommonMark) into HTML and into
// addressable clauses that change proposals can reference by index.
package markup

import (
	"strings"

	"gitlab.com/golang-commonmark/markdown"
)

var parser = markdown.New(
	markdown.HTML(false),
	markdown.Linkify(true),
	markdown.Typographer(false),
	markdown.MaxNesting(10),
)

// Clause is one paragraph or list item of a document.
type Clause struct {
	Index   int    `json:"index"`
	Heading string `json:"heading,omitempty"`
	Text    string `json:"text"`
}

// Section groups clauses under their nearest heading.
type Section struct {
	Heading string   `json:"heading,omitempty"`
	Clauses []Clause `json:"clauses"`
}

// RenderHTML renders content to HTML. Raw HTML in the source is escaped.
func RenderHTML(content string) string {
	return parser.RenderToString([]byte(content))
}

// Clauses splits content into numbered clauses in document order.
func Clauses(content string) []Clause {
	tokens := parser.Parse([]byte(content))
	clauses := make([]Clause, 0)
	heading := ""
	for i, tok := range tokens {
		inline, ok := tok.(*markdown.Inline)
		if !ok || i == 0 {
			continue
		}
		text := strings.TrimSpace(inline.Content)
		if text == "" {
			continue
		}
		switch tokens[i-1].(type) {
		case *markdown.HeadingOpen:
			heading = text
		case *markdown.ParagraphOpen:
			clauses = append(clauses, Clause{Index: len(clauses), Heading: heading, Text: text})
		}
	}
	return clauses
}

// ClauseAt returns the clause with the given index.
func ClauseAt(content string, index int) (Clause, bool) {
	if index < 0 {
		return Clause{}, false
	}
	clauses := Clauses(content)
	if index >= len(clauses) {
		return Clause{}, false
	}
	return clauses[index], true
}

// Sections groups the clauses of content by heading, preserving order.
func Sections(content string) []Section {
	sections := make([]Section, 0)
	for _, clause := range Clauses(content) {
		if n := len(sections); n > 0 && sections[n-1].Heading == clause.Heading {
			sections[n-1].Clauses = append(sections[n-1].Clauses, clause)
			continue
		}
		sections = append(sections, Section{Heading: clause.Heading, Clauses: []Clause{clause}})
	}
	return sections
}

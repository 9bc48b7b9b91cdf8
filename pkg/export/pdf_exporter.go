package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Section is a heading followed by body paragraphs.
type Section struct {
	Heading    string
	Paragraphs []string
}

// Document is the printable form of a policy document.
type Document struct {
	Title    string
	Subtitle string
	Sections []Section
}

// PDFExporter renders policy documents and tabular registers into PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderDocument lays out a document as title, subtitle and sections.
func (e *PDFExporter) RenderDocument(doc Document) ([]byte, error) {
	if strings.TrimSpace(doc.Title) == "" {
		return nil, fmt.Errorf("pdf requires a title")
	}
	pdf := newPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 9, tr(doc.Title), "", "C", false)
	if doc.Subtitle != "" {
		pdf.SetFont("Arial", "I", 10)
		pdf.CellFormat(0, 6, tr(doc.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	for _, section := range doc.Sections {
		if section.Heading != "" {
			pdf.SetFont("Arial", "B", 12)
			pdf.MultiCell(0, 7, tr(section.Heading), "", "L", false)
			pdf.Ln(1)
		}
		pdf.SetFont("Arial", "", 10)
		for _, paragraph := range section.Paragraphs {
			pdf.MultiCell(0, 5, tr(paragraph), "", "J", false)
			pdf.Ln(2)
		}
	}

	return output(pdf)
}

// Render creates a PDF with an optional title and a table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := newPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(title)), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 9)
	colWidth := 190.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, tr(header), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, tr(truncate(row[header], 40)), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return output(pdf)
}

func newPage() *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	return pdf
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}

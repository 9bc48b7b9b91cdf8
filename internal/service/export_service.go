package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/policy-docs-api/internal/models"
	"github.com/noah-isme/policy-docs-api/pkg/export"
	"github.com/noah-isme/policy-docs-api/pkg/markup"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	RenderDocument(doc export.Document) ([]byte, error)
	Render(data export.Dataset, title string) ([]byte, error)
}

// Change register export formats.
const (
	ExportCSV = "csv"
	ExportPDF = "pdf"
)

// ExportService renders documents and change registers into downloadable formats.
type ExportService struct {
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{csv: csv, pdf: pdf, logger: logger}
}

var changeRegisterHeaders = []string{
	"Change ID", "Section", "Clause", "Proposed Change", "Justification", "Status",
	"Proposer", "Reviewer", "Rejection Reason", "Implementor", "Proposed At", "Reviewed At", "Implemented At",
}

// The PDF register is a one-page-wide table, so it carries the summary columns only.
var changeSummaryHeaders = []string{
	"Change ID", "Section", "Status", "Proposer", "Reviewer", "Implementor", "Proposed At",
}

// ChangeRegister renders the change history of a document as CSV.
func (s *ExportService) ChangeRegister(changes []models.Change) ([]byte, error) {
	return s.csv.Render(export.Dataset{Headers: changeRegisterHeaders, Rows: changeRegisterRows(changes)})
}

// ChangeRegisterPDF renders the change history of a document as a PDF table.
func (s *ExportService) ChangeRegisterPDF(title string, changes []models.Change) ([]byte, error) {
	return s.pdf.Render(export.Dataset{Headers: changeSummaryHeaders, Rows: changeRegisterRows(changes)}, title)
}

func changeRegisterRows(changes []models.Change) []map[string]string {
	rows := make([]map[string]string, 0, len(changes))
	for _, c := range changes {
		section := ""
		if c.SectionIndex != nil {
			section = strconv.Itoa(*c.SectionIndex)
		}
		rows = append(rows, map[string]string{
			"Change ID":        c.ID,
			"Section":          section,
			"Clause":           c.Clause,
			"Proposed Change":  c.ProposedChange,
			"Justification":    c.Justification,
			"Status":           string(c.Status),
			"Proposer":         c.ProposerID,
			"Reviewer":         deref(c.HODID),
			"Rejection Reason": deref(c.RejectionReason),
			"Implementor":      deref(c.ImplementorID),
			"Proposed At":      formatExportTime(&c.CreatedAt),
			"Reviewed At":      formatExportTime(c.ReviewedAt),
			"Implemented At":   formatExportTime(c.ImplementedAt),
		})
	}
	return rows
}

// DocumentPDF prints an inline document, one section per heading.
func (s *ExportService) DocumentPDF(doc *models.Document) ([]byte, error) {
	if doc == nil || doc.Content == nil {
		return nil, fmt.Errorf("document has no inline content")
	}
	printable := export.Document{
		Title:    doc.Title,
		Subtitle: fmt.Sprintf("Version %s · Revision %s · %s · %s", doc.Version, doc.Revision, doc.Category, doc.Status),
	}
	for _, section := range markup.Sections(*doc.Content) {
		paragraphs := make([]string, len(section.Clauses))
		for i, clause := range section.Clauses {
			paragraphs[i] = fmt.Sprintf("%d. %s", clause.Index+1, clause.Text)
		}
		printable.Sections = append(printable.Sections, export.Section{Heading: section.Heading, Paragraphs: paragraphs})
	}
	return s.pdf.RenderDocument(printable)
}

// Filename builds a download name from a title and extension.
func Filename(title, ext string) string {
	return sanitizeFilename(title) + "." + ext
}

func sanitizeFilename(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '"' || r == '\\' || r == '/' || r == ':' || r < 0x20 || r == 0x7f:
			return -1
		case r == ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(raw))
	cleaned = strings.Trim(strings.ReplaceAll(cleaned, "..", "."), ".")
	if cleaned == "" {
		return "document"
	}
	if len(cleaned) > 100 {
		cleaned = cleaned[:100]
	}
	return cleaned
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatExportTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

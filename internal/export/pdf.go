// Package export renders tailored document sections as downloadable files.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// ErrEmptyContent is returned when there is no text to render.
var ErrEmptyContent = errors.New("export: empty content")

// PDFGenerator renders a titled text document as a PDF.
type PDFGenerator struct{}

// NewPDFGenerator creates a new PDF generator.
func NewPDFGenerator() *PDFGenerator {
	return &PDFGenerator{}
}

// Generate renders the document: a centered bold title followed by the
// content line by line. Blank lines in the content are preserved as
// paragraph breaks. Returns the finished PDF bytes.
func (g *PDFGenerator) Generate(title, content string) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if strings.TrimSpace(title) == "" {
		title = "Document"
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 12)
	for _, line := range strings.Split(normalizeNewlines(content), "\n") {
		if strings.TrimSpace(line) == "" {
			pdf.Ln(5)
			continue
		}
		pdf.MultiCell(0, 6, line, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output error: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename returns the download filename for a section.
func Filename(sectionTitle string) string {
	slug := strings.ToLower(strings.TrimSpace(sectionTitle))
	slug = strings.ReplaceAll(slug, " ", "-")
	if slug == "" {
		slug = "document"
	}
	return slug + ".pdf"
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

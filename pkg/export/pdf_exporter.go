package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth = 277.0
	pdfRowHeight = 7.0
)

// PDFExporter renders an agenda table on landscape A4 pages. Rows sharing a
// GroupBy value are separated by a shaded group header.
type PDFExporter struct {
	GroupBy string
}

// NewPDFExporter constructs a PDF exporter grouping rows by groupBy. An empty
// column disables grouping.
func NewPDFExporter(groupBy string) *PDFExporter {
	return &PDFExporter{GroupBy: groupBy}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	columns := make([]string, 0, len(data.Headers))
	for _, h := range data.Headers {
		if h != e.GroupBy {
			columns = append(columns, h)
		}
	}
	colWidth := pdfPageWidth / float64(len(columns))

	header := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for _, h := range columns {
			pdf.CellFormat(colWidth, 8, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	pdf.SetHeaderFunc(func() {
		if title != "" {
			pdf.SetFont("Arial", "B", 14)
			pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
			pdf.Ln(2)
		}
		header()
	})
	pdf.AddPage()

	group := ""
	for i, row := range data.Rows {
		if e.GroupBy != "" && (i == 0 || row[e.GroupBy] != group) {
			group = row[e.GroupBy]
			pdf.SetFont("Arial", "B", 9)
			pdf.SetFillColor(245, 245, 245)
			pdf.CellFormat(pdfPageWidth, pdfRowHeight, tr(group), "1", 1, "L", true, 0, "")
			pdf.SetFont("Arial", "", 9)
		}
		for _, h := range columns {
			pdf.CellFormat(colWidth, pdfRowHeight, tr(row[h]), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

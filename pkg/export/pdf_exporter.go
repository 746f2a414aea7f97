package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const landscapeThreshold = 8

// PDFExporter renders datasets into a tabular PDF. Wide tables switch to landscape.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	orientation := "P"
	if len(data.Headers) > landscapeThreshold {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(8, 12, 8)
	pdf.AddPage()

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	widths := columnWidths(data, pageWidth-left-right)

	if title != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 9, title, "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	fontSize := 9.0
	if orientation == "L" {
		fontSize = 6.5
	}
	pdf.SetFont("Arial", "B", fontSize)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 7, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", fontSize)
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			align := "C"
			if i < len(data.Widths) {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, row[header], "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths honours data.Widths for the leading columns and splits the rest evenly.
func columnWidths(data Dataset, usable float64) []float64 {
	widths := make([]float64, len(data.Headers))
	fixed := 0.0
	n := 0
	for i := range widths {
		if i < len(data.Widths) && data.Widths[i] > 0 {
			widths[i] = data.Widths[i]
			fixed += data.Widths[i]
			n++
		}
	}
	rest := len(widths) - n
	if rest == 0 {
		return widths
	}
	share := (usable - fixed) / float64(rest)
	if share < 4 {
		share = 4
	}
	for i := range widths {
		if widths[i] == 0 {
			widths[i] = share
		}
	}
	return widths
}

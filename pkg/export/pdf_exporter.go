package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	landscapeColumnThreshold = 6
	rowHeight                = 7.0
	headerHeight             = 8.0
	bottomMargin             = 15.0
)

// PDFExporter lays a dataset out as an A4 table. Wide datasets switch to landscape,
// column widths follow content length and the header row repeats on every page.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render returns the PDF document bytes.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	pdf, err := e.layout(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) layout(data Dataset) (*gofpdf.Fpdf, error) {
	if len(data.Headers) == 0 {
		return nil, errors.New("pdf export needs at least one column")
	}
	orientation := "P"
	if len(data.Headers) > landscapeColumnThreshold {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(false, bottomMargin)
	pdf.AliasNbPages("")
	// core fonts are cp1252; translate so accented course names survive
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	widths := columnWidths(data, pageW-left-right)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(data.Title), "", 1, "C", false, 0, "")
	}
	if !data.GeneratedAt.IsZero() {
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 6, "Generated "+data.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	drawHeader := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(220, 226, 235)
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], headerHeight, tr(headerLabel(h)), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	drawHeader()

	pdf.SetFillColor(245, 247, 250)
	for n, row := range data.Rows {
		if pdf.GetY()+rowHeight > pageH-bottomMargin {
			pdf.AddPage()
			drawHeader()
			pdf.SetFillColor(245, 247, 250)
		}
		for i, h := range data.Headers {
			align := "L"
			if data.Numeric[h] {
				align = "R"
			}
			pdf.CellFormat(widths[i], rowHeight, tr(row[h]), "1", 0, align, n%2 == 1, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf, pdf.Error()
}

// columnWidths splits total across columns by the longest cell in each, with every
// column getting at least half of an even share.
func columnWidths(data Dataset, total float64) []float64 {
	weights := make([]float64, len(data.Headers))
	var sum float64
	for i, h := range data.Headers {
		longest := len(headerLabel(h))
		for _, row := range data.Rows {
			if l := len(row[h]); l > longest {
				longest = l
			}
		}
		weights[i] = float64(longest)
		sum += weights[i]
	}
	even := total / float64(len(weights))
	floor := even / 2
	widths := make([]float64, len(weights))
	remaining := total - floor*float64(len(weights))
	for i, w := range weights {
		widths[i] = floor
		if sum > 0 {
			widths[i] += remaining * w / sum
		} else {
			widths[i] = even
		}
	}
	return widths
}

// headerLabel turns snake_case column keys into title case labels.
func headerLabel(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

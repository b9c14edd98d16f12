package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter writes datasets as RFC 4180 CSV in header order.
type CSVExporter struct {
	totals []string
	bom    bool
}

// CSVOption customises a CSVExporter.
type CSVOption func(*CSVExporter)

// WithTotals appends a TOTAL row summing the named numeric columns.
func WithTotals(columns ...string) CSVOption {
	return func(e *CSVExporter) { e.totals = append(e.totals, columns...) }
}

// WithExcelBOM prefixes the output with a UTF-8 byte order mark so spreadsheet
// tools pick the right encoding for accented course names.
func WithExcelBOM() CSVOption {
	return func(e *CSVExporter) { e.bom = true }
}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter(opts ...CSVOption) *CSVExporter {
	e := &CSVExporter{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render returns the dataset encoded as CSV.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Write(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the dataset to w.
func (e *CSVExporter) Write(w io.Writer, data Dataset) error {
	if len(data.Headers) == 0 {
		return errors.New("csv export needs at least one column")
	}
	if e.bom {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("csv bom: %w", err)
		}
	}

	out := csv.NewWriter(w)
	if err := out.Write(data.Headers); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	sums := make(map[string]float64, len(e.totals))
	record := make([]string, len(data.Headers))
	for n, row := range data.Rows {
		for i, col := range data.Headers {
			record[i] = row[col]
		}
		for _, col := range e.totals {
			v, err := strconv.ParseFloat(row[col], 64)
			if err != nil {
				return fmt.Errorf("csv row %d: column %s is not numeric: %w", n+1, col, err)
			}
			sums[col] += v
		}
		if err := out.Write(record); err != nil {
			return fmt.Errorf("csv row %d: %w", n+1, err)
		}
	}
	if len(e.totals) > 0 {
		if err := out.Write(totalsRecord(data.Headers, e.totals, sums)); err != nil {
			return fmt.Errorf("csv totals: %w", err)
		}
	}
	out.Flush()
	return out.Error()
}

func totalsRecord(headers, columns []string, sums map[string]float64) []string {
	record := make([]string, len(headers))
	summed := make(map[string]bool, len(columns))
	for _, col := range columns {
		summed[col] = true
	}
	for i, col := range headers {
		if summed[col] {
			record[i] = strconv.FormatFloat(sums[col], 'f', -1, 64)
		}
	}
	if !summed[headers[0]] {
		record[0] = "TOTAL"
	}
	return record
}

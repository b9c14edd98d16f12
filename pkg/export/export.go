package export

import (
	"fmt"
	"strings"
	"time"
)

// Format names a supported export encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

// ParseFormat normalises a user supplied format. Empty input selects JSON.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported export format %q", raw)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// Dataset defines tabular export content.
type Dataset struct {
	Title       string
	Headers     []string
	Rows        []map[string]string
	Numeric     map[string]bool
	GeneratedAt time.Time
}

// Filename builds a download name such as enrollment-statistics-20240102.csv.
func Filename(base string, f Format, at time.Time) string {
	return fmt.Sprintf("%s-%s.%s", base, at.UTC().Format("20060102"), f)
}

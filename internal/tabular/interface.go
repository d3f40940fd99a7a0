package tabular

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Row is one data row of a tabular file.
type Row struct {
	Number int               // 1-indexed, header excluded
	Fields map[string]string // normalized header -> raw cell value
}

// Get returns the trimmed value of a field, or "" if absent.
func (r Row) Get(field string) string {
	return strings.TrimSpace(r.Fields[field])
}

// Has reports whether the field is present and non-blank.
func (r Row) Has(field string) bool {
	return r.Get(field) != ""
}

// Parser defines the interface for tabular file backends.
type Parser interface {
	// Parse reads the file at path and returns its data rows in file order.
	// Parameters:
	//   - ctx: context for cancellation.
	//   - path: local path of the stored file.
	// Returns:
	//   - []Row: data rows, blank rows skipped.
	//   - error: non-nil if the file cannot be read or has no header row.
	Parse(ctx context.Context, path string) ([]Row, error)
}

// Format identifies a tabular file format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
)

// FormatFromPath detects the file format from its extension.
// Returns false for unsupported extensions.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, true
	case ".xlsx", ".xlsm":
		return FormatExcel, true
	}
	return "", false
}

// ParseFormat converts user input ("csv", "excel", "xlsx") into a Format.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, true
	case "excel", "xlsx":
		return FormatExcel, true
	}
	return "", false
}

// ForPath returns the parser backend for the file's extension.
func ForPath(path string) (Parser, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	return ForFormat(format), nil
}

// ForFormat returns the parser backend for a format.
func ForFormat(format Format) Parser {
	if format == FormatExcel {
		return &ExcelParser{}
	}
	return &CSVParser{}
}

// NormalizeHeader lowercases a header cell and joins words with underscores,
// so "Election Year" and "election_year" name the same field.
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	h = strings.ToLower(h)
	h = strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '\t'
	}), "_")
	return h
}

// buildRow maps cells onto headers. Missing trailing cells become "", extra cells are dropped.
// Returns false when every cell is blank.
func buildRow(headers []string, cells []string, number int) (Row, bool) {
	fields := make(map[string]string, len(headers))
	blank := true
	for i, h := range headers {
		if h == "" {
			continue
		}
		v := ""
		if i < len(cells) {
			v = cells[i]
		}
		if strings.TrimSpace(v) != "" {
			blank = false
		}
		if _, dup := fields[h]; dup {
			continue
		}
		fields[h] = v
	}
	if blank {
		return Row{}, false
	}
	return Row{Number: number, Fields: fields}, true
}

func normalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for i, h := range raw {
		headers[i] = NormalizeHeader(h)
	}
	return headers
}

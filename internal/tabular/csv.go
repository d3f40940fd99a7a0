package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVParser streams a comma-separated file line by line.
type CSVParser struct{}

// Parse implements Parser.
func (p *CSVParser) Parse(ctx context.Context, path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening csv %s: %w", path, err)
	}
	defer f.Close()

	return p.parse(ctx, f)
}

func (p *CSVParser) parse(ctx context.Context, r io.Reader) ([]Row, error) {
	// Strips a UTF-8 BOM and transcodes UTF-16 files that carry one.
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: no header row found")
		}
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	headers := normalizeHeaders(header)

	var rows []Row
	number := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row %d: %w", number+1, err)
		}

		row, ok := buildRow(headers, cells, number+1)
		if !ok {
			continue
		}
		number++
		rows = append(rows, row)
	}

	return rows, nil
}

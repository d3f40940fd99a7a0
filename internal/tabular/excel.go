package tabular

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExcelParser loads the first worksheet of a workbook into memory at once.
type ExcelParser struct{}

// Parse implements Parser.
func (p *ExcelParser) Parse(ctx context.Context, path string) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	// Raw values keep number formats (thousand separators, percent) out of the cells.
	grid, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("empty file: no header row found")
	}

	headers := normalizeHeaders(grid[0])

	rows := make([]Row, 0, len(grid)-1)
	number := 0
	for _, cells := range grid[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
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

package tabular

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Write encodes a header and data rows in the given format.
func Write(w io.Writer, format Format, sheet string, header []string, rows [][]string) error {
	if format == FormatExcel {
		return WriteExcel(w, sheet, header, rows)
	}
	return WriteCSV(w, header, rows)
}

// WriteCSV writes a header line followed by the rows.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv rows: %w", err)
	}
	return nil
}

// WriteExcel writes a single-sheet workbook with the header on the first row.
func WriteExcel(w io.Writer, sheet string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	all := append([][]string{header}, rows...)
	for i, cells := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(cells))
		for j, v := range cells {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("encoding workbook: %w", err)
	}
	return nil
}

// ContentType returns the MIME type for a format.
func ContentType(format Format) string {
	if format == FormatExcel {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Extension returns the file extension, with dot, for a format.
func Extension(format Format) string {
	if format == FormatExcel {
		return ".xlsx"
	}
	return ".csv"
}

package tabular

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCSVParser_Basic(t *testing.T) {
	path := writeTemp(t, "rows.csv", []byte("Election Year,constituency_number, Candidate-1\n2024,1,Alice\n2024,2,Bob\n"))

	rows, err := (&CSVParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].Number != 1 || rows[1].Number != 2 {
		t.Errorf("row numbers = %d,%d, want 1,2", rows[0].Number, rows[1].Number)
	}
	if got := rows[0].Get("election_year"); got != "2024" {
		t.Errorf("election_year = %q, want %q", got, "2024")
	}
	if got := rows[1].Get("candidate_1"); got != "Bob" {
		t.Errorf("candidate_1 = %q, want %q", got, "Bob")
	}
}

func TestCSVParser_BOMAndBlankRows(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a,b\n1,2\n,\n\n3,4\n")...)
	path := writeTemp(t, "bom.csv", data)

	rows, err := (&CSVParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2 (blank rows skipped)", len(rows))
	}
	if _, ok := rows[0].Fields["a"]; !ok {
		t.Errorf("header with BOM not normalized: %v", rows[0].Fields)
	}
	if rows[1].Number != 2 || rows[1].Get("a") != "3" {
		t.Errorf("second row = %+v, want number 2 with a=3", rows[1])
	}
}

func TestCSVParser_RaggedRows(t *testing.T) {
	path := writeTemp(t, "ragged.csv", []byte("a,b,c\n1\n1,2,3,4\n"))

	rows, err := (&CSVParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].Has("b") {
		t.Errorf("short row should pad missing cells with blanks")
	}
	if len(rows[1].Fields) != 3 {
		t.Errorf("long row fields = %d, want 3", len(rows[1].Fields))
	}
}

func TestCSVParser_EmptyFile(t *testing.T) {
	path := writeTemp(t, "empty.csv", nil)
	if _, err := (&CSVParser{}).Parse(context.Background(), path); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestCSVParser_MissingFile(t *testing.T) {
	if _, err := (&CSVParser{}).Parse(context.Background(), filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExcelRoundTrip(t *testing.T) {
	header := []string{"election", "Election Year", "vote_1"}
	data := [][]string{
		{"General", "2024", "1200"},
		{"", "", ""},
		{"By-election", "2024", "300"},
	}

	var buf bytes.Buffer
	if err := WriteExcel(&buf, "results", header, data); err != nil {
		t.Fatalf("WriteExcel: %v", err)
	}
	path := writeTemp(t, "results.xlsx", buf.Bytes())

	parser, err := ForPath(path)
	if err != nil {
		t.Fatalf("ForPath: %v", err)
	}
	rows, err := parser.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if got := rows[1].Get("election"); got != "By-election" {
		t.Errorf("election = %q, want %q", got, "By-election")
	}
	if got := rows[0].Get("election_year"); got != "2024" {
		t.Errorf("election_year = %q, want %q", got, "2024")
	}
	if rows[1].Number != 2 {
		t.Errorf("Number = %d, want 2", rows[1].Number)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, []string{"a", "b"}, [][]string{{"1", "x,y"}}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "a,b\n1,\"x,y\"\n"
	if buf.String() != want {
		t.Errorf("WriteCSV = %q, want %q", buf.String(), want)
	}
}

func TestForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{path: "/tmp/a.csv", want: "*tabular.CSVParser"},
		{path: "/tmp/a.CSV", want: "*tabular.CSVParser"},
		{path: "/tmp/a.xlsx", want: "*tabular.ExcelParser"},
		{path: "/tmp/a.txt", wantErr: true},
		{path: "/tmp/a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, err := ForPath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s", tt.path)
				}
				return
			}
			if err != nil {
				t.Fatalf("ForPath: %v", err)
			}
			switch p.(type) {
			case *CSVParser:
				if tt.want != "*tabular.CSVParser" {
					t.Errorf("got CSVParser, want %s", tt.want)
				}
			case *ExcelParser:
				if tt.want != "*tabular.ExcelParser" {
					t.Errorf("got ExcelParser, want %s", tt.want)
				}
			}
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"Election Year":       "election_year",
		"  total_voters ":     "total_voters",
		"participant-1-name":  "participant_1_name",
		"\ufeffelection":      "election",
		"Turnout  Percentage": "turnout_percentage",
	}
	for in, want := range tests {
		if got := NormalizeHeader(in); got != want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"csv", "CSV", " excel", "xlsx"} {
		if _, ok := ParseFormat(in); !ok {
			t.Errorf("ParseFormat(%q) rejected", in)
		}
	}
	if _, ok := ParseFormat("pdf"); ok {
		t.Error("ParseFormat(pdf) accepted")
	}
	if !strings.HasSuffix(Extension(FormatExcel), "xlsx") {
		t.Errorf("Extension(excel) = %q", Extension(FormatExcel))
	}
}

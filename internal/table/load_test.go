package table

import (
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestLoad_CSV(t *testing.T) {
	data := []byte("ID,Name,Email\r\n1,John,john@example.com\r\n2,Jane,jane@site.org\r\n")

	got, err := Load(data, "uploads/sample.CSV")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got.Name != "sample.CSV" {
		t.Errorf("Name = %q, want %q", got.Name, "sample.CSV")
	}
	if got.Ext != ".csv" {
		t.Errorf("Ext = %q, want %q", got.Ext, ".csv")
	}
	if got.Format != FormatDelimited {
		t.Errorf("Format = %q, want %q", got.Format, FormatDelimited)
	}
	if got.Delimiter != "," {
		t.Errorf("Delimiter = %q, want %q", got.Delimiter, ",")
	}
	if got.Table.Width() != 3 || got.Table.Len() != 2 {
		t.Fatalf("table = %d cols, %d rows; want 3, 2", got.Table.Width(), got.Table.Len())
	}
	if got.Table.Rows[1][2] != "jane@site.org" {
		t.Errorf("Rows[1][2] = %q", got.Table.Rows[1][2])
	}
}

func TestLoad_Unsupported(t *testing.T) {
	tests := []struct {
		filename string
		wantExt  string
	}{
		{"report.pdf", ".pdf"},
		{"archive.tar.gz", ".gz"},
		{"noextension", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			_, err := Load([]byte("x"), tt.filename)
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Fatalf("Load(%q) error = %v, want ErrUnsupportedFormat", tt.filename, err)
			}
			var ufe *UnsupportedFormatError
			if !errors.As(err, &ufe) {
				t.Fatalf("error is not *UnsupportedFormatError: %T", err)
			}
			if ufe.Ext != tt.wantExt {
				t.Errorf("Ext = %q, want %q", ufe.Ext, tt.wantExt)
			}
		})
	}
}

func TestLoad_Spreadsheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	cells := map[string]any{
		"A1": "Name", "B1": "Name", "C1": "Phone",
		"A2": "Ann", "B2": "Lee", "C2": 412345678,
		"A3": "Bob", "B3": "Ray",
		"A5": "Cy", "B5": "Dee", "C5": "0298765432", "D5": "extra",
	}
	for cell, v := range cells {
		if err := f.SetCellValue("Sheet1", cell, v); err != nil {
			t.Fatalf("SetCellValue(%s) error = %v", cell, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	got, err := Load(buf.Bytes(), "book.xlsx")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	wantCols := []string{"Name", "Name_2", "Phone", "Extra_1"}
	if !equalStrings(got.Table.Columns, wantCols) {
		t.Fatalf("Columns = %v, want %v", got.Table.Columns, wantCols)
	}
	// Row 4 is blank in the sheet and is dropped.
	if got.Table.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", got.Table.Len())
	}
	if got.Table.Rows[0][2] != "412345678" {
		t.Errorf("numeric cell = %q, want text %q", got.Table.Rows[0][2], "412345678")
	}
	if got.Table.Rows[1][2] != "" {
		t.Errorf("missing cell = %q, want empty", got.Table.Rows[1][2])
	}
	if got.Sheet != "Sheet1" {
		t.Errorf("Sheet = %q, want Sheet1", got.Sheet)
	}
}

func TestLoad_CorruptSpreadsheet(t *testing.T) {
	_, err := Load([]byte("definitely not a zip"), "broken.xlsx")
	if err == nil {
		t.Fatal("Load() expected error for corrupt workbook")
	}
	if errors.Is(err, ErrUnsupportedFormat) {
		t.Error("corrupt workbook should not report unsupported format")
	}
}

func TestLoad_SpreadsheetMergedCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	for cell, v := range map[string]string{"A1": "Region", "C1": "Total", "A2": "North", "C2": "10", "C3": "12"} {
		if err := f.SetCellValue("Sheet1", cell, v); err != nil {
			t.Fatalf("SetCellValue(%s) error = %v", cell, err)
		}
	}
	if err := f.MergeCell("Sheet1", "A1", "B1"); err != nil {
		t.Fatalf("MergeCell() error = %v", err)
	}
	if err := f.MergeCell("Sheet1", "A2", "A3"); err != nil {
		t.Fatalf("MergeCell() error = %v", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	got, err := Load(buf.Bytes(), "merged.xlsx")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	wantCols := []string{"Region", "Region_2", "Total"}
	if !equalStrings(got.Table.Columns, wantCols) {
		t.Fatalf("Columns = %v, want %v", got.Table.Columns, wantCols)
	}
	wantRows := [][]string{
		{"North", "", "10"},
		{"North", "", "12"},
	}
	if !got.Table.Equal(Table{Columns: wantCols, Rows: wantRows}) {
		t.Errorf("Rows = %v, want %v", got.Table.Rows, wantRows)
	}
}

func TestLoad_SpreadsheetMergeBeyondHeader(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	for cell, v := range map[string]string{"A1": "Name", "B1": "City", "A2": "Ann", "B2": "Oslo", "C2": "note", "A3": "Bob"} {
		if err := f.SetCellValue("Sheet1", cell, v); err != nil {
			t.Fatalf("SetCellValue(%s) error = %v", cell, err)
		}
	}
	if err := f.MergeCell("Sheet1", "C2", "D2"); err != nil {
		t.Fatalf("MergeCell() error = %v", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	got, err := Load(buf.Bytes(), "wide.xlsx")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// The header is not widened to the merged block, so the extra data
	// columns are named as extras rather than unnamed header cells.
	wantCols := []string{"Name", "City", "Extra_1", "Extra_2"}
	if !equalStrings(got.Table.Columns, wantCols) {
		t.Fatalf("Columns = %v, want %v", got.Table.Columns, wantCols)
	}
	wantRows := [][]string{
		{"Ann", "Oslo", "note", "note"},
		{"Bob", "", "", ""},
	}
	if !got.Table.Equal(Table{Columns: wantCols, Rows: wantRows}) {
		t.Errorf("Rows = %v, want %v", got.Table.Rows, wantRows)
	}
}

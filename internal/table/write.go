package table

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes t as delimited text: the header, then every row.
// A zero delim writes commas.
func WriteCSV(w io.Writer, t Table, delim rune) error {
	cw := csv.NewWriter(w)
	if delim != 0 {
		cw.Comma = delim
	}

	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

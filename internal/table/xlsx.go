package table

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readWorkbook returns the cell grid of the first sheet that has any content,
// with every cell as displayed text. Merged ranges repeat their value in every
// covered cell, trailing blank cells and blank rows are dropped, and
// FromRecords squares the rows so the result matches the text path.
func readWorkbook(data []byte) ([][]string, string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		grid, err := sheetGrid(f, sheet)
		if err != nil {
			return nil, "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(grid) > 0 {
			return grid, sheet, nil
		}
	}
	return nil, "", nil
}

func sheetGrid(f *excelize.File, sheet string) ([][]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}

	merges, err := mergedRanges(f, sheet)
	if err != nil {
		return nil, err
	}

	// Rows are only widened as far as a merged block reaches. The header
	// keeps its own width so FromRecords can name wider data columns Extra_N.
	for _, m := range merges {
		for len(rows) < m.row1 {
			rows = append(rows, nil)
		}
		for r := m.row0; r < m.row1; r++ {
			if len(rows[r]) < m.col1 {
				rows[r] = fitRow(rows[r], m.col1)
			}
			for c := m.col0; c < m.col1; c++ {
				rows[r][c] = m.value
			}
		}
	}
	for i, row := range rows {
		rows[i] = trimTrailingEmpty(row)
	}

	grid := make([][]string, 0, len(rows))
	for _, row := range rows {
		if isEmptyRow(row) {
			continue
		}
		grid = append(grid, row)
	}
	return grid, nil
}

// trimTrailingEmpty drops blank cells at the end of row.
func trimTrailingEmpty(row []string) []string {
	n := len(row)
	for n > 0 && row[n-1] == "" {
		n--
	}
	return row[:n]
}

// mergedRange is a zero-based, end-exclusive merged block.
type mergedRange struct {
	row0, col0, row1, col1 int
	value                  string
}

func mergedRanges(f *excelize.File, sheet string) ([]mergedRange, error) {
	cells, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, err
	}

	out := make([]mergedRange, 0, len(cells))
	for _, mc := range cells {
		c0, r0, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			return nil, err
		}
		c1, r1, err := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err != nil {
			return nil, err
		}
		out = append(out, mergedRange{
			row0: r0 - 1, col0: c0 - 1,
			row1: r1, col1: c1,
			value: mc.GetCellValue(),
		})
	}
	return out, nil
}

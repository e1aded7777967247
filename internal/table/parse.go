package table

// parse.go turns normalized text into a Table.
//
// The input is whatever a user exported from a spreadsheet, database or script,
// so the parser sniffs the delimiter instead of assuming one and repairs the
// header instead of rejecting the file:
//
//   - data rows wider than the header add Extra_N columns
//   - blank header cells become Unnamed_<position>
//   - duplicate names get _2, _3, ... suffixes
//   - short rows are padded with "" and long rows truncated

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DelimiterCandidates lists the separators considered by DetectDelimiter.
// Order matters: it breaks ties.
var DelimiterCandidates = []rune{',', ';', '\t', '|'}

// SniffLines is how many leading lines DetectDelimiter looks at.
var SniffLines = 50

// DetectDelimiter picks the candidate that occurs most often across the first
// SniffLines lines. Counting ignores quoting; it only needs to find the
// dominant structural character. Returns ',' when no candidate occurs.
func DetectDelimiter(text string) rune {
	lines := strings.SplitN(text, "\n", SniffLines+1)
	if len(lines) > SniffLines {
		lines = lines[:SniffLines]
	}

	best, bestCount := ',', 0
	for _, d := range DelimiterCandidates {
		count := 0
		for _, line := range lines {
			count += strings.Count(line, string(d))
		}
		if count > bestCount {
			best, bestCount = d, count
		}
	}
	return best
}

// Parse detects the delimiter of text and builds a repaired Table.
// Empty input yields a table with no columns and no rows.
func Parse(text string) Table {
	return ParseWith(text, DetectDelimiter(text))
}

// ParseWith builds a Table using the given delimiter.
func ParseWith(text string, delim rune) Table {
	return FromRecords(readRecords(text, delim))
}

// readRecords tokenizes text with quote-aware CSV rules. Quoted fields may hold
// the delimiter or newlines; stray quotes are tolerated and records may have
// any number of fields. Blank lines are skipped.
func readRecords(text string, delim rune) [][]string {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				// The reader resumes at the next record after a parse error.
				continue
			}
			break
		}
		records = append(records, rec)
	}
	return records
}

// FromRecords treats the first record as the header and the rest as data,
// then repairs the header and squares every row to the header width.
func FromRecords(records [][]string) Table {
	if len(records) == 0 {
		return Table{Columns: []string{}, Rows: [][]string{}}
	}

	header, data := records[0], records[1:]

	width := len(header)
	for _, row := range data {
		if len(row) > width {
			width = len(row)
		}
	}

	columns := RepairHeader(header, width)

	rows := make([][]string, len(data))
	for i, row := range data {
		rows[i] = fitRow(row, width)
	}

	return Table{Columns: columns, Rows: rows}
}

// RepairHeader extends header to width with Extra_N names, trims every name,
// names blank cells Unnamed_<1-based position> and suffixes duplicates so that
// the first occurrence keeps the bare name and later ones become name_2,
// name_3, and so on. The result is always unique.
func RepairHeader(header []string, width int) []string {
	names := make([]string, 0, max(width, len(header)))
	names = append(names, header...)
	for i := 1; len(names) < width; i++ {
		names = append(names, fmt.Sprintf("Extra_%d", i))
	}

	occurrences := make(map[string]int, len(names))
	used := make(map[string]bool, len(names))

	for i, raw := range names {
		base := strings.TrimSpace(raw)
		if base == "" {
			base = fmt.Sprintf("Unnamed_%d", i+1)
		}

		n := occurrences[base] + 1
		occurrences[base] = n

		name := base
		if n > 1 {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		// A suffixed name can collide with a literal header further along
		// (e.g. "A", "A", "A_2"); keep counting until it is free.
		for used[name] {
			n++
			name = fmt.Sprintf("%s_%d", base, n)
		}

		used[name] = true
		names[i] = name
	}

	return names
}

// fitRow pads row with empty cells or truncates it to exactly width cells.
func fitRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

// isEmptyRow reports whether every cell is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Package table loads uploaded files into rectangular text tables.
//
// Every file, whatever its encoding, delimiter or spreadsheet format, ends up
// as a [Table]: an ordered list of unique column names and rows of string
// cells aligned with them. Nothing is typed at ingestion time; numbers and
// dates stay text until a transformation decides otherwise.
package table

// Table is a rectangular grid of text cells.
//
// Invariants: every row has exactly len(Columns) cells and no column name
// repeats. Transformations never mutate a Table in place; they return a new
// value built from [Table.Clone].
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Width returns the number of columns.
func (t Table) Width() int {
	return len(t.Columns)
}

// Len returns the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Equal reports whether both tables have the same columns and cells.
// A nil slice and an empty slice compare equal.
func (t Table) Equal(o Table) bool {
	if !equalStrings(t.Columns, o.Columns) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Rows {
		if !equalStrings(t.Rows[i], o.Rows[i]) {
			return false
		}
	}
	return true
}

// Head returns a table sharing the first n rows of t.
// Used for previews; callers must not mutate the result.
func (t Table) Head(n int) Table {
	if n < 0 || n >= len(t.Rows) {
		return t
	}
	return Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

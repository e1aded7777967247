package transform

import (
	"fmt"

	"github.com/JonMunkholm/tablefix/internal/table"
)

// ApplyChain applies plans one after another, each step reading the previous
// step's output. Stats compare the final table with t, so a cell rewritten by
// several steps counts once and a cell restored to its original value does
// not count.
func ApplyChain(t table.Table, plans []CandidatePlan, columns []string, opts ...Option) (table.Table, ChangeStats, error) {
	o := buildOptions(opts)
	targets := TargetColumns(t, columns)
	if len(targets) == 0 {
		return t, ChangeStats{TargetColumns: []string{}}, nil
	}

	cur := t
	for i, p := range plans {
		tmpl, ok := p.Template()
		if !ok {
			return t, ChangeStats{}, fmt.Errorf("step %d: %w", i, ErrMissingTemplate)
		}
		m, err := Compile(p.Pattern, p.Flags, WithMatchTimeout(o.matchTimeout))
		if err != nil {
			return t, ChangeStats{}, fmt.Errorf("step %d: %w", i, err)
		}
		cur, _ = Apply(cur, m, p.Intent, tmpl, targets)
	}

	return cur, Diff(t, cur, targets), nil
}

// Diff counts cells and rows of the named columns that differ between before
// and after. Both tables must share a shape.
func Diff(before, after table.Table, columns []string) ChangeStats {
	stats := ChangeStats{TargetColumns: columns}
	idx := make([]int, 0, len(columns))
	for _, name := range columns {
		if c := before.ColumnIndex(name); c >= 0 {
			idx = append(idx, c)
		}
	}
	for r := range before.Rows {
		if r >= len(after.Rows) {
			break
		}
		changed := false
		for _, c := range idx {
			if before.Rows[r][c] != after.Rows[r][c] {
				stats.UpdatedCells++
				changed = true
			}
		}
		if changed {
			stats.UpdatedRows++
		}
	}
	return stats
}

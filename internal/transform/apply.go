package transform

import (
	"github.com/JonMunkholm/tablefix/internal/table"
)

// ChangeStats summarizes the effect of one candidate on a table.
type ChangeStats struct {
	UpdatedCells  int      `json:"updated_cells"`
	UpdatedRows   int      `json:"updated_rows"`
	TargetColumns []string `json:"target_columns"`
}

// TargetColumns reconciles the requested columns against t. An empty request
// selects every column. Names not present in t are dropped, duplicates
// collapse to their first occurrence, and the request order is kept.
func TargetColumns(t table.Table, requested []string) []string {
	if len(requested) == 0 {
		return append([]string{}, t.Columns...)
	}

	out := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, name := range requested {
		if seen[name] || t.ColumnIndex(name) < 0 {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Apply runs m over the target columns of t using tmpl, a $N-style template,
// and returns the new table with its change counts. t is never modified.
//
// Only replace, mask and normalize rewrite cells; the other intents return an
// unchanged copy. A cell counts as updated when its text differs after
// substitution, and a row when any of its target cells did. A cell whose
// substitution fails or times out keeps its original value.
//
// When no requested column exists in t, t itself is returned with zero
// counts and an empty target list.
func Apply(t table.Table, m *Matcher, intent Intent, tmpl string, columns []string) (table.Table, ChangeStats) {
	out, stats, _ := apply(t, m, intent, tmpl, columns)
	return out, stats
}

// apply is Apply that also reports how many cells fell back after a failed
// substitution.
func apply(t table.Table, m *Matcher, intent Intent, tmpl string, columns []string) (table.Table, ChangeStats, int) {
	targets := TargetColumns(t, columns)
	if len(targets) == 0 {
		return t, ChangeStats{TargetColumns: []string{}}, 0
	}

	out := t.Clone()
	stats := ChangeStats{TargetColumns: targets}
	if !intent.Substitutes() {
		return out, stats, 0
	}

	idx := make([]int, len(targets))
	for i, name := range targets {
		idx[i] = t.ColumnIndex(name)
	}

	native := TranslateTemplate(tmpl)
	failures := 0

	for r, row := range out.Rows {
		rowChanged := false
		for _, c := range idx {
			before := row[c]
			after, err := m.Replace(before, native)
			if err != nil {
				failures++
				continue
			}
			if after != before {
				out.Rows[r][c] = after
				stats.UpdatedCells++
				rowChanged = true
			}
		}
		if rowChanged {
			stats.UpdatedRows++
		}
	}

	return out, stats, failures
}

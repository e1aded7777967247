package transform

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/tablefix/internal/table"
)

// Diagnostic describes one candidate that compiled and was applied.
type Diagnostic struct {
	Index       int         `json:"index"`
	Intent      Intent      `json:"intent"`
	Pattern     string      `json:"pattern"`
	Flags       []string    `json:"flags"`
	Replacement *string     `json:"replacement,omitempty"`
	Format      *string     `json:"format,omitempty"`
	Explanation string      `json:"explanation,omitempty"`
	Score       float64     `json:"score"`
	Stats       ChangeStats `json:"stats"`
	Timeouts    int         `json:"timeouts,omitempty"`
	Selected    bool        `json:"selected"`
}

// Skip records a candidate that was left out before being applied.
type Skip struct {
	Index   int    `json:"index"`
	Pattern string `json:"pattern"`
	Reason  string `json:"reason"`
	Err     error  `json:"-"`
}

// Result is the outcome of EvaluateAndSelect.
type Result struct {
	Table       table.Table   `json:"-"`
	Index       int           `json:"index"`
	Plan        CandidatePlan `json:"plan"`
	Stats       ChangeStats   `json:"stats"`
	Score       float64       `json:"score"`
	Diagnostics []Diagnostic  `json:"diagnostics"`
	Skipped     []Skip        `json:"skipped"`
}

// outcome is the per-candidate slot filled by a worker.
type outcome struct {
	skip     *Skip
	scored   ScoredCandidate
	timeouts int
}

// EvaluateAndSelect compiles and applies every plan to t over the requested
// columns, then selects the best result.
//
// Candidates are independent: each sees the original t. Diagnostics list
// every candidate that compiled and applied, and Skipped every one that did
// not, both in input order regardless of concurrency. When no candidate
// changed a cell the error is a *NoViableCandidateError carrying the same
// diagnostics.
func EvaluateAndSelect(ctx context.Context, t table.Table, plans []CandidatePlan, columns []string, opts ...Option) (*Result, error) {
	o := buildOptions(opts)
	log := o.logger

	outcomes := make([]outcome, len(plans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, plan := range plans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = evaluateOne(i, plan, t, columns, o)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluate candidates: %w", err)
	}

	res := &Result{
		Diagnostics: make([]Diagnostic, 0, len(plans)),
		Skipped:     make([]Skip, 0),
	}
	scored := make([]ScoredCandidate, 0, len(plans))

	for _, oc := range outcomes {
		if oc.skip != nil {
			log.Info("candidate skipped",
				"index", oc.skip.Index,
				"pattern", oc.skip.Pattern,
				"reason", oc.skip.Reason,
			)
			res.Skipped = append(res.Skipped, *oc.skip)
			continue
		}
		if oc.timeouts > 0 {
			log.Warn("candidate substitution timed out on some cells",
				"index", oc.scored.Index,
				"pattern", oc.scored.Plan.Pattern,
				"cells", oc.timeouts,
			)
		}
		scored = append(scored, oc.scored)
		res.Diagnostics = append(res.Diagnostics, diagnostic(oc))
	}

	best, err := Select(scored)
	if err != nil {
		nv := &NoViableCandidateError{
			Total:       len(plans),
			Compiled:    len(scored),
			Skipped:     len(res.Skipped),
			Diagnostics: res.Diagnostics,
			Skips:       res.Skipped,
		}
		log.Warn("no viable candidate",
			"total", nv.Total,
			"compiled", nv.Compiled,
			"skipped", nv.Skipped,
		)
		return nil, nv
	}

	for i := range res.Diagnostics {
		if res.Diagnostics[i].Index == best.Index {
			res.Diagnostics[i].Selected = true
		}
	}

	res.Table = best.Table
	res.Index = best.Index
	res.Plan = best.Plan
	res.Stats = best.Stats
	res.Score = best.Score

	log.Info("candidate selected",
		"index", best.Index,
		"pattern", best.Plan.Pattern,
		"score", best.Score,
		"updated_cells", best.Stats.UpdatedCells,
		"updated_rows", best.Stats.UpdatedRows,
		"candidates", len(plans),
	)

	return res, nil
}

func evaluateOne(i int, plan CandidatePlan, t table.Table, columns []string, o options) outcome {
	tmpl, ok := plan.Template()
	if !ok {
		return outcome{skip: &Skip{
			Index:   i,
			Pattern: plan.Pattern,
			Reason:  fmt.Sprintf("intent %q requires a template", plan.Intent),
			Err:     ErrMissingTemplate,
		}}
	}

	m, err := Compile(plan.Pattern, plan.Flags, WithMatchTimeout(o.matchTimeout))
	if err != nil {
		reason := err.Error()
		var ipe *InvalidPatternError
		if errors.As(err, &ipe) {
			reason = ipe.Err.Error()
		}
		return outcome{skip: &Skip{Index: i, Pattern: plan.Pattern, Reason: reason, Err: err}}
	}

	out, stats, failures := apply(t, m, plan.Intent, tmpl, columns)
	return outcome{
		scored: ScoredCandidate{
			Index: i,
			Plan:  plan,
			Table: out,
			Stats: stats,
			Score: Score(stats, t.Len()),
		},
		timeouts: failures,
	}
}

func diagnostic(oc outcome) Diagnostic {
	p := oc.scored.Plan
	flags := p.Flags
	if flags == nil {
		flags = []string{}
	}
	return Diagnostic{
		Index:       oc.scored.Index,
		Intent:      p.Intent,
		Pattern:     p.Pattern,
		Flags:       flags,
		Replacement: p.Replacement,
		Format:      p.Format,
		Explanation: p.Explanation,
		Score:       oc.scored.Score,
		Stats:       oc.scored.Stats,
		Timeouts:    oc.timeouts,
	}
}

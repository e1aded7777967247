package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tablefix/internal/application"
	"github.com/JonMunkholm/tablefix/internal/planner"
	"github.com/JonMunkholm/tablefix/internal/table"
	"github.com/JonMunkholm/tablefix/internal/transform"
)

var applyCmd = &cobra.Command{
	Use:   "apply <file>",
	Short: "Evaluate candidate patterns against a file and write the best result as CSV",
	Long: `apply reads candidates from --plan (a planner answer or a JSON list of
candidates) or asks the configured planner with --instruction. Every candidate
runs against the original table; the best one is kept and written to --out.
Diagnostics for all candidates go to stderr.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		planPath, _ := cmd.Flags().GetString("plan")
		instruction, _ := cmd.Flags().GetString("instruction")
		columns, _ := cmd.Flags().GetStringSlice("columns")
		out, _ := cmd.Flags().GetString("out")
		delim, _ := cmd.Flags().GetString("delimiter")
		phone, _ := cmd.Flags().GetBool("phone")
		dates, _ := cmd.Flags().GetBool("dates")

		if (planPath == "") == (instruction == "") {
			return errors.New("specify exactly one of --plan or --instruction")
		}
		comma, err := outputDelimiter(delim)
		if err != nil {
			return err
		}

		loaded, err := readTable(args[0])
		if err != nil {
			return err
		}

		var plans []transform.CandidatePlan
		var planColumns []string
		if planPath != "" {
			data, err := os.ReadFile(planPath)
			if err != nil {
				return fmt.Errorf("read plan: %w", err)
			}
			plans, planColumns, err = decodePlans(data)
			if err != nil {
				return err
			}
		} else {
			p := application.NewPlanner(cfg.Planner)
			plan, err := p.Plan(cmd.Context(), planner.Request{
				Instruction: instruction,
				Columns:     loaded.Table.Columns,
			})
			if err != nil {
				return err
			}
			plans, planColumns, err = planCandidates(plan)
			if err != nil {
				return err
			}
		}
		if len(columns) == 0 {
			columns = planColumns
		}

		res, err := transform.EvaluateAndSelect(cmd.Context(), loaded.Table, plans, columns,
			transform.WithMatchTimeout(cfg.Transform.MatchTimeout),
			transform.WithConcurrency(cfg.Transform.Concurrency),
			transform.WithLogger(slog.Default()),
		)
		if err != nil {
			var nv *transform.NoViableCandidateError
			if errors.As(err, &nv) {
				printDiagnostics(cmd.ErrOrStderr(), nv.Diagnostics, nv.Skips)
			}
			return err
		}
		printDiagnostics(cmd.ErrOrStderr(), res.Diagnostics, res.Skipped)

		result := res.Table
		if builtins := builtinPlans(phone, dates); len(builtins) > 0 {
			var stats transform.ChangeStats
			result, stats, err = transform.ApplyChain(result, builtins, res.Stats.TargetColumns,
				transform.WithMatchTimeout(cfg.Transform.MatchTimeout))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "normalizers: %d cells in %d rows\n", stats.UpdatedCells, stats.UpdatedRows)
		}

		w := cmd.OutOrStdout()
		if out != "" && out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer f.Close()
			w = f
		}
		if err := table.WriteCSV(w, result, comma); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().String("plan", "", "JSON file with a planner answer or a list of candidates")
	applyCmd.Flags().String("instruction", "", "plain-English instruction for the planner")
	applyCmd.Flags().StringSlice("columns", nil, "columns to transform (default: the plan's columns, else all)")
	applyCmd.Flags().StringP("out", "o", "-", "output CSV path, - for stdout")
	applyCmd.Flags().String("delimiter", ",", "output field delimiter")
	applyCmd.Flags().Bool("phone", false, "normalize Australian phone numbers after the transform")
	applyCmd.Flags().Bool("dates", false, "normalize day-first dates to YYYY-MM-DD after the transform")
}

// decodePlans accepts either a planner answer object or a bare list of
// candidates. List entries without an intent default to replace.
func decodePlans(data []byte) ([]transform.CandidatePlan, []string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var plans []transform.CandidatePlan
		if err := json.Unmarshal(trimmed, &plans); err != nil {
			return nil, nil, fmt.Errorf("decode candidates: %w", err)
		}
		for i := range plans {
			if plans[i].Intent == "" {
				plans[i].Intent = transform.IntentReplace
			}
		}
		return plans, nil, nil
	}

	var plan planner.Plan
	if err := json.Unmarshal(trimmed, &plan); err != nil {
		return nil, nil, fmt.Errorf("decode plan: %w", err)
	}
	return planCandidates(&plan)
}

func planCandidates(plan *planner.Plan) ([]transform.CandidatePlan, []string, error) {
	if !plan.IsTableOp {
		return nil, nil, fmt.Errorf("%w: %s", planner.ErrNotTableOperation, plan.Reason)
	}
	if err := plan.Validate(); err != nil {
		return nil, nil, err
	}
	return plan.CandidatePlans(), plan.Columns, nil
}

func builtinPlans(phone, dates bool) []transform.CandidatePlan {
	var out []transform.CandidatePlan
	if phone {
		out = append(out, planner.AUPhoneCandidate())
	}
	if dates {
		out = append(out, planner.ISODateCandidates()...)
	}
	return out
}

// outputDelimiter accepts a single character or the names tab and pipe.
func outputDelimiter(s string) (rune, error) {
	switch s {
	case "tab", `\t`:
		return '\t', nil
	case "pipe":
		return '|', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

func printDiagnostics(w io.Writer, diags []transform.Diagnostic, skipped []transform.Skip) {
	for _, d := range diags {
		mark := " "
		if d.Selected {
			mark = "*"
		}
		fmt.Fprintf(w, "%s #%d %-9s score=%.3f cells=%d rows=%d  %s\n",
			mark, d.Index, d.Intent, d.Score, d.Stats.UpdatedCells, d.Stats.UpdatedRows, d.Pattern)
		if d.Timeouts > 0 {
			fmt.Fprintf(w, "     %d cells timed out\n", d.Timeouts)
		}
	}
	for _, s := range skipped {
		fmt.Fprintf(w, "  #%d skipped: %s  %s\n", s.Index, s.Reason, s.Pattern)
	}
}

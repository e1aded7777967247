package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tablefix/internal/application"
	"github.com/JonMunkholm/tablefix/internal/planner"
)

var planCmd = &cobra.Command{
	Use:   "plan <instruction>",
	Short: "Ask the configured planner for candidate patterns and print them as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		columns, _ := cmd.Flags().GetStringSlice("columns")

		p := application.NewPlanner(cfg.Planner)
		plan, err := p.Plan(cmd.Context(), planner.Request{
			Instruction: strings.Join(args, " "),
			Columns:     columns,
		})
		if err != nil {
			return err
		}
		return writeIndented(cmd.OutOrStdout(), plan)
	},
}

func init() {
	planCmd.Flags().StringSlice("columns", nil, "column names shown to the planner")
}

func writeIndented(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

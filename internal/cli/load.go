package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tablefix/internal/table"
)

var loadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Decode a file and show its columns and first rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, _ := cmd.Flags().GetInt("rows")

		loaded, err := readTable(args[0])
		if err != nil {
			return err
		}
		printLoaded(cmd.OutOrStdout(), loaded, rows)
		return nil
	},
}

func init() {
	loadCmd.Flags().Int("rows", 10, "number of rows to show")
}

// readTable reads and decodes the file at path.
func readTable(path string) (*table.Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	loaded, err := table.Load(data, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return loaded, nil
}

func printLoaded(w io.Writer, l *table.Loaded, rows int) {
	fmt.Fprintf(w, "File:      %s\n", l.Name)
	fmt.Fprintf(w, "Format:    %s\n", l.Format)
	if l.Encoding != "" {
		lossy := ""
		if l.Lossy {
			lossy = " (lossy)"
		}
		fmt.Fprintf(w, "Encoding:  %s%s\n", l.Encoding, lossy)
	}
	if l.Delimiter != "" {
		fmt.Fprintf(w, "Delimiter: %q\n", l.Delimiter)
	}
	if l.Sheet != "" {
		fmt.Fprintf(w, "Sheet:     %s\n", l.Sheet)
	}
	fmt.Fprintf(w, "Size:      %d columns, %d rows\n\n", l.Table.Width(), l.Table.Len())
	printTable(w, l.Table, rows)
}

// printTable writes the header and up to rows rows as aligned columns.
func printTable(w io.Writer, t table.Table, rows int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
	head := t.Head(rows)
	for _, row := range head.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.ReplaceAll(c, "\n", `\n`)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
	if more := t.Len() - head.Len(); more > 0 {
		fmt.Fprintf(w, "... %d more rows\n", more)
	}
}

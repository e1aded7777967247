// Package cli implements the tablefix command line.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tablefix/internal/config"
	"github.com/JonMunkholm/tablefix/internal/logging"
)

var (
	cfg     *config.Config
	rootCmd = &cobra.Command{
		Use:   "tablefix",
		Short: "Clean tabular files with regex transformations planned from plain English",
		Long: `tablefix loads CSV, TSV and Excel files, turns an instruction such as
"mask every email address" into candidate regular expressions, applies each
candidate to the selected columns and keeps the one that changed the most
cells without rewriting everything.

Inspect a file:
  tablefix load contacts.csv

Clean it:
  tablefix apply contacts.csv --instruction "remove phone numbers" --out clean.csv

Run the web UI and JSON API:
  tablefix serve`,
		SilenceUsage: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	// .env values override the process environment, as the server does.
	_ = godotenv.Overload()

	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
}

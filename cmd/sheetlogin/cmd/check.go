package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load the table once and report its shape",
	Long: `Load the table from the configured source, validate the login columns and
print a summary. Exits non-zero when the source cannot be read.

Examples:
  # Check the configured sheet
  sheetlogin check

  # Check a CSV file before pointing the server at it
  sheetlogin check --source ./students.csv`,
	RunE: runCheck,
}

var checkSource string

func init() {
	checkCmd.Flags().StringVar(&checkSource, "source", "", "Override source.location (sheet URL, CSV URL or CSV file)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false, checkSource)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	source, err := newSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create %s source: %w", cfg.Source.Type, err)
	}
	loader := newLoader(cfg, source, logger)

	t, err := loader.Table(ctx)
	if err != nil {
		return fmt.Errorf("table check failed: %w", err)
	}
	st := loader.Status()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Source:       %s (%s)\n", st.Source, cfg.Source.Location)
	fmt.Fprintf(out, "Rows:         %d\n", st.Rows)
	fmt.Fprintf(out, "Columns:      %s\n", strings.Join(t.Columns(), ", "))
	fmt.Fprintf(out, "Fingerprint:  %s\n", st.Fingerprint)
	if dup := t.DuplicateKeys(cfg.Table.IDColumn, cfg.Table.NameColumn); dup > 0 {
		fmt.Fprintf(out, "Duplicates:   %d rows share an ID and name with an earlier row (the first one is used)\n", dup)
	}
	fmt.Fprintln(out, "OK")
	return nil
}

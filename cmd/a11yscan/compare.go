package main

import (
	"context"
	"fmt"

	"github.com/nao1215/a11yscan/internal/database"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/report"
	"github.com/spf13/cobra"
)

// NewCompareCmd creates the compare command.
// This command compares two scan sessions stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <previous-scan> <current-scan>",
		Short: "Compare two scan sessions",
		Long: `Compare shows the differences between two scan sessions:
- New issues that appeared since the previous scan
- Resolved issues that are no longer present
- Changes in the number of issues per severity and in the overall score

Issues are matched by page, analyzer, rule and element selector. Only pages
scanned by both sessions are compared.

Examples:
  # Compare two scans (unique id prefixes are enough)
  a11yscan compare 1a2b3c4d 5e6f7a8b

  # Output the comparison in JSON format
  a11yscan compare --json 1a2b3c4d 5e6f7a8b`,
		Args: cobra.ExactArgs(2),
		RunE: runCompareCmd,
	}

	addReportFlags(cmd)
	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	f, err := readReportFormat(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	previous, err := loadScan(ctx, db, args[0])
	if err != nil {
		return err
	}
	current, err := loadScan(ctx, db, args[1])
	if err != nil {
		return err
	}
	if previous.ID == current.ID {
		return fmt.Errorf("cannot compare session %s with itself", previous.ID)
	}

	comparison := report.Compare(previous, current)
	return withReport(f, cmd.OutOrStdout(), func(w report.Writer) error {
		_, err := w.WriteComparison(comparison)
		return err
	})
}

// loadScan loads a scan session by id or unique id prefix.
func loadScan(ctx context.Context, db *database.SessionDB, ref string) (*model.Session, error) {
	id, err := resolveSessionID(ctx, db, ref)
	if err != nil {
		return nil, err
	}
	s, err := db.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s.Kind != model.KindScan {
		return nil, fmt.Errorf("session %s is a %s session, not a scan", id, s.Kind)
	}
	return s, nil
}

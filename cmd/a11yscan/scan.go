package main

import (
	"context"
	"fmt"

	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/report"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Discover a site and audit the selected pages",
		Long: `Scan runs a discovery session on the seed URL and then a scan session
over the selected pages. Each page is checked by every enabled analyzer;
findings are mapped to WCAG success criteria, POUR principles and a
severity.

Analyzers are the built-in htmlcheck plus the command analyzers of the
config file. A failing analyzer is retried with backoff and then skipped;
the scan still completes with the results of the others.

Press Ctrl+C to stop the running session. Interrupted sessions keep their
completed pages in the database.

Examples:
  # Audit a WCAG-EM sample with the built-in checker
  a11yscan scan https://example.com

  # Run axe and pa11y from the config file
  a11yscan scan -a axe,pa11y https://example.com

  # Audit exactly these pages
  a11yscan scan --select https://example.com/,https://example.com/contact https://example.com

  # Write a Markdown report
  a11yscan scan --markdown -o report.md https://example.com

Configuration file (.a11yscan) example:
  adapters:
    - name: axe
      command: axe
      args: ["{url}", "--stdout"]
  sites:
    example.com:
      cookie: "session_id=abc123"`,
		Args: cobra.ExactArgs(1),
		RunE: runScanCmd,
	}

	addDiscoveryFlags(cmd)
	addScanFlags(cmd)
	addReportFlags(cmd)
	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.Strategy == model.StrategyManual && len(cfg.ManualURLs) == 0 {
		return fmt.Errorf("configuration error: the manual strategy needs --select")
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	release := a.stopOnInterrupt()
	defer release()

	d, err := a.discover(ctx)
	if err != nil {
		return err
	}
	s, err := a.scan(ctx, d)
	if err != nil {
		return err
	}

	f := reportFormat{json: cfg.JSONReport, markdown: cfg.MarkdownReport, file: cfg.ReportFile}
	if err := withReport(f, cmd.OutOrStdout(), func(w report.Writer) error {
		_, err := w.WriteScan(report.NewScanSummary(s))
		return err
	}); err != nil {
		return err
	}

	if s.Status == model.StatusFailed {
		return fmt.Errorf("scan %s failed", s.ID)
	}
	return nil
}

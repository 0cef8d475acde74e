package main

import (
	"context"
	"fmt"

	"github.com/nao1215/a11yscan/internal/report"
	"github.com/spf13/cobra"
)

// NewDiscoverCmd creates the discover command.
func NewDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover <url>",
		Short: "Crawl a site and select pages to audit",
		Long: `Discover crawls a web site from the seed URL and prints the discovered
pages, the template groups and the selected sample.

The discovery session is stored in the session database. Pass its id to
"a11yscan sessions" to review it later.

Examples:
  # Discover up to 50 pages and select a WCAG-EM sample
  a11yscan discover https://example.com

  # Prefer pages with a higher risk of barriers
  a11yscan discover --strategy risk_based https://example.com

  # Crawl an authenticated area
  a11yscan discover --cookie "session=abc" -H "X-Tenant: acme" https://example.com/app`,
		Args: cobra.ExactArgs(1),
		RunE: runDiscoverCmd,
	}

	addDiscoveryFlags(cmd)
	addReportFlags(cmd)
	return cmd
}

// runDiscoverCmd executes the discover command.
func runDiscoverCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
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
	if d == nil {
		return err
	}
	f := reportFormat{json: cfg.JSONReport, markdown: cfg.MarkdownReport, file: cfg.ReportFile}
	if werr := withReport(f, cmd.OutOrStdout(), func(w report.Writer) error {
		_, err := w.WriteDiscovery(report.NewDiscoverySummary(d))
		return err
	}); werr != nil {
		return werr
	}
	return err
}

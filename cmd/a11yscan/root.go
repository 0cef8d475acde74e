package main

import (
	"fmt"
	"os"

	"github.com/nao1215/a11yscan/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for a11yscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "a11yscan",
		Short: "Accessibility audit sessions for web sites",
		Long: `a11yscan audits the accessibility of a web site in two sessions.

A discovery session crawls the site from a seed URL, classifies every page,
groups pages that share a template and selects a representative sample.
A scan session runs the enabled analyzers on each sampled page and maps
their findings to WCAG success criteria.

Sessions are stored in a local database so that they can be listed,
compared and resumed after an interruption.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .a11yscan in current or home directory)")
	cmd.PersistentFlags().String("db-dir", config.XDGDataDir(),
		"Directory of the session database")
	cmd.PersistentFlags().Bool("no-db", false,
		"Keep sessions in memory only")
	cmd.PersistentFlags().String("redis-url", "",
		"Also publish progress events to redis (e.g., redis://localhost:6379/0)")

	cmd.AddCommand(NewDiscoverCmd())
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewSessionsCmd())
	cmd.AddCommand(NewResumeCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/a11yscan/internal/config"
	"github.com/nao1215/a11yscan/internal/report"
	"github.com/spf13/cobra"
)

// reportFormat selects a report writer.
type reportFormat struct {
	json     bool
	markdown bool
	file     string
}

// withReport opens the report destination, hands a writer for the chosen
// format to write and closes the destination.
func withReport(f reportFormat, stdout io.Writer, write func(report.Writer) error) error {
	if f.json && f.markdown {
		return config.ErrConflictingReportFormats
	}

	output := stdout
	if f.file != "" {
		dir := filepath.Dir(f.file)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports may include URLs of authenticated areas.
		file, err := os.OpenFile(f.file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		output = file
	}

	switch {
	case f.json:
		return write(report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion())))
	case f.markdown:
		return write(report.NewMarkdownWriter(output))
	default:
		return write(report.NewSimpleWriter(output))
	}
}

// readReportFormat reads the report format flags of cmd.
func readReportFormat(cmd *cobra.Command) (reportFormat, error) {
	var f reportFormat
	var err error
	if f.json, err = cmd.Flags().GetBool("json"); err != nil {
		return f, err
	}
	if f.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return f, err
	}
	if f.file, err = cmd.Flags().GetString("output"); err != nil {
		return f, err
	}
	return f, nil
}

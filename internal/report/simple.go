package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/a11yscan/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
// Plain ASCII formatting keeps the output safe to pipe into files.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether pages without issues are listed.
	showEmpty bool

	// verbose adds issue descriptions and context snippets.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to list pages without issues.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteScan outputs the scan summary in human-readable format.
func (w *SimpleWriter) WriteScan(summary *ScanSummary) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "A11YSCAN SCAN REPORT")
	fmt.Fprintf(&sb, "Session:        %s\n", summary.SessionID)
	if summary.DiscoverySessionID != "" {
		fmt.Fprintf(&sb, "Discovery:      %s\n", summary.DiscoverySessionID)
	}
	if summary.FinishedAt != nil {
		fmt.Fprintf(&sb, "Finished:       %s\n", summary.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(&sb, "Adapters:       %s\n", strings.Join(summary.Adapters, ", "))
	fmt.Fprintf(&sb, "Pages:          %d scanned, %d failed of %d\n", summary.PagesCompleted, summary.PagesFailed, summary.PagesTotal)
	fmt.Fprintf(&sb, "Status:         %s\n", w.statusText(summary))
	fmt.Fprintf(&sb, "Score:          %.1f / 100\n\n", summary.OverallScore)

	w.writeSection(&sb, "SEVERITY SUMMARY")
	for _, sev := range model.AllSeverities {
		fmt.Fprintf(&sb, "  %-9s %d\n", strings.ToUpper(sev.String())+":", summary.IssuesBySeverity.Get(sev))
	}
	fmt.Fprintf(&sb, "\n  %-9s %d issues\n\n", "TOTAL:", summary.TotalIssues())

	if summary.TotalIssues() > 0 {
		w.writeSection(&sb, "WCAG PRINCIPLES")
		for _, p := range principles {
			if n := summary.IssuesByPrinciple[p]; n > 0 {
				fmt.Fprintf(&sb, "  %-15s %d\n", p, n)
			}
		}
		sb.WriteString("\n")
	}

	if summary.TotalIssues() > 0 || w.showEmpty {
		w.writeSection(&sb, "ISSUES BY PAGE")
		for _, page := range summary.Pages {
			w.writePage(&sb, page)
		}
	}

	if len(summary.Failures) > 0 {
		w.writeSection(&sb, "ADAPTER FAILURES")
		for _, f := range summary.Failures {
			fmt.Fprintf(&sb, "  [x] %s on %s after %d attempt(s): %s\n", f.Adapter, f.PageURL, f.Attempts, f.Error)
		}
		sb.WriteString("\n")
	}

	w.writeNotes(&sb, summary.Errors, summary.Warnings)
	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writePage(sb *strings.Builder, page PageSummary) {
	if len(page.Issues) == 0 && !w.showEmpty {
		return
	}
	fmt.Fprintf(sb, "%s  (%s, %s)\n", page.URL, orDash(string(page.Role)), orDash(string(page.Priority)))
	if page.Status == model.TaskError {
		sb.WriteString("  page could not be scanned\n\n")
		return
	}
	if len(page.Issues) == 0 {
		sb.WriteString("  No issues\n\n")
		return
	}
	for _, issue := range page.Issues {
		fmt.Fprintf(sb, "  [%s] %s %s", severityIndicator(issue.Severity), issue.RuleID, criterionText(issue))
		sb.WriteString("\n")
		if issue.Selector != "" {
			fmt.Fprintf(sb, "      Selector: %s\n", issue.Selector)
		}
		if w.verbose {
			if issue.Description != "" {
				fmt.Fprintf(sb, "      %s\n", issue.Description)
			}
			if issue.Context != "" {
				fmt.Fprintf(sb, "      Context: %s\n", truncateString(issue.Context, 100))
			}
		}
	}
	sb.WriteString("\n")
}

// WriteDiscovery outputs the discovery summary in human-readable format.
func (w *SimpleWriter) WriteDiscovery(summary *DiscoverySummary) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "A11YSCAN DISCOVERY REPORT")
	fmt.Fprintf(&sb, "Session:        %s\n", summary.SessionID)
	fmt.Fprintf(&sb, "Seed:           %s\n", summary.SeedURL)
	fmt.Fprintf(&sb, "Status:         %s\n", summary.Status)
	fmt.Fprintf(&sb, "Pages:          %d\n", len(summary.Pages))
	fmt.Fprintf(&sb, "Templates:      %d\n\n", len(summary.Groups))

	w.writeSection(&sb, "PAGES")
	for _, p := range summary.Pages {
		mark := " "
		if p.Selected {
			mark = "*"
		}
		fmt.Fprintf(&sb, " %s %-10s %-14s %-7s %s\n", mark, p.Role, p.Priority, orDash(p.TemplateGroupID), p.URL)
	}
	sb.WriteString("\n")

	if len(summary.Groups) > 0 {
		w.writeSection(&sb, "TEMPLATE GROUPS")
		for _, g := range summary.Groups {
			fmt.Fprintf(&sb, "  %s  %d page(s)  %s\n", g.ID, g.Size(), g.RepresentativeURL)
		}
		sb.WriteString("\n")
	}

	if sel := summary.Selection; sel != nil {
		w.writeSection(&sb, "SELECTION")
		fmt.Fprintf(&sb, "  Strategy:  %s (seed %d, max %d)\n", sel.Strategy, sel.Seed, sel.MaxPages)
		fmt.Fprintf(&sb, "  Roles:     %d/%d (%.1f%%)\n", sel.Coverage.RolesCovered, sel.Coverage.RolesDiscovered, sel.Coverage.RolePercent)
		fmt.Fprintf(&sb, "  Templates: %d/%d (%.1f%%)\n\n", sel.Coverage.GroupsCovered, sel.Coverage.GroupsTotal, sel.Coverage.TemplatePercent)
		for _, r := range sel.Rationale {
			fmt.Fprintf(&sb, "  [+] %s\n      %s\n", r.URL, r.Reason)
		}
		if len(sel.Coverage.UncoveredRoles) > 0 {
			roles := make([]string, len(sel.Coverage.UncoveredRoles))
			for i, r := range sel.Coverage.UncoveredRoles {
				roles[i] = string(r)
			}
			fmt.Fprintf(&sb, "\n  Not covered: %s\n", strings.Join(roles, ", "))
		}
		sb.WriteString("\n")
	}

	w.writeNotes(&sb, summary.Errors, summary.Warnings)
	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// WriteComparison outputs the comparison in human-readable format.
func (w *SimpleWriter) WriteComparison(c *Comparison) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "A11YSCAN SCAN COMPARISON")
	fmt.Fprintf(&sb, "Previous: %s  score %.1f\n", c.Previous.SessionID, c.Previous.OverallScore)
	fmt.Fprintf(&sb, "Current:  %s  score %.1f\n", c.Current.SessionID, c.Current.OverallScore)
	fmt.Fprintf(&sb, "Status:   %s\n\n", strings.ToUpper(c.Direction))

	fmt.Fprintf(&sb, "  %-10s  %-10s  %-10s  %-10s\n", "Severity", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 45) + "\n")
	for _, sev := range model.AllSeverities {
		fmt.Fprintf(&sb, "  %-10s  %-10d  %-10d  %-10s\n", sev,
			c.Previous.IssuesBySeverity.Get(sev), c.Current.IssuesBySeverity.Get(sev),
			formatDelta(c.SeverityDelta[sev.String()]))
	}
	sb.WriteString("\n")

	if len(c.NewIssues) > 0 {
		fmt.Fprintf(&sb, "New Issues (%d):\n", len(c.NewIssues))
		for _, i := range c.NewIssues {
			fmt.Fprintf(&sb, "  [+] [%s] %s on %s\n", i.Severity, i.RuleID, i.PageURL)
		}
		sb.WriteString("\n")
	}
	if len(c.ResolvedIssues) > 0 {
		fmt.Fprintf(&sb, "Resolved Issues (%d):\n", len(c.ResolvedIssues))
		for _, i := range c.ResolvedIssues {
			fmt.Fprintf(&sb, "  [-] [%s] %s on %s\n", i.Severity, i.RuleID, i.PageURL)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Unchanged: %d issues\n", c.UnchangedCount)
	if n := len(c.PagesOnlyInPrevious) + len(c.PagesOnlyInCurrent); n > 0 {
		fmt.Fprintf(&sb, "Not compared: %d page(s) scanned by one session only\n", n)
	}
	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) statusText(summary *ScanSummary) string {
	switch {
	case summary.Status != model.StatusCompleted:
		return strings.ToUpper(string(summary.Status)) + " (partial results)"
	case summary.IsPartial():
		return "Complete with failures"
	default:
		return "Complete"
	}
}

func (w *SimpleWriter) writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", (70-len(title))/2) + title + "\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeNotes(sb *strings.Builder, errs, warnings []string) {
	if len(errs) == 0 && len(warnings) == 0 {
		return
	}
	w.writeSection(sb, "NOTES")
	for _, e := range errs {
		fmt.Fprintf(sb, "  ERROR: %s\n", e)
	}
	for _, warn := range warnings {
		fmt.Fprintf(sb, "  WARN:  %s\n", warn)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by a11yscan\n")
	sb.WriteString("https://github.com/nao1215/a11yscan\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// severityIndicator returns a visual indicator for the severity level.
func severityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	default:
		return "?"
	}
}

func criterionText(issue model.Issue) string {
	if issue.WCAGCriterion == "" {
		return ""
	}
	if issue.WCAGLevel == "" {
		return "(WCAG " + issue.WCAGCriterion + ")"
	}
	return "(WCAG " + issue.WCAGCriterion + " " + string(issue.WCAGLevel) + ")"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return fmt.Sprintf("+%d", delta)
	}
	return fmt.Sprintf("%d", delta)
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

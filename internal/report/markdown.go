package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/a11yscan/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for documentation and
// sharing. It uses nao1215/markdown for tables, alerts and mermaid charts.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// severityLabels decorates severities in tables and headings.
var severityLabels = map[model.Severity]string{
	model.SeverityCritical: "🔴 Critical",
	model.SeverityHigh:     "🟠 High",
	model.SeverityMedium:   "🟡 Medium",
	model.SeverityLow:      "🔵 Low",
}

// WriteScan outputs the scan summary in Markdown format.
func (w *MarkdownWriter) WriteScan(summary *ScanSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("a11yscan Report")
	md.PlainText("")
	rows := [][]string{
		{"Session", "`" + summary.SessionID + "`"},
		{"Adapters", strings.Join(summary.Adapters, ", ")},
		{"Pages", fmt.Sprintf("%d scanned, %d failed of %d", summary.PagesCompleted, summary.PagesFailed, summary.PagesTotal)},
		{"Score", fmt.Sprintf("%.1f / 100", summary.OverallScore)},
		{"Status", w.statusText(summary)},
	}
	if summary.FinishedAt != nil {
		rows = append(rows, []string{"Finished", summary.FinishedAt.Format("2006-01-02 15:04:05 MST")})
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")

	w.writeSeverity(md, summary)
	w.writePages(md, summary)
	w.writeFailures(md, summary)
	w.writeNotes(md, summary.Errors, summary.Warnings)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) statusText(summary *ScanSummary) string {
	switch {
	case summary.Status != model.StatusCompleted:
		return "⚠️ " + string(summary.Status) + " (partial results)"
	case summary.IsPartial():
		return "✅ Complete with failures"
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeSeverity(md *markdown.Markdown, summary *ScanSummary) {
	md.H2("Severity Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(model.AllSeverities)+1)
	for _, sev := range model.AllSeverities {
		rows = append(rows, []string{severityLabels[sev], strconv.Itoa(summary.IssuesBySeverity.Get(sev))})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(summary.TotalIssues()) + "**"})
	md.Table(markdown.TableSet{Header: []string{"Severity", "Count"}, Rows: rows})
	md.PlainText("")

	if summary.TotalIssues() > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Issue Severity Distribution"),
			piechart.WithShowData(true),
		)
		for _, sev := range model.AllSeverities {
			if n := summary.IssuesBySeverity.Get(sev); n > 0 {
				chart.LabelAndIntValue(severityLabels[sev][len("🔴 "):], uint64(n))
			}
		}
		md.PlainText("")
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")

		principleRows := make([][]string, 0, len(principles))
		for _, p := range principles {
			if n := summary.IssuesByPrinciple[p]; n > 0 {
				principleRows = append(principleRows, []string{string(p), strconv.Itoa(n)})
			}
		}
		md.Table(markdown.TableSet{Header: []string{"WCAG Principle", "Issues"}, Rows: principleRows})
		md.PlainText("")
	}

	switch {
	case summary.IssuesBySeverity.Get(model.SeverityCritical) > 0:
		md.Cautionf("%d critical issue(s) make content unusable for some users.",
			summary.IssuesBySeverity.Get(model.SeverityCritical))
	case summary.IssuesBySeverity.Get(model.SeverityHigh) > 0:
		md.Warningf("%d high severity issue(s) block or degrade tasks.",
			summary.IssuesBySeverity.Get(model.SeverityHigh))
	case summary.TotalIssues() > 0:
		md.Note("Only medium and low severity issues detected.")
	default:
		md.Tip("No accessibility issues detected by the enabled adapters.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, summary *ScanSummary) {
	md.H2("Issues by Page")
	md.PlainText("")

	if summary.TotalIssues() == 0 {
		md.PlainText("No issues detected.")
		md.PlainText("")
		return
	}

	for _, page := range summary.Pages {
		if len(page.Issues) == 0 {
			continue
		}
		md.H3(page.URL)
		md.PlainTextf("Role: %s, priority: %s", orDash(string(page.Role)), orDash(string(page.Priority)))
		md.PlainText("")

		rows := make([][]string, len(page.Issues))
		for i, issue := range page.Issues {
			rows[i] = []string{
				severityLabels[issue.Severity],
				"`" + issue.RuleID + "`",
				orDash(strings.TrimSpace(issue.WCAGCriterion + " " + string(issue.WCAGLevel))),
				truncateString(orDash(issue.Selector), 50),
				issue.SourceAdapter,
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Severity", "Rule", "WCAG", "Selector", "Adapter"},
			Rows:   rows,
		})
		md.PlainText("")

		for _, issue := range page.Issues {
			if issue.Description != "" {
				md.Details(issue.RuleID, issue.Description)
			}
		}
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *ScanSummary) {
	if len(summary.Failures) == 0 {
		return
	}
	md.H2("Adapter Failures")
	md.PlainText("")
	rows := make([][]string, len(summary.Failures))
	for i, f := range summary.Failures {
		rows[i] = []string{f.Adapter, f.PageURL, strconv.Itoa(f.Attempts), truncateString(f.Error, 80)}
	}
	md.Table(markdown.TableSet{Header: []string{"Adapter", "Page", "Attempts", "Error"}, Rows: rows})
	md.PlainText("")
}

// WriteDiscovery outputs the discovery summary in Markdown format.
func (w *MarkdownWriter) WriteDiscovery(summary *DiscoverySummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("a11yscan Discovery")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Session", "`" + summary.SessionID + "`"},
			{"Seed", summary.SeedURL},
			{"Status", string(summary.Status)},
			{"Pages", strconv.Itoa(len(summary.Pages))},
			{"Templates", strconv.Itoa(len(summary.Groups))},
		},
	})
	md.PlainText("")

	if roles := summary.RoleCounts(); len(roles) > 0 {
		md.H2("Page Roles")
		md.PlainText("")
		rows := make([][]string, len(roles))
		for i, r := range roles {
			rows[i] = []string{string(r.Role), strconv.Itoa(r.Pages)}
		}
		md.Table(markdown.TableSet{Header: []string{"Role", "Pages"}, Rows: rows})
		md.PlainText("")
	}

	if sel := summary.Selection; sel != nil {
		md.H2("Selection")
		md.PlainText("")
		md.PlainTextf("Strategy `%s`: %d/%d roles and %d/%d templates covered.",
			sel.Strategy, sel.Coverage.RolesCovered, sel.Coverage.RolesDiscovered,
			sel.Coverage.GroupsCovered, sel.Coverage.GroupsTotal)
		md.PlainText("")
		rows := make([][]string, len(sel.Rationale))
		for i, r := range sel.Rationale {
			rows[i] = []string{r.URL, r.Reason, strconv.FormatFloat(r.Score, 'f', 2, 64)}
		}
		md.Table(markdown.TableSet{Header: []string{"Page", "Reason", "Score"}, Rows: rows})
		md.PlainText("")
	}

	if len(summary.Groups) > 0 {
		md.H2("Template Groups")
		md.PlainText("")
		rows := make([][]string, len(summary.Groups))
		for i, g := range summary.Groups {
			rows[i] = []string{g.ID, strconv.Itoa(g.Size()), g.RepresentativeURL}
		}
		md.Table(markdown.TableSet{Header: []string{"Group", "Pages", "Representative"}, Rows: rows})
		md.PlainText("")
	}

	w.writeNotes(md, summary.Errors, summary.Warnings)
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteComparison outputs the comparison in Markdown format.
func (w *MarkdownWriter) WriteComparison(c *Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Scan Comparison")
	md.PlainText("")
	md.PlainTextf("**Status:** %s", c.Direction)
	md.PlainText("")

	rows := [][]string{
		{"Session", "`" + c.Previous.SessionID + "`", "`" + c.Current.SessionID + "`", "-"},
		{"Score", fmt.Sprintf("%.1f", c.Previous.OverallScore), fmt.Sprintf("%.1f", c.Current.OverallScore),
			fmt.Sprintf("%+.1f", c.Current.OverallScore-c.Previous.OverallScore)},
	}
	for _, sev := range model.AllSeverities {
		rows = append(rows, []string{
			severityLabels[sev],
			strconv.Itoa(c.Previous.IssuesBySeverity.Get(sev)),
			strconv.Itoa(c.Current.IssuesBySeverity.Get(sev)),
			formatDelta(c.SeverityDelta[sev.String()]),
		})
	}
	md.Table(markdown.TableSet{Header: []string{"Metric", "Previous", "Current", "Change"}, Rows: rows})
	md.PlainText("")

	if len(c.NewIssues) > 0 {
		md.H2(fmt.Sprintf("New Issues (%d)", len(c.NewIssues)))
		md.PlainText("")
		items := make([]string, len(c.NewIssues))
		for i, issue := range c.NewIssues {
			items[i] = fmt.Sprintf("**[%s]** `%s` on %s", issue.Severity, issue.RuleID, issue.PageURL)
		}
		md.BulletList(items...)
		md.PlainText("")
	}
	if len(c.ResolvedIssues) > 0 {
		md.H2(fmt.Sprintf("Resolved Issues (%d)", len(c.ResolvedIssues)))
		md.PlainText("")
		items := make([]string, len(c.ResolvedIssues))
		for i, issue := range c.ResolvedIssues {
			items[i] = fmt.Sprintf("~~**[%s]** `%s` on %s~~", issue.Severity, issue.RuleID, issue.PageURL)
		}
		md.BulletList(items...)
		md.PlainText("")
	}
	md.PlainTextf("*%d issues unchanged*", c.UnchangedCount)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeNotes(md *markdown.Markdown, errs, warnings []string) {
	if len(errs) == 0 && len(warnings) == 0 {
		return
	}
	md.H2("Notes")
	md.PlainText("")
	for _, e := range errs {
		md.Cautionf("%s", e)
	}
	if len(warnings) > 0 {
		md.BulletList(warnings...)
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [a11yscan](https://github.com/nao1215/a11yscan)*")
}

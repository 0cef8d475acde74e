// Package report renders sessions for people and tools.
//
// Writers for different output formats:
//   - SimpleWriter: human-readable text output for terminal display
//   - JSONWriter: structured JSON output for tool integration
//   - MarkdownWriter: Markdown with tables and a mermaid chart for sharing
//
// Each writer renders a scan summary, a discovery summary and the
// comparison of two scans. Summaries are built from session records, so a
// partially failed scan reports what it has together with its failures.
package report

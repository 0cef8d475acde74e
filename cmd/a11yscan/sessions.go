package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/a11yscan/internal/database"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/report"
	"github.com/nao1215/a11yscan/internal/session"
	"github.com/spf13/cobra"
)

// noIssuesMessage is shown for completed scans without issues.
const noIssuesMessage = "No issues"

// errAmbiguousID is returned when an id prefix matches several sessions.
var errAmbiguousID = errors.New("ambiguous session id")

// NewSessionsCmd creates the sessions command.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions [id]",
		Short: "List stored sessions or show one of them",
		Long: `Sessions lists the discovery and scan sessions stored in the session
database, newest first. With an id it prints the report of that session.
A unique prefix of the id is enough.

Examples:
  # List all sessions
  a11yscan sessions

  # List scan sessions only
  a11yscan sessions --kind scan

  # Show the report of a scan as Markdown
  a11yscan sessions --markdown 1a2b3c4d

  # Print the event log of a session as JSON lines
  a11yscan sessions --events 1a2b3c4d

  # Delete a session and its events
  a11yscan sessions --delete 1a2b3c4d`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSessionsCmd,
	}

	cmd.Flags().StringP("kind", "k", "",
		"List only sessions of this kind (discovery or scan)")
	cmd.Flags().BoolP("events", "e", false,
		"Print the event log of the session")
	cmd.Flags().Bool("delete", false,
		"Delete the session and its event log")
	addReportFlags(cmd)
	return cmd
}

// runSessionsCmd executes the sessions command.
func runSessionsCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		kind, err := cmd.Flags().GetString("kind")
		if err != nil {
			return err
		}
		return listSessions(ctx, db, out, model.SessionKind(strings.ToLower(kind)))
	}

	id, err := resolveSessionID(ctx, db, args[0])
	if err != nil {
		return err
	}

	del, err := cmd.Flags().GetBool("delete")
	if err != nil {
		return err
	}
	if del {
		if err := db.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		fmt.Fprintf(out, "Deleted session %s\n", id)
		return nil
	}

	showEvents, err := cmd.Flags().GetBool("events")
	if err != nil {
		return err
	}
	if showEvents {
		return printEvents(ctx, db, out, id)
	}

	s, err := db.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	f, err := readReportFormat(cmd)
	if err != nil {
		return err
	}
	return withReport(f, out, func(w report.Writer) error {
		var err error
		if s.Kind == model.KindScan {
			_, err = w.WriteScan(report.NewScanSummary(s))
		} else {
			_, err = w.WriteDiscovery(report.NewDiscoverySummary(s))
		}
		return err
	})
}

// openDB opens the session database named by the global flags.
func openDB(cmd *cobra.Command) (*database.SessionDB, error) {
	cfg, err := buildBaseConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.NoDB {
		return nil, errNoDatabase
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// resolveSessionID expands a unique id prefix to the full session id.
func resolveSessionID(ctx context.Context, db *database.SessionDB, ref string) (string, error) {
	if _, err := db.Load(ctx, ref); err == nil {
		return ref, nil
	} else if !errors.Is(err, session.ErrNotFound) {
		return "", fmt.Errorf("failed to load session: %w", err)
	}

	summaries, err := db.Summaries(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to list sessions: %w", err)
	}
	var matches []string
	for _, s := range summaries {
		if strings.HasPrefix(s.ID, ref) {
			matches = append(matches, s.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", session.ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %d sessions", errAmbiguousID, ref, len(matches))
	}
}

// listSessions prints the session table.
func listSessions(ctx context.Context, db *database.SessionDB, out io.Writer, kind model.SessionKind) error {
	summaries, err := db.Summaries(ctx, kind)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(out, "No sessions found in the database.")
		fmt.Fprintln(out, "\nUse 'a11yscan scan <url>' to audit a site.")
		return nil
	}

	p := newProgressPrinter(out)
	fmt.Fprintf(out, "Sessions (%d):\n\n", len(summaries))
	fmt.Fprintf(out, "  %-8s  %-9s  %-9s  %-19s  %-14s  %s\n", "ID", "Kind", "Status", "Created", "Issues", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 90))
	for _, s := range summaries {
		status := p.statusColor(s.Status)(fmt.Sprintf("%-9s", s.Status))
		fmt.Fprintf(out, "  %-8s  %-9s  %s  %-19s  %-14s  %s\n",
			shortID(s.ID),
			s.Kind,
			status,
			s.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			formatIssueSummary(s.Issues),
			s.SeedURL,
		)
	}
	fmt.Fprintln(out, "\nUse 'a11yscan sessions <id>' to show a report.")
	fmt.Fprintln(out, "Use 'a11yscan compare <previous> <current>' to compare two scans.")
	return nil
}

// formatIssueSummary formats severity counts as "C:1 H:2 M:0 L:3".
func formatIssueSummary(counts model.SeverityCounts) string {
	if counts == nil {
		return "-"
	}
	var parts []string
	for _, sev := range model.AllSeverities {
		if n := counts.Get(sev); n > 0 {
			parts = append(parts, fmt.Sprintf("%c:%d", strings.ToUpper(sev.String())[0], n))
		}
	}
	if len(parts) == 0 {
		return noIssuesMessage
	}
	return strings.Join(parts, " ")
}

// printEvents writes the event log of a session as JSON lines.
func printEvents(ctx context.Context, db *database.SessionDB, out io.Writer, id string) error {
	log, err := db.Events(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}
	enc := json.NewEncoder(out)
	for _, e := range log {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

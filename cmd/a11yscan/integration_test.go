package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/report"
)

// newTestSite serves a small site with known accessibility defects.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	pages := map[string]string{
		"/": `<!DOCTYPE html>
<html>
<head><title>Home</title></head>
<body>
<h1>Welcome</h1>
<img src="/logo.png">
<a href="/about">About</a>
<a href="/contact">Contact</a>
</body>
</html>`,
		"/about": `<!DOCTYPE html>
<html lang="en">
<head><title>About</title></head>
<body>
<h1>About us</h1>
<p>We build accessible things.</p>
<a href="/">Home</a>
</body>
</html>`,
		"/contact": `<!DOCTYPE html>
<html lang="en">
<head><title>Contact</title></head>
<body>
<h1>Contact</h1>
<form action="/contact" method="post">
<input type="text" name="email">
<button type="submit">Send</button>
</form>
</body>
</html>`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err != nil {
		t.Logf("stderr of %v:\n%s", args, stderr.String())
	}
	return stdout.String(), err
}

// readJSONReport decodes a JSON report file.
func readJSONReport(t *testing.T, path string) report.JSONReport {
	t.Helper()

	data, err := os.ReadFile(path) //nolint:gosec // test file
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	var r report.JSONReport
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("failed to parse report: %v", err)
	}
	return r
}

// TestCLIWorkflow runs scan, sessions, compare and resume against a local
// site and one session database.
//
//nolint:paralleltest // the commands install the default logger and signal handlers
func TestCLIWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}

	site := newTestSite(t)
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "db")

	configPath := filepath.Join(dir, "a11yscan.yaml")
	if _, err := runCLI(t, "init", "-o", configPath); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	global := []string{"--config", configPath, "--db-dir", dbDir}
	scanArgs := func(out string) []string {
		args := []string{
			"scan", site.URL, "--ignore-robots", "--crawl-delay", "0", "--json", "-o", out,
			"--select", site.URL + "/," + site.URL + "/about," + site.URL + "/contact",
		}
		return append(args, global...)
	}

	firstPath := filepath.Join(dir, "reports", "first.json")
	if _, err := runCLI(t, scanArgs(firstPath)...); err != nil {
		t.Fatalf("first scan failed: %v", err)
	}
	first := readJSONReport(t, firstPath)

	t.Run("scan report", func(t *testing.T) {
		if first.Scan == nil {
			t.Fatal("expected a scan section")
		}
		if first.Scan.Status != model.StatusCompleted {
			t.Errorf("expected completed scan, got %s", first.Scan.Status)
		}
		if first.Scan.DiscoverySessionID == "" {
			t.Error("expected the discovery session id")
		}
		if first.Scan.IssuesBySeverity.Total() == 0 {
			t.Fatal("expected issues on the test site")
		}
		if first.Scan.PagesTotal != 3 {
			t.Errorf("expected the 3 selected pages, got %d", first.Scan.PagesTotal)
		}

		rules := make(map[string]bool)
		for _, p := range first.Scan.Pages {
			for _, issue := range p.Issues {
				rules[issue.RuleID] = true
				if issue.SourceAdapter != "htmlcheck" {
					t.Errorf("unexpected adapter %q", issue.SourceAdapter)
				}
			}
		}
		for _, want := range []string{"img-missing-alt", "html-missing-lang", "input-missing-label"} {
			if !rules[want] {
				t.Errorf("expected rule %s in %v", want, rules)
			}
		}
	})

	secondPath := filepath.Join(dir, "reports", "second.json")
	if _, err := runCLI(t, scanArgs(secondPath)...); err != nil {
		t.Fatalf("second scan failed: %v", err)
	}
	second := readJSONReport(t, secondPath)
	if second.Scan == nil {
		t.Fatal("expected a scan section in the second report")
	}
	firstID, secondID := first.Scan.SessionID, second.Scan.SessionID

	t.Run("sessions lists every session", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"sessions"}, global...)...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// Two discoveries and two scans.
		if !strings.Contains(out, "Sessions (4):") {
			t.Errorf("expected 4 sessions, got:\n%s", out)
		}
	})

	t.Run("sessions filters by kind", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"sessions", "--kind", "scan"}, global...)...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Sessions (2):") {
			t.Errorf("expected 2 scan sessions, got:\n%s", out)
		}
		if !strings.Contains(out, shortID(firstID)) {
			t.Errorf("expected %s in the list", shortID(firstID))
		}
	})

	t.Run("sessions shows a report by id prefix", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"sessions", "--json", firstID[:13]}, global...)...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var r report.JSONReport
		if err := json.Unmarshal([]byte(out), &r); err != nil {
			t.Fatalf("failed to parse report: %v\n%s", err, out)
		}
		if r.Scan == nil || r.Scan.SessionID != firstID {
			t.Errorf("expected the report of %s", firstID)
		}
	})

	t.Run("sessions prints the event log", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"sessions", "--events", firstID}, global...)...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) < 2 {
			t.Fatalf("expected several events, got:\n%s", out)
		}
		if !strings.Contains(out, firstID) {
			t.Error("expected events of the session")
		}
	})

	t.Run("compare identical scans", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"compare", "--json", firstID, secondID}, global...)...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var r report.JSONReport
		if err := json.Unmarshal([]byte(out), &r); err != nil {
			t.Fatalf("failed to parse comparison: %v\n%s", err, out)
		}
		if r.Comparison == nil {
			t.Fatal("expected a comparison section")
		}
		if len(r.Comparison.NewIssues) != 0 || len(r.Comparison.ResolvedIssues) != 0 {
			t.Errorf("expected no changes, got %d new and %d resolved",
				len(r.Comparison.NewIssues), len(r.Comparison.ResolvedIssues))
		}
		if r.Comparison.UnchangedCount != first.Scan.IssuesBySeverity.Total() {
			t.Errorf("expected %d unchanged issues, got %d",
				first.Scan.IssuesBySeverity.Total(), r.Comparison.UnchangedCount)
		}
	})

	t.Run("compare rejects a discovery session", func(t *testing.T) {
		_, err := runCLI(t, append([]string{"compare", first.Scan.DiscoverySessionID, secondID}, global...)...)
		if err == nil || !strings.Contains(err.Error(), "not a scan") {
			t.Errorf("expected 'not a scan' error, got %v", err)
		}
	})

	t.Run("compare rejects the same session twice", func(t *testing.T) {
		if _, err := runCLI(t, append([]string{"compare", firstID, firstID}, global...)...); err == nil {
			t.Error("expected error comparing a session with itself")
		}
	})

	t.Run("resume without interrupted sessions", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"resume"}, global...)...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No interrupted sessions.") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("delete a session", func(t *testing.T) {
		if _, err := runCLI(t, append([]string{"sessions", "--delete", secondID}, global...)...); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out, err := runCLI(t, append([]string{"sessions", "--kind", "scan"}, global...)...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Sessions (1):") {
			t.Errorf("expected 1 scan session after delete, got:\n%s", out)
		}
	})
}

//nolint:paralleltest // the commands install the default logger and signal handlers
func TestDiscoverCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}

	site := newTestSite(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "a11yscan.yaml")
	if _, err := runCLI(t, "init", "-o", configPath); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	out, err := runCLI(t, "discover", site.URL, "--json", "--ignore-robots", "--crawl-delay", "0",
		"--config", configPath, "--no-db")
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	var r report.JSONReport
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("failed to parse report: %v\n%s", err, out)
	}
	if r.Discovery == nil {
		t.Fatal("expected a discovery section")
	}
	if r.Discovery.Status != model.StatusCompleted {
		t.Errorf("expected completed discovery, got %s", r.Discovery.Status)
	}
	if len(r.Discovery.Pages) != 3 {
		t.Errorf("expected 3 pages, got %d", len(r.Discovery.Pages))
	}
	if r.Discovery.Selection == nil || len(r.Discovery.Selection.SelectedURLs) == 0 {
		t.Error("expected a page selection")
	}
}

func TestScanCommandValidation(t *testing.T) {
	t.Parallel()

	t.Run("manual strategy needs select", func(t *testing.T) {
		t.Parallel()
		cmd := NewRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"scan", "https://example.com", "--strategy", "manual",
			"--config", writeConfigFile(t, "{}\n"), "--no-db"})
		err := cmd.Execute()
		if err == nil || !strings.Contains(err.Error(), "--select") {
			t.Errorf("expected --select error, got %v", err)
		}
	})

	t.Run("conflicting report formats", func(t *testing.T) {
		t.Parallel()
		cmd := NewRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"scan", "https://example.com", "--json", "--markdown",
			"--config", writeConfigFile(t, "{}\n"), "--no-db"})
		if err := cmd.Execute(); err == nil {
			t.Error("expected error for --json with --markdown")
		}
	})

	t.Run("sessions needs the database", func(t *testing.T) {
		t.Parallel()
		cmd := NewRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"sessions", "--no-db", "--config", writeConfigFile(t, "{}\n")})
		if err := cmd.Execute(); err == nil {
			t.Error("expected error with --no-db")
		}
	})
}

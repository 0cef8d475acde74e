package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/a11yscan/internal/config"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/spf13/cobra"
)

// commandFor builds the command tree, finds the named subcommand and parses
// args into it, so that persistent root flags are merged.
func commandFor(t *testing.T, name string, args ...string) *cobra.Command {
	t.Helper()

	root := NewRootCmd()
	cmd, _, err := root.Find([]string{name})
	if err != nil {
		t.Fatalf("failed to find %s: %v", name, err)
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return cmd
}

// writeConfigFile writes content to a config file in a temp dir.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "a11yscan.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cmd := commandFor(t, "scan", "--config", writeConfigFile(t, "{}\n"))
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.SeedURL != "https://example.com" {
			t.Errorf("expected seed URL, got %q", cfg.SeedURL)
		}
		if cfg.MaxDepth != config.DefaultMaxDepth {
			t.Errorf("expected depth %d, got %d", config.DefaultMaxDepth, cfg.MaxDepth)
		}
		if !cfg.RespectRobots {
			t.Error("expected robots.txt to be honored by default")
		}
		if cfg.Strategy != model.StrategyWCAGEM {
			t.Errorf("expected wcag_em strategy, got %q", cfg.Strategy)
		}
		if len(cfg.Adapters) != 1 || cfg.Adapters[0] != "htmlcheck" {
			t.Errorf("expected default adapters [htmlcheck], got %v", cfg.Adapters)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("default config should be valid: %v", err)
		}
	})

	t.Run("crawl flags", func(t *testing.T) {
		t.Parallel()

		cmd := commandFor(t, "discover",
			"--config", writeConfigFile(t, "{}\n"),
			"--depth", "5",
			"--max-pages", "20",
			"--crawl-delay", "250ms",
			"--ignore-robots",
			"--exclude", "/admin/*",
			"--strategy", "RISK_BASED",
			"--recluster",
		)
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxDepth != 5 {
			t.Errorf("expected depth 5, got %d", cfg.MaxDepth)
		}
		if cfg.MaxPages != 20 {
			t.Errorf("expected max pages 20, got %d", cfg.MaxPages)
		}
		if cfg.CrawlDelay != 250*time.Millisecond {
			t.Errorf("expected crawl delay 250ms, got %v", cfg.CrawlDelay)
		}
		if cfg.RespectRobots {
			t.Error("expected robots.txt to be ignored")
		}
		if len(cfg.ExcludePatterns) != 1 || cfg.ExcludePatterns[0] != "/admin/*" {
			t.Errorf("unexpected exclude patterns %v", cfg.ExcludePatterns)
		}
		if cfg.Strategy != model.StrategyRiskBased {
			t.Errorf("expected risk_based strategy, got %q", cfg.Strategy)
		}
		if !cfg.DiscoveryConfig().Recluster {
			t.Error("expected recluster to reach the discovery config")
		}
	})

	t.Run("discover has no scan flags", func(t *testing.T) {
		t.Parallel()

		cmd := commandFor(t, "discover", "--config", writeConfigFile(t, "{}\n"))
		if cmd.Flags().Lookup("adapters") != nil {
			t.Error("discover should not register --adapters")
		}
	})

	t.Run("select implies manual strategy", func(t *testing.T) {
		t.Parallel()

		cmd := commandFor(t, "scan",
			"--config", writeConfigFile(t, "{}\n"),
			"--select", "https://example.com/a,https://example.com/b",
		)
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Strategy != model.StrategyManual {
			t.Errorf("expected manual strategy, got %q", cfg.Strategy)
		}
		if len(cfg.ManualURLs) != 2 {
			t.Errorf("expected 2 manual URLs, got %v", cfg.ManualURLs)
		}
	})

	t.Run("headers and cookie", func(t *testing.T) {
		t.Parallel()

		cmd := commandFor(t, "scan",
			"--config", writeConfigFile(t, "{}\n"),
			"-H", "Authorization: Bearer token",
			"-H", "X-Test:  yes ",
			"--cookie", "sid=1",
		)
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := cfg.Headers["Authorization"]; got != "Bearer token" {
			t.Errorf("expected Authorization header, got %q", got)
		}
		if got := cfg.Headers["X-Test"]; got != "yes" {
			t.Errorf("expected trimmed X-Test header, got %q", got)
		}
		if cfg.Cookie != "sid=1" {
			t.Errorf("expected cookie, got %q", cfg.Cookie)
		}
	})

	t.Run("site settings from config file", func(t *testing.T) {
		t.Parallel()

		path := writeConfigFile(t, `
defaults:
  excludePatterns: ["*.pdf"]
sites:
  example.com:
    cookie: "session=abc"
    depth: 7
adapters:
  - name: pa11y
    command: pa11y
    format: pa11y
`)
		cmd := commandFor(t, "scan", "--config", path)
		cfg, err := buildConfig(cmd, []string{"https://example.com/start"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Cookie != "session=abc" {
			t.Errorf("expected site cookie, got %q", cfg.Cookie)
		}
		if cfg.MaxDepth != 7 {
			t.Errorf("expected site depth 7, got %d", cfg.MaxDepth)
		}
		if len(cfg.Adapters) != 1 || cfg.Adapters[0] != "pa11y" {
			t.Errorf("expected adapters from file, got %v", cfg.Adapters)
		}
	})

	t.Run("command line wins over config file", func(t *testing.T) {
		t.Parallel()

		path := writeConfigFile(t, `
sites:
  example.com:
    cookie: "session=abc"
`)
		cmd := commandFor(t, "scan", "--config", path, "--cookie", "sid=cli")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Cookie != "sid=cli" {
			t.Errorf("expected command line cookie, got %q", cfg.Cookie)
		}
	})

	t.Run("report flags", func(t *testing.T) {
		t.Parallel()

		cmd := commandFor(t, "scan",
			"--config", writeConfigFile(t, "{}\n"),
			"--json", "-o", "out/report.json",
		)
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.JSONReport || cfg.MarkdownReport {
			t.Error("expected json report only")
		}
		if cfg.ReportFile != "out/report.json" {
			t.Errorf("expected report file, got %q", cfg.ReportFile)
		}
	})

	t.Run("global flags", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		cmd := commandFor(t, "scan",
			"--config", writeConfigFile(t, "{}\n"),
			"--db-dir", dir, "--no-db", "-v",
		)
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.DBDir != dir {
			t.Errorf("expected db dir %q, got %q", dir, cfg.DBDir)
		}
		if !cfg.NoDB {
			t.Error("expected no-db")
		}
		if !cfg.Verbose {
			t.Error("expected verbose")
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		missing := filepath.Join(t.TempDir(), "missing.yaml")
		cmd := commandFor(t, "scan", "--config", missing)
		if _, err := buildConfig(cmd, []string{"https://example.com"}); err == nil {
			t.Error("expected error for a missing config file")
		}
	})

	t.Run("invalid config file", func(t *testing.T) {
		t.Parallel()

		cmd := commandFor(t, "scan", "--config", writeConfigFile(t, "sites: [unclosed\n"))
		if _, err := buildConfig(cmd, []string{"https://example.com"}); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("bad header", func(t *testing.T) {
		t.Parallel()

		cmd := commandFor(t, "scan",
			"--config", writeConfigFile(t, "{}\n"),
			"-H", "no-colon",
		)
		_, err := buildConfig(cmd, []string{"https://example.com"})
		if !errors.Is(err, errBadHeader) {
			t.Errorf("expected errBadHeader, got %v", err)
		}
	})
}

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", pairs: nil, want: nil},
		{name: "single", pairs: []string{"Accept: text/html"}, want: map[string]string{"Accept": "text/html"}},
		{name: "value with colon", pairs: []string{"Referer: https://example.com/"}, want: map[string]string{"Referer": "https://example.com/"}},
		{name: "empty value", pairs: []string{"X-Empty:"}, want: map[string]string{"X-Empty": ""}},
		{name: "missing colon", pairs: []string{"Accept"}, wantErr: true},
		{name: "missing name", pairs: []string{": value"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseHeaders(tt.pairs)
			if tt.wantErr {
				if !errors.Is(err, errBadHeader) {
					t.Errorf("expected errBadHeader, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("header %s: expected %q, got %q", k, v, got[k])
				}
			}
		})
	}
}

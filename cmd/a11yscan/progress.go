package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/nao1215/a11yscan/internal/events"
	"github.com/nao1215/a11yscan/internal/model"
)

// progressPrinter turns session events into one status line each.
// Colors are dropped automatically when the output is not a terminal.
type progressPrinter struct {
	mu  sync.Mutex
	out io.Writer

	cyan   func(a ...any) string
	green  func(a ...any) string
	yellow func(a ...any) string
	red    func(a ...any) string
	gray   func(a ...any) string
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{
		out:    out,
		cyan:   color.New(color.FgCyan, color.Bold).SprintFunc(),
		green:  color.New(color.FgGreen).SprintFunc(),
		yellow: color.New(color.FgYellow).SprintFunc(),
		red:    color.New(color.FgRed).SprintFunc(),
		gray:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

// follow prints events from sub until it is closed. The returned channel
// is closed once every buffered event has been printed.
func (p *progressPrinter) follow(sub *events.Subscription) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range sub.C {
			p.print(e)
		}
	}()
	return done
}

func (p *progressPrinter) started(kind model.SessionKind, id string) {
	p.printf("%s %s session %s\n", p.cyan("●"), kind, id)
}

func (p *progressPrinter) print(e events.Event) {
	switch pl := e.Payload.(type) {
	case events.DiscoveryProgress:
		p.printf("%s %3d pages %s %s\n", p.gray("○"), pl.PagesDiscovered,
			p.gray(fmt.Sprintf("(%.0f%%)", pl.ProgressPercent)), pl.CurrentURL)
	case events.DiscoveryComplete:
		p.printf("%s discovery complete: %d pages, %d templates\n",
			p.green("✓"), pl.PagesDiscovered, pl.TemplatesDetected)
	case events.PageComplete:
		if pl.Status == model.TaskError {
			p.printf("%s %s %s\n", p.red("✗"), pl.URL, p.red("no analyzer succeeded"))
			return
		}
		p.printf("%s %s %s\n", p.green("✓"), pl.URL,
			p.gray(fmt.Sprintf("%d issues, %dms", pl.IssuesFound, pl.DurationMs)))
	case events.AdapterError:
		p.printf("%s %s on %s: %s %s\n", p.yellow("⚠"), pl.Adapter, pl.URL, pl.Error,
			p.gray(fmt.Sprintf("(%s, attempt %d/%d)", pl.Action, pl.Attempt, pl.MaxAttempts)))
	case events.ScanComplete:
		p.printf("%s scan complete: score %.1f, %d issues on %d pages\n",
			p.green("✓"), pl.OverallScore, pl.IssuesBySeverity.Total(), pl.PagesTotal)
	case events.StatusChange:
		p.printf("%s %s %s → %s\n", p.statusIcon(pl.To), shortID(e.SessionID), pl.From, p.statusText(pl.To))
	}
}

func (p *progressPrinter) statusIcon(s model.SessionStatus) string {
	switch s {
	case model.StatusCompleted:
		return p.green("✓")
	case model.StatusFailed:
		return p.red("✗")
	case model.StatusCancelled, model.StatusPaused:
		return p.yellow("⚠")
	default:
		return p.cyan("●")
	}
}

// statusText colors a session status.
func (p *progressPrinter) statusText(s model.SessionStatus) string {
	return p.statusColor(s)(s)
}

func (p *progressPrinter) statusColor(s model.SessionStatus) func(a ...any) string {
	switch s {
	case model.StatusCompleted:
		return p.green
	case model.StatusFailed:
		return p.red
	case model.StatusCancelled, model.StatusPaused:
		return p.yellow
	case model.StatusPending:
		return p.gray
	default:
		return p.cyan
	}
}

func (p *progressPrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

// shortID abbreviates a session id for status lines.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

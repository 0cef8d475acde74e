package orchestrator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/a11yscan/internal/adapter"
	"github.com/nao1215/a11yscan/internal/events"
	"github.com/nao1215/a11yscan/internal/mapper"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrNoAdapters is returned when no adapter is enabled.
	ErrNoAdapters = errors.New("no adapters enabled")

	// ErrNoPages is returned when the plan has no tasks.
	ErrNoPages = errors.New("no pages to scan")
)

// Publisher receives progress events.
type Publisher interface {
	Publish(sessionID string, p events.Payload) events.Event
}

// Sink persists task progress. Sink errors are orchestration faults and
// stop the run.
type Sink interface {
	// PageStarted is called when a task is dispatched.
	PageStarted(ctx context.Context, task *model.ScanTask) error

	// PageFinished is called once every adapter of the page is terminal.
	PageFinished(ctx context.Context, page PageResult) error
}

// PageResult is the outcome of one page.
type PageResult struct {
	Task    *model.ScanTask
	Results []model.AdapterResult
	Issues  []model.Issue
}

// Plan describes one run over a scan session.
type Plan struct {
	SessionID string

	// Tasks are the session's tasks. Terminal tasks are counted but not
	// dispatched again.
	Tasks []*model.ScanTask

	// IssuesBySeverity seeds the running aggregate with issues found by
	// earlier runs of the same session.
	IssuesBySeverity model.SeverityCounts

	Sink Sink

	// Pause stops the dispatch of new pages when closed. Pages already
	// dispatched run to completion.
	Pause <-chan struct{}
}

// Outcome summarizes a run.
type Outcome struct {
	// Halted is true when the run ended before every task was terminal,
	// because of a pause or a cancelled context.
	Halted bool

	PagesTotal       int
	PagesCompleted   int
	PagesFailed      int
	AdapterFailures  int
	IssuesBySeverity model.SeverityCounts
}

// Orchestrator runs adapters over pages.
type Orchestrator struct {
	adapters              []adapter.Adapter
	mapper                *mapper.Mapper
	publisher             Publisher
	logger                *slog.Logger
	policy                retry.Policy
	maxParallelPages      int
	maxConcurrentAdapters int
	pool                  *semaphore.Weighted
	now                   func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

// WithMapper sets the finding mapper.
func WithMapper(m *mapper.Mapper) Option {
	return func(o *Orchestrator) {
		o.mapper = m
	}
}

// WithPolicy sets the retry policy. Policy.Timeout is the default adapter
// timeout; adapters with their own timeout override it.
func WithPolicy(p retry.Policy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithMaxParallelPages sets how many pages are scanned at once.
func WithMaxParallelPages(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxParallelPages = n
		}
	}
}

// WithMaxConcurrentAdapters sets how many adapters run at once per page.
func WithMaxConcurrentAdapters(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrentAdapters = n
		}
	}
}

// WithPool shares an adapter slot pool between orchestrators.
func WithPool(pool *semaphore.Weighted) Option {
	return func(o *Orchestrator) {
		o.pool = pool
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator for the given adapters.
func New(adapters []adapter.Adapter, opts ...Option) (*Orchestrator, error) {
	if len(adapters) == 0 {
		return nil, ErrNoAdapters
	}
	o := &Orchestrator{
		adapters:              adapters,
		policy:                retry.DefaultPolicy(),
		maxParallelPages:      2,
		maxConcurrentAdapters: 4,
		now:                   time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.mapper == nil {
		o.mapper = mapper.New()
	}
	if o.pool == nil {
		o.pool = semaphore.NewWeighted(int64(o.maxParallelPages * o.maxConcurrentAdapters))
	}
	return o, nil
}

// AdapterNames returns the names of the enabled adapters in order.
func (o *Orchestrator) AdapterNames() []string {
	names := make([]string, len(o.adapters))
	for i, a := range o.adapters {
		names[i] = a.Name()
	}
	return names
}

// Run scans every non-terminal task of the plan. Critical pages are
// dispatched first; ties keep the plan order.
//
// Cancelling ctx stops the dispatch of new pages and adapters. Adapter
// calls already in flight finish or time out on their own, and the pages
// they belong to are left unfinished. The returned error is non-nil only for
// orchestration faults.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) (*Outcome, error) {
	if len(o.adapters) == 0 {
		return nil, ErrNoAdapters
	}
	if len(plan.Tasks) == 0 {
		return nil, ErrNoPages
	}

	r := o.newRun(plan)
	pending := make([]*model.ScanTask, 0, len(plan.Tasks))
	for _, t := range plan.Tasks {
		if !t.Status.IsTerminal() {
			pending = append(pending, t.Clone())
		}
	}
	slices.SortStableFunc(pending, func(a, b *model.ScanTask) int {
		return cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
	})

	o.logger.Info("starting scan run",
		"session_id", plan.SessionID,
		"pages_total", r.total,
		"pages_pending", len(pending),
		"adapters", len(o.adapters),
	)
	start := o.now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxParallelPages)

	for _, task := range pending {
		if r.halted(gctx) {
			break
		}
		g.Go(func() error {
			if r.halted(gctx) {
				return nil
			}
			return r.runPage(gctx, task)
		})
	}

	err := g.Wait()
	out := r.outcome()

	o.logger.Info("scan run finished",
		"session_id", plan.SessionID,
		"pages_completed", out.PagesCompleted,
		"pages_failed", out.PagesFailed,
		"halted", out.Halted,
		"elapsed", o.now().Sub(start),
	)
	if err != nil {
		return out, fmt.Errorf("scan session %s: %w", plan.SessionID, err)
	}
	return out, nil
}

// run holds the running aggregates of one Run call.
type run struct {
	o    *Orchestrator
	plan Plan

	mu              sync.Mutex
	total           int
	completed       int
	failed          int
	adapterFailures int
	issues          model.SeverityCounts
}

func (o *Orchestrator) newRun(plan Plan) *run {
	r := &run{o: o, plan: plan, total: len(plan.Tasks), issues: model.NewSeverityCounts()}
	for k, v := range plan.IssuesBySeverity {
		r.issues[k] += v
	}
	for _, t := range plan.Tasks {
		switch t.Status {
		case model.TaskCompleted:
			r.completed++
		case model.TaskError:
			r.completed++
			r.failed++
		}
	}
	return r
}

// halted reports whether no new work may be dispatched.
func (r *run) halted(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-r.plan.Pause:
		return true
	default:
		return false
	}
}

func (r *run) outcome() *Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Outcome{
		Halted:           r.completed < r.total,
		PagesTotal:       r.total,
		PagesCompleted:   r.completed,
		PagesFailed:      r.failed,
		AdapterFailures:  r.adapterFailures,
		IssuesBySeverity: r.issues.Clone(),
	}
}

func (r *run) publish(p events.Payload) {
	if r.o.publisher != nil {
		r.o.publisher.Publish(r.plan.SessionID, p)
	}
}

// progress emits scan_progress with the current aggregates.
func (r *run) progress(pageURL, adapterName string, status model.AdapterStatus) {
	r.mu.Lock()
	p := events.ScanProgress{
		PagesCompleted:   r.completed,
		PagesTotal:       r.total,
		CurrentURL:       pageURL,
		CurrentAdapter:   adapterName,
		AdapterStatus:    status,
		IssuesBySeverity: r.issues.Clone(),
	}
	r.mu.Unlock()
	r.publish(p)
}

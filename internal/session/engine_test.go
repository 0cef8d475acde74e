package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/a11yscan/internal/adapter"
	"github.com/nao1215/a11yscan/internal/config"
	"github.com/nao1215/a11yscan/internal/events"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/selector"
)

const layout = `<html lang="en"><head><title>%s</title></head><body>
<nav><a href="/">Home</a><a href="/about">About</a><a href="/products/1">One</a><a href="/products/2">Two</a></nav>
<main>%s</main><footer><p>Shop</p></footer></body></html>`

func pageHTML(title, main string) string {
	return fmt.Sprintf(layout, title, main)
}

func newShop(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/":           pageHTML("Home", `<h1>Welcome</h1><section><h2>Featured</h2><ul><li>a</li><li>b</li></ul></section>`),
		"/about":      pageHTML("About", `<h1>About us</h1><p>We sell things.</p>`),
		"/products/1": pageHTML("One", `<article><h1>One</h1><img src="1.png" alt="one"><form><button>Buy</button></form></article>`),
		"/products/2": pageHTML("Two", `<article><h1>Two</h1><img src="2.png" alt="two"><form><button>Buy</button></form></article>`),
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body)) //nolint:errcheck
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.CrawlDelay = 0
	cfg.RespectRobots = false
	cfg.TimeoutPerPage = 5 * time.Second
	cfg.AdapterTimeout = time.Second
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.DBDir = ""
	return cfg
}

func scanConfig(adapters ...string) model.ScanConfig {
	return model.ScanConfig{
		Adapters:              adapters,
		MaxParallelPages:      1,
		MaxConcurrentAdapters: 2,
		MaxRetries:            1,
		AdapterTimeout:        time.Second,
		InitialBackoff:        time.Millisecond,
		MaxBackoff:            5 * time.Millisecond,
	}
}

func newEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	e := NewEngine(testConfig(), append([]EngineOption{WithLogger(quietLogger())}, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(ctx) //nolint:errcheck
	})
	return e
}

func registry(t *testing.T, adapters ...adapter.Adapter) *adapter.Registry {
	t.Helper()
	r, err := adapter.NewRegistry(adapters...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return r
}

func clean() *adapter.Func {
	return adapter.NewFunc("axe", func(context.Context, string, time.Duration) (*adapter.Output, error) {
		return &adapter.Output{}, nil
	})
}

func wait(t *testing.T, e *Engine, id string) *model.Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := e.Wait(ctx, id)
	if err != nil {
		t.Fatalf("wait %s: %v", id, err)
	}
	return s
}

func typesOf(log []events.Event) []events.Type {
	out := make([]events.Type, len(log))
	for i, e := range log {
		out[i] = e.Type
	}
	return out
}

func countType(log []events.Event, typ events.Type) int {
	n := 0
	for _, e := range log {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func discover(t *testing.T, e *Engine, server *httptest.Server) *model.Session {
	t.Helper()
	dc := testConfig().DiscoveryConfig()
	id, err := e.StartDiscovery(context.Background(), server.URL, dc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := wait(t, e, id)
	if s.Status != model.StatusCompleted {
		t.Fatalf("expected completed discovery, got %s %v", s.Status, s.Errors)
	}
	return s
}

func TestEngineDiscovery(t *testing.T) {
	t.Parallel()

	t.Run("crawls clusters and selects", func(t *testing.T) {
		t.Parallel()
		e := newEngine(t)
		s := discover(t, e, newShop(t))

		if len(s.Pages) != 4 {
			t.Fatalf("expected 4 pages, got %d", len(s.Pages))
		}
		if s.ProgressPercent != 100 {
			t.Errorf("expected 100%%, got %v", s.ProgressPercent)
		}
		if s.DiscoveryResult == nil || len(s.DiscoveryResult.Groups) == 0 {
			t.Fatal("expected template groups")
		}
		sel := s.DiscoveryResult.Selection
		if sel == nil || len(sel.SelectedURLs) == 0 {
			t.Fatal("expected a selection")
		}
		if !sel.Contains(s.Pages[0].URL) {
			t.Errorf("the seed page must be selected, got %v", sel.SelectedURLs)
		}
		for _, p := range s.Pages {
			if p.TemplateGroupID == "" {
				t.Errorf("page %s has no template group", p.URL)
			}
		}

		log := e.Bus().Log(s.ID)
		if countType(log, events.TypeDiscoveryProgress) != 4 {
			t.Errorf("expected 4 progress events, got %v", typesOf(log))
		}
		last := log[len(log)-1]
		done, ok := last.Payload.(events.DiscoveryComplete)
		if !ok || done.PagesDiscovered != 4 || done.TemplatesDetected != len(s.DiscoveryResult.Groups) {
			t.Errorf("unexpected final event %+v", last)
		}
		for i, ev := range log {
			if ev.Sequence != i+1 {
				t.Fatalf("sequence gap at %d: %d", i, ev.Sequence)
			}
		}
	})

	t.Run("rebuilds groups when asked", func(t *testing.T) {
		t.Parallel()
		e := newEngine(t)
		dc := testConfig().DiscoveryConfig()
		dc.Recluster = true
		id, err := e.StartDiscovery(context.Background(), newShop(t).URL, dc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s := wait(t, e, id)
		if s.Status != model.StatusCompleted {
			t.Fatalf("expected completed discovery, got %s %v", s.Status, s.Errors)
		}

		members := make(map[string]string)
		for _, g := range s.DiscoveryResult.Groups {
			for _, u := range g.MemberURLs {
				members[u] = g.ID
			}
		}
		if len(members) != len(s.Pages) {
			t.Fatalf("expected every page in a group, got %d of %d", len(members), len(s.Pages))
		}
		for _, p := range s.Pages {
			if members[p.URL] != p.TemplateGroupID {
				t.Errorf("page %s: group %q on the page, %q in the result", p.URL, p.TemplateGroupID, members[p.URL])
			}
		}
	})

	t.Run("rejects invalid configuration", func(t *testing.T) {
		t.Parallel()
		e := newEngine(t)
		ctx := context.Background()
		dc := testConfig().DiscoveryConfig()

		if _, err := e.StartDiscovery(ctx, "ftp://example.com", dc); !errors.Is(err, config.ErrInvalidSeedURL) {
			t.Errorf("expected ErrInvalidSeedURL, got %v", err)
		}
		bad := dc
		bad.MaxPages = 0
		if _, err := e.StartDiscovery(ctx, "https://example.com", bad); !errors.Is(err, config.ErrInvalidMaxPages) {
			t.Errorf("expected ErrInvalidMaxPages, got %v", err)
		}
		bad = dc
		bad.SimilarityThreshold = 1.5
		if _, err := e.StartDiscovery(ctx, "https://example.com", bad); !errors.Is(err, config.ErrInvalidThreshold) {
			t.Errorf("expected ErrInvalidThreshold, got %v", err)
		}
		bad = dc
		bad.Strategy = model.StrategyManual
		if _, err := e.StartDiscovery(ctx, "https://example.com", bad); !errors.Is(err, config.ErrUnknownStrategy) {
			t.Errorf("expected ErrUnknownStrategy, got %v", err)
		}
		list, _ := e.List(ctx)
		if len(list) != 0 {
			t.Errorf("rejected commands must not create sessions, got %d", len(list))
		}
	})

	t.Run("fails when the seed is unreachable", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(server.Close)
		e := newEngine(t)
		id, err := e.StartDiscovery(context.Background(), server.URL, testConfig().DiscoveryConfig())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s := wait(t, e, id)
		if s.Status != model.StatusFailed || len(s.Errors) == 0 {
			t.Errorf("expected failed discovery with errors, got %s %v", s.Status, s.Errors)
		}
	})
}

func TestEngineSelection(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	d := discover(t, e, newShop(t))
	ctx := context.Background()

	about := d.Pages[len(d.Pages)-1].URL
	sel, err := e.SelectPages(ctx, d.ID, []string{about})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sel.SelectedURLs) != 1 || sel.SelectedURLs[0] != about || sel.Strategy != model.StrategyManual {
		t.Errorf("unexpected selection %+v", sel)
	}
	got, _ := e.Get(ctx, d.ID)
	if got.Status != model.StatusCompleted || !got.DiscoveryResult.Selection.Contains(about) {
		t.Errorf("selection was not persisted: %+v", got.DiscoveryResult.Selection)
	}
	if p, _ := got.Page(about); p == nil || !p.Selected {
		t.Error("selected page must be flagged")
	}

	if _, err := e.SelectPages(ctx, d.ID, []string{"https://elsewhere.example/"}); !errors.Is(err, selector.ErrUnknownURL) {
		t.Errorf("expected ErrUnknownURL, got %v", err)
	}

	sel, err = e.Reselect(ctx, d.ID, model.StrategyRiskBased)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sel.Strategy != model.StrategyRiskBased || len(sel.SelectedURLs) == 0 {
		t.Errorf("unexpected selection %+v", sel)
	}

	if _, err := e.SelectPages(ctx, "nope", nil); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("expected ErrUnknownSession, got %v", err)
	}
}

func TestEngineScan(t *testing.T) {
	t.Parallel()

	t.Run("scans the discovery selection", func(t *testing.T) {
		t.Parallel()
		var scanned sync.Map
		axe := adapter.NewFunc("axe", func(_ context.Context, pageURL string, _ time.Duration) (*adapter.Output, error) {
			scanned.Store(pageURL, true)
			return &adapter.Output{Findings: []model.RawFinding{{RuleID: "image-alt", Impact: "critical", Selector: "img"}}}, nil
		})
		e := newEngine(t, WithRegistry(registry(t, axe)))
		d := discover(t, e, newShop(t))

		id, err := e.StartScan(context.Background(), d.ID, nil, scanConfig("axe"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s := wait(t, e, id)
		if s.Status != model.StatusCompleted {
			t.Fatalf("expected completed scan, got %s %v", s.Status, s.Errors)
		}
		want := d.DiscoveryResult.Selection.SelectedURLs
		if len(s.Tasks) != len(want) {
			t.Fatalf("expected %d tasks, got %d", len(want), len(s.Tasks))
		}
		for _, u := range want {
			if _, ok := scanned.Load(u); !ok {
				t.Errorf("%s was not scanned", u)
			}
		}
		for _, task := range s.Tasks {
			if task.Status != model.TaskCompleted || task.Attempt != 1 || task.IssuesFound != 1 {
				t.Errorf("unexpected task %+v", task)
			}
			if p, _ := d.Page(task.PageURL); p != nil && task.Priority != p.Priority {
				t.Errorf("task %s lost its priority", task.PageURL)
			}
		}
		if len(s.Issues) != len(want) || s.ScanResult == nil || s.ScanResult.PagesCompleted != len(want) {
			t.Errorf("unexpected result %+v with %d issues", s.ScanResult, len(s.Issues))
		}
		if s.Scan.DiscoverySessionID != d.ID {
			t.Errorf("scan must reference its discovery, got %q", s.Scan.DiscoverySessionID)
		}

		log := e.Bus().Log(id)
		if log[len(log)-1].Type != events.TypeScanComplete {
			t.Errorf("expected scan_complete last, got %v", typesOf(log))
		}
		if countType(log, events.TypePageComplete) != len(want) {
			t.Errorf("expected one page_complete per page, got %v", typesOf(log))
		}
	})

	t.Run("completes despite adapter failures", func(t *testing.T) {
		t.Parallel()
		broken := adapter.NewFunc("pa11y", func(context.Context, string, time.Duration) (*adapter.Output, error) {
			return nil, errors.New("browser crashed")
		})
		e := newEngine(t, WithRegistry(registry(t, clean(), broken)))
		id, err := e.StartScan(context.Background(), "", []string{"https://example.com/a", "https://example.com/b"}, scanConfig("axe", "pa11y"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s := wait(t, e, id)
		if s.Status != model.StatusCompleted {
			t.Fatalf("expected completed scan, got %s", s.Status)
		}
		if s.ScanResult.AdapterFailures != 2 || s.ScanResult.PagesFailed != 0 {
			t.Errorf("unexpected result %+v", s.ScanResult)
		}
		for _, task := range s.Tasks {
			if task.PerAdapterStatus["pa11y"] != model.AdapterError || task.PerAdapterStatus["axe"] != model.AdapterCompleted {
				t.Errorf("unexpected adapter states %v", task.PerAdapterStatus)
			}
		}
		if countType(e.Bus().Log(id), events.TypeAdapterError) != 4 {
			t.Errorf("expected a retry and a skip per page, got %v", typesOf(e.Bus().Log(id)))
		}
	})

	t.Run("rejects invalid commands", func(t *testing.T) {
		t.Parallel()
		e := newEngine(t, WithRegistry(registry(t, clean())))
		ctx := context.Background()
		urls := []string{"https://example.com/"}

		if _, err := e.StartScan(ctx, "", urls, scanConfig()); !errors.Is(err, config.ErrNoAdapters) {
			t.Errorf("expected ErrNoAdapters, got %v", err)
		}
		if _, err := e.StartScan(ctx, "", urls, scanConfig("lighthouse")); !errors.Is(err, adapter.ErrUnknownAdapter) {
			t.Errorf("expected ErrUnknownAdapter, got %v", err)
		}
		if _, err := e.StartScan(ctx, "", nil, scanConfig("axe")); !errors.Is(err, selector.ErrEmptySelection) {
			t.Errorf("expected ErrEmptySelection, got %v", err)
		}
		if _, err := e.StartScan(ctx, "missing", nil, scanConfig("axe")); !errors.Is(err, ErrUnknownSession) {
			t.Errorf("expected ErrUnknownSession, got %v", err)
		}
		if err := e.PauseScan(ctx, "missing"); !errors.Is(err, ErrUnknownSession) {
			t.Errorf("expected ErrUnknownSession, got %v", err)
		}
	})

	t.Run("rejects a discovery still running", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			<-release
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body>slow</body></html>`)) //nolint:errcheck
		}))
		t.Cleanup(server.Close)
		t.Cleanup(func() { close(release) })

		e := newEngine(t, WithRegistry(registry(t, clean())))
		ctx := context.Background()
		id, err := e.StartDiscovery(ctx, server.URL, testConfig().DiscoveryConfig())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := e.StartScan(ctx, id, nil, scanConfig("axe")); !errors.Is(err, ErrNotReady) {
			t.Errorf("expected ErrNotReady, got %v", err)
		}
		if err := e.PauseScan(ctx, id); !errors.Is(err, ErrWrongKind) {
			t.Errorf("expected ErrWrongKind, got %v", err)
		}
		if err := e.StopDiscovery(ctx, id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s, _ := e.Get(ctx, id); s.Status != model.StatusCancelled {
			t.Errorf("expected cancelled, got %s", s.Status)
		}
	})
}

func TestEnginePauseResume(t *testing.T) {
	t.Parallel()

	started := make(chan string, 3)
	release := make(chan struct{})
	var calls atomic.Int32
	axe := adapter.NewFunc("axe", func(_ context.Context, pageURL string, _ time.Duration) (*adapter.Output, error) {
		if calls.Add(1) == 1 {
			started <- pageURL
			<-release
		}
		return &adapter.Output{}, nil
	})
	e := newEngine(t, WithRegistry(registry(t, axe)))
	ctx := context.Background()
	urls := []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}
	sc := scanConfig("axe")
	sc.AdapterTimeout = 5 * time.Second

	id, err := e.StartScan(ctx, "", urls, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-started
	if err := e.PauseScan(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.PauseScan(ctx, id); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for a second pause, got %v", err)
	}
	close(release)

	s := wait(t, e, id)
	if s.Status != model.StatusPaused {
		t.Fatalf("expected paused, got %s", s.Status)
	}
	if s.Tasks[0].Status != model.TaskCompleted {
		t.Errorf("the page in flight must finish, got %s", s.Tasks[0].Status)
	}
	for _, task := range s.Tasks[1:] {
		if task.Status != model.TaskQueued {
			t.Errorf("no page may start while paused, %s is %s", task.PageURL, task.Status)
		}
	}

	if err := e.ResumeScan(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s = wait(t, e, id)
	if s.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %s", s.Status)
	}
	for _, task := range s.Tasks {
		if task.Attempt != 1 {
			t.Errorf("%s scanned %d times", task.PageURL, task.Attempt)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 adapter calls, got %d", calls.Load())
	}

	var changes []model.SessionStatus
	for _, ev := range e.Bus().Log(id) {
		if sc, ok := ev.Payload.(events.StatusChange); ok {
			changes = append(changes, sc.To)
		}
	}
	want := []model.SessionStatus{model.StatusRunning, model.StatusPaused, model.StatusRunning, model.StatusCompleted}
	if len(changes) != len(want) {
		t.Fatalf("unexpected transitions %v", changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("transition %d: got %s, want %s", i, changes[i], want[i])
		}
	}
}

func TestEngineStopScan(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	axe := adapter.NewFunc("axe", func(ctx context.Context, _ string, _ time.Duration) (*adapter.Output, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})
	e := newEngine(t, WithRegistry(registry(t, axe)))
	ctx := context.Background()
	sc := scanConfig("axe")
	sc.AdapterTimeout = 200 * time.Millisecond

	id, err := e.StartScan(ctx, "", []string{"https://example.com/a", "https://example.com/b"}, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-started
	if err := e.StopScan(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := wait(t, e, id)
	if s.Status != model.StatusCancelled || s.FinishedAt == nil {
		t.Fatalf("expected cancelled, got %s", s.Status)
	}
	if len(s.Results) != 0 || s.ScanResult != nil {
		t.Errorf("a stopped scan must not record late results: %+v", s.Results)
	}
	if err := e.ResumeScan(ctx, id); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if err := e.StopScan(ctx, id); !errors.Is(err, ErrTerminal) {
		t.Errorf("expected ErrTerminal, got %v", err)
	}
}

func TestEngineRecover(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	started := now.Add(-time.Minute)

	scanRecord := func(id string, status model.SessionStatus) *model.Session {
		sc := scanConfig("axe")
		s := &model.Session{ID: id, Kind: model.KindScan, Status: status, CreatedAt: started, UpdatedAt: started, Scan: &sc}
		for _, u := range []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"} {
			s.Tasks = append(s.Tasks, model.NewScanTask(u, model.PriorityRepresentative, sc.Adapters))
		}
		s.Tasks[0].Status = model.TaskCompleted
		s.Tasks[0].PerAdapterStatus["axe"] = model.AdapterCompleted
		s.Tasks[0].Attempt = 1
		s.Tasks[1].Status = model.TaskRunning
		s.Tasks[1].PerAdapterStatus["axe"] = model.AdapterRunning
		s.Tasks[1].Attempt = 1
		return s
	}

	store := NewMemStore()
	ctx := context.Background()
	_ = store.Save(ctx, scanRecord("running-scan", model.StatusRunning))
	_ = store.Save(ctx, scanRecord("paused-scan", model.StatusPaused))
	_ = store.Save(ctx, &model.Session{ID: "done", Kind: model.KindScan, Status: model.StatusCompleted, CreatedAt: started})
	stale := &model.Session{
		ID: "stale-discovery", Kind: model.KindDiscovery, Status: model.StatusRunning,
		CreatedAt: started, UpdatedAt: now.Add(-48 * time.Hour),
		Discovery: &model.DiscoveryConfig{SeedURL: "https://example.com/"},
	}
	_ = store.Save(ctx, stale)

	var scanned sync.Map
	axe := adapter.NewFunc("axe", func(_ context.Context, pageURL string, _ time.Duration) (*adapter.Output, error) {
		scanned.Store(pageURL, true)
		return &adapter.Output{}, nil
	})
	e := newEngine(t, WithStore(store), WithRegistry(registry(t, axe)), WithClock(clock))

	ids, err := e.Recover(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 recovered sessions, got %v", ids)
	}

	s := wait(t, e, "running-scan")
	if s.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %s %v", s.Status, s.Errors)
	}
	if s.Tasks[1].Attempt != 2 || s.Tasks[2].Attempt != 1 {
		t.Errorf("unexpected attempts %d %d", s.Tasks[1].Attempt, s.Tasks[2].Attempt)
	}
	if _, ok := scanned.Load("https://example.com/a"); ok {
		t.Error("a completed page must not be scanned again")
	}

	paused, _ := e.Get(ctx, "paused-scan")
	if paused.Status != model.StatusPaused || paused.Tasks[1].Status != model.TaskQueued {
		t.Errorf("paused scan must stay paused with its page requeued, got %s %s", paused.Status, paused.Tasks[1].Status)
	}
	if err := e.ResumeScan(ctx, "paused-scan"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s := wait(t, e, "paused-scan"); s.Status != model.StatusCompleted {
		t.Errorf("expected completed after resume, got %s", s.Status)
	}

	d, _ := e.Get(ctx, "stale-discovery")
	if d.Status != model.StatusFailed || len(d.Errors) == 0 || !strings.Contains(d.Errors[0], "stale") {
		t.Errorf("expected stale discovery to fail, got %s %v", d.Status, d.Errors)
	}

	again, err := e.Recover(ctx)
	if err != nil || len(again) != 0 {
		t.Errorf("a second recovery must be a no-op, got %v %v", again, err)
	}
}

func TestEnginePersistenceFailure(t *testing.T) {
	t.Parallel()

	// Creation and the move to running succeed, the first checkpoint fails.
	store := &flakyStore{MemStore: NewMemStore(), ok: 2}
	e := newEngine(t, WithStore(store), WithRegistry(registry(t, clean())))
	id, err := e.StartScan(context.Background(), "", []string{"https://example.com/"}, scanConfig("axe"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := wait(t, e, id)
	if s.Status != model.StatusFailed || len(s.Errors) == 0 {
		t.Errorf("expected failed session, got %s %v", s.Status, s.Errors)
	}
}

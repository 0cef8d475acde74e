package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/a11yscan/internal/adapter"
	"github.com/nao1215/a11yscan/internal/classify"
	"github.com/nao1215/a11yscan/internal/config"
	"github.com/nao1215/a11yscan/internal/events"
	"github.com/nao1215/a11yscan/internal/mapper"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/selector"
	"github.com/nao1215/a11yscan/internal/urlutil"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrUnknownSession is returned for a session id the engine does not know.
	ErrUnknownSession = errors.New("unknown session")

	// ErrWrongKind is returned when a command targets the wrong session kind.
	ErrWrongKind = errors.New("command does not apply to this session kind")

	// ErrNotReady is returned when a discovery result is needed before the
	// discovery session has completed.
	ErrNotReady = errors.New("discovery session has not completed")
)

// Engine is the command surface of the session engine. It owns a Machine
// and at most one worker goroutine per active session.
type Engine struct {
	cfg        *config.Config
	store      Store
	bus        *events.Bus
	client     *http.Client
	registry   *adapter.Registry
	classifier *classify.Classifier
	mapper     *mapper.Mapper
	pool       *semaphore.Weighted
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*handle
	wg       sync.WaitGroup
}

// handle tracks the worker of one session.
type handle struct {
	m      *Machine
	cancel context.CancelFunc

	// pause is closed by PauseScan.
	pause chan struct{}

	// idle is closed when the worker exits. A session without a worker has
	// a closed idle channel.
	idle chan struct{}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithStore sets the session store. The default keeps sessions in memory.
func WithStore(s Store) EngineOption {
	return func(e *Engine) {
		e.store = s
	}
}

// WithBus sets the event bus.
func WithBus(b *events.Bus) EngineOption {
	return func(e *Engine) {
		e.bus = b
	}
}

// WithHTTPClient sets the client used by discovery.
func WithHTTPClient(c *http.Client) EngineOption {
	return func(e *Engine) {
		e.client = c
	}
}

// WithRegistry sets the adapter registry.
func WithRegistry(r *adapter.Registry) EngineOption {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithClassifier sets the page classifier.
func WithClassifier(c *classify.Classifier) EngineOption {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithMapper sets the finding mapper.
func WithMapper(m *mapper.Mapper) EngineOption {
	return func(e *Engine) {
		e.mapper = m
	}
}

// WithAdapterPool sets the adapter slot pool shared by all scan sessions.
func WithAdapterPool(p *semaphore.Weighted) EngineOption {
	return func(e *Engine) {
		e.pool = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an Engine. cfg supplies request credentials, the user
// agent and the recovery cutoff; per-session settings travel with each
// command.
func NewEngine(cfg *config.Config, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:      cfg,
		sessions: make(map[string]*handle),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.store == nil {
		e.store = NewMemStore()
	}
	if e.bus == nil {
		e.bus = events.NewBus(events.WithBusLogger(e.logger))
	}
	if e.client == nil {
		e.client = &http.Client{}
	}
	if e.registry == nil {
		check := adapter.NewHTMLCheck(
			adapter.WithHTTPClient(e.client),
			adapter.WithUserAgent(cfg.UserAgent),
			adapter.WithRequestHeaders(cfg.Headers, cfg.Cookie),
			adapter.WithMaxBodySize(cfg.MaxBodySize),
		)
		e.registry, _ = adapter.NewRegistry(check) //nolint:errcheck // a single adapter cannot collide
	}
	if e.classifier == nil {
		var copts []classify.Option
		if cfg.File != nil {
			copts = classify.FromConfig(cfg.File.Classifier)
		}
		e.classifier = classify.New(append(copts, classify.WithLogger(e.logger))...)
	}
	if e.mapper == nil {
		e.mapper = mapper.New()
	}
	if e.pool == nil {
		e.pool = semaphore.NewWeighted(int64(max(cfg.MaxParallelPages, 1) * max(cfg.MaxConcurrentAdapters, 1)))
	}
	return e
}

// Bus returns the event bus.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// StartDiscovery validates the configuration, creates a discovery session
// and starts crawling in the background.
func (e *Engine) StartDiscovery(ctx context.Context, seedURL string, dc model.DiscoveryConfig) (string, error) {
	seed, err := urlutil.ParseSeed(seedURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", config.ErrInvalidSeedURL, seedURL)
	}
	if dc.MaxPages <= 0 || dc.SelectionMaxPages <= 0 {
		return "", config.ErrInvalidMaxPages
	}
	if dc.MaxDepth < 0 {
		return "", config.ErrInvalidDepth
	}
	if dc.SimilarityThreshold <= 0 || dc.SimilarityThreshold > 1 {
		return "", config.ErrInvalidThreshold
	}
	if dc.Strategy == "" {
		dc.Strategy = model.StrategyWCAGEM
	}
	if !dc.Strategy.Valid() || dc.Strategy == model.StrategyManual {
		return "", fmt.Errorf("%w: %s", config.ErrUnknownStrategy, dc.Strategy)
	}
	dc.SeedURL = seed

	s := e.newSession(model.KindDiscovery)
	s.Discovery = &dc
	h, err := e.create(ctx, s)
	if err != nil {
		return "", err
	}
	e.launch(h, e.runDiscovery)
	return s.ID, nil
}

// StopDiscovery cancels a discovery session. Pages found so far are kept
// on the record.
func (e *Engine) StopDiscovery(ctx context.Context, id string) error {
	return e.stop(ctx, id, model.KindDiscovery)
}

// SelectPages replaces the selection of a completed discovery session with
// an explicit list of discovered URLs.
func (e *Engine) SelectPages(ctx context.Context, id string, urls []string) (*model.SelectionResult, error) {
	return e.reselect(ctx, id, model.StrategyManual, urls)
}

// Reselect runs another sampling strategy over a completed discovery.
func (e *Engine) Reselect(ctx context.Context, id string, strategy model.Strategy) (*model.SelectionResult, error) {
	if strategy == model.StrategyManual {
		return nil, fmt.Errorf("%w: use SelectPages for manual selection", config.ErrUnknownStrategy)
	}
	return e.reselect(ctx, id, strategy, nil)
}

func (e *Engine) reselect(ctx context.Context, id string, strategy model.Strategy, urls []string) (*model.SelectionResult, error) {
	h, err := e.handleOf(ctx, id)
	if err != nil {
		return nil, err
	}
	s := h.m.Snapshot()
	if s.Kind != model.KindDiscovery {
		return nil, fmt.Errorf("%w: %s is a %s session", ErrWrongKind, id, s.Kind)
	}
	if s.Status != model.StatusCompleted || s.DiscoveryResult == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotReady, id, s.Status)
	}

	opts := selectorOptions(s.Discovery)
	opts.Strategy = strategy
	opts.ManualURLs = urls
	sel, err := selector.Select(s.Pages, s.DiscoveryResult.Groups, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to select pages: %w", err)
	}
	err = h.m.Amend(ctx, func(s *model.Session) {
		s.Pages = selector.Apply(s.Pages, sel)
		s.DiscoveryResult.Selection = sel
	})
	if err != nil {
		return nil, err
	}
	return sel.Clone(), nil
}

// StartScan creates a scan session and starts it in the background.
// When selectedURLs is empty the current selection of the discovery
// session is scanned.
func (e *Engine) StartScan(ctx context.Context, discoveryID string, selectedURLs []string, sc model.ScanConfig) (string, error) {
	if len(sc.Adapters) == 0 {
		return "", config.ErrNoAdapters
	}
	if _, err := e.registry.Enabled(sc.Adapters); err != nil {
		return "", err
	}

	var pages map[string]*model.DiscoveredPage
	if discoveryID != "" {
		h, err := e.handleOf(ctx, discoveryID)
		if err != nil {
			return "", err
		}
		d := h.m.Snapshot()
		if d.Kind != model.KindDiscovery {
			return "", fmt.Errorf("%w: %s is a %s session", ErrWrongKind, discoveryID, d.Kind)
		}
		if d.Status != model.StatusCompleted {
			return "", fmt.Errorf("%w: %s is %s", ErrNotReady, discoveryID, d.Status)
		}
		if len(selectedURLs) == 0 && d.DiscoveryResult != nil && d.DiscoveryResult.Selection != nil {
			selectedURLs = d.DiscoveryResult.Selection.SelectedURLs
		}
		pages = make(map[string]*model.DiscoveredPage, len(d.Pages))
		for _, p := range d.Pages {
			pages[p.URL] = p
		}
	}

	urls, err := normalizeAll(selectedURLs)
	if err != nil {
		return "", err
	}
	if len(urls) == 0 {
		return "", selector.ErrEmptySelection
	}

	s := e.newSession(model.KindScan)
	sc.DiscoverySessionID = discoveryID
	s.Scan = &sc
	for _, u := range urls {
		task := model.NewScanTask(u, model.PriorityRepresentative, sc.Adapters)
		if p, ok := pages[u]; ok {
			task.Priority = p.Priority
			task.Role = p.Role
		}
		s.Tasks = append(s.Tasks, task)
	}

	h, err := e.create(ctx, s)
	if err != nil {
		return "", err
	}
	e.launch(h, e.runScan)
	return s.ID, nil
}

// PauseScan stops the dispatch of new pages. Pages in flight finish and
// are recorded.
func (e *Engine) PauseScan(ctx context.Context, id string) error {
	h, err := e.scanHandle(ctx, id)
	if err != nil {
		return err
	}
	if err := h.m.Transition(ctx, model.StatusPaused, ""); err != nil {
		return err
	}
	e.mu.Lock()
	close(h.pause)
	e.mu.Unlock()
	return nil
}

// ResumeScan continues a paused scan at the next unprocessed page. It waits
// for pages still in flight from before the pause.
func (e *Engine) ResumeScan(ctx context.Context, id string) error {
	h, err := e.scanHandle(ctx, id)
	if err != nil {
		return err
	}
	if h.m.Status() != model.StatusPaused {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, h.m.Status())
	}
	select {
	case <-h.idle:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := h.m.Transition(ctx, model.StatusRunning, ""); err != nil {
		return err
	}
	e.mu.Lock()
	h.pause = make(chan struct{})
	e.mu.Unlock()
	e.launch(h, e.runScan)
	return nil
}

// StopScan cancels a scan session. Adapter calls in flight run to their end
// but their results are discarded.
func (e *Engine) StopScan(ctx context.Context, id string) error {
	return e.stop(ctx, id, model.KindScan)
}

// Get returns a snapshot of a session.
func (e *Engine) Get(ctx context.Context, id string) (*model.Session, error) {
	e.mu.Lock()
	h, ok := e.sessions[id]
	e.mu.Unlock()
	if ok {
		return h.m.Snapshot(), nil
	}
	s, err := e.store.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, err
}

// List returns all persisted sessions.
func (e *Engine) List(ctx context.Context) ([]*model.Session, error) {
	return e.store.List(ctx)
}

// Wait blocks until the session's worker has exited, which happens when
// the session is terminal or paused, and returns the session.
func (e *Engine) Wait(ctx context.Context, id string) (*model.Session, error) {
	for {
		e.mu.Lock()
		h, ok := e.sessions[id]
		var idle chan struct{}
		if ok {
			idle = h.idle
		}
		e.mu.Unlock()
		if !ok {
			return e.Get(ctx, id)
		}

		select {
		case <-idle:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		// A resume may have started a new worker in the meantime.
		e.mu.Lock()
		same := h.idle == idle
		e.mu.Unlock()
		if same {
			return h.m.Snapshot(), nil
		}
	}
}

// Shutdown cancels every worker without changing session states, so that
// Recover can pick the sessions up later, and waits for them to exit.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	for _, h := range e.sessions {
		if h.cancel != nil {
			h.cancel()
		}
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) newSession(kind model.SessionKind) *model.Session {
	now := e.now().UTC()
	return &model.Session{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Errors:    make([]string, 0),
		Warnings:  make([]string, 0),
	}
}

// create persists a new session, registers it and moves it to running.
func (e *Engine) create(ctx context.Context, s *model.Session) (*handle, error) {
	if err := e.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	h := e.register(s)
	if err := h.m.Transition(ctx, model.StatusRunning, ""); err != nil {
		return nil, err
	}
	return h, nil
}

// register adds a Machine for s with no worker running.
func (e *Engine) register(s *model.Session) *handle {
	m := NewMachine(s, e.store, e.bus, e.logger)
	m.now = e.now
	idle := make(chan struct{})
	close(idle)
	h := &handle{m: m, pause: make(chan struct{}), idle: idle}

	e.mu.Lock()
	e.sessions[s.ID] = h
	e.mu.Unlock()
	return h
}

// launch starts a worker for h.
func (e *Engine) launch(h *handle, worker func(ctx context.Context, h *handle)) {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})

	e.mu.Lock()
	h.cancel = cancel
	h.idle = idle
	pause := h.pause
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(idle)
		defer cancel()
		worker(ctx, &handle{m: h.m, cancel: cancel, pause: pause, idle: idle})
	}()
}

func (e *Engine) stop(ctx context.Context, id string, kind model.SessionKind) error {
	h, err := e.handleOf(ctx, id)
	if err != nil {
		return err
	}
	s := h.m.Snapshot()
	if s.Kind != kind {
		return fmt.Errorf("%w: %s is a %s session", ErrWrongKind, id, s.Kind)
	}
	if err := h.m.Transition(ctx, model.StatusCancelled, ""); err != nil {
		return err
	}
	e.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	e.mu.Unlock()
	return nil
}

func (e *Engine) scanHandle(ctx context.Context, id string) (*handle, error) {
	h, err := e.handleOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if kind := h.m.Snapshot().Kind; kind != model.KindScan {
		return nil, fmt.Errorf("%w: %s is a %s session", ErrWrongKind, id, kind)
	}
	return h, nil
}

// handleOf returns the handle of a session, loading it and its event log
// from the store on demand.
func (e *Engine) handleOf(ctx context.Context, id string) (*handle, error) {
	e.mu.Lock()
	h, ok := e.sessions[id]
	e.mu.Unlock()
	if ok {
		return h, nil
	}
	s, err := e.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
		}
		return nil, err
	}
	e.restoreEvents(ctx, id)
	return e.register(s), nil
}

// normalizeAll normalizes and deduplicates URLs, keeping their order.
func normalizeAll(urls []string) ([]string, error) {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		u, err := urlutil.Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid page URL %q: %w", raw, err)
		}
		if !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	return out, nil
}

func selectorOptions(dc *model.DiscoveryConfig) selector.Options {
	return selector.Options{
		Strategy:      dc.Strategy,
		MaxPages:      dc.SelectionMaxPages,
		Seed:          dc.Seed,
		CriticalPaths: dc.CriticalPaths,
		Journeys:      dc.Journeys,
	}
}

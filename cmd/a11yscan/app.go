package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/a11yscan/internal/adapter"
	"github.com/nao1215/a11yscan/internal/config"
	"github.com/nao1215/a11yscan/internal/database"
	"github.com/nao1215/a11yscan/internal/events"
	"github.com/nao1215/a11yscan/internal/log"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/session"
)

// shutdownTimeout bounds how long closing the app waits for workers.
const shutdownTimeout = 30 * time.Second

// errNoDatabase is returned by commands that need persisted sessions.
var errNoDatabase = errors.New("this command needs the session database (remove --no-db)")

// app wires the session engine for one CLI invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	engine *session.Engine
	bus    *events.Bus

	// db is nil with --no-db.
	db    *database.SessionDB
	redis *events.RedisSink

	progress *progressPrinter

	mu      sync.Mutex
	current string
	kind    model.SessionKind
}

// newApp opens the database, connects the event sinks and creates the
// engine. Progress lines are written to progress.
func newApp(ctx context.Context, cfg *config.Config, progress io.Writer) (*app, error) {
	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		progress: newProgressPrinter(progress),
	}

	busOpts := []events.BusOption{events.WithBusLogger(logger)}
	var store session.Store = session.NewMemStore()
	if !cfg.NoDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.db = db
		store = db
		busOpts = append(busOpts, events.WithSink(db))
		logger.Info("database opened", "path", db.Path())
	}
	if cfg.RedisURL != "" {
		sink, err := events.NewRedisSink(ctx, cfg.RedisURL)
		if err != nil {
			a.closeSinks()
			return nil, err
		}
		a.redis = sink
		busOpts = append(busOpts, events.WithSink(sink))
		logger.Info("publishing events to redis", "channel_prefix", events.ChannelPrefix)
	}
	a.bus = events.NewBus(busOpts...)

	registry, err := newRegistry(cfg)
	if err != nil {
		a.closeSinks()
		return nil, err
	}

	a.engine = session.NewEngine(cfg,
		session.WithStore(store),
		session.WithBus(a.bus),
		session.WithRegistry(registry),
		session.WithLogger(logger),
	)
	return a, nil
}

// newRegistry registers the built-in htmlcheck analyzer and the command
// analyzers of the config file.
func newRegistry(cfg *config.Config) (*adapter.Registry, error) {
	registry, err := adapter.NewRegistry(adapter.NewHTMLCheck(
		adapter.WithUserAgent(cfg.UserAgent),
		adapter.WithRequestHeaders(cfg.Headers, cfg.Cookie),
		adapter.WithMaxBodySize(cfg.MaxBodySize),
	))
	if err != nil {
		return nil, err
	}
	if cfg.File == nil {
		return registry, nil
	}
	for _, ac := range cfg.File.Adapters {
		a, err := adapter.FromConfig(ac)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(a); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Close stops the workers without changing session states, so that
// "a11yscan resume" can continue them, and closes the sinks.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.engine.Shutdown(ctx); err != nil {
		a.logger.Warn("workers did not stop in time", "error", err)
	}
	a.bus.Close()
	a.closeSinks()
}

func (a *app) closeSinks() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
}

// setCurrent records the session that an interrupt stops.
func (a *app) setCurrent(id string, kind model.SessionKind) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = id
	a.kind = kind
}

// stopCurrent stops the session recorded by setCurrent.
func (a *app) stopCurrent() {
	a.mu.Lock()
	id, kind := a.current, a.kind
	a.mu.Unlock()
	if id == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var err error
	if kind == model.KindDiscovery {
		err = a.engine.StopDiscovery(ctx, id)
	} else {
		err = a.engine.StopScan(ctx, id)
	}
	if err != nil && !errors.Is(err, session.ErrTerminal) {
		a.logger.Error("failed to stop session", "session_id", id, "error", err)
	}
}

// stopOnInterrupt stops the current session on SIGINT or SIGTERM until the
// returned function is called.
func (a *app) stopOnInterrupt() func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			a.logger.Info("received shutdown signal, stopping session...")
			a.stopCurrent()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// run starts a session with start, prints its progress until the worker
// exits and returns the final session.
func (a *app) run(ctx context.Context, kind model.SessionKind, start func(ctx context.Context) (string, error)) (*model.Session, error) {
	sub := a.bus.Subscribe("", 256)
	followed := a.progress.follow(sub)
	defer func() {
		sub.Close()
		<-followed
	}()

	id, err := start(ctx)
	if err != nil {
		return nil, err
	}
	a.setCurrent(id, kind)
	a.progress.started(kind, id)
	return a.engine.Wait(ctx, id)
}

// discover runs a discovery session for the configured seed and applies a
// manual selection when one was given.
func (a *app) discover(ctx context.Context) (*model.Session, error) {
	dc := a.cfg.DiscoveryConfig()
	manual := dc.Strategy == model.StrategyManual
	if manual {
		// Discovery samples with the default strategy; the explicit list
		// replaces that sample afterwards.
		dc.Strategy = model.StrategyWCAGEM
	}

	d, err := a.run(ctx, model.KindDiscovery, func(ctx context.Context) (string, error) {
		return a.engine.StartDiscovery(ctx, a.cfg.SeedURL, dc)
	})
	if err != nil {
		return nil, err
	}
	if d.Status != model.StatusCompleted {
		return d, fmt.Errorf("discovery %s ended %s", d.ID, d.Status)
	}
	if !manual {
		return d, nil
	}

	if _, err := a.engine.SelectPages(ctx, d.ID, a.cfg.ManualURLs); err != nil {
		return d, fmt.Errorf("failed to select pages: %w", err)
	}
	return a.engine.Get(ctx, d.ID)
}

// scan runs a scan session over the current selection of discovery.
func (a *app) scan(ctx context.Context, discovery *model.Session) (*model.Session, error) {
	return a.run(ctx, model.KindScan, func(ctx context.Context) (string, error) {
		return a.engine.StartScan(ctx, discovery.ID, nil, a.cfg.ScanConfig())
	})
}

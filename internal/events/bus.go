package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// sinkTimeout bounds a single sink write.
const sinkTimeout = 5 * time.Second

// Sink receives every published event in log order.
type Sink interface {
	WriteEvent(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Event) error

// WriteEvent calls f.
func (f SinkFunc) WriteEvent(ctx context.Context, e Event) error { return f(ctx, e) }

// Bus owns the per-session event logs and fans events out to subscribers
// and sinks. It is safe for concurrent use.
//
// Each sink is fed by its own queue and goroutine, so a slow sink delays
// neither publishers nor the other sinks.
type Bus struct {
	mu      sync.Mutex
	logs    map[string][]Event
	subs    map[*Subscription]struct{}
	sinks   []Sink
	workers []*sinkWorker // fixed by NewBus
	closed  bool

	logger *slog.Logger
	now    func() time.Time
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithSink adds a sink.
func WithSink(s Sink) BusOption {
	return func(b *Bus) {
		b.sinks = append(b.sinks, s)
	}
}

// WithBusLogger sets the logger used for sink failures.
func WithBusLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) BusOption {
	return func(b *Bus) {
		b.now = now
	}
}

// NewBus creates an empty Bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		logs: make(map[string][]Event),
		subs: make(map[*Subscription]struct{}),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	for _, s := range b.sinks {
		b.workers = append(b.workers, startSinkWorker(s, b.logger))
	}
	return b
}

// Publish appends an event to the session's log and delivers it.
// Subscribers with a full buffer miss the event; sinks always receive it,
// in publish order, after Publish returns.
// After Close the event is returned but neither logged nor delivered.
func (b *Bus) Publish(sessionID string, p Payload) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := Event{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sequence:  len(b.logs[sessionID]) + 1,
		Type:      p.EventType(),
		Timestamp: b.now().UTC(),
		Payload:   p,
	}
	if b.closed {
		return e
	}
	b.logs[sessionID] = append(b.logs[sessionID], e)

	for sub := range b.subs {
		if sub.sessionID != "" && sub.sessionID != sessionID {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			sub.dropped.Add(1)
		}
	}

	for _, w := range b.workers {
		w.enqueue(e)
	}
	return e
}

// Flush blocks until every event published before the call has been
// handed to the sinks.
func (b *Bus) Flush() {
	for _, w := range b.workers {
		w.flush()
	}
}

// Restore seeds a session's log with previously persisted events, so that
// sequence numbers continue after a restart. Sinks are not called.
func (b *Bus) Restore(sessionID string, events []Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs[sessionID] = slices.Clone(events)
}

// Log returns a snapshot of the session's event log.
func (b *Bus) Log(sessionID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.logs[sessionID])
}

// Subscribe returns a subscription to one session's events, or to every
// session when sessionID is empty. buf is the channel buffer size.
func (b *Bus) Subscribe(sessionID string, buf int) *Subscription {
	ch := make(chan Event, max(buf, 1))
	sub := &Subscription{C: ch, ch: ch, sessionID: sessionID, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Close closes every subscription, writes the queued events to the sinks
// and stops their workers. Later publishes are not delivered.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
	b.mu.Unlock()

	for _, w := range b.workers {
		w.stop()
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Subscription is a buffered stream of events.
type Subscription struct {
	// C delivers events. It is closed by Close or when the Bus closes.
	C <-chan Event

	ch        chan Event
	sessionID string
	bus       *Bus
	dropped   atomic.Int64
}

// Close stops delivery and closes C.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// Dropped returns how many events were skipped because the buffer was full.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// sinkWorker writes events to one sink in queue order.
type sinkWorker struct {
	sink   Sink
	logger *slog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Event
	enqueued int
	written  int
	closed   bool
	done     chan struct{}
}

func startSinkWorker(s Sink, logger *slog.Logger) *sinkWorker {
	w := &sinkWorker{sink: s, logger: logger, done: make(chan struct{})}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

func (w *sinkWorker) enqueue(e Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.queue = append(w.queue, e)
	w.enqueued++
	w.cond.Broadcast()
}

// flush waits until every event enqueued so far is written.
func (w *sinkWorker) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	target := w.enqueued
	for w.written < target {
		w.cond.Wait()
	}
}

// stop drains the queue and ends the worker.
func (w *sinkWorker) stop() {
	w.mu.Lock()
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()
	<-w.done
}

func (w *sinkWorker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		batch := w.queue
		w.queue = nil
		w.mu.Unlock()

		for _, e := range batch {
			w.write(e)
		}

		w.mu.Lock()
		w.written += len(batch)
		w.cond.Broadcast()
		w.mu.Unlock()
	}
}

func (w *sinkWorker) write(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := w.sink.WriteEvent(ctx, e); err != nil {
		w.logger.Warn("event sink failed",
			"session_id", e.SessionID,
			"event_type", e.Type,
			"error", err,
		)
	}
}

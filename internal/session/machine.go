package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/a11yscan/internal/events"
	"github.com/nao1215/a11yscan/internal/model"
)

// Publisher receives session events.
type Publisher interface {
	Publish(sessionID string, p events.Payload) events.Event
}

// Machine owns one session record and is its single writer.
// It is safe for concurrent use.
type Machine struct {
	mu        sync.Mutex
	s         *model.Session
	store     Store
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewMachine wraps s. The record is not saved until the first change.
func NewMachine(s *model.Session, store Store, publisher Publisher, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{s: s.Clone(), store: store, publisher: publisher, logger: logger, now: time.Now}
}

// ID returns the session id.
func (m *Machine) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.ID
}

// Status returns the current state.
func (m *Machine) Status() model.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.Status
}

// Snapshot returns a copy of the current record.
func (m *Machine) Snapshot() *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.Clone()
}

// Transition moves the session to state to. For failed sessions a non-empty
// reason is appended to the session errors. A persistence failure fails the
// session and is returned.
func (m *Machine) Transition(ctx context.Context, to model.SessionStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.s.Status
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, m.s.ID, from)
	}
	if !Allowed(m.s.Kind, from, to) {
		return fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, from, to)
	}

	next := m.s.Clone()
	m.apply(next, to, reason)
	if err := m.commit(ctx, next); err != nil {
		return err
	}
	m.logger.Info("session state changed",
		"session_id", next.ID,
		"from", from,
		"to", to,
	)
	m.publish(events.StatusChange{From: from, To: to, Reason: reason})
	return nil
}

// Update applies fn to a copy of the record and persists it. Terminal
// sessions ignore updates and return ErrTerminal.
func (m *Machine) Update(ctx context.Context, fn func(s *model.Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.s.Status.IsTerminal() {
		return ErrTerminal
	}
	next := m.s.Clone()
	fn(next)
	next.UpdatedAt = m.now().UTC()
	return m.commit(ctx, next)
}

// Amend applies fn to a completed session. It is used to replace the page
// selection of a finished discovery; status fields must not be changed by fn.
func (m *Machine) Amend(ctx context.Context, fn func(s *model.Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.s.Status != model.StatusCompleted {
		return fmt.Errorf("%w: %s is %s", ErrNotReady, m.s.ID, m.s.Status)
	}
	next := m.s.Clone()
	fn(next)
	next.Status = model.StatusCompleted
	next.UpdatedAt = m.now().UTC()
	return m.commit(ctx, next)
}

// Fail moves the session to failed, recording cause. It is a no-op for
// terminal sessions.
func (m *Machine) Fail(ctx context.Context, cause error) error {
	err := m.Transition(ctx, model.StatusFailed, cause.Error())
	if errors.Is(err, ErrTerminal) {
		return nil
	}
	return err
}

// apply sets the status fields of next for a move to state to.
func (m *Machine) apply(next *model.Session, to model.SessionStatus, reason string) {
	now := m.now().UTC()
	next.Status = to
	next.UpdatedAt = now
	if to == model.StatusRunning && next.StartedAt == nil {
		next.StartedAt = &now
	}
	if to.IsTerminal() {
		next.FinishedAt = &now
	}
	if to == model.StatusFailed && reason != "" {
		next.Errors = append(next.Errors, reason)
	}
}

// commit persists next and makes it current. When the write fails the
// session is failed in memory and a best effort write of that state is made.
func (m *Machine) commit(ctx context.Context, next *model.Session) error {
	if err := m.store.Save(ctx, next); err != nil {
		cause := fmt.Errorf("failed to persist session %s: %w", next.ID, err)
		m.logger.Error("session persistence failed",
			"session_id", next.ID,
			"error", err,
		)
		from := m.s.Status
		failed := m.s.Clone()
		m.apply(failed, model.StatusFailed, cause.Error())
		_ = m.store.Save(ctx, failed) //nolint:errcheck // best effort after a failed write
		m.s = failed
		m.publish(events.StatusChange{From: from, To: model.StatusFailed, Reason: cause.Error()})
		return cause
	}
	m.s = next
	return nil
}

func (m *Machine) publish(p events.Payload) {
	if m.publisher != nil {
		m.publisher.Publish(m.s.ID, p)
	}
}

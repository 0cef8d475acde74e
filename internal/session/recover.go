package session

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/a11yscan/internal/events"
	"github.com/nao1215/a11yscan/internal/model"
)

// EventLoader is implemented by stores that also keep the event log.
type EventLoader interface {
	Events(ctx context.Context, sessionID string) ([]events.Event, error)
}

// Recover reloads every non-terminal session from the store and returns
// the ids of the sessions it took over.
//
// Scan sessions put pages that were in flight back into the queue; running
// scans restart at the next unprocessed page and paused scans wait for
// ResumeScan. Discovery sessions untouched for longer than the configured
// cutoff are failed as stale; younger ones continue crawling and keep the
// pages already found.
func (e *Engine) Recover(ctx context.Context) ([]string, error) {
	sessions, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var recovered []string
	for _, s := range sessions {
		if s.IsTerminal() {
			continue
		}
		e.mu.Lock()
		_, active := e.sessions[s.ID]
		e.mu.Unlock()
		if active {
			continue
		}

		e.restoreEvents(ctx, s.ID)
		h := e.register(s)
		var ok bool
		switch s.Kind {
		case model.KindDiscovery:
			ok = e.recoverDiscovery(ctx, h)
		case model.KindScan:
			ok = e.recoverScan(ctx, h)
		}
		if ok {
			recovered = append(recovered, s.ID)
		}
	}
	return recovered, nil
}

// restoreEvents loads the persisted event log of a session into the bus so
// that new events continue its sequence.
func (e *Engine) restoreEvents(ctx context.Context, id string) {
	loader, ok := e.store.(EventLoader)
	if !ok {
		return
	}
	log, err := loader.Events(ctx, id)
	if err != nil {
		e.logger.Warn("failed to load event log", "session_id", id, "error", err)
		return
	}
	e.bus.Restore(id, log)
}

func (e *Engine) recoverDiscovery(ctx context.Context, h *handle) bool {
	s := h.m.Snapshot()
	age := e.now().Sub(s.UpdatedAt)
	if cutoff := e.cfg.StaleDiscoveryAfter; cutoff > 0 && age > cutoff {
		e.logger.Warn("discarding stale discovery", "session_id", s.ID, "age", age.Round(time.Second))
		_ = h.m.Fail(ctx, fmt.Errorf("stale discovery: interrupted %s ago", age.Round(time.Second))) //nolint:errcheck // recorded on the session
		return false
	}
	if s.Status == model.StatusPending {
		if err := h.m.Transition(ctx, model.StatusRunning, ""); err != nil {
			return false
		}
	}
	e.logger.Info("resuming discovery", "session_id", s.ID, "pages_known", len(s.Pages))
	e.launch(h, e.runDiscovery)
	return true
}

func (e *Engine) recoverScan(ctx context.Context, h *handle) bool {
	err := h.m.Update(ctx, func(s *model.Session) {
		for _, t := range s.Tasks {
			if t.Status != model.TaskRunning {
				continue
			}
			t.Status = model.TaskQueued
			t.StartedAt = nil
			for name := range t.PerAdapterStatus {
				t.PerAdapterStatus[name] = model.AdapterPending
			}
		}
	})
	if err != nil {
		return false
	}

	switch h.m.Status() {
	case model.StatusPaused:
		e.logger.Info("recovered paused scan", "session_id", h.m.ID())
		return true
	case model.StatusPending:
		if err := h.m.Transition(ctx, model.StatusRunning, ""); err != nil {
			return false
		}
	}
	e.logger.Info("resuming scan", "session_id", h.m.ID())
	e.launch(h, e.runScan)
	return true
}

package session

import (
	"context"

	"github.com/nao1215/a11yscan/internal/events"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/orchestrator"
	"github.com/nao1215/a11yscan/internal/retry"
)

// runScan runs the orchestrator over the session's tasks. It returns when
// every task is terminal, the scan is paused or stopped, or the engine
// shuts down.
func (e *Engine) runScan(ctx context.Context, h *handle) {
	persist := context.WithoutCancel(ctx)
	s := h.m.Snapshot()
	sc := s.Scan

	adapters, err := e.registry.Enabled(sc.Adapters)
	if err != nil {
		_ = h.m.Fail(persist, err) //nolint:errcheck // recorded on the session
		return
	}
	orch, err := orchestrator.New(adapters,
		orchestrator.WithPolicy(retry.Policy{
			MaxRetries:     sc.MaxRetries,
			Timeout:        sc.AdapterTimeout,
			InitialBackoff: sc.InitialBackoff,
			MaxBackoff:     sc.MaxBackoff,
			Multiplier:     2,
		}),
		orchestrator.WithMaxParallelPages(sc.MaxParallelPages),
		orchestrator.WithMaxConcurrentAdapters(sc.MaxConcurrentAdapters),
		orchestrator.WithPool(e.pool),
		orchestrator.WithPublisher(e.bus),
		orchestrator.WithMapper(e.mapper),
		orchestrator.WithLogger(e.logger),
		orchestrator.WithClock(e.now),
	)
	if err != nil {
		_ = h.m.Fail(persist, err) //nolint:errcheck // recorded on the session
		return
	}

	out, err := orch.Run(ctx, orchestrator.Plan{
		SessionID:        s.ID,
		Tasks:            s.Tasks,
		IssuesBySeverity: countIssues(s.Issues),
		Sink:             &checkpoint{m: h.m, ctx: persist},
		Pause:            h.pause,
	})
	if h.m.Status().IsTerminal() {
		// Stopped, or failed by a checkpoint write.
		return
	}
	if err != nil {
		_ = h.m.Fail(persist, err) //nolint:errcheck // recorded on the session
		return
	}
	if out.Halted {
		return
	}
	e.completeScan(persist, h)
}

// completeScan records the scan summary and completes the session.
func (e *Engine) completeScan(ctx context.Context, h *handle) {
	if h.m.Status() == model.StatusPaused {
		// The pause arrived after the last page was dispatched.
		if err := h.m.Transition(ctx, model.StatusRunning, ""); err != nil {
			return
		}
	}

	s := h.m.Snapshot()
	result := &model.ScanResult{
		IssuesBySeverity: countIssues(s.Issues),
		PagesTotal:       len(s.Tasks),
	}
	for _, t := range s.Tasks {
		switch t.Status {
		case model.TaskCompleted:
			result.PagesCompleted++
		case model.TaskError:
			result.PagesFailed++
		}
	}
	for _, r := range s.Results {
		if !r.Succeeded() {
			result.AdapterFailures++
		}
	}
	result.OverallScore = model.OverallScore(result.IssuesBySeverity, result.PagesTotal)

	err := h.m.Update(ctx, func(s *model.Session) {
		s.ScanResult = result
		s.ProgressPercent = 100
	})
	if err != nil {
		return
	}
	if err := h.m.Transition(ctx, model.StatusCompleted, ""); err != nil {
		return
	}
	e.bus.Publish(s.ID, events.ScanComplete{
		OverallScore:     result.OverallScore,
		IssuesBySeverity: result.IssuesBySeverity.Clone(),
		PagesTotal:       result.PagesTotal,
	})
}

// checkpoint writes orchestrator progress through the session's Machine.
type checkpoint struct {
	m   *Machine
	ctx context.Context
}

func (c *checkpoint) PageStarted(_ context.Context, task *model.ScanTask) error {
	return c.m.Update(c.ctx, func(s *model.Session) {
		replaceTask(s, task)
	})
}

func (c *checkpoint) PageFinished(_ context.Context, page orchestrator.PageResult) error {
	return c.m.Update(c.ctx, func(s *model.Session) {
		replaceTask(s, page.Task)
		s.Results = append(s.Results, page.Results...)
		s.Issues = append(s.Issues, page.Issues...)
		done := 0
		for _, t := range s.Tasks {
			if t.Status.IsTerminal() {
				done++
			}
		}
		s.ProgressPercent = percentOf(done, len(s.Tasks))
	})
}

func replaceTask(s *model.Session, task *model.ScanTask) {
	for i, t := range s.Tasks {
		if t.PageURL == task.PageURL {
			s.Tasks[i] = task.Clone()
			return
		}
	}
}

func countIssues(issues []model.Issue) model.SeverityCounts {
	counts := model.NewSeverityCounts()
	for _, i := range issues {
		counts.Add(i.Severity)
	}
	return counts
}

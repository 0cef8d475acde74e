package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/nao1215/a11yscan/internal/adapter"
	"github.com/nao1215/a11yscan/internal/events"
	"github.com/nao1215/a11yscan/internal/mapper"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/retry"
	"golang.org/x/sync/errgroup"
)

// runPage runs every adapter on one page and checkpoints the result.
// A page interrupted by ctx is left unfinished and not checkpointed.
func (r *run) runPage(ctx context.Context, task *model.ScanTask) error {
	o := r.o
	start := o.now()
	startedAt := start.UTC()
	task.Status = model.TaskRunning
	task.Attempt++
	task.StartedAt = &startedAt
	task.CompletedAt = nil
	if task.PerAdapterStatus == nil {
		task.PerAdapterStatus = make(map[string]model.AdapterStatus, len(o.adapters))
	}
	for _, a := range o.adapters {
		task.PerAdapterStatus[a.Name()] = model.AdapterPending
	}

	if r.plan.Sink != nil {
		if err := r.plan.Sink.PageStarted(ctx, task.Clone()); err != nil {
			return fmt.Errorf("failed to checkpoint start of %s: %w", task.PageURL, err)
		}
	}
	o.logger.Debug("scanning page",
		"session_id", r.plan.SessionID,
		"page_url", task.PageURL,
		"attempt", task.Attempt,
	)

	page := mapper.Page{URL: task.PageURL, Priority: task.Priority, Role: task.Role}

	var mu sync.Mutex
	setStatus := func(name string, status model.AdapterStatus) {
		mu.Lock()
		task.PerAdapterStatus[name] = status
		mu.Unlock()
		r.progress(task.PageURL, name, status)
	}

	results := make([]model.AdapterResult, len(o.adapters))
	finished := make([]bool, len(o.adapters))

	// Adapter goroutines never fail the group; interruption is detected
	// through finished.
	var ag errgroup.Group
	ag.SetLimit(o.maxConcurrentAdapters)
	for i, a := range o.adapters {
		if ctx.Err() != nil {
			break
		}
		ag.Go(func() error {
			if err := o.pool.Acquire(ctx, 1); err != nil {
				return nil
			}
			defer o.pool.Release(1)

			res, ok := r.runAdapter(ctx, a, page, setStatus)
			if !ok {
				return nil
			}
			mu.Lock()
			results[i] = res
			finished[i] = true
			mu.Unlock()
			return nil
		})
	}
	_ = ag.Wait() //nolint:errcheck // adapter goroutines always return nil

	if ctx.Err() != nil {
		o.logger.Debug("page interrupted",
			"session_id", r.plan.SessionID,
			"page_url", task.PageURL,
		)
		return nil
	}
	for _, ok := range finished {
		if !ok {
			return nil
		}
	}

	issues := make([]model.Issue, 0)
	succeeded := 0
	for _, res := range results {
		if !res.Succeeded() {
			continue
		}
		succeeded++
		issues = append(issues, o.mapper.MapAll(res.AdapterName, res.Findings, page)...)
	}

	done := o.now()
	completedAt := done.UTC()
	task.CompletedAt = &completedAt
	task.DurationMs = done.Sub(start).Milliseconds()
	task.IssuesFound = len(issues)
	task.Status = model.TaskCompleted
	if succeeded == 0 {
		task.Status = model.TaskError
	}

	if r.plan.Sink != nil {
		err := r.plan.Sink.PageFinished(ctx, PageResult{Task: task.Clone(), Results: results, Issues: issues})
		if err != nil {
			return fmt.Errorf("failed to checkpoint %s: %w", task.PageURL, err)
		}
	}

	r.mu.Lock()
	r.completed++
	if task.Status == model.TaskError {
		r.failed++
	}
	r.adapterFailures += len(results) - succeeded
	for _, issue := range issues {
		r.issues.Add(issue.Severity)
	}
	r.mu.Unlock()

	o.logger.Info("page complete",
		"session_id", r.plan.SessionID,
		"page_url", task.PageURL,
		"status", task.Status,
		"issues", task.IssuesFound,
		"duration_ms", task.DurationMs,
	)
	r.publish(events.PageComplete{
		URL:         task.PageURL,
		Status:      task.Status,
		IssuesFound: task.IssuesFound,
		DurationMs:  task.DurationMs,
	})
	r.progress(task.PageURL, "", "")
	return nil
}

// runAdapter runs one adapter with retries. ok is false when the adapter
// was interrupted by ctx before reaching a terminal result.
func (r *run) runAdapter(ctx context.Context, a adapter.Adapter, page mapper.Page, setStatus func(string, model.AdapterStatus)) (model.AdapterResult, bool) {
	o := r.o
	name := a.Name()
	policy := o.policy
	policy.Timeout = adapter.TimeoutFor(a, policy.Timeout)

	setStatus(name, model.AdapterRunning)
	start := o.now()

	var out attemptOutput
	attempts, err := retry.Do(ctx, policy, func(actx context.Context) error {
		res, err := a.Run(actx, page.URL, policy.Timeout)
		if err != nil {
			return err
		}
		out.keep(actx, res)
		return nil
	}, func(at retry.Attempt) {
		action := events.ActionRetry
		if at.Final {
			action = events.ActionSkip
		}
		o.logger.Warn("adapter attempt failed",
			"session_id", r.plan.SessionID,
			"page_url", page.URL,
			"adapter", name,
			"attempt", at.Number,
			"max_attempts", at.MaxAttempts,
			"action", action,
			"error", at.Err,
		)
		r.publish(events.AdapterError{
			URL:         page.URL,
			Adapter:     name,
			Error:       at.Err.Error(),
			Action:      action,
			Attempt:     at.Number,
			MaxAttempts: at.MaxAttempts,
		})
	})
	if ctx.Err() != nil {
		return model.AdapterResult{}, false
	}

	res := model.AdapterResult{
		AdapterName: name,
		PageURL:     page.URL,
		Attempt:     attempts,
		DurationMs:  o.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		res.Error = err.Error()
		setStatus(name, model.AdapterError)
		return res, true
	}
	if output := out.load(); output != nil {
		res.Findings = output.Findings
	}
	setStatus(name, model.AdapterCompleted)
	return res, true
}

// attemptOutput holds the output of the attempt that retry.Do accepted.
// An attempt abandoned after its timeout still runs to completion; its
// context is done by then, so its output is dropped.
type attemptOutput struct {
	mu  sync.Mutex
	out *adapter.Output
}

func (a *attemptOutput) keep(actx context.Context, out *adapter.Output) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if actx.Err() == nil {
		a.out = out
	}
}

func (a *attemptOutput) load() *adapter.Output {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.out
}

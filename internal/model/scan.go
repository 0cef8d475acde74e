package model

import (
	"maps"
	"slices"
	"time"
)

// TaskStatus is the state of a ScanTask.
type TaskStatus string

// Scan task states.
const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskError     TaskStatus = "error"
)

// IsTerminal reports whether the task needs no further work.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskError
}

// AdapterStatus is the state of one adapter on one page.
type AdapterStatus string

// Adapter states.
const (
	AdapterPending   AdapterStatus = "pending"
	AdapterRunning   AdapterStatus = "running"
	AdapterCompleted AdapterStatus = "completed"
	AdapterError     AdapterStatus = "error"
)

// IsTerminal reports whether the adapter has a final result.
func (s AdapterStatus) IsTerminal() bool {
	return s == AdapterCompleted || s == AdapterError
}

// ScanTask tracks the scan of one selected page.
type ScanTask struct {
	PageURL          string                   `json:"pageUrl"`
	Priority         Priority                 `json:"priority,omitempty"`
	Role             Role                     `json:"role,omitempty"`
	Status           TaskStatus               `json:"status"`
	PerAdapterStatus map[string]AdapterStatus `json:"perAdapterStatus"`
	IssuesFound      int                      `json:"issuesFound"`

	// Attempt counts how many times the page has been dispatched.
	// It grows when a page interrupted by a restart is scanned again.
	Attempt int `json:"attempt"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	DurationMs  int64      `json:"durationMs,omitempty"`
}

// NewScanTask creates a queued task with every adapter pending.
func NewScanTask(pageURL string, priority Priority, adapters []string) *ScanTask {
	status := make(map[string]AdapterStatus, len(adapters))
	for _, name := range adapters {
		status[name] = AdapterPending
	}
	return &ScanTask{
		PageURL:          pageURL,
		Priority:         priority,
		Status:           TaskQueued,
		PerAdapterStatus: status,
	}
}

// Clone returns a deep copy of the task.
func (t *ScanTask) Clone() *ScanTask {
	c := *t
	c.PerAdapterStatus = maps.Clone(t.PerAdapterStatus)
	if t.StartedAt != nil {
		ts := *t.StartedAt
		c.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}

// RawFinding is one finding as reported by an analyzer tool, before mapping.
type RawFinding struct {
	RuleID   string `json:"ruleId"`
	Severity string `json:"severity,omitempty"`
	Impact   string `json:"impact,omitempty"`
	Selector string `json:"selector,omitempty"`
	Context  string `json:"context,omitempty"`
	Message  string `json:"message,omitempty"`
}

// AdapterResult is the terminal outcome of one adapter on one page.
// It is never modified after creation.
type AdapterResult struct {
	AdapterName string       `json:"adapterName"`
	PageURL     string       `json:"pageUrl"`
	Findings    []RawFinding `json:"findings,omitempty"`
	Error       string       `json:"error,omitempty"`
	DurationMs  int64        `json:"durationMs"`

	// Attempt is the number of attempts the resilient call used.
	Attempt int `json:"attempt"`
}

// Succeeded reports whether the adapter produced findings without error.
func (r *AdapterResult) Succeeded() bool {
	return r.Error == ""
}

// Issue is a normalized accessibility finding.
type Issue struct {
	ID                string    `json:"id"`
	SourceAdapter     string    `json:"sourceAdapter"`
	RuleID            string    `json:"ruleId"`
	WCAGCriterion     string    `json:"wcagCriterion,omitempty"`
	WCAGLevel         Level     `json:"wcagLevel,omitempty"`
	Principle         Principle `json:"pourPrinciple"`
	DisabilityImpacts []Impact  `json:"disabilityImpacts,omitempty"`
	Severity          Severity  `json:"severity"`
	PageURL           string    `json:"pageUrl"`
	Selector          string    `json:"selector,omitempty"`
	Context           string    `json:"context,omitempty"`
	Description       string    `json:"description"`

	// Unmapped is true when the rule was not in the mapping table and the
	// fields were derived heuristically.
	Unmapped bool `json:"unmapped,omitempty"`
}

// Clone returns a deep copy of the issue.
func (i Issue) Clone() Issue {
	i.DisabilityImpacts = slices.Clone(i.DisabilityImpacts)
	return i
}

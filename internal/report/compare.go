package report

import (
	"time"

	"github.com/nao1215/a11yscan/internal/model"
)

// Risk directions of a comparison.
const (
	DirectionImproved  = "improved"
	DirectionWorsened  = "worsened"
	DirectionUnchanged = "unchanged"
)

// Comparison is the difference between two scan sessions.
type Comparison struct {
	Previous ScanMetadata `json:"previousScan"`
	Current  ScanMetadata `json:"currentScan"`

	// NewIssues are in the current scan but not in the previous one.
	NewIssues []model.Issue `json:"newIssues,omitempty"`

	// ResolvedIssues are in the previous scan but not in the current one.
	ResolvedIssues []model.Issue `json:"resolvedIssues,omitempty"`

	UnchangedCount int `json:"unchangedCount"`

	// Direction is improved, worsened or unchanged, judged by the overall score.
	Direction string `json:"direction"`

	// SeverityDelta is current minus previous per severity name.
	SeverityDelta map[string]int `json:"severityDelta"`

	// PagesOnlyInPrevious and PagesOnlyInCurrent list pages scanned by one
	// side only; their issues are not counted as new or resolved.
	PagesOnlyInPrevious []string `json:"pagesOnlyInPrevious,omitempty"`
	PagesOnlyInCurrent  []string `json:"pagesOnlyInCurrent,omitempty"`
}

// ScanMetadata describes one side of a comparison.
type ScanMetadata struct {
	SessionID        string               `json:"sessionId"`
	FinishedAt       *time.Time           `json:"finishedAt,omitempty"`
	OverallScore     float64              `json:"overallScore"`
	IssuesBySeverity model.SeverityCounts `json:"issuesBySeverity"`
	PagesTotal       int                  `json:"pagesTotal"`
}

// Compare compares two scan sessions. Issues are matched by page, adapter,
// rule and selector; only pages scanned by both sessions are compared.
func Compare(previous, current *model.Session) *Comparison {
	prev := NewScanSummary(previous)
	cur := NewScanSummary(current)

	c := &Comparison{
		Previous:      metadata(prev),
		Current:       metadata(cur),
		SeverityDelta: make(map[string]int),
	}
	for _, sev := range model.AllSeverities {
		c.SeverityDelta[sev.String()] = cur.IssuesBySeverity.Get(sev) - prev.IssuesBySeverity.Get(sev)
	}

	prevPages := pageSet(previous)
	curPages := pageSet(current)
	for _, t := range previous.Tasks {
		if !curPages[t.PageURL] {
			c.PagesOnlyInPrevious = append(c.PagesOnlyInPrevious, t.PageURL)
		}
	}
	for _, t := range current.Tasks {
		if !prevPages[t.PageURL] {
			c.PagesOnlyInCurrent = append(c.PagesOnlyInCurrent, t.PageURL)
		}
	}

	previousIssues := make(map[string]bool)
	for _, i := range previous.Issues {
		if curPages[i.PageURL] {
			previousIssues[issueKey(i)] = true
		}
	}
	currentIssues := make(map[string]bool)
	for _, i := range current.Issues {
		if !prevPages[i.PageURL] {
			continue
		}
		key := issueKey(i)
		currentIssues[key] = true
		if !previousIssues[key] {
			c.NewIssues = append(c.NewIssues, i)
		}
	}
	for _, i := range previous.Issues {
		if !curPages[i.PageURL] {
			continue
		}
		if currentIssues[issueKey(i)] {
			c.UnchangedCount++
		} else {
			c.ResolvedIssues = append(c.ResolvedIssues, i)
		}
	}
	SortIssues(c.NewIssues)
	SortIssues(c.ResolvedIssues)

	switch {
	case cur.OverallScore > prev.OverallScore:
		c.Direction = DirectionImproved
	case cur.OverallScore < prev.OverallScore:
		c.Direction = DirectionWorsened
	default:
		c.Direction = DirectionUnchanged
	}
	return c
}

func metadata(s *ScanSummary) ScanMetadata {
	return ScanMetadata{
		SessionID:        s.SessionID,
		FinishedAt:       s.FinishedAt,
		OverallScore:     s.OverallScore,
		IssuesBySeverity: s.IssuesBySeverity,
		PagesTotal:       s.PagesTotal,
	}
}

func pageSet(s *model.Session) map[string]bool {
	set := make(map[string]bool, len(s.Tasks))
	for _, t := range s.Tasks {
		set[t.PageURL] = true
	}
	return set
}

// issueKey identifies an issue across scans.
func issueKey(i model.Issue) string {
	return i.PageURL + "|" + i.SourceAdapter + "|" + i.RuleID + "|" + i.Selector
}

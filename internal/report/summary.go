package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/nao1215/a11yscan/internal/model"
)

// ScanSummary is the report view of a scan session.
type ScanSummary struct {
	SessionID          string              `json:"sessionId"`
	DiscoverySessionID string              `json:"discoverySessionId,omitempty"`
	Status             model.SessionStatus `json:"status"`
	StartedAt          *time.Time          `json:"startedAt,omitempty"`
	FinishedAt         *time.Time          `json:"finishedAt,omitempty"`
	Adapters           []string            `json:"adapters"`

	OverallScore      float64                 `json:"overallScore"`
	IssuesBySeverity  model.SeverityCounts    `json:"issuesBySeverity"`
	IssuesByPrinciple map[model.Principle]int `json:"issuesByPrinciple"`

	PagesTotal      int `json:"pagesTotal"`
	PagesCompleted  int `json:"pagesCompleted"`
	PagesFailed     int `json:"pagesFailed"`
	AdapterFailures int `json:"adapterFailures"`

	Pages    []PageSummary    `json:"pages"`
	Failures []AdapterFailure `json:"adapterFailureDetails,omitempty"`
	Errors   []string         `json:"errors,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
}

// PageSummary lists the issues found on one page, most severe first.
type PageSummary struct {
	URL      string           `json:"url"`
	Role     model.Role       `json:"role,omitempty"`
	Priority model.Priority   `json:"priority,omitempty"`
	Status   model.TaskStatus `json:"status"`
	Issues   []model.Issue    `json:"issues"`
}

// AdapterFailure is an adapter that gave up on a page.
type AdapterFailure struct {
	PageURL  string `json:"pageUrl"`
	Adapter  string `json:"adapter"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

// TotalIssues returns the number of issues across all pages.
func (s *ScanSummary) TotalIssues() int {
	return s.IssuesBySeverity.Total()
}

// IsPartial reports whether some pages or adapters failed.
func (s *ScanSummary) IsPartial() bool {
	return s.PagesFailed > 0 || s.AdapterFailures > 0
}

// NewScanSummary builds the summary of a scan session. Sessions that have
// not completed are summarized from the pages finished so far.
func NewScanSummary(s *model.Session) *ScanSummary {
	sum := &ScanSummary{
		SessionID:         s.ID,
		Status:            s.Status,
		StartedAt:         s.StartedAt,
		FinishedAt:        s.FinishedAt,
		IssuesBySeverity:  model.NewSeverityCounts(),
		IssuesByPrinciple: make(map[model.Principle]int),
		PagesTotal:        len(s.Tasks),
		Errors:            s.Errors,
		Warnings:          s.Warnings,
	}
	if s.Scan != nil {
		sum.DiscoverySessionID = s.Scan.DiscoverySessionID
		sum.Adapters = s.Scan.Adapters
	}

	byPage := make(map[string][]model.Issue)
	for _, issue := range s.Issues {
		sum.IssuesBySeverity.Add(issue.Severity)
		sum.IssuesByPrinciple[issue.Principle]++
		byPage[issue.PageURL] = append(byPage[issue.PageURL], issue)
	}

	for _, t := range s.Tasks {
		switch t.Status {
		case model.TaskCompleted:
			sum.PagesCompleted++
		case model.TaskError:
			sum.PagesFailed++
		}
		issues := byPage[t.PageURL]
		SortIssues(issues)
		sum.Pages = append(sum.Pages, PageSummary{
			URL:      t.PageURL,
			Role:     t.Role,
			Priority: t.Priority,
			Status:   t.Status,
			Issues:   issues,
		})
	}

	for _, r := range s.Results {
		if r.Succeeded() {
			continue
		}
		sum.Failures = append(sum.Failures, AdapterFailure{
			PageURL:  r.PageURL,
			Adapter:  r.AdapterName,
			Error:    r.Error,
			Attempts: r.Attempt,
		})
	}
	sum.AdapterFailures = len(sum.Failures)

	if s.ScanResult != nil {
		sum.OverallScore = s.ScanResult.OverallScore
	} else {
		sum.OverallScore = model.OverallScore(sum.IssuesBySeverity, sum.PagesTotal)
	}
	return sum
}

// SortIssues orders issues by descending severity, then rule and selector.
func SortIssues(issues []model.Issue) {
	slices.SortStableFunc(issues, func(a, b model.Issue) int {
		if c := cmp.Compare(b.Severity, a.Severity); c != 0 {
			return c
		}
		if c := cmp.Compare(a.RuleID, b.RuleID); c != 0 {
			return c
		}
		return cmp.Compare(a.Selector, b.Selector)
	})
}

// DiscoverySummary is the report view of a discovery session.
type DiscoverySummary struct {
	SessionID string                  `json:"sessionId"`
	SeedURL   string                  `json:"seedUrl"`
	Status    model.SessionStatus     `json:"status"`
	Pages     []*model.DiscoveredPage `json:"pages"`
	Groups    []model.TemplateGroup   `json:"templateGroups"`
	Selection *model.SelectionResult  `json:"selection,omitempty"`
	Errors    []string                `json:"errors,omitempty"`
	Warnings  []string                `json:"warnings,omitempty"`
}

// NewDiscoverySummary builds the summary of a discovery session.
func NewDiscoverySummary(s *model.Session) *DiscoverySummary {
	sum := &DiscoverySummary{
		SessionID: s.ID,
		Status:    s.Status,
		Pages:     s.Pages,
		Errors:    s.Errors,
		Warnings:  s.Warnings,
	}
	if s.Discovery != nil {
		sum.SeedURL = s.Discovery.SeedURL
	}
	if s.DiscoveryResult != nil {
		sum.Groups = s.DiscoveryResult.Groups
		sum.Selection = s.DiscoveryResult.Selection
	}
	return sum
}

// RoleCounts returns the number of discovered pages per role, in the
// order of model.AllRoles.
func (d *DiscoverySummary) RoleCounts() []RoleCount {
	counts := make(map[model.Role]int)
	for _, p := range d.Pages {
		counts[p.Role]++
	}
	var out []RoleCount
	for _, r := range model.AllRoles {
		if n := counts[r]; n > 0 {
			out = append(out, RoleCount{Role: r, Pages: n})
		}
	}
	return out
}

// RoleCount is the number of pages of one role.
type RoleCount struct {
	Role  model.Role `json:"role"`
	Pages int        `json:"pages"`
}

// principles lists the POUR principles in report order.
var principles = []model.Principle{
	model.PrinciplePerceivable,
	model.PrincipleOperable,
	model.PrincipleUnderstandable,
	model.PrincipleRobust,
	model.PrincipleUnknown,
}

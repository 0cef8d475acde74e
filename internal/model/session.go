package model

import (
	"slices"
	"time"
)

// SessionKind distinguishes discovery sessions from scan sessions.
type SessionKind string

// Session kinds.
const (
	KindDiscovery SessionKind = "discovery"
	KindScan      SessionKind = "scan"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

// Session states.
const (
	StatusPending   SessionStatus = "pending"
	StatusRunning   SessionStatus = "running"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
	StatusCancelled SessionStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// DiscoveryConfig is the configuration a discovery session was started with.
type DiscoveryConfig struct {
	SeedURL         string        `json:"seedUrl"`
	MaxPages        int           `json:"maxPages"`
	MaxDepth        int           `json:"maxDepth"`
	TimeoutPerPage  time.Duration `json:"timeoutPerPage"`
	Parallelism     int           `json:"parallelism"`
	RespectRobots   bool          `json:"respectRobots"`
	ExcludePatterns []string      `json:"excludePatterns,omitempty"`
	AllowedDomains  []string      `json:"allowedDomains,omitempty"`
	Budget          time.Duration `json:"budget"`
	CrawlDelay      time.Duration `json:"crawlDelay"`

	SimilarityThreshold float64    `json:"similarityThreshold"`
	Recluster           bool       `json:"recluster,omitempty"`
	Strategy            Strategy   `json:"strategy"`
	SelectionMaxPages   int        `json:"selectionMaxPages"`
	Seed                uint64     `json:"seed"`
	CriticalPaths       [][]string `json:"criticalPaths,omitempty"`
	Journeys            [][]string `json:"journeys,omitempty"`
}

// ScanConfig is the configuration a scan session was started with.
type ScanConfig struct {
	DiscoverySessionID    string        `json:"discoverySessionId,omitempty"`
	Adapters              []string      `json:"adapters"`
	MaxParallelPages      int           `json:"maxParallelPages"`
	MaxConcurrentAdapters int           `json:"maxConcurrentAdapters"`
	MaxRetries            int           `json:"maxRetries"`
	AdapterTimeout        time.Duration `json:"adapterTimeout"`
	InitialBackoff        time.Duration `json:"initialBackoff"`
	MaxBackoff            time.Duration `json:"maxBackoff"`
}

// DiscoveryResult is the result of a completed discovery session.
type DiscoveryResult struct {
	Groups    []TemplateGroup  `json:"templateGroups"`
	Selection *SelectionResult `json:"selection,omitempty"`
}

// ScanResult summarizes a completed scan session.
// Issues and adapter results stay on the session itself.
type ScanResult struct {
	IssuesBySeverity SeverityCounts `json:"issuesBySeverity"`
	OverallScore     float64        `json:"overallScore"`
	PagesTotal       int            `json:"pagesTotal"`
	PagesCompleted   int            `json:"pagesCompleted"`
	PagesFailed      int            `json:"pagesFailed"`
	AdapterFailures  int            `json:"adapterFailures"`
}

// Session is the durable record of a discovery or scan session.
// It is the unit written to the session store on every transition.
type Session struct {
	ID              string        `json:"id"`
	Kind            SessionKind   `json:"kind"`
	Status          SessionStatus `json:"status"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	StartedAt       *time.Time    `json:"startedAt,omitempty"`
	FinishedAt      *time.Time    `json:"finishedAt,omitempty"`
	ProgressPercent float64       `json:"progressPercent"`

	Discovery *DiscoveryConfig `json:"discoveryConfig,omitempty"`
	Scan      *ScanConfig      `json:"scanConfig,omitempty"`

	// Pages is owned by discovery sessions.
	Pages []*DiscoveredPage `json:"pages,omitempty"`

	// Tasks, Results and Issues are owned by scan sessions.
	Tasks   []*ScanTask     `json:"tasks,omitempty"`
	Results []AdapterResult `json:"results,omitempty"`
	Issues  []Issue         `json:"issues,omitempty"`

	DiscoveryResult *DiscoveryResult `json:"discoveryResult,omitempty"`
	ScanResult      *ScanResult      `json:"scanResult,omitempty"`

	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// IsTerminal reports whether the session has reached a terminal state.
func (s *Session) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// Page returns the discovered page with the given URL.
func (s *Session) Page(url string) (*DiscoveredPage, bool) {
	for _, p := range s.Pages {
		if p.URL == url {
			return p, true
		}
	}
	return nil, false
}

// Task returns the scan task for the given page URL.
func (s *Session) Task(pageURL string) (*ScanTask, bool) {
	for _, t := range s.Tasks {
		if t.PageURL == pageURL {
			return t, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the session. Readers always receive clones
// so the owner can keep mutating its own copy.
func (s *Session) Clone() *Session {
	c := *s
	if s.StartedAt != nil {
		ts := *s.StartedAt
		c.StartedAt = &ts
	}
	if s.FinishedAt != nil {
		ts := *s.FinishedAt
		c.FinishedAt = &ts
	}
	if s.Discovery != nil {
		d := *s.Discovery
		d.ExcludePatterns = slices.Clone(s.Discovery.ExcludePatterns)
		d.AllowedDomains = slices.Clone(s.Discovery.AllowedDomains)
		d.CriticalPaths = cloneNested(s.Discovery.CriticalPaths)
		d.Journeys = cloneNested(s.Discovery.Journeys)
		c.Discovery = &d
	}
	if s.Scan != nil {
		sc := *s.Scan
		sc.Adapters = slices.Clone(s.Scan.Adapters)
		c.Scan = &sc
	}
	if s.Pages != nil {
		c.Pages = make([]*DiscoveredPage, len(s.Pages))
		for i, p := range s.Pages {
			c.Pages[i] = p.Clone()
		}
	}
	if s.Tasks != nil {
		c.Tasks = make([]*ScanTask, len(s.Tasks))
		for i, t := range s.Tasks {
			c.Tasks[i] = t.Clone()
		}
	}
	if s.Results != nil {
		c.Results = make([]AdapterResult, len(s.Results))
		for i, r := range s.Results {
			r.Findings = slices.Clone(r.Findings)
			c.Results[i] = r
		}
	}
	if s.Issues != nil {
		c.Issues = make([]Issue, len(s.Issues))
		for i, issue := range s.Issues {
			c.Issues[i] = issue.Clone()
		}
	}
	if s.DiscoveryResult != nil {
		dr := DiscoveryResult{Selection: s.DiscoveryResult.Selection.Clone()}
		for _, g := range s.DiscoveryResult.Groups {
			dr.Groups = append(dr.Groups, g.Clone())
		}
		c.DiscoveryResult = &dr
	}
	if s.ScanResult != nil {
		sr := *s.ScanResult
		sr.IssuesBySeverity = s.ScanResult.IssuesBySeverity.Clone()
		c.ScanResult = &sr
	}
	c.Errors = slices.Clone(s.Errors)
	c.Warnings = slices.Clone(s.Warnings)
	return &c
}

func cloneNested(in [][]string) [][]string {
	if in == nil {
		return nil
	}
	out := make([][]string, len(in))
	for i, v := range in {
		out[i] = slices.Clone(v)
	}
	return out
}

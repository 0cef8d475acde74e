package model

import (
	"slices"
	"time"
)

// Strategy names a page sampling strategy.
type Strategy string

// Sampling strategies.
const (
	StrategyWCAGEM          Strategy = "wcag_em"
	StrategyRiskBased       Strategy = "risk_based"
	StrategyCoverageOptimal Strategy = "coverage_optimal"
	StrategyUserJourney     Strategy = "user_journey"
	StrategyManual          Strategy = "manual"
)

// AllStrategies lists the supported strategies.
var AllStrategies = []Strategy{
	StrategyWCAGEM, StrategyRiskBased, StrategyCoverageOptimal, StrategyUserJourney, StrategyManual,
}

// Valid reports whether s is a supported strategy.
func (s Strategy) Valid() bool {
	return slices.Contains(AllStrategies, s)
}

// Coverage summarizes how much of the discovered site a selection covers.
type Coverage struct {
	// RolePercent is distinct roles covered / distinct roles discovered, in percent.
	RolePercent float64 `json:"rolePercent"`

	// TemplatePercent is template groups covered / total template groups, in percent.
	TemplatePercent float64 `json:"templatePercent"`

	RolesCovered    int `json:"rolesCovered"`
	RolesDiscovered int `json:"rolesDiscovered"`
	GroupsCovered   int `json:"groupsCovered"`
	GroupsTotal     int `json:"groupsTotal"`

	// UncoveredRoles lists discovered roles with no selected page.
	UncoveredRoles []Role `json:"uncoveredRoles,omitempty"`
}

// PageRationale explains why a page was selected.
type PageRationale struct {
	URL    string  `json:"url"`
	Reason string  `json:"reason"`
	Score  float64 `json:"score"`
}

// SelectionResult is an immutable page sample. A new selection replaces the
// previous one; callers never edit a result in place.
type SelectionResult struct {
	SelectedURLs []string        `json:"selectedUrls"`
	Strategy     Strategy        `json:"strategy"`
	Seed         uint64          `json:"seed"`
	MaxPages     int             `json:"maxPages"`
	Coverage     Coverage        `json:"coverage"`
	Rationale    []PageRationale `json:"rationale"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Contains reports whether url is part of the selection.
func (s *SelectionResult) Contains(url string) bool {
	return slices.Contains(s.SelectedURLs, url)
}

// Clone returns a deep copy of the selection.
func (s *SelectionResult) Clone() *SelectionResult {
	if s == nil {
		return nil
	}
	c := *s
	c.SelectedURLs = slices.Clone(s.SelectedURLs)
	c.Rationale = slices.Clone(s.Rationale)
	c.Coverage.UncoveredRoles = slices.Clone(s.Coverage.UncoveredRoles)
	return &c
}

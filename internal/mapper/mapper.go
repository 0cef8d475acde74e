package mapper

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/nao1215/a11yscan/internal/model"
)

// Page is the page context a finding was reported on.
type Page struct {
	URL      string
	Priority model.Priority
	Role     model.Role
}

// Mapper converts raw findings into issues.
// A Mapper is immutable after construction and safe for concurrent use.
type Mapper struct {
	table       Table
	escalations []EscalationRule
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithTable replaces the built-in mapping table.
func WithTable(t Table) Option {
	return func(m *Mapper) {
		m.table = t
	}
}

// WithRules adds or overrides rules for one adapter family.
func WithRules(family string, rules map[string]Rule) Option {
	return func(m *Mapper) {
		if m.table == nil {
			m.table = Table{}
		}
		if m.table[family] == nil {
			m.table[family] = make(map[string]Rule, len(rules))
		}
		for id, r := range rules {
			m.table[family][id] = r
		}
	}
}

// WithEscalations replaces the default escalation rules.
func WithEscalations(rules ...EscalationRule) Option {
	return func(m *Mapper) {
		m.escalations = rules
	}
}

// New creates a Mapper with the built-in table and escalation rules.
func New(opts ...Option) *Mapper {
	m := &Mapper{
		table:       DefaultTable(),
		escalations: DefaultEscalations,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Map converts one raw finding into exactly one Issue.
func (m *Mapper) Map(adapterName string, raw model.RawFinding, page Page) model.Issue {
	return m.mapFinding(adapterName, raw, page, 0)
}

// MapAll converts every finding of one adapter run. The result has the same
// length and order as findings.
func (m *Mapper) MapAll(adapterName string, findings []model.RawFinding, page Page) []model.Issue {
	issues := make([]model.Issue, 0, len(findings))
	for i, f := range findings {
		issues = append(issues, m.mapFinding(adapterName, f, page, i))
	}
	return issues
}

// Lookup returns the table rule for an adapter and rule id.
func (m *Mapper) Lookup(adapterName, ruleID string) (Rule, bool) {
	family := Family(adapterName)
	if r, ok := m.table[family][ruleID]; ok {
		return r, true
	}
	// pa11y codes embed the criterion; a code whose criterion has defaults
	// is treated as mapped.
	if family == FamilyPa11y {
		if id := criterionFromRuleID(ruleID); id != "" {
			if _, ok := criterionDefaults[id]; ok {
				return crit(id), true
			}
		}
	}
	return Rule{}, false
}

func (m *Mapper) mapFinding(adapterName string, raw model.RawFinding, page Page, ordinal int) model.Issue {
	rule, mapped := m.Lookup(adapterName, raw.RuleID)
	if !mapped {
		rule = heuristicRule(raw)
	}

	principle := rule.Principle
	level := model.Level("")
	title := ""
	if c, ok := model.LookupCriterion(rule.Criterion); ok {
		principle = c.Principle()
		level = c.Level
		title = c.Title
	}
	if principle == "" {
		principle = model.PrincipleUnknown
	}
	impacts := rule.Impacts
	if len(impacts) == 0 {
		impacts = model.DefaultImpacts(principle)
	}

	severity := Escalate(rule.Severity, EscalationContext{
		Criterion: rule.Criterion,
		Level:     level,
		Impacts:   impacts,
		Priority:  page.Priority,
		Role:      page.Role,
	}, m.escalations)

	return model.Issue{
		ID:                issueID(adapterName, raw, page.URL, ordinal),
		SourceAdapter:     adapterName,
		RuleID:            raw.RuleID,
		WCAGCriterion:     rule.Criterion,
		WCAGLevel:         level,
		Principle:         principle,
		DisabilityImpacts: slices.Clone(impacts),
		Severity:          severity,
		PageURL:           page.URL,
		Selector:          raw.Selector,
		Context:           raw.Context,
		Description:       describe(adapterName, raw, rule, title, mapped),
		Unmapped:          !mapped,
	}
}

// heuristicRule derives a rule for a finding that is not in the table.
func heuristicRule(raw model.RawFinding) Rule {
	severity, _ := severityFromLabels(raw.Impact, raw.Severity)
	r := Rule{Severity: severity}
	if id := criterionFromRuleID(raw.RuleID); id != "" {
		r.Criterion = id
		r.Impacts = criterionDefaults[id].Impacts
	}
	return r
}

func describe(adapterName string, raw model.RawFinding, rule Rule, title string, mapped bool) string {
	switch {
	case strings.TrimSpace(raw.Message) != "":
		return strings.TrimSpace(raw.Message)
	case rule.Description != "":
		return rule.Description
	case title != "":
		return fmt.Sprintf("%s (%s)", title, raw.RuleID)
	case !mapped:
		return fmt.Sprintf("Unmapped %s rule %q", adapterName, raw.RuleID)
	default:
		return raw.RuleID
	}
}

// issueID returns a stable identifier so re-mapping the same raw output
// yields the same issue ids.
func issueID(adapterName string, raw model.RawFinding, pageURL string, ordinal int) string {
	key := strings.Join([]string{
		adapterName, raw.RuleID, pageURL, raw.Selector, raw.Context, strconv.Itoa(ordinal),
	}, "\x1f")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

package mapper

import (
	"regexp"
	"strings"

	"github.com/nao1215/a11yscan/internal/model"
)

// labelSeverity maps tool severity/impact labels onto the normalized tiers.
// axe uses critical/serious/moderate/minor, pa11y error/warning/notice
// (or the numeric type codes 1/2/3).
var labelSeverity = map[string]model.Severity{
	"critical": model.SeverityCritical,
	"blocker":  model.SeverityCritical,
	"serious":  model.SeverityHigh,
	"high":     model.SeverityHigh,
	"error":    model.SeverityHigh,
	"1":        model.SeverityHigh,
	"moderate": model.SeverityMedium,
	"medium":   model.SeverityMedium,
	"warning":  model.SeverityMedium,
	"2":        model.SeverityMedium,
	"minor":    model.SeverityLow,
	"low":      model.SeverityLow,
	"notice":   model.SeverityLow,
	"info":     model.SeverityLow,
	"3":        model.SeverityLow,
}

// severityFromLabels returns the severity implied by the first recognized
// label. Impact labels win over severity labels because axe reports the
// user impact there.
func severityFromLabels(labels ...string) (model.Severity, bool) {
	for _, l := range labels {
		if s, ok := labelSeverity[strings.ToLower(strings.TrimSpace(l))]; ok {
			return s, true
		}
	}
	return model.SeverityMedium, false
}

var (
	// HTML_CodeSniffer style: WCAG2AA.Principle1.Guideline1_4.1_4_3.G18
	sniffCriterion = regexp.MustCompile(`Guideline\d_\d+\.(\d)_(\d{1,2})_(\d{1,2})`)
	// axe tag style: wcag143, wcag1410
	tagCriterion = regexp.MustCompile(`(?i)wcag(\d)(\d)(\d{1,2})\b`)
	// dotted: 1.4.3
	dottedCriterion = regexp.MustCompile(`\b(\d)\.(\d{1,2})\.(\d{1,2})\b`)
)

// criterionFromRuleID extracts a WCAG criterion embedded in a rule id.
// Only identifiers present in the catalog are returned.
func criterionFromRuleID(ruleID string) string {
	for _, re := range []*regexp.Regexp{sniffCriterion, dottedCriterion, tagCriterion} {
		m := re.FindStringSubmatch(ruleID)
		if m == nil {
			continue
		}
		id := m[1] + "." + m[2] + "." + m[3]
		if _, ok := model.LookupCriterion(id); ok {
			return id
		}
	}
	return ""
}

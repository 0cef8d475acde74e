package adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nao1215/a11yscan/internal/model"
)

// Output formats understood by CommandAdapter.
const (
	FormatAxe        = "axe"
	FormatPa11y      = "pa11y"
	FormatLighthouse = "lighthouse"
	FormatJSON       = "json"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Decoder turns a tool's stdout into raw findings.
type Decoder func(data []byte) ([]model.RawFinding, error)

// decoders maps format names to decoders.
var decoders = map[string]Decoder{
	FormatAxe:        DecodeAxe,
	FormatPa11y:      DecodePa11y,
	FormatLighthouse: DecodeLighthouse,
	FormatJSON:       DecodeJSON,
}

// DecoderFor returns the decoder of a format.
func DecoderFor(format string) (Decoder, error) {
	d, ok := decoders[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return d, nil
}

// axeResult is one page result of axe-core.
type axeResult struct {
	URL        string         `json:"url"`
	Violations []axeViolation `json:"violations"`
}

type axeViolation struct {
	ID          string    `json:"id"`
	Impact      string    `json:"impact"`
	Help        string    `json:"help"`
	Description string    `json:"description"`
	Nodes       []axeNode `json:"nodes"`
}

type axeNode struct {
	Target         []json.RawMessage `json:"target"`
	HTML           string            `json:"html"`
	Impact         string            `json:"impact"`
	FailureSummary string            `json:"failureSummary"`
}

// DecodeAxe decodes axe-core results: a single result object or the array
// printed by the axe CLI. Every violation node becomes one finding.
func DecodeAxe(data []byte) ([]model.RawFinding, error) {
	var results []axeResult
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var one axeResult
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("failed to decode axe output: %w", err)
		}
		results = []axeResult{one}
	} else if err := json.Unmarshal(trimmed, &results); err != nil {
		return nil, fmt.Errorf("failed to decode axe output: %w", err)
	}

	findings := make([]model.RawFinding, 0)
	for _, r := range results {
		for _, v := range r.Violations {
			message := v.Help
			if message == "" {
				message = v.Description
			}
			if len(v.Nodes) == 0 {
				findings = append(findings, model.RawFinding{RuleID: v.ID, Impact: v.Impact, Message: message})
				continue
			}
			for _, n := range v.Nodes {
				impact := n.Impact
				if impact == "" {
					impact = v.Impact
				}
				findings = append(findings, model.RawFinding{
					RuleID:   v.ID,
					Impact:   impact,
					Selector: axeSelector(n.Target),
					Context:  n.HTML,
					Message:  message,
				})
			}
		}
	}
	return findings, nil
}

// axeSelector joins an axe target. Targets inside iframes or shadow DOM are
// nested arrays; they are flattened with " > ".
func axeSelector(target []json.RawMessage) string {
	parts := make([]string, 0, len(target))
	for _, raw := range target {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			parts = append(parts, s)
			continue
		}
		var nested []string
		if err := json.Unmarshal(raw, &nested); err == nil {
			parts = append(parts, strings.Join(nested, " > "))
		}
	}
	return strings.Join(parts, " ")
}

// pa11yIssue is one issue of the pa11y JSON reporter.
type pa11yIssue struct {
	Code     string `json:"code"`
	Type     string `json:"type"`
	Message  string `json:"message"`
	Context  string `json:"context"`
	Selector string `json:"selector"`
}

// DecodePa11y decodes the pa11y JSON reporter output: an issue array, or an
// object with an "issues" array.
func DecodePa11y(data []byte) ([]model.RawFinding, error) {
	var issues []pa11yIssue
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Issues []pa11yIssue `json:"issues"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode pa11y output: %w", err)
		}
		issues = wrapped.Issues
	} else if err := json.Unmarshal(trimmed, &issues); err != nil {
		return nil, fmt.Errorf("failed to decode pa11y output: %w", err)
	}

	findings := make([]model.RawFinding, 0, len(issues))
	for _, is := range issues {
		findings = append(findings, model.RawFinding{
			RuleID:   is.Code,
			Severity: is.Type,
			Selector: is.Selector,
			Context:  is.Context,
			Message:  is.Message,
		})
	}
	return findings, nil
}

// lighthouseReport is the subset of a Lighthouse JSON report we read.
type lighthouseReport struct {
	Audits map[string]struct {
		ID      string   `json:"id"`
		Title   string   `json:"title"`
		Score   *float64 `json:"score"`
		Details struct {
			Items []struct {
				Node struct {
					Selector string `json:"selector"`
					Snippet  string `json:"snippet"`
				} `json:"node"`
			} `json:"items"`
		} `json:"details"`
	} `json:"audits"`
	Categories struct {
		Accessibility struct {
			AuditRefs []struct {
				ID string `json:"id"`
			} `json:"auditRefs"`
		} `json:"accessibility"`
	} `json:"categories"`
}

// DecodeLighthouse decodes a Lighthouse JSON report. Failed audits (score 0)
// of the accessibility category become findings, one per reported node.
// Lighthouse audit ids are axe rule ids.
func DecodeLighthouse(data []byte) ([]model.RawFinding, error) {
	var report lighthouseReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode lighthouse output: %w", err)
	}

	ids := make([]string, 0, len(report.Categories.Accessibility.AuditRefs))
	for _, ref := range report.Categories.Accessibility.AuditRefs {
		ids = append(ids, ref.ID)
	}
	if len(ids) == 0 {
		for id := range report.Audits {
			ids = append(ids, id)
		}
		slices.Sort(ids)
	}

	findings := make([]model.RawFinding, 0)
	for _, id := range ids {
		audit, ok := report.Audits[id]
		if !ok || audit.Score == nil || *audit.Score != 0 {
			continue
		}
		if len(audit.Details.Items) == 0 {
			findings = append(findings, model.RawFinding{RuleID: id, Message: audit.Title})
			continue
		}
		for _, item := range audit.Details.Items {
			findings = append(findings, model.RawFinding{
				RuleID:   id,
				Selector: item.Node.Selector,
				Context:  item.Node.Snippet,
				Message:  audit.Title,
			})
		}
	}
	return findings, nil
}

// DecodeJSON decodes the generic format: an array of raw findings with the
// fields ruleId, severity, impact, selector, context and message.
func DecodeJSON(data []byte) ([]model.RawFinding, error) {
	var findings []model.RawFinding
	if err := json.Unmarshal(data, &findings); err != nil {
		return nil, fmt.Errorf("failed to decode findings: %w", err)
	}
	for i, f := range findings {
		if f.RuleID == "" {
			return nil, fmt.Errorf("finding %d has no ruleId", i+1)
		}
	}
	if findings == nil {
		findings = make([]model.RawFinding, 0)
	}
	return findings, nil
}

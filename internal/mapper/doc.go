// Package mapper normalizes raw analyzer findings into model.Issue values.
//
// Mapping is table driven: a versioned lookup table keyed by adapter family
// and rule id yields the WCAG success criterion, POUR principle, disability
// impacts and base severity. Rules that are not in the table fall back to a
// heuristic based on the tool's own severity label and are flagged as
// unmapped so auditors can see which issues were not classified precisely.
//
// After the base severity is known, escalation rules may raise it (never
// lower it) based on the page the finding came from.
//
// The mapper is total: every raw finding produces exactly one Issue.
package mapper

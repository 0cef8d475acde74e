// Package model defines the core data structures used throughout a11yscan.
//
// This package contains the following main types:
//   - DiscoveredPage: A page found during discovery, with role, priority and template group
//   - TemplateGroup: A cluster of pages sharing the same DOM skeleton
//   - SelectionResult: The bounded, auditable page sample chosen for scanning
//   - ScanTask / AdapterResult: Per-page and per-adapter scan bookkeeping
//   - Issue: A normalized accessibility finding mapped onto WCAG
//   - Session: The durable record of a discovery or scan session
//
// Models are shared by the crawler, selector, orchestrator, session and report
// packages, so they live here to avoid import cycles. All of them serialize to
// JSON for the session store and report output.
package model

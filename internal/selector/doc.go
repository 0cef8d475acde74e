// Package selector picks the representative sample of discovered pages that
// is handed to the scanner.
//
// Five strategies are available:
//
//   - wcag_em: the WCAG-EM style sample (home page, one page per template,
//     critical paths, contact and login pages)
//   - risk_based: pages ranked by priority and interactive content
//   - coverage_optimal: largest templates first, then uncovered roles
//   - user_journey: configured journeys first, then the wcag_em sample
//   - manual: an explicit URL list
//
// Every strategy is deterministic: the same pages, groups, options and seed
// always produce the same selection and coverage.
package selector

// Package adapter wraps accessibility analysis tools behind one contract.
//
// An Adapter runs one tool against one page URL and returns raw findings in
// the tool's own vocabulary. Normalization into issues happens later in the
// mapper package, so adapters stay thin and uniform.
//
// Built-in implementations:
//
//   - HTMLCheck: a static HTML checker that needs no external tool
//   - CommandAdapter: runs an external CLI (axe, pa11y, lighthouse, or any
//     tool emitting the generic JSON format) and decodes its stdout
//   - Func: wraps a function, for embedding and tests
package adapter

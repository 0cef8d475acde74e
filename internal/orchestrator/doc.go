// Package orchestrator runs the analyzer adapters over the pages of a scan
// session.
//
// Pages are processed by a bounded pool (MaxParallelPages). Within a page
// each adapter runs through the resilient call primitive of package retry;
// at most MaxConcurrentAdapters adapters run per page, and every adapter
// call also takes a slot from a pool shared by all pages. Slots are granted
// in FIFO order.
//
// A failing adapter never aborts its page or the session: after the retries
// are exhausted an AdapterResult with Error set is recorded and the page
// carries on. Only orchestration faults, such as a failing checkpoint write,
// end a run with an error.
package orchestrator

// Package retry provides the resilient call primitive used for analyzer
// invocations: bounded retries, exponential backoff and a hard timeout per
// attempt.
//
// Do runs a call until it succeeds, returns a Permanent error, or the
// attempts are exhausted. Each attempt runs under its own deadline; a call
// that ignores its context is abandoned when the deadline passes and the
// next attempt starts after the backoff.
package retry

// Package events carries session progress to observers.
//
// Every session has an append-only event log owned by the Bus. Progress
// consumers subscribe to the Bus instead of reading shared counters, and
// sinks (the SQLite store, redis pub/sub) receive every event in log order
// from a queue of their own. Flush and Close wait for the queued writes.
//
// Events serialize as flat JSON objects: the payload fields sit next to
// sessionId, timestamp and eventType.
package events

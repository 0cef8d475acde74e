// Package database provides SQLite-based storage for a11yscan sessions.
//
// SessionDB stores:
//   - Session records (discovery and scan) as JSON, one row per session
//   - The ordered event log of every session
//
// It implements session.Store, so the engine writes every state change
// through it, and events.Sink, so the bus appends every event it publishes.
// After a restart the engine lists the non-terminal sessions and reloads
// their event logs from here.
//
// SQLite (via modernc.org/sqlite) keeps the store a single CGO-free file;
// WAL mode lets the CLI read sessions while a scan is writing.
package database

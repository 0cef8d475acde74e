// Package session implements the lifecycle of discovery and scan sessions.
//
// States move along
//
//	pending → running → {paused ⇄ running} → completed | failed | cancelled
//
// where paused is only reachable by scan sessions. Terminal states accept no
// further transition.
//
// A Machine owns one session record. Every change is applied to a copy,
// written to the Store, and only then becomes the in-memory state, so a
// restart always finds the last authoritative record. The Engine exposes the
// command surface (start, stop, select, pause, resume) and runs the
// discovery and scan workers. Recover reloads non-terminal sessions after a
// restart.
package session

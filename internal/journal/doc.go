// Package journal records observed connection states to PostgreSQL.
//
// The journal is lossy. The writer consumes a latest-value manager
// subscription, so states published faster than it reads are coalesced and
// only the newest is written; a Disconnected immediately followed by
// Reconnecting may appear as the Reconnecting row alone. Session id and
// target are read from the manager when a row is observed, not when the state
// was published, so a row observed after a new session starts carries the new
// session's id. Rows are batched and flushed by size or interval.
package journal

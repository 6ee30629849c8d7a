// Package repositories implements SQLite persistence for the session journal.
//
// Live sessions are held in memory by the session package. Once a session ends its outcome is written
// here so operators can look back at what was streamed and why each stream stopped.
//
// Key Implementations:
//   - [SessionRepository] : journal of ended sessions with outcome filtering, stats and pruning
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories

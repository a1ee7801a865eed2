// Package store provides the SQLite-backed session journal.
//
// The journal holds three kinds of records:
//   - Scripts: the canonical JSON body, keyed by content-addressed ScriptID
//   - Sessions: one play session of a script by a given engine version
//   - Calls: every committed interpreter call of a session, in seq order
//
// Ext_calls seen during a session are journaled alongside their calls.
//
// The journal exists to check determinism: VerifySession rebuilds an
// interpreter from the stored script, replays the stored inputs, and reports
// any call whose event, audio, status, or digest differs. It is not a save
// format; no interpreter state is ever restored from it.
//
// # Critical Patterns
//
// Idempotent writes:
//   - Every INSERT uses ON CONFLICT DO NOTHING
//   - Journaling the same transcript twice is a no-op
//
// Logical time:
//   - Calls are ordered by seq INTEGER, NEVER timestamps
//   - Sessions are ordered by created_seq, then id
//
// Deterministic reads:
//   - All queries include ORDER BY with a COLLATE BINARY tiebreak
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Event, audio, and script bodies are stored as RFC 8785 canonical JSON
// (script.CanonicalOf), so stored text compares byte-for-byte.
package store

// Package player drives an engine.Interpreter the way an automated host
// would: it answers choices from a plan, handles ext_calls by policy, and
// records every call in a Transcript.
//
// A Transcript is the unit of determinism. Replaying its inputs against the
// same script must reproduce every event, audio command, and digest hash;
// internal/store journals transcripts and verifies exactly that.
//
// Sessions are single-threaded. A Player may run any number of sessions,
// sequentially or in parallel, as long as each option it was built with is
// itself safe to share (the default Clock-per-session and UUIDv7Generator
// are).
package player

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/vnengine/internal/player"
	"github.com/roach88/vnengine/internal/script"
)

// Session is one journaled play session.
type Session struct {
	ID            string               `json:"id"`
	ScriptID      string               `json:"script_id"`
	EngineVersion string               `json:"engine_version"`
	Policy        player.ExtCallPolicy `json:"ext_call_policy"`
	CreatedSeq    int64                `json:"created_seq"`
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WriteScript stores a script under its content-addressed ID and returns
// the ID. Writing the same script twice is a no-op.
func (s *Store) WriteScript(ctx context.Context, sc *script.Script) (string, error) {
	return writeScript(ctx, s.db, sc)
}

func writeScript(ctx context.Context, db execer, sc *script.Script) (string, error) {
	id, err := script.ScriptID(sc)
	if err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}
	body, err := script.CanonicalOf(sc)
	if err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO scripts (id, schema_version, body)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, sc.SchemaVersion, string(body))
	if err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}
	return id, nil
}

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
//
// Note: The script referenced by ScriptID must exist (foreign key constraint).
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	return writeSession(ctx, s.db, sess)
}

func writeSession(ctx context.Context, db execer, sess Session) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (id, script_id, engine_version, ext_call_policy, created_seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sess.ID, sess.ScriptID, sess.EngineVersion, string(sess.Policy), sess.CreatedSeq)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteCall inserts one call of a session.
// Uses ON CONFLICT DO NOTHING: a second call with the same (session_id, seq)
// is silently ignored.
//
// Note: The session must exist (foreign key constraint).
func (s *Store) WriteCall(ctx context.Context, sessionID string, c player.Call) error {
	return writeCall(ctx, s.db, sessionID, c)
}

func writeCall(ctx context.Context, db execer, sessionID string, c player.Call) error {
	eventJSON, err := marshalEvent(c.Result.Event)
	if err != nil {
		return fmt.Errorf("write call: %w", err)
	}
	audioJSON, err := marshalAudio(c.Result.Audio)
	if err != nil {
		return fmt.Errorf("write call: %w", err)
	}

	var arg sql.NullInt64
	if c.Arg != nil {
		arg = sql.NullInt64{Int64: int64(*c.Arg), Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO calls (session_id, seq, op, arg, event, audio, status, digest_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, sessionID, c.Seq, c.Op, arg, eventJSON, audioJSON, c.Status.String(), c.DigestHash)
	if err != nil {
		return fmt.Errorf("write call: %w", err)
	}
	return nil
}

// WriteExtCall journals one ext_call a session encountered.
func (s *Store) WriteExtCall(ctx context.Context, sessionID string, rec player.ExtCallEntry) error {
	return writeExtCall(ctx, s.db, sessionID, rec)
}

func writeExtCall(ctx context.Context, db execer, sessionID string, rec player.ExtCallEntry) error {
	argsJSON, err := marshalArgs(rec.Args)
	if err != nil {
		return fmt.Errorf("write ext_call: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO ext_calls (session_id, seq, command, args)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, sessionID, rec.Seq, rec.Command, argsJSON)
	if err != nil {
		return fmt.Errorf("write ext_call: %w", err)
	}
	return nil
}

// NextSessionSeq returns the created_seq for the next session.
func (s *Store) NextSessionSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(created_seq), 0) + 1 FROM sessions`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next session seq: %w", err)
	}
	return seq, nil
}

// RecordTranscript journals a script, its session, and every call in one
// transaction. Recording the same transcript twice is a no-op.
func (s *Store) RecordTranscript(ctx context.Context, sc *script.Script, tr *player.Transcript) (Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, fmt.Errorf("record transcript: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	scriptID, err := writeScript(ctx, tx, sc)
	if err != nil {
		return Session{}, err
	}
	if scriptID != tr.ScriptID {
		return Session{}, fmt.Errorf("record transcript: script id %s does not match transcript %s", scriptID, tr.ScriptID)
	}

	// A session journaled before keeps its original created_seq.
	var createdSeq int64
	err = tx.QueryRowContext(ctx, `SELECT created_seq FROM sessions WHERE id = ?`, tr.SessionID).Scan(&createdSeq)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(created_seq), 0) + 1 FROM sessions`).Scan(&createdSeq)
	}
	if err != nil {
		return Session{}, fmt.Errorf("record transcript: session seq: %w", err)
	}

	sess := Session{
		ID:            tr.SessionID,
		ScriptID:      scriptID,
		EngineVersion: tr.EngineVersion,
		Policy:        tr.Policy,
		CreatedSeq:    createdSeq,
	}
	if err := writeSession(ctx, tx, sess); err != nil {
		return Session{}, err
	}
	for _, c := range tr.Calls {
		if err := writeCall(ctx, tx, tr.SessionID, c); err != nil {
			return Session{}, err
		}
	}
	for _, rec := range tr.ExtCalls {
		if err := writeExtCall(ctx, tx, tr.SessionID, rec); err != nil {
			return Session{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Session{}, fmt.Errorf("record transcript: commit: %w", err)
	}
	return sess, nil
}

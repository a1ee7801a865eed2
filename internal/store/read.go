package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/vnengine/internal/compiler"
	"github.com/roach88/vnengine/internal/engine"
	"github.com/roach88/vnengine/internal/player"
	"github.com/roach88/vnengine/internal/script"
)

// journalLimits accepts any script that was valid when it was journaled,
// whatever limits the writer ran with.
var journalLimits = compiler.Limits{AllowEmptySpeaker: true}

// StoredCall is one journaled call. Event and Audio hold the canonical
// JSON exactly as written.
type StoredCall struct {
	SessionID  string          `json:"session_id"`
	Seq        int64           `json:"seq"`
	Op         string          `json:"op"`
	Arg        *int            `json:"arg,omitempty"`
	Event      json.RawMessage `json:"event"`
	Audio      json.RawMessage `json:"audio"`
	Status     engine.Status   `json:"status"`
	DigestHash string          `json:"digest_hash"`
}

// Input returns the player input that produced the call.
func (c StoredCall) Input() player.Input {
	return player.Input{Op: c.Op, Arg: c.Arg}
}

// AudioCommands decodes the stored audio.
func (c StoredCall) AudioCommands() ([]engine.AudioCommand, error) {
	return unmarshalAudio(string(c.Audio))
}

// ReadScript loads a stored script and checks it still hashes to id.
// Returns sql.ErrNoRows (wrapped) if not found.
func (s *Store) ReadScript(ctx context.Context, id string) (*script.Script, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM scripts WHERE id = ?`, id).Scan(&body)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", id, err)
	}

	sc, err := compiler.ParseJSON([]byte(body), compiler.WithLimits(journalLimits))
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", id, err)
	}
	got, err := script.ScriptID(sc)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", id, err)
	}
	if got != id {
		return nil, fmt.Errorf("read script %s: stored body hashes to %s", id, got)
	}
	return sc, nil
}

// ReadSession retrieves a single session by ID.
// Returns sql.ErrNoRows (wrapped) if not found.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, script_id, engine_version, ext_call_policy, created_seq
		FROM sessions
		WHERE id = ?
	`, id)

	sess, err := scanSession(row)
	if err != nil {
		return Session{}, fmt.Errorf("read session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns every session, oldest first.
// Ordering: ORDER BY created_seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the journal has no sessions.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, script_id, engine_version, ext_call_policy, created_seq
		FROM sessions
		ORDER BY created_seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadCalls returns every call of a session in seq order.
//
// Returns an empty slice (not nil) if the session has no calls.
func (s *Store) ReadCalls(ctx context.Context, sessionID string) ([]StoredCall, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, op, arg, event, audio, status, digest_hash
		FROM calls
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	calls := []StoredCall{}
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

// ReadExtCalls returns the ext_calls journaled for a session in seq order.
func (s *Store) ReadExtCalls(ctx context.Context, sessionID string) ([]player.ExtCallEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, command, args
		FROM ext_calls
		WHERE session_id = ?
		ORDER BY seq ASC, command COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query ext_calls: %w", err)
	}
	defer rows.Close()

	records := []player.ExtCallEntry{}
	for rows.Next() {
		var (
			rec      player.ExtCallEntry
			argsJSON string
		)
		if err := rows.Scan(&rec.Seq, &rec.Command, &argsJSON); err != nil {
			return nil, fmt.Errorf("scan ext_call: %w", err)
		}
		if rec.Args, err = unmarshalArgs(argsJSON); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ext_calls: %w", err)
	}
	return records, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		sess   Session
		policy string
	)
	if err := row.Scan(&sess.ID, &sess.ScriptID, &sess.EngineVersion, &policy, &sess.CreatedSeq); err != nil {
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.Policy = player.ExtCallPolicy(policy)
	return sess, nil
}

func scanCall(row scanner) (StoredCall, error) {
	var (
		c      StoredCall
		arg    sql.NullInt64
		event  string
		audio  string
		status string
	)
	if err := row.Scan(&c.SessionID, &c.Seq, &c.Op, &arg, &event, &audio, &status, &c.DigestHash); err != nil {
		return StoredCall{}, fmt.Errorf("scan call: %w", err)
	}
	if arg.Valid {
		k := int(arg.Int64)
		c.Arg = &k
	}
	st, err := engine.ParseStatus(status)
	if err != nil {
		return StoredCall{}, fmt.Errorf("scan call: %w", err)
	}
	c.Status = st
	c.Event = json.RawMessage(event)
	c.Audio = json.RawMessage(audio)
	return c, nil
}

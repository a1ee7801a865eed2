package store

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/roach88/vnengine/internal/engine"
	"github.com/roach88/vnengine/internal/player"
	"github.com/roach88/vnengine/internal/script"
)

// Mismatch is one difference between a journaled call and its replay.
type Mismatch struct {
	Seq      int64  `json:"seq"`
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// ReplayReport is the outcome of VerifySession.
type ReplayReport struct {
	SessionID     string     `json:"session_id"`
	ScriptID      string     `json:"script_id"`
	EngineVersion string     `json:"engine_version"`
	Calls         int        `json:"calls"`
	Replayed      int        `json:"replayed"`
	Mismatches    []Mismatch `json:"mismatches"`
	ReplayError   string     `json:"replay_error,omitempty"`
}

// Deterministic reports whether the replay reproduced every call.
func (r ReplayReport) Deterministic() bool {
	return len(r.Mismatches) == 0 && r.ReplayError == "" && r.Calls == r.Replayed
}

// VerifySession rebuilds an interpreter from the stored script, replays the
// stored inputs, and compares each call's event, audio, status, and digest
// hash against the journal.
//
// The error return is for journal failures (missing session, unreadable
// script). A replay that diverges or fails partway is reported in the
// ReplayReport, not as an error.
func (s *Store) VerifySession(ctx context.Context, id string, opts ...player.Option) (ReplayReport, error) {
	sess, err := s.ReadSession(ctx, id)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("verify session: %w", err)
	}
	sc, err := s.ReadScript(ctx, sess.ScriptID)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("verify session: %w", err)
	}
	stored, err := s.ReadCalls(ctx, id)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("verify session: %w", err)
	}

	report := ReplayReport{
		SessionID:     sess.ID,
		ScriptID:      sess.ScriptID,
		EngineVersion: sess.EngineVersion,
		Calls:         len(stored),
		Mismatches:    []Mismatch{},
	}
	if sess.EngineVersion != script.EngineVersion {
		report.Mismatches = append(report.Mismatches, Mismatch{
			Field:    "engine_version",
			Expected: sess.EngineVersion,
			Actual:   script.EngineVersion,
		})
	}

	inputs := make([]player.Input, len(stored))
	for i, c := range stored {
		inputs[i] = c.Input()
	}

	p := player.New(append([]player.Option{
		player.WithEngineOptions(engine.WithLimits(journalLimits)),
		player.WithMaxSteps(len(inputs) + 1),
	}, append(slices.Clone(opts),
		player.WithExtCallPolicy(sess.Policy),
		player.WithSessionIDGenerator(player.NewFixedGenerator(sess.ID)),
	)...)...)

	tr, err := p.Replay(ctx, sc, inputs)
	if err != nil {
		report.ReplayError = err.Error()
	}
	if tr == nil {
		return report, nil
	}
	report.Replayed = len(tr.Calls)

	for i, got := range tr.Calls {
		mismatches, err := compareCall(stored[i], got)
		if err != nil {
			return report, fmt.Errorf("verify session: %w", err)
		}
		report.Mismatches = append(report.Mismatches, mismatches...)
	}
	return report, nil
}

func compareCall(want StoredCall, got player.Call) ([]Mismatch, error) {
	var out []Mismatch
	add := func(field, expected, actual string) {
		out = append(out, Mismatch{Seq: want.Seq, Field: field, Expected: expected, Actual: actual})
	}

	eventJSON, err := marshalEvent(got.Result.Event)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(want.Event, []byte(eventJSON)) {
		add("event", string(want.Event), eventJSON)
	}

	audioJSON, err := marshalAudio(got.Result.Audio)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(want.Audio, []byte(audioJSON)) {
		add("audio", string(want.Audio), audioJSON)
	}

	if want.Status != got.Status {
		add("status", want.Status.String(), got.Status.String())
	}
	if want.DigestHash != got.DigestHash {
		add("digest_hash", want.DigestHash, got.DigestHash)
	}
	return out, nil
}

package engine

import (
	"maps"
	"slices"

	"github.com/roach88/vnengine/internal/script"
)

// StateDigest is a compact, canonical snapshot of the execution state used
// to compare runs for determinism.
type StateDigest struct {
	Position   int         `json:"position"`
	Status     Status      `json:"status"`
	Flags      []FlagValue `json:"flags"`
	Vars       []VarValue  `json:"vars"`
	HistoryLen int         `json:"history_len"`
	ChoicesLen int         `json:"choices_len"`
	Visual     VisualState `json:"visual"`
}

// FlagValue is one flag in a StateDigest.
type FlagValue struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

// VarValue is one variable in a StateDigest.
type VarValue struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

// Digest snapshots the current state. Flags and vars are sorted by key.
func (in *Interpreter) Digest() StateDigest {
	d := StateDigest{
		Position:   in.st.cursor,
		Status:     in.st.status,
		Flags:      []FlagValue{},
		Vars:       []VarValue{},
		HistoryLen: len(in.st.dialogue),
		ChoicesLen: len(in.st.choices),
		Visual:     in.st.visual.Clone(),
	}
	for _, k := range slices.Sorted(maps.Keys(in.st.flags)) {
		d.Flags = append(d.Flags, FlagValue{Key: k, Value: in.st.flags[k]})
	}
	for _, k := range slices.Sorted(maps.Keys(in.st.vars)) {
		d.Vars = append(d.Vars, VarValue{Key: k, Value: in.st.vars[k]})
	}
	return d
}

// DigestHash hashes the canonical JSON of Digest in the state domain.
func (in *Interpreter) DigestHash() (string, error) {
	return script.StateHash(in.Digest())
}

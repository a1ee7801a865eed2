package engine

import (
	"fmt"
	"maps"
	"slices"
)

// Status is the interpreter's position in its state machine.
type Status int

const (
	StatusRunning Status = iota
	StatusAwaitingChoice
	StatusSuspended
	StatusExhausted
)

var statusNames = map[Status]string{
	StatusRunning:        "running",
	StatusAwaitingChoice: "awaiting_choice",
	StatusSuspended:      "suspended",
	StatusExhausted:      "exhausted",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus returns the status with the given name.
func ParseStatus(name string) (Status, error) {
	for st, n := range statusNames {
		if n == name {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// state is the mutable execution state. Only the Interpreter touches it,
// and only through clone-then-commit.
type state struct {
	cursor   int // -1 when exhausted
	status   Status
	flags    map[string]bool
	vars     map[string]int64
	visual   VisualState
	audio    []AudioCommand
	choices  []ChoiceRecord
	dialogue []DialogueLine
	readSet  map[int]struct{}
}

func newState(start int) *state {
	st := &state{
		cursor:  start,
		status:  StatusRunning,
		flags:   make(map[string]bool),
		vars:    make(map[string]int64),
		readSet: make(map[int]struct{}),
	}
	if start < 0 {
		st.cursor = -1
		st.status = StatusExhausted
	}
	return st
}

func (s *state) clone() *state {
	return &state{
		cursor:   s.cursor,
		status:   s.status,
		flags:    maps.Clone(s.flags),
		vars:     maps.Clone(s.vars),
		visual:   s.visual.Clone(),
		audio:    slices.Clone(s.audio),
		choices:  slices.Clone(s.choices),
		dialogue: slices.Clone(s.dialogue),
		readSet:  maps.Clone(s.readSet),
	}
}

// advance moves past the current event, exhausting at the end of the script.
func (s *state) advance(eventCount int) {
	s.jumpTo(s.cursor+1, eventCount)
}

func (s *state) jumpTo(idx, eventCount int) {
	if idx < 0 || idx >= eventCount {
		s.cursor = -1
		s.status = StatusExhausted
		return
	}
	s.cursor = idx
	s.status = StatusRunning
}

func (s *state) markRead(idx int) {
	s.readSet[idx] = struct{}{}
}

func (s *state) isRead(idx int) bool {
	_, ok := s.readSet[idx]
	return ok
}

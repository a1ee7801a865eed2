package script

import (
	"encoding/json"
	"fmt"
)

// Script is a versioned, ordered sequence of events plus named entry points.
//
// A Script returned by the compiler package is validated: every label points
// at an event and every branch target names a label. Callers must treat it as
// read-only; a single Script may back any number of interpreters.
type Script struct {
	SchemaVersion string         `json:"script_schema_version"`
	Events        []Event        `json:"events"`
	Labels        map[string]int `json:"labels"`
}

// StartLabel is the label an interpreter starts from when present.
const StartLabel = "start"

// Len returns the number of events.
func (s *Script) Len() int {
	return len(s.Events)
}

// Resolve returns the event index a label points at.
func (s *Script) Resolve(label string) (int, bool) {
	idx, ok := s.Labels[label]
	return idx, ok
}

// StartIndex returns the index execution begins at: the "start" label if
// defined, else 0. Returns -1 for a script with no events.
func (s *Script) StartIndex() int {
	if idx, ok := s.Labels[StartLabel]; ok {
		return idx
	}
	if len(s.Events) == 0 {
		return -1
	}
	return 0
}

// MarshalJSON always emits events as an array and labels as an object.
func (s Script) MarshalJSON() ([]byte, error) {
	events := s.Events
	if events == nil {
		events = []Event{}
	}
	labels := s.Labels
	if labels == nil {
		labels = map[string]int{}
	}
	return json.Marshal(struct {
		SchemaVersion string         `json:"script_schema_version"`
		Events        []Event        `json:"events"`
		Labels        map[string]int `json:"labels"`
	}{s.SchemaVersion, events, labels})
}

// Kind identifies an event variant on the wire ("type" discriminator).
type Kind string

const (
	KindDialogue             Kind = "dialogue"
	KindChoice               Kind = "choice"
	KindScene                Kind = "scene"
	KindPatch                Kind = "patch"
	KindJump                 Kind = "jump"
	KindJumpIf               Kind = "jump_if"
	KindSetFlag              Kind = "set_flag"
	KindSetVar               Kind = "set_var"
	KindAudioAction          Kind = "audio_action"
	KindTransition           Kind = "transition"
	KindSetCharacterPosition Kind = "set_character_position"
	KindExtCall              Kind = "ext_call"
)

// Kinds lists every event kind in declaration order.
var Kinds = []Kind{
	KindDialogue,
	KindChoice,
	KindScene,
	KindPatch,
	KindJump,
	KindJumpIf,
	KindSetFlag,
	KindSetVar,
	KindAudioAction,
	KindTransition,
	KindSetCharacterPosition,
	KindExtCall,
}

// Event is one script instruction. The private marker method restricts
// implementations to this package.
type Event interface {
	Kind() Kind
	event()
}

// Dialogue is a line spoken by a character.
type Dialogue struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Choice presents options; each names the label it leads to.
type Choice struct {
	Prompt  string         `json:"prompt"`
	Options []ChoiceOption `json:"options"`
}

// ChoiceOption is one selectable entry of a Choice.
type ChoiceOption struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

// Scene replaces the whole visual state.
type Scene struct {
	Background *string              `json:"background,omitempty"`
	Music      *string              `json:"music,omitempty"`
	Characters []CharacterPlacement `json:"characters,omitempty"`
}

// Patch merges into the visual state: add, then update, then remove.
//
// For Background, Music, and CharacterPatch string fields a nil pointer leaves
// the current value alone and a pointer to "" clears it.
type Patch struct {
	Background *string              `json:"background,omitempty"`
	Music      *string              `json:"music,omitempty"`
	Add        []CharacterPlacement `json:"add,omitempty"`
	Update     []CharacterPatch     `json:"update,omitempty"`
	Remove     []string             `json:"remove,omitempty"`
}

// CharacterPlacement places a character in the visual state. Name is the key.
type CharacterPlacement struct {
	Name       string   `json:"name"`
	Expression *string  `json:"expression,omitempty"`
	Position   *string  `json:"position,omitempty"`
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	Scale      *float64 `json:"scale,omitempty"`
}

// CharacterPatch overwrites only the fields that are present.
type CharacterPatch struct {
	Name       string   `json:"name"`
	Expression *string  `json:"expression,omitempty"`
	Position   *string  `json:"position,omitempty"`
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	Scale      *float64 `json:"scale,omitempty"`
}

// Jump moves the cursor to Target unconditionally.
type Jump struct {
	Target string `json:"target"`
}

// JumpIf moves the cursor to Target when Cond holds.
type JumpIf struct {
	Cond   Cond   `json:"cond"`
	Target string `json:"target"`
}

// SetFlag assigns a boolean flag.
type SetFlag struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

// SetVar assigns an integer variable.
type SetVar struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

// AudioAction queues one audio command. FadeIn and FadeOut are in seconds.
type AudioAction struct {
	Channel string   `json:"channel,omitempty"`
	Action  string   `json:"action"`
	Asset   *string  `json:"asset,omitempty"`
	Volume  *float64 `json:"volume,omitempty"`
	FadeIn  *float64 `json:"fade_in,omitempty"`
	FadeOut *float64 `json:"fade_out,omitempty"`
	Loop    *bool    `json:"loop,omitempty"`
}

// Transition queues one visual transition command.
type Transition struct {
	Effect     string  `json:"kind"`
	DurationMS int64   `json:"duration_ms"`
	Color      *string `json:"color,omitempty"`
}

// SetCharacterPosition moves (or places) a character directly.
type SetCharacterPosition struct {
	Name  string   `json:"name"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Scale *float64 `json:"scale,omitempty"`
}

// ExtCall delegates Command to the host.
type ExtCall struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

func (Dialogue) Kind() Kind             { return KindDialogue }
func (Choice) Kind() Kind               { return KindChoice }
func (Scene) Kind() Kind                { return KindScene }
func (Patch) Kind() Kind                { return KindPatch }
func (Jump) Kind() Kind                 { return KindJump }
func (JumpIf) Kind() Kind               { return KindJumpIf }
func (SetFlag) Kind() Kind              { return KindSetFlag }
func (SetVar) Kind() Kind               { return KindSetVar }
func (AudioAction) Kind() Kind          { return KindAudioAction }
func (Transition) Kind() Kind           { return KindTransition }
func (SetCharacterPosition) Kind() Kind { return KindSetCharacterPosition }
func (ExtCall) Kind() Kind              { return KindExtCall }

func (Dialogue) event()             {}
func (Choice) event()               {}
func (Scene) event()                {}
func (Patch) event()                {}
func (Jump) event()                 {}
func (JumpIf) event()               {}
func (SetFlag) event()              {}
func (SetVar) event()               {}
func (AudioAction) event()          {}
func (Transition) event()           {}
func (SetCharacterPosition) event() {}
func (ExtCall) event()              {}

// Targets returns the labels an event may transfer control to.
func Targets(ev Event) []string {
	switch e := ev.(type) {
	case Jump:
		return []string{e.Target}
	case JumpIf:
		return []string{e.Target}
	case Choice:
		targets := make([]string, len(e.Options))
		for i, opt := range e.Options {
			targets[i] = opt.Target
		}
		return targets
	default:
		return nil
	}
}

// CondKind identifies a condition variant on the wire ("kind" discriminator).
type CondKind string

const (
	CondFlag   CondKind = "flag"
	CondVarCmp CondKind = "var_cmp"
)

// Cond is a branch condition. The set of implementations is closed.
type Cond interface {
	CondKind() CondKind
	cond()
}

// FlagCond holds when the flag's value (default false) equals IsSet.
type FlagCond struct {
	Key   string `json:"key"`
	IsSet bool   `json:"is_set"`
}

// VarCmp compares a variable (default 0) against Value.
type VarCmp struct {
	Key   string `json:"key"`
	Op    CmpOp  `json:"op"`
	Value int64  `json:"value"`
}

func (FlagCond) CondKind() CondKind { return CondFlag }
func (VarCmp) CondKind() CondKind   { return CondVarCmp }

func (FlagCond) cond() {}
func (VarCmp) cond()   {}

// CmpOp is a comparison operator used by VarCmp.
type CmpOp string

const (
	OpEq CmpOp = "eq"
	OpNe CmpOp = "ne"
	OpLt CmpOp = "lt"
	OpLe CmpOp = "le"
	OpGt CmpOp = "gt"
	OpGe CmpOp = "ge"
)

// Valid reports whether op is one of the six supported operators.
func (op CmpOp) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Compare applies op to (left, right).
func (op CmpOp) Compare(left, right int64) (bool, error) {
	switch op {
	case OpEq:
		return left == right, nil
	case OpNe:
		return left != right, nil
	case OpLt:
		return left < right, nil
	case OpLe:
		return left <= right, nil
	case OpGt:
		return left > right, nil
	case OpGe:
		return left >= right, nil
	default:
		return false, fmt.Errorf("unknown comparison operator %q", string(op))
	}
}

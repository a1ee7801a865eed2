package script

import (
	"encoding/json"
	"fmt"
)

// marshalTagged encodes v as a JSON object with tagKey:tag as its first member.
func marshalTagged(tagKey, tag string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("tagged value %q must encode as an object", tag)
	}
	head := fmt.Sprintf(`{%q:%q`, tagKey, tag)
	if len(body) == 2 {
		return []byte(head + "}"), nil
	}
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head...)
	out = append(out, ',')
	return append(out, body[1:]...), nil
}

func (e Dialogue) MarshalJSON() ([]byte, error) {
	type plain Dialogue
	return marshalTagged("type", string(KindDialogue), plain(e))
}

func (e Choice) MarshalJSON() ([]byte, error) {
	type plain Choice
	return marshalTagged("type", string(KindChoice), plain(e))
}

func (e Scene) MarshalJSON() ([]byte, error) {
	type plain Scene
	return marshalTagged("type", string(KindScene), plain(e))
}

func (e Patch) MarshalJSON() ([]byte, error) {
	type plain Patch
	return marshalTagged("type", string(KindPatch), plain(e))
}

func (e Jump) MarshalJSON() ([]byte, error) {
	type plain Jump
	return marshalTagged("type", string(KindJump), plain(e))
}

func (e JumpIf) MarshalJSON() ([]byte, error) {
	type plain JumpIf
	return marshalTagged("type", string(KindJumpIf), plain(e))
}

func (e SetFlag) MarshalJSON() ([]byte, error) {
	type plain SetFlag
	return marshalTagged("type", string(KindSetFlag), plain(e))
}

func (e SetVar) MarshalJSON() ([]byte, error) {
	type plain SetVar
	return marshalTagged("type", string(KindSetVar), plain(e))
}

func (e AudioAction) MarshalJSON() ([]byte, error) {
	type plain AudioAction
	return marshalTagged("type", string(KindAudioAction), plain(e))
}

func (e Transition) MarshalJSON() ([]byte, error) {
	type plain Transition
	return marshalTagged("type", string(KindTransition), plain(e))
}

func (e SetCharacterPosition) MarshalJSON() ([]byte, error) {
	type plain SetCharacterPosition
	return marshalTagged("type", string(KindSetCharacterPosition), plain(e))
}

func (e ExtCall) MarshalJSON() ([]byte, error) {
	type plain ExtCall
	return marshalTagged("type", string(KindExtCall), plain(e))
}

func (c FlagCond) MarshalJSON() ([]byte, error) {
	type plain FlagCond
	return marshalTagged("kind", string(CondFlag), plain(c))
}

func (c VarCmp) MarshalJSON() ([]byte, error) {
	type plain VarCmp
	return marshalTagged("kind", string(CondVarCmp), plain(c))
}

// MarshalEvent encodes a single event in its tagged wire form.
func MarshalEvent(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("cannot marshal nil event")
	}
	return json.Marshal(ev)
}

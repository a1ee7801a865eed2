package script

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalEvent_TaggedForm(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			"dialogue",
			Dialogue{Speaker: "Ava", Text: "Hola"},
			`{"type":"dialogue","speaker":"Ava","text":"Hola"}`,
		},
		{
			"empty scene",
			Scene{},
			`{"type":"scene"}`,
		},
		{
			"jump_if with flag cond",
			JumpIf{Cond: FlagCond{Key: "met", IsSet: true}, Target: "end"},
			`{"type":"jump_if","cond":{"kind":"flag","key":"met","is_set":true},"target":"end"}`,
		},
		{
			"jump_if with var cmp",
			JumpIf{Cond: VarCmp{Key: "counter", Op: OpGt, Value: 1}, Target: "end"},
			`{"type":"jump_if","cond":{"kind":"var_cmp","key":"counter","op":"gt","value":1},"target":"end"}`,
		},
		{
			"patch keeps explicit empty string",
			Patch{Background: strPtr("")},
			`{"type":"patch","background":""}`,
		},
		{
			"transition effect rides in kind",
			Transition{Effect: "fade", DurationMS: 300},
			`{"type":"transition","kind":"fade","duration_ms":300}`,
		},
		{
			"ext_call without args",
			ExtCall{Command: "minigame"},
			`{"type":"ext_call","command":"minigame"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalEvent(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
			assert.Contains(t, string(got), `"type":"`+string(tt.event.Kind())+`"`)
		})
	}
}

func TestMarshalEvent_Nil(t *testing.T) {
	_, err := MarshalEvent(nil)
	assert.Error(t, err)
}

func TestScriptMarshal_EmptyCollections(t *testing.T) {
	got, err := json.Marshal(Script{SchemaVersion: SchemaVersion})
	require.NoError(t, err)
	assert.Equal(t, `{"script_schema_version":"1.0","events":[],"labels":{}}`, string(got))
}

func TestScriptMarshal_EventsAsTaggedArray(t *testing.T) {
	s := &Script{
		SchemaVersion: SchemaVersion,
		Events:        []Event{Dialogue{Speaker: "Ava", Text: "Hi"}, Jump{Target: "start"}},
		Labels:        map[string]int{"start": 0},
	}
	got, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"script_schema_version": "1.0",
		"events": [
			{"type": "dialogue", "speaker": "Ava", "text": "Hi"},
			{"type": "jump", "target": "start"}
		],
		"labels": {"start": 0}
	}`, string(got))
}

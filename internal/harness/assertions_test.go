package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vnengine/internal/engine"
)

func strp(s string) *string   { return &s }
func f64p(f float64) *float64 { return &f }
func intp(n int) *int         { return &n }

func sampleVisual() engine.VisualState {
	return engine.VisualState{
		Background: strp("porch"),
		Characters: []engine.Character{
			{Name: "Ava", Expression: strp("smile"), Position: strp("left"), X: f64p(0.5)},
		},
	}
}

func TestAssertFinalVisual(t *testing.T) {
	tests := []struct {
		name   string
		want   VisualExpect
		errMsg string
	}{
		{"background matches", VisualExpect{Background: strp("porch")}, ""},
		{"music unset", VisualExpect{Music: strp("")}, ""},
		{"character subset", VisualExpect{Characters: []CharacterExpect{{Name: "Ava", Position: strp("left")}}}, ""},
		{"character coordinate", VisualExpect{Characters: []CharacterExpect{{Name: "Ava", X: f64p(0.5)}}}, ""},
		{"background differs", VisualExpect{Background: strp("hall")}, `Expected: background = "hall"`},
		{"music expected", VisualExpect{Music: strp("waltz")}, "Actual: music = <none>"},
		{"character missing", VisualExpect{Characters: []CharacterExpect{{Name: "Ben"}}}, `character "Ben" on screen`},
		{"expression differs", VisualExpect{Characters: []CharacterExpect{{Name: "Ava", Expression: strp("sad")}}}, `Ava.expression = "sad"`},
		{"scale unset", VisualExpect{Characters: []CharacterExpect{{Name: "Ava", Scale: f64p(1)}}}, "Ava.scale = <none>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalVisual(sampleVisual(), Assertion{Type: AssertFinalVisual, Visual: &tt.want})
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestAssertAudioContains(t *testing.T) {
	audio := []engine.AudioCommand{
		{Type: engine.AudioPlayBGM, Channel: "bgm", Asset: strp("theme")},
		{Type: engine.AudioPlaySFX, Channel: "sfx", Asset: strp("door")},
	}

	assert.NoError(t, assertAudioContains(audio, Assertion{Audio: &AudioExpect{Type: "play_sfx"}}))
	assert.NoError(t, assertAudioContains(audio, Assertion{Audio: &AudioExpect{Type: "play_bgm", Asset: "theme", Channel: "bgm"}}))

	err := assertAudioContains(audio, Assertion{Audio: &AudioExpect{Type: "play_bgm", Asset: "door"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: play_bgm(door)")
	assert.Contains(t, err.Error(), "Actual: [play_bgm(theme) play_sfx(door)]")
}

func TestAssertEventSequence(t *testing.T) {
	trace := []TraceEvent{
		{Seq: 1, Op: "step", Event: "scene", Status: "running"},
		{Seq: 2, Op: "step", Status: "running", Error: "STATE_ERROR"},
		{Seq: 3, Op: "step", Event: "dialogue", Status: "exhausted"},
	}

	assert.NoError(t, assertEventSequence(trace, Assertion{Events: []string{"scene", "dialogue"}}))

	err := assertEventSequence(trace, Assertion{Type: AssertEventSequence, Events: []string{"dialogue", "scene"}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertEventSequence, ae.Type)
	assert.Contains(t, err.Error(), "Full trace:")
	assert.Contains(t, err.Error(), "[2] step -> STATE_ERROR")
	assert.Contains(t, err.Error(), "[3] step dialogue -> exhausted")
}

func TestAssertErrorOnStep(t *testing.T) {
	trace := []TraceEvent{
		{Seq: 1, Step: 0, Op: "step", Event: "scene", Status: "running"},
		{Seq: 2, Step: 0, Op: "step", Status: "suspended", Event: "ext_call"},
		{Seq: 3, Step: 1, Op: "step", Status: "suspended", Error: "ENGINE_SUSPENDED"},
	}

	tests := []struct {
		name   string
		step   int
		code   string
		errMsg string
	}{
		{"matching code", 1, "ENGINE_SUSPENDED", ""},
		{"other code", 1, "STATE_ERROR", "Actual: ENGINE_SUSPENDED"},
		{"step succeeded", 0, "STATE_ERROR", "Actual: succeeded with ext_call"},
		{"no call", 2, "STATE_ERROR", "Actual: no call made"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertErrorOnStep(trace, Assertion{Step: intp(tt.step), Code: tt.code})
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestAssertFlagsVarsStatusChoices(t *testing.T) {
	assert.NoError(t, assertFinalFlags(map[string]bool{"a": true}, Assertion{Flags: map[string]bool{"a": true, "b": false}}))
	assert.Error(t, assertFinalFlags(map[string]bool{}, Assertion{Flags: map[string]bool{"a": true}}))

	assert.NoError(t, assertFinalVars(map[string]int64{"n": 2}, Assertion{Vars: map[string]int64{"n": 2, "m": 0}}))
	assert.Error(t, assertFinalVars(map[string]int64{"n": 2}, Assertion{Vars: map[string]int64{"n": 3}}))

	assert.NoError(t, assertStatus(engine.StatusAwaitingChoice, Assertion{Status: "awaiting_choice"}))
	assert.Error(t, assertStatus(engine.StatusRunning, Assertion{Status: "exhausted"}))

	choices := []engine.ChoiceRecord{{EventIndex: 3, OptionIndex: 1}, {EventIndex: 7, OptionIndex: 0}}
	assert.NoError(t, assertChoiceHistory(choices, Assertion{Choices: []int{1, 0}}))
	assert.NoError(t, assertChoiceHistory(nil, Assertion{Choices: []int{}}))
	assert.Error(t, assertChoiceHistory(choices, Assertion{Choices: []int{1}}))
}

func TestEvaluateAssertions_PrefixesIndex(t *testing.T) {
	result := NewResult()
	result.Final.Status = engine.StatusRunning

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertStatus, Status: "running"},
		{Type: AssertStatus, Status: "exhausted"},
	})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "assertions[1]: Assertion failed: status")
}

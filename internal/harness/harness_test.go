package harness

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vnengine/internal/engine"
	"github.com/roach88/vnengine/internal/player"
)

func loadFixture(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
	require.NoError(t, err)
	return scenario
}

func TestRun_PorchVisit(t *testing.T) {
	result, err := Run(loadFixture(t, "porch_visit"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 11)
	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq, "seq of call %d", i)
	}
	assert.Equal(t, "ENGINE_SUSPENDED", result.Trace[3].Error)
	assert.Equal(t, "SCRIPT_EXHAUSTED", result.Trace[10].Error)

	assert.Equal(t, engine.StatusExhausted, result.Final.Status)
	assert.Equal(t, map[string]bool{"stayed": true}, result.Final.Flags)
	require.Len(t, result.Final.ExtCalls, 1)
	assert.Equal(t, player.ExtCallEntry{Seq: 3, Command: "autosave", Args: []string{}}, result.Final.ExtCalls[0])
	assert.Len(t, result.Committed(), 9)
}

func TestRun_GardenBranchRecordsHandlerCalls(t *testing.T) {
	result, err := Run(loadFixture(t, "garden_branch"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	// step_until_choice runs the whole script; the choose call fails.
	require.Len(t, result.Trace, 9)
	for _, ev := range result.Trace[:8] {
		assert.Equal(t, 0, ev.Step)
		assert.NotEqual(t, "suspended", ev.Status)
	}
	assert.Equal(t, 1, result.Trace[8].Step)
	assert.Equal(t, "STATE_ERROR", result.Trace[8].Error)

	require.Len(t, result.Final.ExtCalls, 1)
	assert.Equal(t, "unlock", result.Final.ExtCalls[0].Command)
	assert.Equal(t, []string{"garden"}, result.Final.ExtCalls[0].Args)
	assert.Equal(t, map[string]int64{"petals": 3}, result.Final.Vars)
}

func TestRun_Deterministic(t *testing.T) {
	scenario := loadFixture(t, "porch_visit")

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Final, second.Final)
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: unexpected
description: "Choosing before the choice is reached"
inline: |
  script_schema_version: "1.0"
  labels: {start: 0, a: 1}
  events:
    - {type: choice, prompt: "Go?", options: [{text: A, target: a}]}
    - {type: dialogue, speaker: Ava, text: Went.}
steps:
  - choose 0
  - step
  - choose 5
  - choose 0
  - step
assertions:
  - type: error_on_step
    step: 0
    code: STATE_ERROR
  - type: choice_history
    choices: [0]
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 2 (choose 5): unexpected INDEX_OUT_OF_RANGE")
}

func TestRun_AssertionFailuresAreCollected(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: failing
description: "Every assertion is wrong"
inline: |
  script_schema_version: "1.0"
  labels: {start: 0}
  events:
    - {type: scene, background: hall}
    - {type: set_flag, key: lit, value: true}
    - {type: set_var, key: coins, value: 2}
steps:
  - step_until_choice
assertions:
  - {type: event_sequence, events: [scene, set_flag]}
  - {type: final_visual, visual: {background: cellar}}
  - {type: final_flags, flags: {lit: false}}
  - {type: final_vars, vars: {coins: 3}}
  - {type: audio_contains, audio: {type: play_bgm}}
  - {type: status, status: running}
  - {type: choice_history, choices: [1]}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 7)
	assert.Contains(t, result.Errors[0], "Assertion failed: event_sequence")
	assert.Contains(t, result.Errors[1], `background = "cellar"`)
	assert.Contains(t, result.Errors[2], "flag lit = false")
	assert.Contains(t, result.Errors[3], "var coins = 3")
	assert.Contains(t, result.Errors[4], "play_bgm")
	assert.Contains(t, result.Errors[5], "Expected: running")
	assert.Contains(t, result.Errors[6], "Expected: [1]")
}

func TestRun_InvalidScript(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: broken
description: "Jump to a label that does not exist"
inline: |
  script_schema_version: "1.0"
  labels: {start: 0}
  events:
    - {type: jump, target: nowhere}
steps: [step]
assertions:
  - {type: status, status: exhausted}
`))
	require.NoError(t, err)

	_, err = Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load script")
}

func TestRun_StepUntilChoiceStopsOnQuota(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: loop
description: "A jump to itself never reaches a choice"
inline: |
  script_schema_version: "1.0"
  labels: {start: 0}
  events:
    - {type: jump, target: start}
steps: [step_until_choice]
assertions:
  - {type: status, status: running}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Trace, player.DefaultMaxSteps)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "exceeded max steps quota")
}

func TestRun_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Run(loadFixture(t, "porch_visit"), WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"scenario finished"`)
	assert.Contains(t, buf.String(), `"session_id":"golden-porch"`)
	assert.Contains(t, buf.String(), `"msg":"scenario call failed"`)
}

func TestRun_EngineOptions(t *testing.T) {
	_, err := Run(loadFixture(t, "porch_visit"),
		WithEngineOptions(engine.WithResourceConfig(engine.ResourceConfig{MaxScriptBytes: 16})))
	require.Error(t, err)
	assert.True(t, engine.IsResourceLimitExceeded(err))
}

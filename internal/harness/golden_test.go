package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_PorchVisit(t *testing.T) {
	// Regenerate with:
	//   go test ./internal/harness -run TestRunWithGolden_PorchVisit -update
	err := RunWithGolden(t, loadFixture(t, "porch_visit"))
	require.NoError(t, err)
}

func TestAssertGolden_FromResult(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{
		Seq:    1,
		Step:   0,
		Op:     StepStep,
		Event:  "dialogue",
		Status: "exhausted",
		View:   "Ava: Hi.",
	})

	err := AssertGolden(t, "assert_golden_manual", result)
	require.NoError(t, err)
}

func TestRunWithGolden_LoadError(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing_script",
		Description: "Script path does not exist",
		Script:      "testdata/scripts/absent.json",
		Steps:       []Step{{Op: StepStep}},
		Assertions:  []Assertion{{Type: AssertStatus, Status: "exhausted"}},
	}
	err := RunWithGolden(t, scenario)
	require.Error(t, err)
}

func TestTraceSnapshot_CanonicalForm(t *testing.T) {
	arg := 1
	snapshot := TraceSnapshot{
		ScenarioName: "s",
		Trace: []TraceEvent{
			{Seq: 2, Step: 1, Op: StepChoose, Arg: &arg, Event: "choice", Status: "running", View: "Go?\n1. A\n2. B"},
			{Seq: 3, Step: 2, Op: StepStep, Status: "running", Error: "STATE_ERROR"},
			{Seq: 4, Step: 3, Op: StepStep, Event: "scene", Status: "running", Audio: []string{"play_bgm"}},
		},
	}

	data, err := snapshot.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"s","trace":[`+
			`{"arg":1,"event":"choice","op":"choose","seq":2,"status":"running","step":1,"view":"Go?\n1. A\n2. B"},`+
			`{"error":"STATE_ERROR","op":"step","seq":3,"status":"running","step":2},`+
			`{"audio":["play_bgm"],"event":"scene","op":"step","seq":4,"status":"running","step":3}]}`,
		string(data))
}

// Package harness provides scenario conformance testing for vnengine scripts.
//
// A scenario loads one script, drives a fresh interpreter through an
// explicit list of calls, and checks the resulting trace and final state.
// Every call runs the real interpreter.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	script: ../scripts/intro.yaml   # or inline: |
//	handler: record                 # optional
//	steps:
//	  - step_until_choice
//	  - choose 1
//	  - step
//	  - resume
//	assertions:
//	  - type: event_sequence
//	    events: [scene, dialogue, choice]
//	  - type: final_visual
//	    visual:
//	      background: bg_room
//	      characters:
//	        - {name: Ava, expression: smile}
//	  - type: error_on_step
//	    step: 2
//	    code: ENGINE_SUSPENDED
//
// # Assertion Types
//
//   - event_sequence: event types of the committed calls, exactly and in order
//   - final_visual: subset match on background, music, and characters
//   - final_flags / final_vars: listed keys have the given values
//   - audio_contains: some drained audio command has the type (and asset)
//   - status: the final interpreter status
//   - choice_history: option indices of the committed choices
//   - error_on_step: a step failed with the given engine error code
//
// A failed call that no error_on_step assertion expects fails the scenario.
//
// # Deterministic Testing
//
// Seq stamps come from testutil.DeterministicClock and the session ID from
// testutil.FixedSessionGenerator, so a trace is byte-identical across runs
// and can be compared against golden files with RunWithGolden.
package harness

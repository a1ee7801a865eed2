package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/vnengine/internal/engine"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			if ev.Failed() {
				fmt.Fprintf(&buf, "  [%d] %s -> %s\n", ev.Seq, ev.Op, ev.Error)
				continue
			}
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", ev.Seq, ev.Op, ev.Event, ev.Status)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertEventSequence:
		return assertEventSequence(result.Trace, a)
	case AssertFinalVisual:
		return assertFinalVisual(result.Final.Visual, a)
	case AssertFinalFlags:
		return assertFinalFlags(result.Final.Flags, a)
	case AssertFinalVars:
		return assertFinalVars(result.Final.Vars, a)
	case AssertAudioContains:
		return assertAudioContains(result.Final.Audio, a)
	case AssertStatus:
		return assertStatus(result.Final.Status, a)
	case AssertChoiceHistory:
		return assertChoiceHistory(result.Final.Choices, a)
	case AssertErrorOnStep:
		return assertErrorOnStep(result.Trace, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertEventSequence checks the event types of the committed calls,
// exactly and in order.
func assertEventSequence(trace []TraceEvent, a Assertion) error {
	var actual []string
	for _, ev := range trace {
		if !ev.Failed() {
			actual = append(actual, ev.Event)
		}
	}
	if slices.Equal(actual, a.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventSequence,
		Expected: fmt.Sprintf("%v", a.Events),
		Actual:   fmt.Sprintf("%v", actual),
		Trace:    trace,
	}
}

// assertFinalVisual checks only the fields the assertion names.
func assertFinalVisual(visual engine.VisualState, a Assertion) error {
	want := a.Visual
	if want.Background != nil && !stringMatches(*want.Background, visual.Background) {
		return visualMismatch("background", *want.Background, visual.Background)
	}
	if want.Music != nil && !stringMatches(*want.Music, visual.Music) {
		return visualMismatch("music", *want.Music, visual.Music)
	}
	for _, wc := range want.Characters {
		c, ok := visual.Character(wc.Name)
		if !ok {
			return &AssertionError{
				Type:     AssertFinalVisual,
				Expected: fmt.Sprintf("character %q on screen", wc.Name),
				Actual:   fmt.Sprintf("characters %v", characterNames(visual)),
			}
		}
		if err := matchCharacter(wc, c); err != nil {
			return err
		}
	}
	return nil
}

func matchCharacter(want CharacterExpect, c engine.Character) error {
	field := func(name, expected string, actual any) error {
		return &AssertionError{
			Type:     AssertFinalVisual,
			Expected: fmt.Sprintf("%s.%s = %s", want.Name, name, expected),
			Actual:   fmt.Sprintf("%s.%s = %s", want.Name, name, formatValue(actual)),
		}
	}
	if want.Expression != nil && !stringMatches(*want.Expression, c.Expression) {
		return field("expression", formatValue(want.Expression), c.Expression)
	}
	if want.Position != nil && !stringMatches(*want.Position, c.Position) {
		return field("position", formatValue(want.Position), c.Position)
	}
	if want.X != nil && !floatMatches(*want.X, c.X) {
		return field("x", formatValue(want.X), c.X)
	}
	if want.Y != nil && !floatMatches(*want.Y, c.Y) {
		return field("y", formatValue(want.Y), c.Y)
	}
	if want.Scale != nil && !floatMatches(*want.Scale, c.Scale) {
		return field("scale", formatValue(want.Scale), c.Scale)
	}
	return nil
}

func visualMismatch(name, expected string, actual *string) error {
	return &AssertionError{
		Type:     AssertFinalVisual,
		Expected: fmt.Sprintf("%s = %s", name, formatValue(&expected)),
		Actual:   fmt.Sprintf("%s = %s", name, formatValue(actual)),
	}
}

// stringMatches treats an expected "" as "unset".
func stringMatches(expected string, actual *string) bool {
	if expected == "" {
		return actual == nil
	}
	return actual != nil && *actual == expected
}

func floatMatches(expected float64, actual *float64) bool {
	return actual != nil && *actual == expected
}

func characterNames(v engine.VisualState) []string {
	names := make([]string, len(v.Characters))
	for i, c := range v.Characters {
		names[i] = c.Name
	}
	return names
}

func formatValue(v any) string {
	switch p := v.(type) {
	case *string:
		if p == nil || *p == "" {
			return "<none>"
		}
		return fmt.Sprintf("%q", *p)
	case *float64:
		if p == nil {
			return "<none>"
		}
		return fmt.Sprintf("%g", *p)
	}
	return fmt.Sprintf("%v", v)
}

// assertFinalFlags checks each listed flag. Unset flags read as false.
func assertFinalFlags(flags map[string]bool, a Assertion) error {
	for _, key := range slices.Sorted(maps.Keys(a.Flags)) {
		if flags[key] != a.Flags[key] {
			return &AssertionError{
				Type:     AssertFinalFlags,
				Expected: fmt.Sprintf("flag %s = %t", key, a.Flags[key]),
				Actual:   fmt.Sprintf("flag %s = %t", key, flags[key]),
			}
		}
	}
	return nil
}

// assertFinalVars checks each listed variable. Unset variables read as 0.
func assertFinalVars(vars map[string]int64, a Assertion) error {
	for _, key := range slices.Sorted(maps.Keys(a.Vars)) {
		if vars[key] != a.Vars[key] {
			return &AssertionError{
				Type:     AssertFinalVars,
				Expected: fmt.Sprintf("var %s = %d", key, a.Vars[key]),
				Actual:   fmt.Sprintf("var %s = %d", key, vars[key]),
			}
		}
	}
	return nil
}

// assertAudioContains checks that some drained command matches.
func assertAudioContains(audio []engine.AudioCommand, a Assertion) error {
	want := a.Audio
	for _, cmd := range audio {
		if string(cmd.Type) != want.Type {
			continue
		}
		if want.Channel != "" && cmd.Channel != want.Channel {
			continue
		}
		if want.Asset != "" && (cmd.Asset == nil || *cmd.Asset != want.Asset) {
			continue
		}
		return nil
	}

	seen := make([]string, len(audio))
	for i, cmd := range audio {
		seen[i] = string(cmd.Type)
		if cmd.Asset != nil {
			seen[i] += "(" + *cmd.Asset + ")"
		}
	}
	expected := want.Type
	if want.Asset != "" {
		expected += "(" + want.Asset + ")"
	}
	if want.Channel != "" {
		expected += " on " + want.Channel
	}
	return &AssertionError{
		Type:     AssertAudioContains,
		Expected: expected,
		Actual:   fmt.Sprintf("%v", seen),
	}
}

func assertStatus(status engine.Status, a Assertion) error {
	if status.String() == a.Status {
		return nil
	}
	return &AssertionError{
		Type:     AssertStatus,
		Expected: a.Status,
		Actual:   status.String(),
	}
}

func assertChoiceHistory(choices []engine.ChoiceRecord, a Assertion) error {
	actual := make([]int, len(choices))
	for i, c := range choices {
		actual[i] = c.OptionIndex
	}
	if slices.Equal(actual, a.Choices) {
		return nil
	}
	return &AssertionError{
		Type:     AssertChoiceHistory,
		Expected: fmt.Sprintf("%v", a.Choices),
		Actual:   fmt.Sprintf("%v", actual),
	}
}

// assertErrorOnStep checks that a call made by the given step failed with
// the given code. A step_until_choice step matches on its last call.
func assertErrorOnStep(trace []TraceEvent, a Assertion) error {
	step := *a.Step
	var last *TraceEvent
	for i := range trace {
		if trace[i].Step == step {
			last = &trace[i]
		}
	}

	actual := "no call made"
	switch {
	case last == nil:
	case last.Error == a.Code:
		return nil
	case last.Failed():
		actual = last.Error
	default:
		actual = "succeeded with " + last.Event
	}
	return &AssertionError{
		Type:     AssertErrorOnStep,
		Expected: fmt.Sprintf("step %d fails with %s", step, a.Code),
		Actual:   actual,
		Trace:    trace,
	}
}

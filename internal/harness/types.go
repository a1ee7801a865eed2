package harness

import (
	"github.com/roach88/vnengine/internal/engine"
	"github.com/roach88/vnengine/internal/player"
)

// TraceEvent is one interpreter call made by a scenario, committed or not.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Step   int    `json:"step"` // index into Scenario.Steps
	Op     string `json:"op"`
	Arg    *int   `json:"arg,omitempty"`
	Event  string `json:"event,omitempty"`
	Status string `json:"status"`
	View   string `json:"view,omitempty"`

	// Audio lists the command types drained by the call.
	Audio []string `json:"audio,omitempty"`

	// Error is the engine error code when the call failed.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the call returned an error.
func (e TraceEvent) Failed() bool {
	return e.Error != ""
}

// FinalState is the interpreter state after the last step.
type FinalState struct {
	Status   engine.Status          `json:"status"`
	Visual   engine.VisualState     `json:"visual"`
	Flags    map[string]bool        `json:"flags"`
	Vars     map[string]int64       `json:"vars"`
	Choices  []engine.ChoiceRecord  `json:"choices"`
	Audio    []engine.AudioCommand  `json:"audio"`
	ExtCalls []player.ExtCallEntry `json:"ext_calls"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every call behaved as asserted and all assertions held.
	Pass bool `json:"pass"`

	// Trace contains every interpreter call in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the interpreter state after the last step.
	Final FinalState `json:"final"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends one call to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// Committed returns the calls that succeeded, in order.
func (r *Result) Committed() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if !ev.Failed() {
			out = append(out, ev)
		}
	}
	return out
}

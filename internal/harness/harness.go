package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/vnengine/internal/compiler"
	"github.com/roach88/vnengine/internal/engine"
	"github.com/roach88/vnengine/internal/player"
	"github.com/roach88/vnengine/internal/script"
	"github.com/roach88/vnengine/internal/testutil"
)

// Harness is the test execution engine.
// It runs one scenario against a fresh interpreter with a deterministic
// clock and session ID.
type Harness struct {
	in        *engine.Interpreter
	clock     *testutil.DeterministicClock
	quota     *player.QuotaEnforcer
	sessionID string
	logger    *slog.Logger

	seq      int64
	audio    []engine.AudioCommand
	extCalls []player.ExtCallEntry
}

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	logger     *slog.Logger
	engineOpts []engine.Option
}

// WithLogger sets the logger for the run and its interpreter.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEngineOptions passes options to the scenario's interpreter.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(c *runConfig) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against its own interpreter. Deterministic helpers
// ensure reproducible traces.
//
// Execution flow:
// 1. Load the script from the file or the inline YAML
// 2. Create the interpreter, with a recording handler if requested
// 3. Execute the steps, recording every call in the trace
// 4. Flag failed calls that no error_on_step assertion expects
// 5. Evaluate assertions against the trace and final state
//
// A failed interpreter call does not stop the run; the interpreter state
// is unchanged and the next step proceeds from it.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	s, err := loadScript(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load script: %w", err)
	}

	h := &Harness{
		clock:     testutil.NewDeterministicClock(),
		quota:     player.NewQuotaEnforcer(player.DefaultMaxSteps),
		sessionID: testutil.NewFixedSessionGenerator(scenario.SessionID).Generate(),
		logger:    cfg.logger,
	}

	engineOpts := append(slices.Clone(cfg.engineOpts), engine.WithLogger(cfg.logger))
	if scenario.Handler == HandlerRecord {
		engineOpts = append(engineOpts, engine.WithExtCallHandler(h.record))
	}
	h.in, err = engine.New(s, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter: %w", err)
	}

	result := NewResult()
	h.executeSteps(scenario.Steps, result)

	expected := expectedFailures(scenario.Assertions)
	for _, ev := range result.Trace {
		if ev.Failed() && !expected[ev.Step] {
			result.AddError(fmt.Sprintf("step %d (%s): unexpected %s", ev.Step, scenario.Steps[ev.Step], ev.Error))
		}
	}

	result.Final = h.finalState()
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"session_id", h.sessionID,
		"calls", len(result.Trace),
		"pass", result.Pass)
	return result, nil
}

func loadScript(scenario *Scenario) (*script.Script, error) {
	if scenario.Inline != "" {
		return compiler.ParseYAML([]byte(scenario.Inline))
	}
	return compiler.LoadFile(scenario.Script)
}

// executeSteps runs all steps in order.
func (h *Harness) executeSteps(steps []Step, result *Result) {
	for i, step := range steps {
		switch step.Op {
		case StepStepUntilChoice:
			for h.in.Status() == engine.StatusRunning {
				if err := h.quota.Check(h.sessionID); err != nil {
					result.AddError(fmt.Sprintf("step %d (%s): %v", i, step, err))
					break
				}
				ev := h.call(i, StepStep, nil)
				result.AddTrace(ev)
				if ev.Failed() {
					break
				}
			}
		default:
			if err := h.quota.Check(h.sessionID); err != nil {
				result.AddError(fmt.Sprintf("step %d (%s): %v", i, step, err))
				return
			}
			var arg *int
			if step.Op == StepChoose {
				arg = &step.Option
			}
			result.AddTrace(h.call(i, step.Op, arg))
		}
	}
}

// call performs one interpreter call.
//
// Get seq ONCE per call so committed and failed calls share one sequence.
func (h *Harness) call(step int, op string, arg *int) TraceEvent {
	h.seq = h.clock.Next()
	visual := h.in.Visual()

	var (
		res engine.StepResult
		err error
	)
	switch op {
	case StepStep:
		res, err = h.in.Step()
	case StepChoose:
		res, err = h.in.Choose(*arg)
	case StepResume:
		res, err = h.in.Resume()
	}

	ev := TraceEvent{
		Seq:    h.seq,
		Step:   step,
		Op:     op,
		Arg:    arg,
		Status: h.in.Status().String(),
	}
	if err != nil {
		ev.Error = errorCode(err)
		h.logger.Debug("scenario call failed", "seq", h.seq, "op", op, "error", err)
		return ev
	}

	ev.Event = string(res.Event.Kind())
	ev.View = engine.RenderText(engine.ViewFor(h.in.Script(), res.Event, visual))
	for _, cmd := range res.Audio {
		ev.Audio = append(ev.Audio, string(cmd.Type))
	}
	h.audio = append(h.audio, res.Audio...)

	if ext, ok := res.Event.(script.ExtCall); ok && op == StepStep && h.in.Status() == engine.StatusSuspended {
		h.record(ext.Command, slices.Clone(ext.Args))
	}

	h.logger.Debug("scenario call",
		"seq", h.seq,
		"op", op,
		"event_type", ev.Event,
		"status", ev.Status)
	return ev
}

func (h *Harness) record(command string, args []string) {
	if args == nil {
		args = []string{}
	}
	h.extCalls = append(h.extCalls, player.ExtCallEntry{Seq: h.seq, Command: command, Args: args})
}

func (h *Harness) finalState() FinalState {
	audio := h.audio
	if audio == nil {
		audio = []engine.AudioCommand{}
	}
	extCalls := h.extCalls
	if extCalls == nil {
		extCalls = []player.ExtCallEntry{}
	}
	return FinalState{
		Status:   h.in.Status(),
		Visual:   h.in.Visual(),
		Flags:    h.in.Flags(),
		Vars:     h.in.Vars(),
		Choices:  h.in.ChoiceHistory(),
		Audio:    audio,
		ExtCalls: extCalls,
	}
}

// errorCode returns the engine error code of err, or "ERROR" for errors
// that did not come from the interpreter.
func errorCode(err error) string {
	var e *engine.Error
	if errors.As(err, &e) {
		return string(e.Code)
	}
	return "ERROR"
}

// expectedFailures returns the step indices covered by error_on_step.
func expectedFailures(assertions []Assertion) map[int]bool {
	out := make(map[int]bool)
	for _, a := range assertions {
		if a.Type == AssertErrorOnStep && a.Step != nil {
			out[*a.Step] = true
		}
	}
	return out
}

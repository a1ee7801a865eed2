package engine

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/vnengine/internal/compiler"
	"github.com/roach88/vnengine/internal/script"
)

// Interpreter operation names used in errors and logs.
const (
	opCurrentEvent = "current_event"
	opStep         = "step"
	opChoose       = "choose"
	opResume       = "resume"
)

// StepResult is the outcome of one committed call: the event just processed
// and every audio command queued since the previous successful call.
//
// Event is shared with the Script and must be treated as read-only.
type StepResult struct {
	Event script.Event   `json:"event"`
	Audio []AudioCommand `json:"audio"`
}

// Interpreter executes one script for one session.
//
// Thread-safety model:
//   - An Interpreter is NOT safe for concurrent use; one logical caller
//     drives it at a time.
//   - The underlying *script.Script is read-only and may back any number of
//     interpreters across goroutines.
//
// INVARIANTS:
//   - The cursor is a valid event index unless the status is Exhausted.
//   - A failed call leaves the state exactly as it was.
//   - Exhausted is absorbing.
type Interpreter struct {
	script *script.Script
	st     *state

	handler ExtCallHandler
	logger  *slog.Logger
	limits  compiler.Limits

	resources ResourceConfig
	estimator TextureEstimator
	policy    ResourcePolicy

	prefetchDepth int
	historyLimit  int
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger. The default discards all output.
func WithLogger(l *slog.Logger) Option {
	return func(in *Interpreter) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithLimits sets the structural limits used to validate the script.
func WithLimits(l compiler.Limits) Option {
	return func(in *Interpreter) {
		in.limits = l
	}
}

func newInterpreter(opts []Option) *Interpreter {
	in := &Interpreter{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		limits:       compiler.DefaultLimits(),
		resources:    DefaultResourceConfig(),
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.policy == nil {
		in.policy = NewBudgetPolicy(in.resources, in.estimator)
	}
	return in
}

// New creates an Interpreter for a script built in Go.
//
// The script is checked like a loaded one. A wrong schema version returns a
// compiler.SchemaError; a dangling target or invalid field returns
// compiler.ValidationErrors. The script is measured in its canonical JSON
// form, and one over the script budget returns a ResourceLimitExceeded error.
func New(s *script.Script, opts ...Option) (*Interpreter, error) {
	in := newInterpreter(opts)
	if err := compiler.CheckVersion(s); err != nil {
		return nil, err
	}
	if errs := compiler.Validate(s, in.limits); len(errs) > 0 {
		return nil, compiler.ValidationErrors(errs)
	}
	data, err := script.CanonicalOf(s)
	if err != nil {
		return nil, fmt.Errorf("measure script: %w", err)
	}
	if err := in.policy.CheckScript(int64(len(data))); err != nil {
		return nil, err
	}
	in.start(s)
	return in, nil
}

// Load parses a JSON script and creates an Interpreter for it. The budget
// applies to len(data), the bytes the host actually supplied.
func Load(data []byte, opts ...Option) (*Interpreter, error) {
	in := newInterpreter(opts)
	if err := in.policy.CheckScript(int64(len(data))); err != nil {
		return nil, err
	}
	s, err := compiler.ParseJSON(data, compiler.WithLimits(in.limits))
	if err != nil {
		return nil, err
	}
	in.start(s)
	return in, nil
}

func (in *Interpreter) start(s *script.Script) {
	in.script = s
	in.st = newState(s.StartIndex())
	in.logger.Debug("interpreter started",
		"events", len(s.Events),
		"index", in.st.cursor,
		"status", in.st.status)
}

// CurrentEvent returns the event at the cursor without changing anything.
func (in *Interpreter) CurrentEvent() (script.Event, error) {
	if in.st.status == StatusExhausted {
		return nil, newExhaustedError(opCurrentEvent)
	}
	return in.script.Events[in.st.cursor], nil
}

// Step applies the event at the cursor. Valid only in StatusRunning.
//
// A choice moves to AwaitingChoice without advancing; an ext_call without a
// handler moves to Suspended. Every other event advances, following jumps.
func (in *Interpreter) Step() (StepResult, error) {
	switch in.st.status {
	case StatusAwaitingChoice:
		return StepResult{}, newStateError(opStep, in.st.cursor, "awaiting choice; call Choose")
	case StatusSuspended:
		var command string
		if ext, ok := in.script.Events[in.st.cursor].(script.ExtCall); ok {
			command = ext.Command
		}
		return StepResult{}, newSuspendedError(opStep, in.st.cursor, command)
	case StatusExhausted:
		return StepResult{}, newExhaustedError(opStep)
	}

	ev := in.script.Events[in.st.cursor]
	next := in.st.clone()
	visualChanged, err := in.apply(next, ev)
	if err != nil {
		return StepResult{}, err
	}
	return in.commit(opStep, next, ev, visualChanged), nil
}

// apply runs the effect of ev on next. It reports whether the visual state
// changed so textures can be tracked after commit.
func (in *Interpreter) apply(next *state, ev script.Event) (bool, error) {
	idx := next.cursor
	count := len(in.script.Events)

	switch e := ev.(type) {
	case script.Dialogue:
		next.markRead(idx)
		next.recordDialogue(DialogueLine{Index: idx, Speaker: e.Speaker, Text: e.Text}, in.historyLimit)
		next.advance(count)

	case script.Choice:
		next.status = StatusAwaitingChoice

	case script.Scene:
		before := next.visual.Music
		next.visual.applyScene(e)
		in.queueMusicCue(next, before)
		next.advance(count)
		return true, nil

	case script.Patch:
		before := next.visual.Music
		next.visual.applyPatch(e)
		in.queueMusicCue(next, before)
		next.advance(count)
		return true, nil

	case script.Jump:
		target, ok := in.script.Resolve(e.Target)
		if !ok {
			return false, newStateError(opStep, idx, "unresolved jump target %q", e.Target)
		}
		next.jumpTo(target, count)

	case script.JumpIf:
		taken, err := evalCond(e.Cond, next.flags, next.vars)
		if err != nil {
			return false, newStateError(opStep, idx, "%v", err)
		}
		if !taken {
			next.advance(count)
			break
		}
		target, ok := in.script.Resolve(e.Target)
		if !ok {
			return false, newStateError(opStep, idx, "unresolved jump_if target %q", e.Target)
		}
		next.jumpTo(target, count)

	case script.SetFlag:
		next.flags[e.Key] = e.Value
		next.advance(count)

	case script.SetVar:
		next.vars[e.Key] = e.Value
		next.advance(count)

	case script.AudioAction:
		cmd, ok := commandForAction(e)
		if !ok {
			return false, newStateError(opStep, idx, "unresolvable audio action %q on channel %q", e.Action, e.Channel)
		}
		next.audio = append(next.audio, cmd)
		next.advance(count)

	case script.Transition:
		next.audio = append(next.audio, commandForTransition(e))
		next.advance(count)

	case script.SetCharacterPosition:
		next.visual.setPosition(e)
		next.advance(count)
		return true, nil

	case script.ExtCall:
		if in.handler == nil {
			next.status = StatusSuspended
			in.logger.Info("suspended on ext_call", "index", idx, "command", e.Command)
			break
		}
		in.handler(e.Command, slices.Clone(e.Args))
		next.advance(count)

	default:
		return false, newStateError(opStep, idx, "unhandled event type %T", ev)
	}
	return false, nil
}

func (in *Interpreter) queueMusicCue(next *state, before *string) {
	if cmd, ok := musicCue(before, next.visual.Music); ok {
		next.audio = append(next.audio, cmd)
	}
}

// Choose commits option k of the pending choice and moves to its target.
// Valid only in StatusAwaitingChoice. Returns the resolved Choice.
func (in *Interpreter) Choose(k int) (StepResult, error) {
	if in.st.status != StatusAwaitingChoice {
		return StepResult{}, newStateError(opChoose, in.st.cursor,
			"choose requires awaiting_choice status, got %s", in.st.status)
	}
	idx := in.st.cursor
	choice, ok := in.script.Events[idx].(script.Choice)
	if !ok {
		return StepResult{}, newStateError(opChoose, idx, "event at cursor is %s, not choice", in.script.Events[idx].Kind())
	}
	if k < 0 || k >= len(choice.Options) {
		return StepResult{}, newIndexError(idx, k, len(choice.Options))
	}
	opt := choice.Options[k]
	target, ok := in.script.Resolve(opt.Target)
	if !ok {
		return StepResult{}, newStateError(opChoose, idx, "unresolved option target %q", opt.Target)
	}

	next := in.st.clone()
	next.choices = append(next.choices, ChoiceRecord{
		EventIndex:  idx,
		OptionIndex: k,
		OptionText:  opt.Text,
		TargetIndex: target,
	})
	next.jumpTo(target, len(in.script.Events))
	return in.commit(opChoose, next, choice, false), nil
}

// commit swaps in next, drains its audio queue, and tracks textures.
func (in *Interpreter) commit(op string, next *state, ev script.Event, visualChanged bool) StepResult {
	from := in.st.cursor
	audio := next.audio
	next.audio = nil
	if audio == nil {
		audio = []AudioCommand{}
	}
	in.st = next

	if visualChanged && in.policy.TrackTextures(next.visual.textureKeys()) {
		usage := in.policy.Usage()
		in.logger.Warn("texture estimate over budget",
			"current_texture_bytes", usage.CurrentTextureBytes,
			"max_texture_memory", usage.MaxTextureMemory)
	}

	in.logger.Debug("interpreter call",
		"op", op,
		"index", from,
		"event_type", ev.Kind(),
		"status", next.status,
		"audio", len(audio))

	return StepResult{Event: ev, Audio: audio}
}

// Status returns the current status.
func (in *Interpreter) Status() Status {
	return in.st.status
}

// Cursor returns the index of the current event, or -1 when exhausted.
func (in *Interpreter) Cursor() int {
	return in.st.cursor
}

// Flag returns a flag value; unset flags are false.
func (in *Interpreter) Flag(key string) bool {
	return in.st.flags[key]
}

// Var returns a variable value; unset variables are 0.
func (in *Interpreter) Var(key string) int64 {
	return in.st.vars[key]
}

// Flags returns a copy of every set flag.
func (in *Interpreter) Flags() map[string]bool {
	return maps.Clone(in.st.flags)
}

// Vars returns a copy of every set variable.
func (in *Interpreter) Vars() map[string]int64 {
	return maps.Clone(in.st.vars)
}

// Visual returns a copy of the visual state.
func (in *Interpreter) Visual() VisualState {
	return in.st.visual.Clone()
}

// Script returns the script being executed. It must not be modified.
func (in *Interpreter) Script() *script.Script {
	return in.script
}

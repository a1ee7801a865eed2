package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/vnengine/internal/engine"
	"github.com/roach88/vnengine/internal/script"
)

// Call operations.
const (
	OpStep   = "step"
	OpChoose = "choose"
	OpResume = "resume"
)

// ErrPlanExhausted is returned when the interpreter awaits a choice and the
// plan has no entries left. The partial transcript is returned with it.
var ErrPlanExhausted = errors.New("choice plan exhausted")

// ExtCallPolicy selects how a Player handles ext_call events.
type ExtCallPolicy string

const (
	// ExtCallResume lets the interpreter suspend and resumes it right away.
	ExtCallResume ExtCallPolicy = "resume"

	// ExtCallRecord registers a handler that records each call inline.
	ExtCallRecord ExtCallPolicy = "record"
)

// ParseExtCallPolicy parses a policy name.
func ParseExtCallPolicy(name string) (ExtCallPolicy, error) {
	switch p := ExtCallPolicy(name); p {
	case ExtCallResume, ExtCallRecord:
		return p, nil
	}
	return "", fmt.Errorf("unknown ext_call policy %q (expected resume or record)", name)
}

// Input is one interpreter call: an op and, for choose, the option index.
type Input struct {
	Op  string `json:"op"`
	Arg *int   `json:"arg,omitempty"`
}

// Call is one committed interpreter call.
type Call struct {
	Seq        int64             `json:"seq"`
	Op         string            `json:"op"`
	Arg        *int              `json:"arg,omitempty"`
	Result     engine.StepResult `json:"result"`
	Status     engine.Status     `json:"status"`
	View       string            `json:"view"`
	Prefetch   []string          `json:"prefetch,omitempty"`
	DigestHash string            `json:"digest_hash"`
}

// Input returns the op that produced c.
func (c Call) Input() Input {
	return Input{Op: c.Op, Arg: c.Arg}
}

// ExtCallEntry is one ext_call the session encountered.
type ExtCallEntry struct {
	Seq     int64    `json:"seq"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// Transcript records one play session.
type Transcript struct {
	SessionID     string             `json:"session_id"`
	ScriptID      string             `json:"script_id"`
	EngineVersion string             `json:"engine_version"`
	Policy        ExtCallPolicy      `json:"ext_call_policy"`
	Calls         []Call             `json:"calls"`
	ExtCalls      []ExtCallEntry     `json:"ext_calls"`
	Final         engine.StateDigest `json:"final"`
}

// Inputs returns the ops of every call, in order.
func (t *Transcript) Inputs() []Input {
	inputs := make([]Input, len(t.Calls))
	for i, c := range t.Calls {
		inputs[i] = c.Input()
	}
	return inputs
}

// EventKinds returns the event kind of every call, in order.
func (t *Transcript) EventKinds() []script.Kind {
	kinds := make([]script.Kind, len(t.Calls))
	for i, c := range t.Calls {
		kinds[i] = c.Result.Event.Kind()
	}
	return kinds
}

// Player runs play sessions.
type Player struct {
	logger     *slog.Logger
	ids        SessionIDGenerator
	clock      Sequencer
	maxSteps   int
	policy     ExtCallPolicy
	engineOpts []engine.Option
	observer   func(Call)
}

// Option configures a Player.
type Option func(*Player)

// WithLogger sets the logger, also handed to every interpreter.
func WithLogger(l *slog.Logger) Option {
	return func(p *Player) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithSessionIDGenerator sets how sessions are named.
func WithSessionIDGenerator(g SessionIDGenerator) Option {
	return func(p *Player) {
		p.ids = g
	}
}

// WithClock shares one sequencer across sessions. By default each session
// gets a fresh Clock and its first call is seq 1.
func WithClock(c Sequencer) Option {
	return func(p *Player) {
		p.clock = c
	}
}

// WithMaxSteps sets the per-session call quota.
func WithMaxSteps(n int) Option {
	return func(p *Player) {
		if n > 0 {
			p.maxSteps = n
		}
	}
}

// WithExtCallPolicy sets how ext_calls are handled.
func WithExtCallPolicy(policy ExtCallPolicy) Option {
	return func(p *Player) {
		p.policy = policy
	}
}

// WithEngineOptions passes options through to every interpreter.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(p *Player) {
		p.engineOpts = append(p.engineOpts, opts...)
	}
}

// WithObserver registers a callback invoked after each committed call.
func WithObserver(fn func(Call)) Option {
	return func(p *Player) {
		p.observer = fn
	}
}

// New creates a Player.
func New(opts ...Option) *Player {
	p := &Player{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:      UUIDv7Generator{},
		maxSteps: DefaultMaxSteps,
		policy:   ExtCallResume,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run plays s to exhaustion, answering choices from plan in order.
//
// The transcript is returned even on error, holding every call committed
// before the failure. Unused plan entries are logged and ignored.
func (p *Player) Run(ctx context.Context, s *script.Script, plan []int) (*Transcript, error) {
	sess, err := p.start(s)
	if err != nil {
		return nil, err
	}
	defer sess.finish()

	for sess.in.Status() != engine.StatusExhausted {
		var in Input
		switch sess.in.Status() {
		case engine.StatusRunning:
			in = Input{Op: OpStep}
		case engine.StatusSuspended:
			in = Input{Op: OpResume}
		case engine.StatusAwaitingChoice:
			if len(plan) == 0 {
				return sess.tr, fmt.Errorf("choice at event %d: %w", sess.in.Cursor(), ErrPlanExhausted)
			}
			k := plan[0]
			plan = plan[1:]
			in = Input{Op: OpChoose, Arg: &k}
		}
		if err := sess.call(ctx, in); err != nil {
			return sess.tr, err
		}
	}

	if len(plan) > 0 {
		p.logger.Warn("choice plan not fully used",
			"session_id", sess.tr.SessionID,
			"unused", len(plan))
	}
	return sess.tr, nil
}

// Replay applies inputs to a fresh interpreter for s, in order.
func (p *Player) Replay(ctx context.Context, s *script.Script, inputs []Input) (*Transcript, error) {
	sess, err := p.start(s)
	if err != nil {
		return nil, err
	}
	defer sess.finish()

	for _, in := range inputs {
		if err := sess.call(ctx, in); err != nil {
			return sess.tr, err
		}
	}
	return sess.tr, nil
}

// session is the per-run state of a Player.
type session struct {
	p     *Player
	in    *engine.Interpreter
	clock Sequencer
	quota *QuotaEnforcer
	tr    *Transcript
	seq   int64 // seq of the call in flight
}

func (p *Player) start(s *script.Script) (*session, error) {
	scriptID, err := script.ScriptID(s)
	if err != nil {
		return nil, fmt.Errorf("hash script: %w", err)
	}

	sess := &session{
		p:     p,
		clock: p.clock,
		quota: NewQuotaEnforcer(p.maxSteps),
		tr: &Transcript{
			SessionID:     p.ids.Generate(),
			ScriptID:      scriptID,
			EngineVersion: script.EngineVersion,
			Policy:        p.policy,
			Calls:         []Call{},
			ExtCalls:      []ExtCallEntry{},
		},
	}
	if sess.clock == nil {
		sess.clock = NewClock()
	}

	opts := append(slices.Clone(p.engineOpts), engine.WithLogger(p.logger))
	if p.policy == ExtCallRecord {
		opts = append(opts, engine.WithExtCallHandler(sess.record))
	}
	in, err := engine.New(s, opts...)
	if err != nil {
		return nil, err
	}
	sess.in = in

	p.logger.Info("session started",
		"session_id", sess.tr.SessionID,
		"script_id", scriptID,
		"ext_call_policy", p.policy)
	return sess, nil
}

func (s *session) record(command string, args []string) {
	if args == nil {
		args = []string{}
	}
	s.tr.ExtCalls = append(s.tr.ExtCalls, ExtCallEntry{Seq: s.seq, Command: command, Args: args})
}

// call performs one interpreter call and appends it to the transcript.
func (s *session) call(ctx context.Context, in Input) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.quota.Check(s.tr.SessionID); err != nil {
		return err
	}
	s.seq = s.clock.Next()
	visual := s.in.Visual()

	var (
		res engine.StepResult
		err error
	)
	switch in.Op {
	case OpStep:
		res, err = s.in.Step()
	case OpChoose:
		if in.Arg == nil {
			return fmt.Errorf("seq %d: choose requires an option index", s.seq)
		}
		res, err = s.in.Choose(*in.Arg)
	case OpResume:
		res, err = s.in.Resume()
	default:
		return fmt.Errorf("seq %d: unknown op %q", s.seq, in.Op)
	}
	if err != nil {
		return fmt.Errorf("seq %d %s: %w", s.seq, in.Op, err)
	}

	if ext, ok := res.Event.(script.ExtCall); ok && in.Op == OpStep && s.in.Status() == engine.StatusSuspended {
		s.record(ext.Command, slices.Clone(ext.Args))
	}

	hash, err := s.in.DigestHash()
	if err != nil {
		return fmt.Errorf("seq %d: digest: %w", s.seq, err)
	}
	c := Call{
		Seq:        s.seq,
		Op:         in.Op,
		Arg:        in.Arg,
		Result:     res,
		Status:     s.in.Status(),
		View:       engine.RenderText(engine.ViewFor(s.in.Script(), res.Event, visual)),
		Prefetch:   s.in.PrefetchAssetsHint(),
		DigestHash: hash,
	}
	s.tr.Calls = append(s.tr.Calls, c)

	s.p.logger.Debug("player call",
		"session_id", s.tr.SessionID,
		"seq", c.Seq,
		"op", c.Op,
		"event_type", res.Event.Kind(),
		"status", c.Status)
	if s.p.observer != nil {
		s.p.observer(c)
	}
	return nil
}

func (s *session) finish() {
	s.tr.Final = s.in.Digest()
	s.p.logger.Info("session finished",
		"session_id", s.tr.SessionID,
		"calls", len(s.tr.Calls),
		"status", s.tr.Final.Status)
}

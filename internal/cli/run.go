package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/vnengine/internal/engine"
	"github.com/roach88/vnengine/internal/player"
	"github.com/roach88/vnengine/internal/script"
	"github.com/roach88/vnengine/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Choices  []int
	Database string
	Prefetch int

	// SessionIDs allows overriding the session ID generator (for testing).
	// If nil, defaults to player.UUIDv7Generator.
	SessionIDs player.SessionIDGenerator
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Transcript *player.Transcript `json:"transcript"`
	Database   string             `json:"database,omitempty"`
	CreatedSeq int64              `json:"created_seq,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Play a script to the end",
		Long: `Play a script from its start label until it is exhausted.

Choices are answered from --choices in order. ext_call events are handled
by the configured policy: "resume" resumes right away, "record" records
each call without suspending. With --db the session is journaled so it can
be verified later with "vnengine replay".

Examples:
  vnengine run ./story.json --choices 0,1
  vnengine run ./story.yaml --choices 1 --db ./sessions.db
  vnengine run ./story.cue --prefetch 4 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntSliceVar(&opts.Choices, "choices", nil, "option index for each choice, in order")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal the session to this SQLite database")
	cmd.Flags().IntVar(&opts.Prefetch, "prefetch", 0, "asset prefetch lookahead (overrides config)")

	return cmd
}

// session holds one finished play session.
type session struct {
	script     *script.Script
	transcript *player.Transcript
	err        error // failure that ended the session early, if any
}

// playScript loads path and plays it with choices. The returned error is a
// command error; a session that ends early is reported in session.err.
func playScript(ctx context.Context, opts *RootOptions, path string, choices []int, prefetch *int, ids player.SessionIDGenerator, observe func(player.Call), logger *slog.Logger) (*session, error) {
	cfg := opts.Settings()
	if prefetch != nil {
		cfg.PrefetchDepth = *prefetch
	}

	s, err := LoadScript(path, cfg.CompilerLimits())
	if err != nil {
		return nil, err
	}

	playerOpts := append(cfg.PlayerOptions(), player.WithLogger(logger))
	if ids != nil {
		playerOpts = append(playerOpts, player.WithSessionIDGenerator(ids))
	}
	if observe != nil {
		playerOpts = append(playerOpts, player.WithObserver(observe))
	}

	tr, runErr := player.New(playerOpts...).Run(ctx, s, choices)
	if tr == nil {
		return nil, &LoadError{Code: runErrorCode(runErr), Message: runErr.Error()}
	}
	return &session{script: s, transcript: tr, err: runErr}, nil
}

func runPlay(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger(formatter.GetErrWriter())

	ctx, stop := signalContext(cmd)
	defer stop()

	var prefetch *int
	if cmd.Flags().Changed("prefetch") {
		prefetch = &opts.Prefetch
	}

	sess, err := playScript(ctx, opts.RootOptions, path, opts.Choices, prefetch, opts.SessionIDs, nil, logger)
	if err != nil {
		code := loadErrorCode(err)
		_ = formatter.Error(code, errorMessage(err), nil)
		return WrapExitError(ExitCommandError, "failed to start session", err)
	}

	result := RunResult{Transcript: sess.transcript}

	database := opts.Database
	if database == "" {
		database = opts.Settings().Database
	}
	if database != "" {
		journaled, err := journal(ctx, database, sess)
		if err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to journal session", err)
		}
		result.Database = database
		result.CreatedSeq = journaled.CreatedSeq
		formatter.VerboseLog("journaled session %s to %s", journaled.ID, database)
	}

	if opts.Format == "json" {
		return outputRunJSON(cmd.OutOrStdout(), result, sess.err)
	}
	return outputRunText(cmd.OutOrStdout(), result, sess.err)
}

// journal records the session in the database at path.
func journal(ctx context.Context, path string, sess *session) (store.Session, error) {
	st, err := store.Open(path)
	if err != nil {
		return store.Session{}, fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	return st.RecordTranscript(ctx, sess.script, sess.transcript)
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runErrorCode names the failure that ended a session.
func runErrorCode(err error) string {
	var engErr *engine.Error
	switch {
	case errors.As(err, &engErr):
		return string(engErr.Code)
	case player.IsStepsExceededError(err):
		return "STEPS_EXCEEDED"
	case errors.Is(err, player.ErrPlanExhausted):
		return "PLAN_EXHAUSTED"
	case errors.Is(err, context.Canceled):
		return "CANCELED"
	default:
		return ErrCodeGeneric
	}
}

// describeCall renders the op half of a call line, e.g. "choose(1)".
func describeCall(c player.Call) string {
	if c.Arg != nil {
		return fmt.Sprintf("%s(%d)", c.Op, *c.Arg)
	}
	return c.Op
}

func outputRunJSON(w io.Writer, result RunResult, runErr error) error {
	resp := okResponse(result)
	resp.SessionID = result.Transcript.SessionID
	if runErr == nil {
		return respond(w, resp, nil)
	}
	return respond(w, resp.failed(runErrorCode(runErr), runErr.Error()),
		WrapExitError(ExitFailure, "session ended early", runErr))
}

func outputRunText(w io.Writer, result RunResult, runErr error) error {
	tr := result.Transcript

	fmt.Fprintf(w, "Session %s\n", tr.SessionID)
	fmt.Fprintf(w, "  script: %s\n", tr.ScriptID)
	fmt.Fprintf(w, "  ext_call policy: %s\n", tr.Policy)
	fmt.Fprintln(w)

	for _, c := range tr.Calls {
		fmt.Fprintf(w, "[%d] %s %s -> %s\n", c.Seq, describeCall(c), c.Result.Event.Kind(), c.Status)
		for line := range strings.SplitSeq(c.View, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
		for _, a := range c.Result.Audio {
			fmt.Fprintf(w, "    ♪ %s\n", a.Type)
		}
		if len(c.Prefetch) > 0 {
			fmt.Fprintf(w, "    prefetch: %s\n", strings.Join(c.Prefetch, ", "))
		}
	}
	for _, rec := range tr.ExtCalls {
		fmt.Fprintf(w, "ext_call [%d] %s(%s)\n", rec.Seq, rec.Command, strings.Join(rec.Args, ", "))
	}

	fmt.Fprintln(w)
	if result.Database != "" {
		fmt.Fprintf(w, "Journaled to %s\n", result.Database)
	}
	if runErr != nil {
		fmt.Fprintf(w, "✗ Session ended after %s: %v\n", countOf(len(tr.Calls), "call", "calls"), runErr)
		return WrapExitError(ExitFailure, "session ended early", runErr)
	}
	fmt.Fprintf(w, "✓ Script exhausted after %s\n", countOf(len(tr.Calls), "call", "calls"))
	return nil
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vnengine/internal/player"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Choices []int

	// SessionIDs allows overriding the session ID generator (for testing).
	SessionIDs player.SessionIDGenerator
}

// TraceLine is one call rendered as a single line of UI text.
type TraceLine struct {
	Seq    int64  `json:"seq"`
	Op     string `json:"op"`
	Event  string `json:"event"`
	Status string `json:"status"`
	Text   string `json:"text"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	SessionID string      `json:"session_id"`
	ScriptID  string      `json:"script_id"`
	Lines     []TraceLine `json:"lines"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	return newTraceCommand(&TraceOptions{RootOptions: rootOpts})
}

func newTraceCommand(opts *TraceOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <script>",
		Short: "Print the UI trace of a play session",
		Long: `Play a script and print what a text front end would show, one line per
interpreter call. Multi-line views (choice menus) are joined with " / ".

Examples:
  vnengine trace ./story.json --choices 0
  vnengine trace ./story.yaml --choices 1,0 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntSliceVar(&opts.Choices, "choices", nil, "option index for each choice, in order")

	return cmd
}

func runTrace(opts *TraceOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger(formatter.GetErrWriter())

	ctx, stop := signalContext(cmd)
	defer stop()

	observe := func(c player.Call) {
		formatter.VerboseLog("call %d: %s -> %s", c.Seq, describeCall(c), c.Status)
	}
	sess, err := playScript(ctx, opts.RootOptions, path, opts.Choices, nil, opts.SessionIDs, observe, logger)
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), errorMessage(err), nil)
		return WrapExitError(ExitCommandError, "failed to start session", err)
	}

	result := buildTrace(sess.transcript)

	if opts.Format == "json" {
		resp := okResponse(result)
		resp.SessionID = result.SessionID
		if sess.err != nil {
			resp = resp.failed(runErrorCode(sess.err), sess.err.Error())
		}
		if err := respond(cmd.OutOrStdout(), resp, nil); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, line := range result.Lines {
			fmt.Fprintf(w, "%4d  %s\n", line.Seq, line.Text)
		}
		if sess.err != nil {
			fmt.Fprintf(w, "✗ %v\n", sess.err)
		}
	}

	if sess.err != nil {
		return WrapExitError(ExitFailure, "session ended early", sess.err)
	}
	return nil
}

// buildTrace renders every call of tr as one line.
func buildTrace(tr *player.Transcript) TraceResult {
	result := TraceResult{
		SessionID: tr.SessionID,
		ScriptID:  tr.ScriptID,
		Lines:     make([]TraceLine, 0, len(tr.Calls)),
	}
	for _, c := range tr.Calls {
		result.Lines = append(result.Lines, TraceLine{
			Seq:    c.Seq,
			Op:     describeCall(c),
			Event:  string(c.Result.Event.Kind()),
			Status: c.Status.String(),
			Text:   strings.ReplaceAll(c.View, "\n", " / "),
		})
	}
	return result
}

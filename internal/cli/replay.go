package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/vnengine/internal/engine"
	"github.com/roach88/vnengine/internal/player"
	"github.com/roach88/vnengine/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - specific session only
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []store.ReplayReport `json:"sessions"`
	TotalSessions    int                  `json:"total_sessions"`
	AllDeterministic bool                 `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay journaled sessions and verify determinism",
		Long: `Replay journaled sessions against their stored scripts.

Each session's inputs are applied to a fresh interpreter and every call's
event, audio, status, and state digest hash is compared with the journal.
The history limit must match the one the sessions were played with.

Exit codes:
  0 - All sessions are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, unknown session, etc.)

Examples:
  vnengine replay --db ./sessions.db
  vnengine replay --db ./sessions.db --session 0192f0c4-...
  vnengine replay --db ./sessions.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	// store.Open creates missing files; a typo must not yield an empty journal.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var ids []string
	if opts.SessionID != "" {
		ids = []string{opts.SessionID}
	} else {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		for _, s := range sessions {
			ids = append(ids, s.ID)
		}
	}

	// Replay pins its own permissive limits; only settings that change
	// interpreter output are passed through.
	cfg := opts.Settings()
	playerOpts := []player.Option{
		player.WithLogger(opts.Logger(cmd.ErrOrStderr())),
		player.WithEngineOptions(
			engine.WithHistoryLimit(cfg.HistoryLimit),
			engine.WithResourceConfig(cfg.ResourceConfig()),
		),
	}

	result := ReplayResult{
		Sessions:         make([]store.ReplayReport, 0, len(ids)),
		TotalSessions:    len(ids),
		AllDeterministic: true,
	}
	for _, id := range ids {
		report, err := st.VerifySession(ctx, id, playerOpts...)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", id), err)
		}
		result.Sessions = append(result.Sessions, report)
		if !report.Deterministic() {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd.OutOrStdout(), result)
	}
	return outputReplayText(cmd.OutOrStdout(), result, opts.Verbose)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(w io.Writer, result ReplayResult) error {
	resp := okResponse(result)
	if result.AllDeterministic {
		return respond(w, resp, nil)
	}
	const msg = "determinism verification failed"
	return respond(w, resp.failed("E_DETERMINISM", msg), NewExitError(ExitFailure, msg))
}

// outputReplayText outputs the replay result as text.
func outputReplayText(w io.Writer, result ReplayResult, verbose bool) error {
	if result.TotalSessions == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %s\n", countOf(result.TotalSessions, "session", "sessions"))
	fmt.Fprintln(w)

	for _, report := range result.Sessions {
		status := "✓"
		if !report.Deterministic() {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Session: %s\n", status, report.SessionID)
		fmt.Fprintf(w, "  Calls: %d journaled, %d replayed\n", report.Calls, report.Replayed)
		if verbose {
			fmt.Fprintf(w, "  Script: %s\n", report.ScriptID)
			fmt.Fprintf(w, "  Engine: %s\n", report.EngineVersion)
		}
		if report.ReplayError != "" {
			fmt.Fprintf(w, "  Replay error: %s\n", report.ReplayError)
		}
		for _, m := range report.Mismatches {
			fmt.Fprintf(w, "  [%d] %s: expected %s, got %s\n", m.Seq, m.Field, m.Expected, m.Actual)
		}
	}

	fmt.Fprintln(w)
	if !result.AllDeterministic {
		fmt.Fprintln(w, "✗ Determinism verification failed")
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	fmt.Fprintln(w, "✓ All sessions deterministic")
	return nil
}

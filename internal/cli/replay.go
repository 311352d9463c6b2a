package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/tactline/internal/engine"
	"github.com/roach88/tactline/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - one session only
	KB       string // optional - overrides the recorded KB source
}

// ReplaySessionResult is the replay outcome of one session.
type ReplaySessionResult struct {
	SessionID     string                  `json:"session_id"`
	Epoch         int                     `json:"epoch"`
	Tacts         int                     `json:"tacts"`
	Deterministic bool                    `json:"deterministic"`
	Mismatches    []engine.ReplayMismatch `json:"mismatches,omitempty"`
	Error         string                  `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay tact logs and verify determinism",
		Long: `Re-execute the current epoch of each stored session on a fresh
solver and compare every tact's result hash with the recorded one.

The knowledge base is loaded from the directory recorded with the session
unless --kb is given; its hash must match the recorded hash.

Exit codes:
  0 - All sessions are deterministic
  1 - A result hash differed or a session could not be replayed
  2 - Command error (database not found, etc.)

Examples:
  tactline replay --db ./tactline.db
  tactline replay --db ./tactline.db --session 0190a...
  tactline replay --db ./tactline.db --kb ./kb --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay one session only")
	cmd.Flags().StringVar(&opts.KB, "kb", "", "knowledge base directory to replay against")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	logger := opts.Logger(cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var sessions []store.Session
	if opts.Session != "" {
		sess, err := st.GetSession(ctx, opts.Session)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("session %s", opts.Session), err)
		}
		sessions = []store.Session{sess}
	} else if sessions, err = st.ListSessions(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions:    len(sessions),
		AllDeterministic: true,
	}
	kbs := kbCache{}
	for _, sess := range sessions {
		r := ReplaySessionResult{SessionID: sess.ID, Epoch: sess.Epoch}
		report, err := replaySession(cmd, st, kbs, sess, opts.KB, logger)
		if err != nil {
			r.Error = err.Error()
		} else {
			r.Tacts = report.Tacts
			r.Mismatches = report.Mismatches
			r.Deterministic = report.Deterministic()
		}
		if !r.Deterministic {
			result.AllDeterministic = false
		}
		result.Sessions = append(result.Sessions, r)
	}

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

func replaySession(cmd *cobra.Command, st *store.Store, kbs kbCache, sess store.Session, kbOverride string, logger *slog.Logger) (*engine.ReplayReport, error) {
	dir := kbOverride
	if dir == "" {
		dir = sess.KBSource
	}
	if dir == "" {
		return nil, fmt.Errorf("session %s has no recorded knowledge base; pass --kb", sess.ID)
	}
	kb, err := kbs.load(dir)
	if err != nil {
		return nil, err
	}
	logger.Debug("replaying session", "session", sess.ID, "epoch", sess.Epoch, "kb", dir)
	return st.ReplaySession(cmd.Context(), kb, sess.ID, sess.Epoch)
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) {
	w := formatter.Writer
	if result.TotalSessions == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return
	}
	for _, r := range result.Sessions {
		switch {
		case r.Error != "":
			fmt.Fprintf(w, "✗ %s (epoch %d): %s\n", r.SessionID, r.Epoch, r.Error)
		case r.Deterministic:
			fmt.Fprintf(w, "✓ %s (epoch %d): %d tact(s) deterministic\n", r.SessionID, r.Epoch, r.Tacts)
		default:
			fmt.Fprintf(w, "✗ %s (epoch %d): %d of %d tact(s) differ\n", r.SessionID, r.Epoch, len(r.Mismatches), r.Tacts)
			for _, m := range r.Mismatches {
				fmt.Fprintf(w, "    tact %d: recorded %s, replayed %s\n", m.Tact, m.Want, m.Got)
			}
		}
	}
	fmt.Fprintln(w)
	if result.AllDeterministic {
		fmt.Fprintf(w, "All %d session(s) deterministic\n", result.TotalSessions)
	} else {
		fmt.Fprintln(w, "Replay verification failed")
	}
}

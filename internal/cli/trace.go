package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tactline/internal/engine"
	"github.com/roach88/tactline/internal/ir"
	"github.com/roach88/tactline/internal/queryir"
	"github.com/roach88/tactline/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Epoch    int // -1 selects the session's current epoch
	Where    string
}

// TraceTact is one logged tact.
type TraceTact struct {
	Tact       int                `json:"tact"`
	Inputs     []engine.TactInput `json:"inputs"`
	Signified  map[string]any     `json:"signified"`
	ResultHash string             `json:"result_hash"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	SessionID string              `json:"session_id"`
	Epoch     int                 `json:"epoch"`
	Filter    string              `json:"filter,omitempty"`
	Tacts     []TraceTact         `json:"tacts"`
	Timeline  ir.TimelineSnapshot `json:"timeline"`
	Stats     TraceStats          `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Tacts     int `json:"tacts"`
	Intervals int `json:"intervals"`
	Events    int `json:"events"`
	StillOpen int `json:"still_open"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the tact log of a stored session",
		Long: `Print every logged tact of a session epoch: the working-memory
updates applied before it, the facts it signified, and the timeline
after the last tact.

--where keeps only the tacts whose signified facts match a filter:
comma-separated terms of the form path=json-value, path? (published
with any value) or tact=N..M. The timeline is always shown in full.

Examples:
  tactline trace --db ./tactline.db --session 0190a...
  tactline trace --db ./tactline.db --session 0190a... --where 'R1.condition=false,tact=2..9'
  tactline trace --db ./tactline.db --session 0190a... --epoch 0 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().IntVar(&opts.Epoch, "epoch", -1, "epoch to show (default current)")
	cmd.Flags().StringVar(&opts.Where, "where", "", "filter tacts by signified facts")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	filter, err := queryir.ParseFilter(opts.Where)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("--where: %v", err), nil)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	sess, err := st.GetSession(ctx, opts.Session)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("session %s: %v", opts.Session, err), nil)
	}
	epoch := opts.Epoch
	if epoch < 0 {
		epoch = sess.Epoch
	}

	rows, err := st.ReadTacts(ctx, sess.ID, epoch)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	result, err := buildTrace(sess.ID, epoch, rows)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	if filter != nil {
		matched, err := st.FindTacts(ctx, queryir.Query{SessionID: sess.ID, Epoch: epoch, Filter: filter})
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
		}
		result.Filter = opts.Where
		result.Tacts = keepTacts(result.Tacts, matched)
		result.Stats.Tacts = len(result.Tacts)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputTraceText(formatter, result)
	return nil
}

func buildTrace(sessionID string, epoch int, rows []store.TactRow) (*TraceResult, error) {
	result := &TraceResult{
		SessionID: sessionID,
		Epoch:     epoch,
		Tacts:     make([]TraceTact, 0, len(rows)),
		Timeline:  ir.TimelineSnapshot{Tacts: []ir.TactSnapshot{}},
	}
	for _, row := range rows {
		res, err := decodeResult(row.Result)
		if err != nil {
			return nil, fmt.Errorf("tact %d: %w", row.Tact, err)
		}
		result.Tacts = append(result.Tacts, TraceTact{
			Tact:       row.Tact,
			Inputs:     row.Inputs,
			Signified:  res.Signified,
			ResultHash: row.ResultHash,
		})
		result.Timeline = res.Timeline
	}

	result.Stats.Tacts = len(result.Tacts)
	for _, rec := range result.Timeline.Tacts {
		result.Stats.Intervals += len(rec.OpenedIntervals)
		result.Stats.Events += len(rec.Events)
		for _, oi := range rec.OpenedIntervals {
			if oi.CloseTact == nil {
				result.Stats.StillOpen++
			}
		}
	}
	return result, nil
}

func keepTacts(tacts []TraceTact, keep []int) []TraceTact {
	out := make([]TraceTact, 0, len(keep))
	for _, tt := range tacts {
		if slices.Contains(keep, tt.Tact) {
			out = append(out, tt)
		}
	}
	return out
}

// decodeResult parses a logged result; numbers stay json.Number so
// integers print without a fractional part.
func decodeResult(data string) (*ir.TactResult, error) {
	var res ir.TactResult
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	if err := dec.Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

func outputTraceText(formatter *OutputFormatter, result *TraceResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "Session %s, epoch %d\n", result.SessionID, result.Epoch)
	if result.Filter != "" {
		fmt.Fprintf(w, "Filter: %s\n", result.Filter)
	}
	fmt.Fprintln(w)

	for _, tt := range result.Tacts {
		fmt.Fprintf(w, "[%d]", tt.Tact)
		for _, in := range tt.Inputs {
			if in.ClearBefore {
				fmt.Fprint(w, " clear")
			}
			for _, it := range in.Items {
				fmt.Fprintf(w, " %s=%s", it.Ref, ir.FormatContent(it.Value))
			}
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "    %s\n", formatSignified(tt.Signified))
	}

	fmt.Fprintln(w, "\nTimeline:")
	for _, rec := range result.Timeline.Tacts {
		var parts []string
		for _, oi := range rec.OpenedIntervals {
			end := "open"
			if oi.CloseTact != nil {
				end = fmt.Sprint(*oi.CloseTact)
			}
			parts = append(parts, fmt.Sprintf("%s[%d,%s]", oi.Interval, oi.OpenTact, end))
		}
		for _, ev := range rec.Events {
			parts = append(parts, fmt.Sprintf("%s@%d", ev.Event, ev.OccurrenceTact))
		}
		fmt.Fprintf(w, "  [%d] %s\n", rec.Tact, strings.Join(parts, " "))
	}

	fmt.Fprintf(w, "\n%d tact(s), %d interval(s) (%d still open), %d event(s)\n",
		result.Stats.Tacts, result.Stats.Intervals, result.Stats.StillOpen, result.Stats.Events)
}

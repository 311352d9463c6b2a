package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tactline/internal/engine"
	"github.com/roach88/tactline/internal/ir"
	"github.com/roach88/tactline/internal/session"
	"github.com/roach88/tactline/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Inputs   string
	Database string

	// IDGenerator overrides the session ID generator (for testing).
	IDGenerator session.IDGenerator
}

// RunResult is the output of a batch run.
type RunResult struct {
	SessionID string           `json:"session_id"`
	KBHash    string           `json:"kb_hash"`
	Tacts     []*ir.TactResult `json:"tacts"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <kb-dir>",
		Short: "Drive a solver through a file of tact inputs",
		Long: `Create a session for the knowledge base and process one tact per
entry of the inputs file. Each entry is a working-memory update:

  - items:
      - {ref: sensor.attr2, value: 1}
    clear_before: false

With --db the session and its tact log are persisted and can later be
inspected with trace and checked with replay.

Example:
  tactline run ./kb --inputs ./inputs.yaml
  tactline run ./kb --inputs ./inputs.yaml --db ./tactline.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInputs(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Inputs, "inputs", "", "path to YAML or JSON tact inputs (required)")
	_ = cmd.MarkFlagRequired("inputs")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	return cmd
}

func runInputs(opts *RunOptions, kbDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.Logger(cmd.ErrOrStderr())
	ctx := cmd.Context()

	inputs, err := readInputs(opts.Inputs)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}

	regOpts := []session.Option{session.WithLogger(logger)}
	if opts.IDGenerator != nil {
		regOpts = append(regOpts, session.WithIDGenerator(opts.IDGenerator))
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		regOpts = append(regOpts, session.WithStore(st))
	}
	reg := session.NewRegistry(regOpts...)

	sess, err := reg.Create(ctx, kbDir)
	if err != nil {
		var kbErr *session.KBError
		if errors.As(err, &kbErr) {
			return outputValidationErrors(formatter, "✗ Knowledge base invalid", kbErr.Errors, ExitCommandError)
		}
		loadErr := toLoadError(err)
		return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Error(), nil)
	}
	logger.Info("session created", "session", sess.ID, "kb", kbDir)

	result := RunResult{SessionID: sess.ID, KBHash: sess.KBHash, Tacts: make([]*ir.TactResult, 0, len(inputs))}
	for i, in := range inputs {
		if err := reg.UpdateWM(sess.ID, in.Items, in.ClearBefore); err != nil {
			return failRuntime(formatter, i, err)
		}
		res, err := reg.ProcessTact(ctx, sess.ID)
		if err != nil {
			return failRuntime(formatter, i, err)
		}
		result.Tacts = append(result.Tacts, res)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "Session %s\n", result.SessionID)
	for _, res := range result.Tacts {
		fmt.Fprintf(formatter.Writer, "tact %d: %s\n", res.Tact, formatSignified(res.Signified))
	}
	return nil
}

// readInputs decodes a list of tact inputs. Unknown fields are rejected.
func readInputs(path string) ([]engine.TactInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inputs file: %w", err)
	}
	var inputs []engine.TactInput
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&inputs); err != nil {
		return nil, fmt.Errorf("failed to parse inputs: %w", err)
	}
	return inputs, nil
}

func failRuntime(formatter *OutputFormatter, input int, err error) error {
	code := ErrCodeGeneric
	var rerr *engine.RuntimeError
	if errors.As(err, &rerr) {
		code = string(rerr.Code)
	}
	_ = formatter.Error(code, fmt.Sprintf("input %d: %v", input, err), nil)
	return WrapExitError(ExitFailure, fmt.Sprintf("input %d failed", input), err)
}

// formatSignified renders facts as path=value pairs in path order.
func formatSignified(signified map[string]any) string {
	if len(signified) == 0 {
		return "(nothing signified)"
	}
	paths := make([]string, 0, len(signified))
	for p := range signified {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	parts := make([]string, len(paths))
	for i, p := range paths {
		parts[i] = p + "=" + ir.FormatContent(signified[p])
	}
	return strings.Join(parts, " ")
}

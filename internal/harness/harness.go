package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/tactline/internal/compiler"
	"github.com/roach88/tactline/internal/engine"
	"github.com/roach88/tactline/internal/ir"
	"github.com/roach88/tactline/internal/store"
)

// Harness executes one scenario against a fresh solver and an in-memory
// tact log.
type Harness struct {
	solver *engine.Solver
	store  *store.Store

	// pending holds updates accepted since the last committed tact.
	pending []engine.TactInput
}

const sessionID = "scenario"

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Compile and validate the scenario's knowledge base
//  2. Open an in-memory store and record a session for it
//  3. Apply each step, process a tact and check its expectations
//  4. Replay the recorded log and compare result hashes
//  5. Evaluate assertions against the final timeline
//
// An error is returned only when the scenario cannot be executed at all;
// failed expectations are reported in the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	kb, err := LoadKB(scenario.KB)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	hash, err := ir.KBHash(kb)
	if err != nil {
		return nil, err
	}
	if err := st.CreateSession(ctx, store.Session{ID: sessionID, KBHash: hash, KBSource: scenario.KB}); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	solver, err := engine.New(kb, engine.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	h := &Harness{solver: solver, store: st}
	result := NewResult()
	var last *ir.TactResult
	for i, step := range scenario.Tacts {
		res, err := h.step(ctx, i, step, result)
		if err != nil {
			return nil, err
		}
		if res != nil {
			last = res
		}
	}

	report, err := st.ReplaySession(ctx, kb, sessionID, 0, engine.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	result.Deterministic = report.Deterministic()
	for _, m := range report.Mismatches {
		result.AddError(fmt.Sprintf("replay tact %d: result hash %s, recorded %s", m.Tact, m.Got, m.Want))
	}

	result.Timeline = solver.Timeline().Snapshot()
	for _, msg := range EvaluateAssertions(scenario.Assertions, solver.Timeline(), last) {
		result.AddError(msg)
	}
	return result, nil
}

// LoadKB compiles and validates the knowledge base in dir.
func LoadKB(dir string) (*ir.KnowledgeBase, error) {
	kb, err := compiler.LoadKB(dir)
	if err != nil {
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	if errs := compiler.ValidateKB(kb); len(errs) > 0 {
		return nil, fmt.Errorf("knowledge base %s: %w", dir, errors.Join(validationErrs(errs)...))
	}
	return kb, nil
}

func validationErrs(errs []compiler.ValidationError) []error {
	out := make([]error, len(errs))
	for i := range errs {
		out[i] = &errs[i]
	}
	return out
}

// step applies one scenario step. The returned error is an infrastructure
// failure; solver errors are compared with the step's expectation.
func (h *Harness) step(ctx context.Context, i int, step TactStep, result *Result) (*ir.TactResult, error) {
	expect := step.Expect
	if expect == nil {
		expect = &Expect{}
	}

	res, err := h.apply(step)
	if err != nil {
		code := errorCode(err)
		result.Tacts = append(result.Tacts, TactOutcome{Step: i, Tact: -1, Error: code})
		if expect.Error == "" {
			result.AddError(fmt.Sprintf("step %d: unexpected error: %v", i, err))
		} else if expect.Error != code {
			result.AddError(fmt.Sprintf("step %d: expected error %s, got %s", i, expect.Error, code))
		}
		return nil, nil
	}

	if err := h.store.WriteTact(ctx, sessionID, 0, h.pending, res); err != nil {
		return nil, fmt.Errorf("record tact %d: %w", res.Tact, err)
	}
	h.pending = nil

	result.Tacts = append(result.Tacts, TactOutcome{Step: i, Tact: res.Tact, Signified: res.Signified})
	if expect.Error != "" {
		result.AddError(fmt.Sprintf("step %d: expected error %s, tact %d succeeded", i, expect.Error, res.Tact))
	}
	for _, msg := range checkExpect(expect, res) {
		result.AddError(fmt.Sprintf("step %d (tact %d): %s", i, res.Tact, msg))
	}
	return res, nil
}

func (h *Harness) apply(step TactStep) (*ir.TactResult, error) {
	if len(step.Items) > 0 || step.ClearBefore {
		if err := h.solver.UpdateWM(step.Items, step.ClearBefore); err != nil {
			return nil, err
		}
		h.pending = append(h.pending, engine.TactInput{Items: step.Items, ClearBefore: step.ClearBefore})
	}
	return h.solver.ProcessTact()
}

// errorCode returns the runtime error code of err, or its message for
// errors outside the solver's taxonomy.
func errorCode(err error) string {
	var rerr *engine.RuntimeError
	if errors.As(err, &rerr) {
		return string(rerr.Code)
	}
	return err.Error()
}

func checkExpect(expect *Expect, res *ir.TactResult) []string {
	var msgs []string
	for _, path := range sortedKeys(expect.Signified) {
		want := expect.Signified[path]
		got, ok := res.Signified[path]
		if !ok {
			msgs = append(msgs, fmt.Sprintf("signified %s: not published", path))
			continue
		}
		if !contentEqual(want, got) {
			msgs = append(msgs, fmt.Sprintf("signified %s: expected %s, got %s", path, ir.FormatContent(want), ir.FormatContent(got)))
		}
	}
	for _, path := range sortedKeys(expect.WM) {
		want := expect.WM[path]
		got, ok := res.WM[path]
		if !ok {
			msgs = append(msgs, fmt.Sprintf("wm %s: not set", path))
			continue
		}
		if !contentEqual(want, got) {
			msgs = append(msgs, fmt.Sprintf("wm %s: expected %s, got %s", path, ir.FormatContent(want), ir.FormatContent(got)))
		}
	}

	opened, closed, occurred := tactActivity(res)
	if expect.Opened != nil && !sameIDs(expect.Opened, opened) {
		msgs = append(msgs, fmt.Sprintf("opened: expected %v, got %v", expect.Opened, opened))
	}
	if expect.Closed != nil && !sameIDs(expect.Closed, closed) {
		msgs = append(msgs, fmt.Sprintf("closed: expected %v, got %v", expect.Closed, closed))
	}
	if expect.Occurred != nil && !sameIDs(expect.Occurred, occurred) {
		msgs = append(msgs, fmt.Sprintf("occurred: expected %v, got %v", expect.Occurred, occurred))
	}
	return msgs
}

// tactActivity lists the intervals opened, the intervals closed and the
// events that occurred in the result's tact.
func tactActivity(res *ir.TactResult) (opened, closed, occurred []string) {
	opened, closed, occurred = []string{}, []string{}, []string{}
	for _, rec := range res.Timeline.Tacts {
		for _, oi := range rec.OpenedIntervals {
			if rec.Tact == res.Tact {
				opened = append(opened, oi.Interval)
			}
			if oi.CloseTact != nil && *oi.CloseTact == res.Tact {
				closed = append(closed, oi.Interval)
			}
		}
		if rec.Tact == res.Tact {
			for _, ev := range rec.Events {
				occurred = append(occurred, ev.Event)
			}
		}
	}
	return opened, closed, occurred
}

func sameIDs(want, got []string) bool {
	w, g := slices.Clone(want), slices.Clone(got)
	slices.Sort(w)
	slices.Sort(g)
	return slices.Equal(w, g)
}

// contentEqual compares a scenario value with a solver value. Numbers
// compare by value regardless of integer or float form.
func contentEqual(want, got any) bool {
	w, err := ir.NewValue(want)
	if err != nil {
		return false
	}
	return ir.UnifyNumber(w.Content) == ir.UnifyNumber(got)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

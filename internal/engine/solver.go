package engine

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/roach88/tactline/internal/allen"
	"github.com/roach88/tactline/internal/eval"
	"github.com/roach88/tactline/internal/ir"
	"github.com/roach88/tactline/internal/timeline"
	"github.com/roach88/tactline/internal/wm"
)

// Solver is the temporal solver for one knowledge base and one caller.
//
// It is single-threaded: at most one of ProcessTact, UpdateWM and Reset
// may run at a time. Callers sharing a solver across goroutines must
// serialize access themselves (see the session package).
//
// INVARIANTS:
//   - intervals, events and rules are evaluated in declaration order
//   - a tact either commits completely or leaves no trace
//   - signified facts only ever describe the last committed tact
type Solver struct {
	kb       *ir.KnowledgeBase
	clock    *TactClock
	timeline *timeline.Timeline
	memory   *wm.Memory

	signified map[string]any
	meta      map[string]ir.SignifiedMeta

	logger *slog.Logger
}

// Option allows configuration of solver parameters.
type Option func(*Solver)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) {
		s.logger = l
	}
}

// WithClock sets a pre-configured clock.
// Used by tests that start a solver mid-timeline.
func WithClock(c *TactClock) Option {
	return func(s *Solver) {
		s.clock = c
	}
}

// New creates a solver in the not-started state.
// The knowledge base must have been validated.
func New(kb *ir.KnowledgeBase, opts ...Option) (*Solver, error) {
	if !kb.Validated() {
		return nil, &RuntimeError{
			Code:    ErrCodeKBNotValidated,
			Message: "solver requires a validated knowledge base",
			Tact:    NotStarted,
			Err:     ErrKBNotValidated,
		}
	}

	s := &Solver{
		kb:     kb,
		clock:  NewTactClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.timeline = timeline.New()
	s.memory = wm.New(kb.World)
	s.signified = make(map[string]any)
	s.meta = make(map[string]ir.SignifiedMeta)
	return s, nil
}

// KnowledgeBase returns the solver's knowledge base.
func (s *Solver) KnowledgeBase() *ir.KnowledgeBase { return s.kb }

// CurrentTact returns the last processed tact, or NotStarted.
func (s *Solver) CurrentTact() int { return s.clock.Current() }

// Clock returns the solver's tact clock.
func (s *Solver) Clock() *TactClock { return s.clock }

// Timeline returns the live timeline.
func (s *Solver) Timeline() *timeline.Timeline { return s.timeline }

// Memory returns the live working memory.
func (s *Solver) Memory() *wm.Memory { return s.memory }

// Signified returns a copy of the facts published by the last tact,
// keyed by expression path.
func (s *Solver) Signified() map[string]any { return maps.Clone(s.signified) }

// Reset discards the timeline and working memory and returns the solver
// to the not-started state.
func (s *Solver) Reset() {
	s.clock.Reset()
	s.timeline = timeline.New()
	s.memory = wm.New(s.kb.World)
	s.signified = make(map[string]any)
	s.meta = make(map[string]ir.SignifiedMeta)
	s.logger.Info("solver reset")
}

// UpdateWM applies a batch of working-memory assignments. With clearBefore
// the memory is first restored to its defaults. The batch is applied
// atomically: if any item is rejected, memory is left unchanged.
func (s *Solver) UpdateWM(items []ir.WMItem, clearBefore bool) error {
	next := s.memory.Clone()
	if clearBefore {
		next.Clear()
	}
	for _, it := range items {
		v, err := it.ToValue()
		if err == nil {
			err = next.Set(it.Ref, v)
		}
		if err != nil {
			return &RuntimeError{
				Code:       ErrCodeInvalidValue,
				Message:    err.Error(),
				Tact:       s.clock.Current(),
				Definition: it.Ref,
				Err:        err,
			}
		}
	}
	s.memory = next
	s.logger.Debug("working memory updated", "items", len(items), "clear_before", clearBefore)
	return nil
}

type checkpoint struct {
	tact      int
	timeline  *timeline.Timeline
	memory    *wm.Memory
	signified map[string]any
	meta      map[string]ir.SignifiedMeta
}

func (s *Solver) checkpoint() checkpoint {
	return checkpoint{
		tact:      s.clock.Current(),
		timeline:  s.timeline.Clone(),
		memory:    s.memory.Clone(),
		signified: s.signified,
		meta:      s.meta,
	}
}

func (s *Solver) restore(cp checkpoint) {
	s.clock.set(cp.tact)
	s.timeline = cp.timeline
	s.memory = cp.memory
	s.signified = cp.signified
	s.meta = cp.meta
}

// ProcessTact advances the clock by one tact, updates the timeline from
// the interval and event conditions, and publishes every temporal
// sub-expression of every rule condition.
//
// Any error aborts the whole tact; the solver is rolled back to the last
// committed tact and the error is returned as a *RuntimeError.
func (s *Solver) ProcessTact() (*ir.TactResult, error) {
	cp := s.checkpoint()
	res, err := s.processTact()
	if err != nil {
		s.restore(cp)
		s.logger.Error("tact aborted", "tact", cp.tact+1, "error", err)
		return nil, err
	}
	s.logger.Info("tact committed",
		"tact", res.Tact,
		"open_intervals", len(s.timeline.StillOpenIntervals(res.Tact)),
		"signified", len(res.Signified),
	)
	return res, nil
}

func (s *Solver) processTact() (*ir.TactResult, error) {
	tact := s.clock.Next()
	s.signified = make(map[string]any)
	s.meta = make(map[string]ir.SignifiedMeta)
	s.memory.DeleteLocals(ir.SignifierNamespace + ".")

	if _, err := s.timeline.GetOrCreateTactRecord(tact); err != nil {
		return nil, classify(err, tact, "")
	}

	ev := eval.New(s.memory)
	if err := s.updateIntervals(ev, tact); err != nil {
		return nil, err
	}
	if err := s.updateEvents(ev, tact); err != nil {
		return nil, err
	}
	if err := s.signify(allen.New(s.timeline, ev, tact)); err != nil {
		return nil, err
	}

	return &ir.TactResult{
		Tact:          tact,
		WM:            s.memory.Snapshot(),
		Timeline:      s.timeline.Snapshot(),
		Signified:     maps.Clone(s.signified),
		SignifiedMeta: maps.Clone(s.meta),
	}, nil
}

func isTrue(v ir.Value) bool {
	return !v.IsUnknown() && ir.Truthy(ir.UnifyNumber(v.Content))
}

func (s *Solver) updateIntervals(ev *eval.Evaluator, tact int) error {
	for _, def := range s.kb.Intervals {
		open, err := ev.Eval(def.Open)
		if err != nil {
			return classify(fmt.Errorf("open condition: %w", err), tact, def.ID)
		}
		if isTrue(open) {
			if _, err := s.timeline.OpenInterval(tact, def); err != nil {
				return classify(err, tact, def.ID)
			}
		}

		inst := s.timeline.IntervalInstance(def.ID, -1)
		if inst == nil || inst.Closed() || inst.OpenTact == tact {
			continue
		}
		closeV, err := ev.Eval(def.Close)
		if err != nil {
			return classify(fmt.Errorf("close condition: %w", err), tact, def.ID)
		}
		if isTrue(closeV) {
			if _, err := s.timeline.CloseInterval(tact, def); err != nil {
				return classify(err, tact, def.ID)
			}
			s.logger.Debug("interval closed", "interval", def.ID, "tact", tact, "open_tact", inst.OpenTact)
		}
	}
	return nil
}

func (s *Solver) updateEvents(ev *eval.Evaluator, tact int) error {
	for _, def := range s.kb.Events {
		occurs, err := ev.Eval(def.Occurs)
		if err != nil {
			return classify(fmt.Errorf("occurrence condition: %w", err), tact, def.ID)
		}
		if !isTrue(occurs) {
			continue
		}
		if _, err := s.timeline.CreateEventInstance(tact, def); err != nil {
			return classify(err, tact, def.ID)
		}
		s.logger.Debug("event occurred", "event", def.ID, "tact", tact)
	}
	return nil
}

// signify evaluates every temporal node found in rule conditions and
// publishes the value under signifier.<path>.
func (s *Solver) signify(ae *allen.Evaluator) error {
	for _, rule := range s.kb.Rules {
		err := ir.WalkTemporal(rule.Condition, rule.ID+".condition", func(node ir.Expr, path string) error {
			v, err := ae.Eval(node)
			if err != nil {
				return classify(err, ae.CurrentTact, rule.ID)
			}
			if err := s.memory.Set(ir.SignifierNamespace+"."+path, ir.Value{Content: v.Content}); err != nil {
				return classify(err, ae.CurrentTact, rule.ID)
			}
			s.signified[path] = v.Content
			s.meta[path] = ir.SignifiedMeta{Rule: rule.ID, AllenOperation: ir.Format(node), Value: v.Content}
			s.logger.Debug("signified", "rule", rule.ID, "path", path, "value", v.Content)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

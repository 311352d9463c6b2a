// Package allen evaluates Allen interval-algebra relations and attribute
// queries over timeline instances.
//
// An event spans a single tact. An interval spans its open tact to its
// close tact, or to the current tact while still open. A relation whose
// operand never opened or occurred is unknown, not false.
package allen

import (
	"errors"
	"fmt"

	"github.com/roach88/tactline/internal/ir"
	"github.com/roach88/tactline/internal/timeline"
)

// Configuration errors.
var (
	ErrNotValidated     = errors.New("temporal expression not validated")
	ErrUnknownRelation  = errors.New("unknown allen relation")
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrBadIndex         = errors.New("timeline index must be an integer")
)

// IndexEvaluator evaluates timeline index expressions.
// *eval.Evaluator satisfies it.
type IndexEvaluator interface {
	Eval(e ir.Expr) (ir.Value, error)
}

// Evaluator evaluates temporal nodes against one timeline as of
// CurrentTact.
type Evaluator struct {
	Timeline    *timeline.Timeline
	Index       IndexEvaluator
	CurrentTact int
}

// New creates an evaluator.
func New(tl *timeline.Timeline, index IndexEvaluator, currentTact int) *Evaluator {
	return &Evaluator{Timeline: tl, Index: index, CurrentTact: currentTact}
}

// Eval dispatches on the temporal node kind.
func (a *Evaluator) Eval(e ir.Expr) (ir.Value, error) {
	switch n := e.(type) {
	case *ir.Allen:
		return a.EvalRelation(n)
	case *ir.AllenAttr:
		return a.EvalAttribute(n)
	}
	return ir.Value{}, fmt.Errorf("not a temporal expression: %T", e)
}

// IntervalSection derives the section of an interval instance.
func (a *Evaluator) IntervalSection(inst *timeline.IntervalInstance) TimeSection {
	s := TimeSection{Open: inst.OpenTact, Close: a.CurrentTact}
	if inst.CloseTact != nil {
		s.Close = *inst.CloseTact
	}
	return s
}

// EventSection derives the section of an event instance.
func EventSection(inst *timeline.EventInstance) TimeSection {
	return TimeSection{Open: inst.OccurrenceTact, Close: inst.OccurrenceTact}
}

// EvalRelation evaluates an Allen relation to true, false or unknown.
func (a *Evaluator) EvalRelation(n *ir.Allen) (ir.Value, error) {
	if !n.Validated {
		return ir.Value{}, fmt.Errorf("%s: %w", ir.Format(n), ErrNotValidated)
	}
	fn, ok := Relations[n.Relation]
	if !ok {
		return ir.Value{}, fmt.Errorf("%s: %w: %q", ir.Format(n), ErrUnknownRelation, n.Relation)
	}
	left, ok, err := a.section(n.Left)
	if err != nil || !ok {
		return ir.Unknown(), err
	}
	right, ok, err := a.section(n.Right)
	if err != nil || !ok {
		return ir.Unknown(), err
	}
	return ir.Bool(fn(left, right)), nil
}

// section resolves a timeline operand to the section of the selected
// instance. ok is false when no such instance exists.
func (a *Evaluator) section(ref ir.TimelineRef) (TimeSection, bool, error) {
	idx, ok, err := a.index(ref)
	if err != nil || !ok {
		return TimeSection{}, false, err
	}
	switch ref.Kind {
	case ir.KindInterval:
		if inst := a.Timeline.IntervalInstance(ref.ID, idx); inst != nil {
			return a.IntervalSection(inst), true, nil
		}
	case ir.KindEvent:
		if inst := a.Timeline.EventInstance(ref.ID, idx); inst != nil {
			return EventSection(inst), true, nil
		}
	}
	return TimeSection{}, false, nil
}

// index evaluates the operand's index expression, defaulting to -1.
// An unknown index reports ok=false.
func (a *Evaluator) index(ref ir.TimelineRef) (int, bool, error) {
	if ref.Index == nil {
		return -1, true, nil
	}
	v, err := a.Index.Eval(ref.Index)
	if err != nil {
		return 0, false, fmt.Errorf("%s index: %w", ref.ID, err)
	}
	if v.IsUnknown() {
		return 0, false, nil
	}
	i, ok := ir.UnifyNumber(v.Content).(int64)
	if !ok {
		return 0, false, fmt.Errorf("%s index %s: %w", ref.ID, ir.FormatContent(v.Content), ErrBadIndex)
	}
	return int(i), true, nil
}

// EvalAttribute evaluates an attribute query. Attributes undefined for the
// operand's kind are unknown.
func (a *Evaluator) EvalAttribute(n *ir.AllenAttr) (ir.Value, error) {
	if !n.Validated {
		return ir.Value{}, fmt.Errorf("%s: %w", ir.Format(n), ErrNotValidated)
	}
	if !ir.ValidAttributes[n.Attr] {
		return ir.Value{}, fmt.Errorf("%s: %w: %q", ir.Format(n), ErrUnknownAttribute, n.Attr)
	}
	if n.Of.Kind == ir.KindEvent {
		return a.eventAttribute(n.Attr, n.Of)
	}
	return a.intervalAttribute(n.Attr, n.Of)
}

func (a *Evaluator) intervalAttribute(attr ir.Attribute, ref ir.TimelineRef) (ir.Value, error) {
	switch attr {
	case ir.AttrCount, ir.AttrOpenings:
		return ir.Int(int64(len(a.Timeline.AllIntervalInstances(ref.ID)))), nil
	case ir.AttrClosings:
		closed := 0
		for _, inst := range a.Timeline.AllIntervalInstances(ref.ID) {
			if inst.Closed() {
				closed++
			}
		}
		return ir.Int(int64(closed)), nil
	case ir.AttrDuration, ir.AttrOpenTact, ir.AttrCloseTact:
	default:
		return ir.Unknown(), nil
	}

	idx, ok, err := a.index(ref)
	if err != nil || !ok {
		return ir.Unknown(), err
	}
	inst := a.Timeline.IntervalInstance(ref.ID, idx)
	if inst == nil {
		return ir.Unknown(), nil
	}
	switch attr {
	case ir.AttrOpenTact:
		return ir.Int(int64(inst.OpenTact)), nil
	case ir.AttrCloseTact:
		if !inst.Closed() {
			return ir.Unknown(), nil
		}
		return ir.Int(int64(*inst.CloseTact)), nil
	default:
		if !inst.Closed() {
			return ir.Unknown(), nil
		}
		return ir.Int(int64(*inst.CloseTact - inst.OpenTact)), nil
	}
}

func (a *Evaluator) eventAttribute(attr ir.Attribute, ref ir.TimelineRef) (ir.Value, error) {
	switch attr {
	case ir.AttrCount, ir.AttrOccurrences:
		return ir.Int(int64(len(a.Timeline.AllEventInstances(ref.ID)))), nil
	case ir.AttrOccurrenceTact:
		idx, ok, err := a.index(ref)
		if err != nil || !ok {
			return ir.Unknown(), err
		}
		if inst := a.Timeline.EventInstance(ref.ID, idx); inst != nil {
			return ir.Int(int64(inst.OccurrenceTact)), nil
		}
	}
	return ir.Unknown(), nil
}

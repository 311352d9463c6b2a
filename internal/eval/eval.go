// Package eval evaluates boolean and arithmetic expression trees against
// working memory using three-valued logic: an operand with unknown content
// makes the whole operation unknown, and the remaining operands are not
// evaluated.
package eval

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/tactline/internal/ir"
	"github.com/roach88/tactline/internal/wm"
)

// Accessor is the view of working memory the evaluator needs.
// *wm.Memory satisfies it.
type Accessor interface {
	Lookup(path string) (wm.Slot, bool)
	Local(path string) (ir.Value, bool)
}

// Evaluator evaluates expressions against one working memory.
// It holds no state between calls.
type Evaluator struct {
	Memory Accessor
}

// New creates an evaluator over mem.
func New(mem Accessor) *Evaluator {
	return &Evaluator{Memory: mem}
}

// refChain is the set of references being resolved along the current
// branch. Each Eval call starts with an empty chain and every descent gets
// its own copy, so sibling operands never see each other's references.
type refChain []string

func (c refChain) with(path string) refChain {
	next := make(refChain, len(c), len(c)+1)
	copy(next, c)
	return append(next, path)
}

// Eval evaluates e. Unknown results are values, not errors; errors are
// reserved for reference cycles and operands an operator cannot accept.
func (ev *Evaluator) Eval(e ir.Expr) (ir.Value, error) {
	return ev.eval(e, nil)
}

func (ev *Evaluator) eval(e ir.Expr, chain refChain) (ir.Value, error) {
	switch n := e.(type) {
	case nil:
		return ir.Unknown(), nil
	case *ir.Literal:
		return n.Value, nil
	case *ir.Ref:
		return ev.resolve(n.Path, chain)
	case *ir.Unary:
		return ev.evalUnary(n, chain)
	case *ir.Binary:
		return ev.evalBinary(n, chain)
	case *ir.Allen, *ir.AllenAttr:
		return ir.Value{}, fmt.Errorf("%s: %w", ir.Format(e), ErrTemporalExpr)
	default:
		return ir.Value{}, fmt.Errorf("unsupported expression node %T", e)
	}
}

// resolve looks path up in the tree, then in locals. A tree leaf that holds
// no value but is bound to an expression is resolved through the binding.
func (ev *Evaluator) resolve(path string, chain refChain) (ir.Value, error) {
	slot, ok := ev.Memory.Lookup(path)
	if !ok {
		if v, ok := ev.Memory.Local(path); ok {
			return v, nil
		}
		return ir.Unknown(), nil
	}
	if slot.Binding == nil || !slot.Value.IsUnknown() {
		return slot.Value, nil
	}
	if slices.Contains(chain, path) {
		return ir.Value{}, &RecursionError{Chain: chain.with(path), Binding: ir.Format(slot.Binding)}
	}
	return ev.eval(slot.Binding, chain.with(path))
}

func (ev *Evaluator) evalUnary(n *ir.Unary, chain refChain) (ir.Value, error) {
	v, err := ev.eval(n.Operand, chain)
	if err != nil {
		return ir.Value{}, err
	}
	if v.IsUnknown() {
		return ir.Unknown(), nil
	}
	c := ir.UnifyNumber(v.Content)
	switch n.Op {
	case ir.OpNot:
		return ir.Bool(!ir.Truthy(c)), nil
	case ir.OpNeg:
		switch x := c.(type) {
		case int64:
			return ir.Int(-x), nil
		case float64:
			return ir.Float(-x), nil
		}
		return ir.Value{}, &OperandError{Op: string(n.Op), Left: c, Reason: "operand is not a number"}
	}
	return ir.Value{}, &OperandError{Op: string(n.Op), Left: c, Reason: "unknown operator"}
}

func (ev *Evaluator) evalBinary(n *ir.Binary, chain refChain) (ir.Value, error) {
	lv, err := ev.eval(n.Left, chain)
	if err != nil {
		return ir.Value{}, err
	}
	if lv.IsUnknown() {
		return ir.Unknown(), nil
	}
	rv, err := ev.eval(n.Right, chain)
	if err != nil {
		return ir.Value{}, err
	}
	if rv.IsUnknown() {
		return ir.Unknown(), nil
	}
	return Apply(n.Op, lv.Content, rv.Content)
}

// Apply applies a binary operator to two known operands.
func Apply(op ir.BinaryOp, left, right any) (ir.Value, error) {
	l, r := ir.UnifyNumber(left), ir.UnifyNumber(right)
	opErr := func(reason string) error {
		return &OperandError{Op: string(op), Left: l, Right: r, Reason: reason}
	}

	switch op {
	case ir.OpEq:
		return ir.Bool(equal(l, r)), nil
	case ir.OpNe:
		return ir.Bool(!equal(l, r)), nil
	case ir.OpGt, ir.OpGe, ir.OpLt, ir.OpLe:
		cmp, ok := compare(l, r)
		if !ok {
			return ir.Value{}, opErr("operands are not ordered")
		}
		switch op {
		case ir.OpGt:
			return ir.Bool(cmp > 0), nil
		case ir.OpGe:
			return ir.Bool(cmp >= 0), nil
		case ir.OpLt:
			return ir.Bool(cmp < 0), nil
		default:
			return ir.Bool(cmp <= 0), nil
		}
	case ir.OpAnd:
		return ir.Bool(ir.Truthy(l) && ir.Truthy(r)), nil
	case ir.OpOr:
		return ir.Bool(ir.Truthy(l) || ir.Truthy(r)), nil
	case ir.OpXor:
		return ir.Bool(ir.Truthy(l) != ir.Truthy(r)), nil
	case ir.OpAdd:
		if ls, ok := l.(string); ok {
			if rs, ok := r.(string); ok {
				return ir.String(ls + rs), nil
			}
		}
	}

	if !ir.IsNumber(l) || !ir.IsNumber(r) {
		return ir.Value{}, opErr("operands are not numbers")
	}
	li, lInt := l.(int64)
	ri, rInt := r.(int64)
	lf, _ := ir.Float64(l)
	rf, _ := ir.Float64(r)
	both := lInt && rInt

	switch op {
	case ir.OpAdd:
		if both {
			if n, ok := addInt(li, ri); ok {
				return ir.Int(n), nil
			}
		}
		return ir.Float(lf + rf), nil
	case ir.OpSub:
		if both {
			if n, ok := subInt(li, ri); ok {
				return ir.Int(n), nil
			}
		}
		return ir.Float(lf - rf), nil
	case ir.OpMul:
		if both {
			if n, ok := mulInt(li, ri); ok {
				return ir.Int(n), nil
			}
		}
		return ir.Float(lf * rf), nil
	case ir.OpDiv:
		if rf == 0 {
			return ir.Value{}, opErr("division by zero")
		}
		return ir.Float(lf / rf), nil
	case ir.OpMod:
		if rf == 0 {
			return ir.Value{}, opErr("modulo by zero")
		}
		if both {
			m := li % ri
			if m != 0 && (m < 0) != (ri < 0) {
				m += ri
			}
			return ir.Int(m), nil
		}
		m := math.Mod(lf, rf)
		if m != 0 && (m < 0) != (rf < 0) {
			m += rf
		}
		return ir.Float(m), nil
	case ir.OpPow:
		if both && ri >= 0 {
			if n, ok := powInt(li, ri); ok {
				return ir.Int(n), nil
			}
		}
		return ir.Float(math.Pow(lf, rf)), nil
	}
	return ir.Value{}, opErr("unknown operator")
}

// addInt, subInt, mulInt and powInt report ok=false when the result
// leaves the int64 range; Apply then falls back to float64.
func addInt(a, b int64) (int64, bool) {
	s := a + b
	if (a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0) {
		return 0, false
	}
	return s, true
}

func subInt(a, b int64) (int64, bool) {
	d := a - b
	if (a >= 0 && b < 0 && d < 0) || (a < 0 && b > 0 && d >= 0) {
		return 0, false
	}
	return d, true
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	return p, true
}

func powInt(base, exp int64) (int64, bool) {
	result := int64(1)
	for {
		var ok bool
		if exp&1 == 1 {
			if result, ok = mulInt(result, base); !ok {
				return 0, false
			}
		}
		exp >>= 1
		if exp == 0 {
			return result, true
		}
		if base, ok = mulInt(base, base); !ok {
			return 0, false
		}
	}
}

// equal compares unified contents. Numbers compare by value across int64
// and float64; other kinds must match exactly.
func equal(l, r any) bool {
	if lf, ok := ir.Float64(l); ok {
		if rf, ok := ir.Float64(r); ok {
			return lf == rf
		}
		return false
	}
	return l == r
}

func compare(l, r any) (int, bool) {
	if li, ok := l.(int64); ok {
		if ri, ok := r.(int64); ok {
			switch {
			case li < ri:
				return -1, true
			case li > ri:
				return 1, true
			}
			return 0, true
		}
	}
	if lf, ok := ir.Float64(l); ok {
		rf, ok := ir.Float64(r)
		if !ok {
			return 0, false
		}
		switch {
		case lf < rf:
			return -1, true
		case lf > rf:
			return 1, true
		}
		return 0, true
	}
	ls, lok := l.(string)
	rs, rok := r.(string)
	if !lok || !rok {
		return 0, false
	}
	switch {
	case ls < rs:
		return -1, true
	case ls > rs:
		return 1, true
	}
	return 0, true
}

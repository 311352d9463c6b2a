package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Expr is a sealed interface over expression tree nodes.
// Only Literal, Ref, Unary, Binary, Allen and AllenAttr implement it.
type Expr interface {
	expr() // Sealed - only these types implement it
}

// Literal is a constant value.
type Literal struct {
	Value Value
}

// Ref is a dotted path into working memory ("sensor.attr1").
type Ref struct {
	Path string
}

// UnaryOp names a unary operator.
type UnaryOp string

// Unary operators.
const (
	OpNot UnaryOp = "not"
	OpNeg UnaryOp = "neg"
)

// Unary applies a unary operator to one operand.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

// BinaryOp names a binary operator.
type BinaryOp string

// Binary operators: comparison, boolean and arithmetic.
const (
	OpEq BinaryOp = "eq"
	OpNe BinaryOp = "ne"
	OpGt BinaryOp = "gt"
	OpGe BinaryOp = "ge"
	OpLt BinaryOp = "lt"
	OpLe BinaryOp = "le"

	OpAnd BinaryOp = "and"
	OpOr  BinaryOp = "or"
	OpXor BinaryOp = "xor"

	OpAdd BinaryOp = "add"
	OpSub BinaryOp = "sub"
	OpMul BinaryOp = "mul"
	OpDiv BinaryOp = "div"
	OpMod BinaryOp = "mod"
	OpPow BinaryOp = "pow"
)

// ValidUnaryOps defines allowed unary operators.
var ValidUnaryOps = map[UnaryOp]bool{
	OpNot: true,
	OpNeg: true,
}

// ValidBinaryOps defines allowed binary operators.
var ValidBinaryOps = map[BinaryOp]bool{
	OpEq: true, OpNe: true, OpGt: true, OpGe: true, OpLt: true, OpLe: true,
	OpAnd: true, OpOr: true, OpXor: true,
	OpAdd: true, OpSub: true, OpMul: true, OpDiv: true, OpMod: true, OpPow: true,
}

// Binary applies a binary operator to two operands.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// EntityKind distinguishes interval and event timeline operands.
type EntityKind string

// Timeline entity kinds.
const (
	KindInterval EntityKind = "interval"
	KindEvent    EntityKind = "event"
)

// TimelineRef names an interval or event definition and optionally selects
// one of its historical instances. A nil Index means -1 (most recent).
type TimelineRef struct {
	Kind  EntityKind
	ID    string
	Index Expr
}

// Relation is an Allen interval-algebra relation symbol.
type Relation string

// Allen relations. BeforeInverse and AfterInverse are accepted aliases of
// After and Before respectively.
const (
	RelBefore       Relation = "b"
	RelAfter        Relation = "a"
	RelMeets        Relation = "m"
	RelMetBy        Relation = "mi"
	RelStarts       Relation = "s"
	RelStartedBy    Relation = "si"
	RelFinishes     Relation = "f"
	RelFinishedBy   Relation = "fi"
	RelDuring       Relation = "d"
	RelContains     Relation = "di"
	RelOverlaps     Relation = "o"
	RelOverlappedBy Relation = "oi"
	RelEquals       Relation = "e"

	RelBeforeInverse Relation = "bi"
	RelAfterInverse  Relation = "ai"
)

// Allen is a relation between two timeline entities.
// Validated is set by the knowledge-base validator; evaluating an
// unvalidated node is a configuration error.
type Allen struct {
	Relation  Relation
	Left      TimelineRef
	Right     TimelineRef
	Validated bool
}

// Attribute names a single-entity temporal query.
type Attribute string

// Attribute queries.
const (
	AttrDuration       Attribute = "duration"
	AttrCount          Attribute = "count"
	AttrOpenings       Attribute = "openings"
	AttrClosings       Attribute = "closings"
	AttrOccurrences    Attribute = "occurrences"
	AttrOpenTact       Attribute = "open_tact"
	AttrCloseTact      Attribute = "close_tact"
	AttrOccurrenceTact Attribute = "occurrence_tact"
)

// ValidAttributes defines allowed attribute queries.
var ValidAttributes = map[Attribute]bool{
	AttrDuration: true, AttrCount: true, AttrOpenings: true, AttrClosings: true,
	AttrOccurrences: true, AttrOpenTact: true, AttrCloseTact: true, AttrOccurrenceTact: true,
}

// AllenAttr is an attribute query on one timeline entity.
type AllenAttr struct {
	Attr      Attribute
	Of        TimelineRef
	Validated bool
}

func (*Literal) expr()   {}
func (*Ref) expr()       {}
func (*Unary) expr()     {}
func (*Binary) expr()    {}
func (*Allen) expr()     {}
func (*AllenAttr) expr() {}

// IsTemporal reports whether e is an Allen relation or attribute query.
func IsTemporal(e Expr) bool {
	switch e.(type) {
	case *Allen, *AllenAttr:
		return true
	}
	return false
}

// Lit is a shorthand for a literal node.
// Panics on unsupported content; intended for tests and builders.
func Lit(content any) *Literal {
	return &Literal{Value: MustValue(content)}
}

// R is a shorthand for a reference node.
func R(path string) *Ref {
	return &Ref{Path: path}
}

// Bin is a shorthand for a binary node.
func Bin(op BinaryOp, left, right Expr) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

// Interval is a shorthand for an interval timeline operand.
func Interval(id string) TimelineRef {
	return TimelineRef{Kind: KindInterval, ID: id}
}

// Event is a shorthand for an event timeline operand.
func Event(id string) TimelineRef {
	return TimelineRef{Kind: KindEvent, ID: id}
}

var binarySymbols = map[BinaryOp]string{
	OpEq: "==", OpNe: "!=", OpGt: ">", OpGe: ">=", OpLt: "<", OpLe: "<=",
	OpAnd: "&&", OpOr: "||", OpXor: "xor",
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%", OpPow: "**",
}

// Format renders an expression as text. The output is used for provenance
// metadata and diagnostics, not for parsing.
func Format(e Expr) string {
	var b strings.Builder
	formatExpr(&b, e)
	return b.String()
}

func formatExpr(b *strings.Builder, e Expr) {
	switch n := e.(type) {
	case nil:
		b.WriteString("null")
	case *Literal:
		b.WriteString(FormatContent(n.Value.Content))
	case *Ref:
		b.WriteString(n.Path)
	case *Unary:
		if n.Op == OpNeg {
			b.WriteString("-")
		} else {
			b.WriteString(string(n.Op) + " ")
		}
		formatExpr(b, n.Operand)
	case *Binary:
		b.WriteString("(")
		formatExpr(b, n.Left)
		sym, ok := binarySymbols[n.Op]
		if !ok {
			sym = string(n.Op)
		}
		b.WriteString(" " + sym + " ")
		formatExpr(b, n.Right)
		b.WriteString(")")
	case *Allen:
		formatTimelineRef(b, n.Left)
		b.WriteString(" " + string(n.Relation) + " ")
		formatTimelineRef(b, n.Right)
	case *AllenAttr:
		b.WriteString(string(n.Attr) + "(")
		formatTimelineRef(b, n.Of)
		b.WriteString(")")
	default:
		fmt.Fprintf(b, "<%T>", e)
	}
}

func formatTimelineRef(b *strings.Builder, ref TimelineRef) {
	b.WriteString(ref.ID)
	if ref.Index != nil {
		b.WriteString("[")
		formatExpr(b, ref.Index)
		b.WriteString("]")
	}
}

// EncodeExpr converts an expression into its structural map form, the
// same shape accepted by ParseExpr and written in knowledge-base files.
func EncodeExpr(e Expr) any {
	switch n := e.(type) {
	case nil:
		return nil
	case *Literal:
		return n.Value.Content
	case *Ref:
		return map[string]any{"ref": n.Path}
	case *Unary:
		return map[string]any{"op": string(n.Op), "operand": EncodeExpr(n.Operand)}
	case *Binary:
		return map[string]any{"op": string(n.Op), "left": EncodeExpr(n.Left), "right": EncodeExpr(n.Right)}
	case *Allen:
		return map[string]any{
			"allen": string(n.Relation),
			"left":  encodeTimelineRef(n.Left),
			"right": encodeTimelineRef(n.Right),
		}
	case *AllenAttr:
		return map[string]any{"attr": string(n.Attr), "of": encodeTimelineRef(n.Of)}
	default:
		return nil
	}
}

func encodeTimelineRef(ref TimelineRef) map[string]any {
	m := map[string]any{string(ref.Kind): ref.ID}
	if ref.Index != nil {
		m["index"] = EncodeExpr(ref.Index)
	}
	return m
}

// MarshalJSON implements json.Marshaler for Literal.
func (n *Literal) MarshalJSON() ([]byte, error) { return json.Marshal(EncodeExpr(n)) }

// MarshalJSON implements json.Marshaler for Ref.
func (n *Ref) MarshalJSON() ([]byte, error) { return json.Marshal(EncodeExpr(n)) }

// MarshalJSON implements json.Marshaler for Unary.
func (n *Unary) MarshalJSON() ([]byte, error) { return json.Marshal(EncodeExpr(n)) }

// MarshalJSON implements json.Marshaler for Binary.
func (n *Binary) MarshalJSON() ([]byte, error) { return json.Marshal(EncodeExpr(n)) }

// MarshalJSON implements json.Marshaler for Allen.
func (n *Allen) MarshalJSON() ([]byte, error) { return json.Marshal(EncodeExpr(n)) }

// MarshalJSON implements json.Marshaler for AllenAttr.
func (n *AllenAttr) MarshalJSON() ([]byte, error) { return json.Marshal(EncodeExpr(n)) }

// ParseExpr builds an expression tree from its structural form.
//
// Accepted shapes:
//
//	null | bool | number | string        literal
//	{value: <scalar>}                    literal
//	{ref: "a.b"}                         reference
//	{op: "not", operand: <expr>}         unary
//	{op: "lt", left: <expr>, right: <expr>}
//	{allen: "b", left: <tref>, right: <tref>}
//	{attr: "duration", of: <tref>}
//
// where <tref> is {interval: "I"} or {event: "E"} with an optional index.
func ParseExpr(raw any) (Expr, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		v, err := NewValue(raw)
		if err != nil {
			return nil, fmt.Errorf("literal: %w", err)
		}
		return &Literal{Value: v}, nil
	}

	switch {
	case has(m, "value"):
		if err := onlyKeys(m, "value"); err != nil {
			return nil, err
		}
		v, err := NewValue(m["value"])
		if err != nil {
			return nil, fmt.Errorf("literal: %w", err)
		}
		return &Literal{Value: v}, nil

	case has(m, "ref"):
		if err := onlyKeys(m, "ref"); err != nil {
			return nil, err
		}
		path, ok := m["ref"].(string)
		if !ok || path == "" {
			return nil, fmt.Errorf("ref must be a non-empty string")
		}
		return &Ref{Path: path}, nil

	case has(m, "allen"):
		if err := onlyKeys(m, "allen", "left", "right"); err != nil {
			return nil, err
		}
		rel, ok := m["allen"].(string)
		if !ok {
			return nil, fmt.Errorf("allen relation must be a string")
		}
		left, err := parseTimelineRef(m["left"])
		if err != nil {
			return nil, fmt.Errorf("allen left: %w", err)
		}
		right, err := parseTimelineRef(m["right"])
		if err != nil {
			return nil, fmt.Errorf("allen right: %w", err)
		}
		return &Allen{Relation: Relation(rel), Left: left, Right: right}, nil

	case has(m, "attr"):
		if err := onlyKeys(m, "attr", "of"); err != nil {
			return nil, err
		}
		attr, ok := m["attr"].(string)
		if !ok {
			return nil, fmt.Errorf("attr must be a string")
		}
		of, err := parseTimelineRef(m["of"])
		if err != nil {
			return nil, fmt.Errorf("attr of: %w", err)
		}
		return &AllenAttr{Attr: Attribute(attr), Of: of}, nil

	case has(m, "op"):
		op, ok := m["op"].(string)
		if !ok {
			return nil, fmt.Errorf("op must be a string")
		}
		if has(m, "operand") {
			if err := onlyKeys(m, "op", "operand"); err != nil {
				return nil, err
			}
			operand, err := ParseExpr(m["operand"])
			if err != nil {
				return nil, fmt.Errorf("%s operand: %w", op, err)
			}
			return &Unary{Op: UnaryOp(op), Operand: operand}, nil
		}
		if err := onlyKeys(m, "op", "left", "right"); err != nil {
			return nil, err
		}
		if !has(m, "left") || !has(m, "right") {
			return nil, fmt.Errorf("binary %s requires left and right", op)
		}
		left, err := ParseExpr(m["left"])
		if err != nil {
			return nil, fmt.Errorf("%s left: %w", op, err)
		}
		right, err := ParseExpr(m["right"])
		if err != nil {
			return nil, fmt.Errorf("%s right: %w", op, err)
		}
		return &Binary{Op: BinaryOp(op), Left: left, Right: right}, nil
	}

	return nil, fmt.Errorf("unrecognised expression: expected one of value, ref, op, allen, attr")
}

func parseTimelineRef(raw any) (TimelineRef, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return TimelineRef{}, fmt.Errorf("timeline operand must be an object with interval or event")
	}
	var ref TimelineRef
	switch {
	case has(m, "interval") && has(m, "event"):
		return TimelineRef{}, fmt.Errorf("timeline operand cannot name both interval and event")
	case has(m, "interval"):
		ref.Kind = KindInterval
		ref.ID, ok = m["interval"].(string)
	case has(m, "event"):
		ref.Kind = KindEvent
		ref.ID, ok = m["event"].(string)
	default:
		return TimelineRef{}, fmt.Errorf("timeline operand must name an interval or event")
	}
	if !ok || ref.ID == "" {
		return TimelineRef{}, fmt.Errorf("%s id must be a non-empty string", ref.Kind)
	}
	if err := onlyKeys(m, string(ref.Kind), "index"); err != nil {
		return TimelineRef{}, err
	}
	if has(m, "index") {
		idx, err := ParseExpr(m["index"])
		if err != nil {
			return TimelineRef{}, fmt.Errorf("index: %w", err)
		}
		ref.Index = idx
	}
	return ref, nil
}

func has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func onlyKeys(m map[string]any, keys ...string) error {
	for k := range m {
		allowed := false
		for _, want := range keys {
			if k == want {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("unexpected field %q", k)
		}
	}
	return nil
}

// WalkTemporal visits expression nodes depth-first and calls fn for every
// Allen relation or attribute query, passing the node and its path.
// Descent stops at a temporal node: its operands are never searched.
func WalkTemporal(e Expr, path string, fn func(node Expr, path string) error) error {
	switch n := e.(type) {
	case *Allen, *AllenAttr:
		return fn(n, path)
	case *Unary:
		return WalkTemporal(n.Operand, path+".operand", fn)
	case *Binary:
		if err := WalkTemporal(n.Left, path+".left", fn); err != nil {
			return err
		}
		return WalkTemporal(n.Right, path+".right", fn)
	}
	return nil
}

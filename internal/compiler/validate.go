package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/tactline/internal/allen"
	"github.com/roach88/tactline/internal/ir"
	"github.com/roach88/tactline/internal/wm"
)

// Validation error codes (E100-E199)
const (
	// Definition errors (E100-E109)
	ErrEmptyID           = "E100" // definition id is empty
	ErrDuplicateID       = "E101" // duplicate interval/event/rule id
	ErrMissingExpression = "E102" // required expression is absent

	// World schema errors (E103-E109)
	ErrInvalidPropertyType = "E103" // leaf type not in ir.ValidPropertyTypes
	ErrDuplicateProperty   = "E104" // duplicate sibling property name
	ErrReservedProperty    = "E105" // top-level name collides with the signifier namespace
	ErrDefaultTypeMismatch = "E106" // literal default does not fit the leaf type
	ErrEmptyPropertyName   = "E107" // property name is empty

	// Expression errors (E110-E119)
	ErrUnknownUnaryOp      = "E110" // unknown unary operator
	ErrUnknownBinaryOp     = "E111" // unknown binary operator
	ErrUnknownRelation     = "E112" // unknown Allen relation symbol
	ErrUnknownAttribute    = "E113" // unknown attribute query
	ErrUndefinedTimelineID = "E114" // timeline operand names no definition
	ErrMisplacedTemporal   = "E115" // temporal node outside a rule condition
)

// ValidationError represents a knowledge-base validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateKB checks a compiled knowledge base.
// Returns all errors found (does not fail-fast). When no errors are found,
// every temporal node and the knowledge base itself are marked validated,
// which the solver requires before it will evaluate them.
func ValidateKB(kb *ir.KnowledgeBase) []ValidationError {
	v := &validator{kb: kb}

	v.properties(kb.World, "world", true)

	intervalIDs := make(map[string]bool)
	for i, d := range kb.Intervals {
		field := fmt.Sprintf("intervals[%d]", i)
		v.id(d.ID, field, intervalIDs)
		v.expr(d.Open, field+".open", false)
		v.expr(d.Close, field+".close", false)
	}

	eventIDs := make(map[string]bool)
	for i, d := range kb.Events {
		field := fmt.Sprintf("events[%d]", i)
		v.id(d.ID, field, eventIDs)
		v.expr(d.Occurs, field+".occurs", false)
	}

	ruleIDs := make(map[string]bool)
	for i, r := range kb.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		v.id(r.ID, field, ruleIDs)
		v.expr(r.Condition, field+".condition", true)
	}

	if len(v.errs) > 0 {
		return v.errs
	}

	for _, r := range kb.Rules {
		_ = ir.WalkTemporal(r.Condition, r.ID, func(node ir.Expr, _ string) error {
			switch n := node.(type) {
			case *ir.Allen:
				n.Validated = true
			case *ir.AllenAttr:
				n.Validated = true
			}
			return nil
		})
	}
	kb.MarkValidated()
	return nil
}

type validator struct {
	kb   *ir.KnowledgeBase
	errs []ValidationError
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *validator) id(id, field string, seen map[string]bool) {
	if strings.TrimSpace(id) == "" {
		v.add(field+".id", ErrEmptyID, "id is required and must be non-empty")
		return
	}
	if seen[id] {
		v.add(field+".id", ErrDuplicateID, "duplicate id: %q", id)
	}
	seen[id] = true
}

func (v *validator) properties(props []ir.Property, field string, top bool) {
	seen := make(map[string]bool)
	for i, p := range props {
		pfield := fmt.Sprintf("%s[%d]", field, i)
		switch {
		case strings.TrimSpace(p.Name) == "":
			v.add(pfield+".name", ErrEmptyPropertyName, "property name is required")
		case seen[p.Name]:
			v.add(pfield+".name", ErrDuplicateProperty, "duplicate property name: %q", p.Name)
		case top && p.Name == ir.SignifierNamespace:
			v.add(pfield+".name", ErrReservedProperty, "%q is reserved for published temporal facts", p.Name)
		}
		seen[p.Name] = true

		if !p.IsLeaf() {
			v.properties(p.Children, pfield+".children", false)
			continue
		}
		if !ir.ValidPropertyTypes[p.Type] {
			v.add(pfield+".type", ErrInvalidPropertyType, "invalid type %q for property %q", p.Type, p.Name)
		}
		if p.Default == nil {
			continue
		}
		v.expr(p.Default, pfield+".default", false)
		if lit, ok := p.Default.(*ir.Literal); ok && !wm.Accepts(p.Type, lit.Value.Content) {
			v.add(pfield+".default", ErrDefaultTypeMismatch,
				"default %s does not fit type %q", ir.FormatContent(lit.Value.Content), p.Type)
		}
	}
}

// expr checks one expression tree. temporal reports whether Allen nodes may
// appear at this position.
func (v *validator) expr(e ir.Expr, field string, temporal bool) {
	switch n := e.(type) {
	case nil:
		v.add(field, ErrMissingExpression, "expression is required")
	case *ir.Literal, *ir.Ref:
	case *ir.Unary:
		if !ir.ValidUnaryOps[n.Op] {
			v.add(field+".op", ErrUnknownUnaryOp, "unknown unary operator %q", n.Op)
		}
		v.expr(n.Operand, field+".operand", temporal)
	case *ir.Binary:
		if !ir.ValidBinaryOps[n.Op] {
			v.add(field+".op", ErrUnknownBinaryOp, "unknown binary operator %q", n.Op)
		}
		v.expr(n.Left, field+".left", temporal)
		v.expr(n.Right, field+".right", temporal)
	case *ir.Allen:
		if !temporal {
			v.add(field, ErrMisplacedTemporal, "Allen relation %q is only allowed in rule conditions", n.Relation)
		}
		if _, ok := allen.Relations[n.Relation]; !ok {
			v.add(field+".allen", ErrUnknownRelation, "unknown Allen relation %q", n.Relation)
		}
		v.timelineRef(n.Left, field+".left")
		v.timelineRef(n.Right, field+".right")
	case *ir.AllenAttr:
		if !temporal {
			v.add(field, ErrMisplacedTemporal, "attribute %q is only allowed in rule conditions", n.Attr)
		}
		if !ir.ValidAttributes[n.Attr] {
			v.add(field+".attr", ErrUnknownAttribute, "unknown attribute %q", n.Attr)
		}
		v.timelineRef(n.Of, field+".of")
	}
}

func (v *validator) timelineRef(ref ir.TimelineRef, field string) {
	var found bool
	switch ref.Kind {
	case ir.KindInterval:
		_, found = v.kb.Interval(ref.ID)
	case ir.KindEvent:
		_, found = v.kb.Event(ref.ID)
	}
	if !found {
		v.add(field, ErrUndefinedTimelineID, "undefined %s %q", ref.Kind, ref.ID)
	}
	if ref.Index != nil {
		v.expr(ref.Index, field+".index", false)
	}
}

// Package testutil provides deterministic fixtures shared by package tests.
package testutil

import "github.com/roach88/tactline/internal/ir"

// MarkValidated flags every temporal node and the knowledge base itself as
// validated without running the compiler's checks. Tests that exercise
// the compiler's validator should not use it.
func MarkValidated(kb *ir.KnowledgeBase) *ir.KnowledgeBase {
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
	return kb
}

// IntervalEventKB is the reference scenario knowledge base:
//
//   - interval I opens when sensor.attr2 < 2 and closes when sensor.attr2 >= 2
//   - event E occurs when sensor.attr1 > 4
//   - rule R1: E b I
//   - rule R2: (E a I) and count(E) >= 1
//
// The returned knowledge base is validated.
func IntervalEventKB() *ir.KnowledgeBase {
	return MarkValidated(&ir.KnowledgeBase{
		World: []ir.Property{
			{Name: "sensor", Children: []ir.Property{
				{Name: "attr1", Type: "number"},
				{Name: "attr2", Type: "number"},
			}},
		},
		Intervals: []*ir.IntervalDef{{
			ID:    "I",
			Open:  ir.Bin(ir.OpLt, ir.R("sensor.attr2"), ir.Lit(2)),
			Close: ir.Bin(ir.OpGe, ir.R("sensor.attr2"), ir.Lit(2)),
		}},
		Events: []*ir.EventDef{{
			ID:     "E",
			Occurs: ir.Bin(ir.OpGt, ir.R("sensor.attr1"), ir.Lit(4)),
		}},
		Rules: []*ir.Rule{
			{ID: "R1", Condition: &ir.Allen{Relation: ir.RelBefore, Left: ir.Event("E"), Right: ir.Interval("I")}},
			{ID: "R2", Condition: ir.Bin(ir.OpAnd,
				&ir.Allen{Relation: ir.RelAfter, Left: ir.Event("E"), Right: ir.Interval("I")},
				ir.Bin(ir.OpGe, &ir.AllenAttr{Attr: ir.AttrCount, Of: ir.Event("E")}, ir.Lit(1)),
			)},
		},
	})
}

// Items is a shorthand for building working-memory updates from
// path/value pairs: Items("a.b", 1, "c", true).
func Items(pairs ...any) []ir.WMItem {
	if len(pairs)%2 != 0 {
		panic("testutil.Items: odd number of arguments")
	}
	items := make([]ir.WMItem, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		items = append(items, ir.WMItem{Ref: pairs[i].(string), Value: pairs[i+1]})
	}
	return items
}

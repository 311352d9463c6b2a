package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tactline/internal/ir"
)

func validKB() *ir.KnowledgeBase {
	return &ir.KnowledgeBase{
		World: []ir.Property{
			{Name: "sensor", Children: []ir.Property{
				{Name: "attr1", Type: "number"},
				{Name: "attr2", Type: "number", Default: ir.Lit(3)},
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
			{ID: "R2", Condition: &ir.Unary{Op: ir.OpNot, Operand: ir.Bin(ir.OpGe,
				&ir.AllenAttr{Attr: ir.AttrDuration, Of: ir.Interval("I")}, ir.Lit(2))}},
		},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidateKBMarksValidated(t *testing.T) {
	kb := validKB()

	errs := ValidateKB(kb)
	require.Empty(t, errs)
	assert.True(t, kb.Validated())

	assert.True(t, kb.Rules[0].Condition.(*ir.Allen).Validated)
	attr := kb.Rules[1].Condition.(*ir.Unary).Operand.(*ir.Binary).Left.(*ir.AllenAttr)
	assert.True(t, attr.Validated)
}

func TestValidateKBLeavesInvalidUnmarked(t *testing.T) {
	kb := validKB()
	kb.Rules = append(kb.Rules, &ir.Rule{ID: "R3", Condition: &ir.Allen{
		Relation: "zz", Left: ir.Event("E"), Right: ir.Interval("I"),
	}})

	errs := ValidateKB(kb)
	require.NotEmpty(t, errs)
	assert.False(t, kb.Validated())
	assert.False(t, kb.Rules[0].Condition.(*ir.Allen).Validated)
}

func TestValidateKBErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(kb *ir.KnowledgeBase)
		want   []string
		field  string
	}{
		{
			name: "duplicate interval id",
			mutate: func(kb *ir.KnowledgeBase) {
				kb.Intervals = append(kb.Intervals, &ir.IntervalDef{ID: "I", Open: ir.Lit(true), Close: ir.Lit(false)})
			},
			want:  []string{ErrDuplicateID},
			field: "intervals[1].id",
		},
		{
			name: "empty event id",
			mutate: func(kb *ir.KnowledgeBase) {
				kb.Events = append(kb.Events, &ir.EventDef{ID: " ", Occurs: ir.Lit(true)})
			},
			want:  []string{ErrEmptyID},
			field: "events[1].id",
		},
		{
			name: "missing occurs",
			mutate: func(kb *ir.KnowledgeBase) {
				kb.Events[0].Occurs = nil
			},
			want:  []string{ErrMissingExpression},
			field: "events[0].occurs",
		},
		{
			name: "invalid property type",
			mutate: func(kb *ir.KnowledgeBase) {
				kb.World[0].Children[0].Type = "float"
			},
			want:  []string{ErrInvalidPropertyType},
			field: "world[0].children[0].type",
		},
		{
			name: "duplicate property",
			mutate: func(kb *ir.KnowledgeBase) {
				kb.World = append(kb.World, ir.Property{Name: "sensor", Type: "any"})
			},
			want:  []string{ErrDuplicateProperty},
			field: "world[1].name",
		},
		{
			name: "reserved signifier namespace",
			mutate: func(kb *ir.KnowledgeBase) {
				kb.World = append(kb.World, ir.Property{Name: ir.SignifierNamespace, Type: "any"})
			},
			want:  []string{ErrReservedProperty},
			field: "world[1].name",
		},
		{
			name: "default type mismatch",
			mutate: func(kb *ir.KnowledgeBase) {
				kb.World[0].Children[1].Default = ir.Lit("three")
			},
			want:  []string{ErrDefaultTypeMismatch},
			field: "world[0].children[1].default",
		},
		{
			name: "unknown unary operator",
			mutate: func(kb *ir.KnowledgeBase) {
				kb.Events[0].Occurs = &ir.Unary{Op: "abs", Operand: ir.Lit(1)}
			},
			want:  []string{ErrUnknownUnaryOp},
			field: "events[0].occurs.op",
		},
		{
			name: "unknown binary operator",
			mutate: func(kb *ir.KnowledgeBase) {
				kb.Intervals[0].Open = ir.Bin("max", ir.Lit(1), ir.Lit(2))
			},
			want:  []string{ErrUnknownBinaryOp},
			field: "intervals[0].open.op",
		},
		{
			name: "unknown relation",
			mutate: func(kb *ir.KnowledgeBase) {
				kb.Rules[0].Condition.(*ir.Allen).Relation = "x"
			},
			want:  []string{ErrUnknownRelation},
			field: "rules[0].condition.allen",
		},
		{
			name: "unknown attribute",
			mutate: func(kb *ir.KnowledgeBase) {
				kb.Rules[0].Condition = &ir.AllenAttr{Attr: "length", Of: ir.Interval("I")}
			},
			want:  []string{ErrUnknownAttribute},
			field: "rules[0].condition.attr",
		},
		{
			name: "undefined timeline operand",
			mutate: func(kb *ir.KnowledgeBase) {
				kb.Rules[0].Condition.(*ir.Allen).Right = ir.Interval("J")
			},
			want:  []string{ErrUndefinedTimelineID},
			field: "rules[0].condition.right",
		},
		{
			name: "event id used as interval",
			mutate: func(kb *ir.KnowledgeBase) {
				kb.Rules[0].Condition.(*ir.Allen).Right = ir.Interval("E")
			},
			want:  []string{ErrUndefinedTimelineID},
			field: "rules[0].condition.right",
		},
		{
			name: "temporal node in interval condition",
			mutate: func(kb *ir.KnowledgeBase) {
				kb.Intervals[0].Open = &ir.Allen{Relation: ir.RelBefore, Left: ir.Event("E"), Right: ir.Interval("I")}
			},
			want:  []string{ErrMisplacedTemporal},
			field: "intervals[0].open",
		},
		{
			name: "temporal node in default",
			mutate: func(kb *ir.KnowledgeBase) {
				kb.World[0].Children[0].Default = &ir.AllenAttr{Attr: ir.AttrCount, Of: ir.Event("E")}
			},
			want:  []string{ErrMisplacedTemporal},
			field: "world[0].children[0].default",
		},
		{
			name: "temporal node in index",
			mutate: func(kb *ir.KnowledgeBase) {
				rel := kb.Rules[0].Condition.(*ir.Allen)
				rel.Left.Index = &ir.AllenAttr{Attr: ir.AttrCount, Of: ir.Event("E")}
			},
			want:  []string{ErrMisplacedTemporal},
			field: "rules[0].condition.left.index",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := validKB()
			tt.mutate(kb)

			errs := ValidateKB(kb)
			assert.Equal(t, tt.want, codes(errs))
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.False(t, kb.Validated())
		})
	}
}

func TestValidateKBCollectsAllErrors(t *testing.T) {
	kb := validKB()
	kb.World[0].Children[0].Type = "float"
	kb.Events[0].Occurs = nil
	kb.Rules[0].Condition.(*ir.Allen).Relation = "x"

	errs := ValidateKB(kb)
	assert.Equal(t, []string{ErrInvalidPropertyType, ErrMissingExpression, ErrUnknownRelation}, codes(errs))
}

func TestValidateKBAcceptsAliases(t *testing.T) {
	kb := validKB()
	kb.Rules[0].Condition.(*ir.Allen).Relation = ir.RelBeforeInverse

	assert.Empty(t, ValidateKB(kb))
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Field: "rules[0].condition", Message: "bad", Code: ErrUnknownRelation}
	assert.Equal(t, "[E112] rules[0].condition: bad", e.Error())

	e.Line = 7
	assert.Equal(t, "[E112] line 7: rules[0].condition: bad", e.Error())
}

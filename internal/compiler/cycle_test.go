package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tactline/internal/ir"
)

func worldKB(props ...ir.Property) *ir.KnowledgeBase {
	return &ir.KnowledgeBase{World: props}
}

func TestAnalyzeBindingsEmpty(t *testing.T) {
	assert.Empty(t, AnalyzeBindings(&ir.KnowledgeBase{}))
}

func TestAnalyzeBindingsLiteralDefaults(t *testing.T) {
	kb := worldKB(
		ir.Property{Name: "a", Type: "number", Default: ir.Lit(1)},
		ir.Property{Name: "b", Type: "number"},
	)
	assert.Empty(t, AnalyzeBindings(kb))
}

func TestAnalyzeBindingsChainWithoutCycle(t *testing.T) {
	kb := worldKB(ir.Property{Name: "m", Children: []ir.Property{
		{Name: "a", Type: "number", Default: ir.R("m.b")},
		{Name: "b", Type: "number", Default: ir.Bin(ir.OpAdd, ir.R("m.c"), ir.Lit(1))},
		{Name: "c", Type: "number"},
	}})
	assert.Empty(t, AnalyzeBindings(kb))
}

func TestAnalyzeBindingsSelfLoop(t *testing.T) {
	kb := worldKB(ir.Property{Name: "x", Type: "number",
		Default: ir.Bin(ir.OpAdd, ir.R("x"), ir.Lit(1))})

	warnings := AnalyzeBindings(kb)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"x", "x"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "Self-referencing")
}

func TestAnalyzeBindingsTwoNodeCycle(t *testing.T) {
	kb := worldKB(ir.Property{Name: "m", Children: []ir.Property{
		{Name: "a", Type: "any", Default: ir.R("m.b")},
		{Name: "b", Type: "any", Default: &ir.Unary{Op: ir.OpNot, Operand: ir.R("m.a")}},
	}})

	warnings := AnalyzeBindings(kb)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"m.a", "m.b", "m.a"}, warnings[0].Path)
	assert.Equal(t, "Default binding cycle: m.a -> m.b -> m.a", warnings[0].Message)
}

func TestAnalyzeBindingsThreeNodeCycleIsStable(t *testing.T) {
	kb := worldKB(
		ir.Property{Name: "a", Type: "number", Default: ir.R("b")},
		ir.Property{Name: "b", Type: "number", Default: ir.R("c")},
		ir.Property{Name: "c", Type: "number", Default: ir.R("a")},
		ir.Property{Name: "d", Type: "number", Default: ir.R("a")},
	)

	for range 5 {
		warnings := AnalyzeBindings(kb)
		require.Len(t, warnings, 1)
		assert.Equal(t, []string{"a", "b", "c", "a"}, warnings[0].Path)
	}
}

func TestAnalyzeBindingsSeparateCycles(t *testing.T) {
	kb := worldKB(
		ir.Property{Name: "a", Type: "number", Default: ir.R("b")},
		ir.Property{Name: "b", Type: "number", Default: ir.R("a")},
		ir.Property{Name: "c", Type: "number", Default: ir.R("c")},
	)

	warnings := AnalyzeBindings(kb)
	require.Len(t, warnings, 2)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
	assert.Equal(t, []string{"c", "c"}, warnings[1].Path)
}

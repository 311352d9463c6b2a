package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tactline/internal/ir"
)

func TestIntervalEventKBIsValidated(t *testing.T) {
	kb := IntervalEventKB()
	require.True(t, kb.Validated())

	allen := kb.Rules[0].Condition.(*ir.Allen)
	assert.True(t, allen.Validated)

	and := kb.Rules[1].Condition.(*ir.Binary)
	assert.True(t, and.Left.(*ir.Allen).Validated)
	attr := and.Right.(*ir.Binary).Left.(*ir.AllenAttr)
	assert.True(t, attr.Validated)
}

func TestItems(t *testing.T) {
	items := Items("sensor.attr1", 6, "flag", true)
	assert.Equal(t, []ir.WMItem{
		{Ref: "sensor.attr1", Value: 6},
		{Ref: "flag", Value: true},
	}, items)

	assert.Panics(t, func() { Items("odd") })
}

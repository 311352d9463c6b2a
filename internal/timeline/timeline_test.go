package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tactline/internal/ir"
)

var (
	defI = &ir.IntervalDef{ID: "I"}
	defJ = &ir.IntervalDef{ID: "J"}
	defE = &ir.EventDef{ID: "E"}
)

// withTacts returns a timeline with records 0..n-1.
func withTacts(t *testing.T, n int) *Timeline {
	t.Helper()
	tl := New()
	for i := 0; i < n; i++ {
		_, err := tl.GetOrCreateTactRecord(i)
		require.NoError(t, err)
	}
	return tl
}

func TestTactContiguity(t *testing.T) {
	tl := New()
	assert.Equal(t, -1, tl.LastTact())

	_, err := tl.GetOrCreateTactRecord(1)
	var se *SequenceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Tact)
	assert.Equal(t, -1, se.Last)

	for i := 0; i < 3; i++ {
		rec, err := tl.GetOrCreateTactRecord(i)
		require.NoError(t, err)
		assert.Equal(t, i, rec.Tact)
	}

	again, err := tl.GetOrCreateTactRecord(1)
	require.NoError(t, err)
	assert.Same(t, tl.Records()[1], again)

	_, err = tl.GetOrCreateTactRecord(5)
	require.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "next tact must be 3")

	_, err = tl.GetOrCreateTactRecord(-1)
	require.ErrorAs(t, err, &se)
}

func TestOpenIntervalExclusivity(t *testing.T) {
	tl := withTacts(t, 3)

	first, err := tl.OpenInterval(1, defI)
	require.NoError(t, err)
	second, err := tl.OpenInterval(2, defI)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, tl.AllIntervalInstances("I"), 1)
	assert.Equal(t, 1, first.OpenTact)
	assert.True(t, tl.IsStillOpen("I"))
}

func TestOpenIntervalAfterClose(t *testing.T) {
	tl := withTacts(t, 4)
	_, err := tl.OpenInterval(0, defI)
	require.NoError(t, err)
	_, err = tl.CloseInterval(2, defI)
	require.NoError(t, err)

	_, err = tl.OpenInterval(1, defI)
	assert.ErrorIs(t, err, ErrOpenBeforeClosed)

	again, err := tl.OpenInterval(3, defI)
	require.NoError(t, err)
	assert.Equal(t, 3, again.OpenTact)
	assert.Len(t, tl.AllIntervalInstances("I"), 2)
}

func TestCloseAfterOpen(t *testing.T) {
	tl := withTacts(t, 4)

	_, err := tl.CloseInterval(1, defI)
	assert.ErrorIs(t, err, ErrNoOpenInterval)

	_, err = tl.OpenInterval(1, defI)
	require.NoError(t, err)

	_, err = tl.CloseInterval(1, defI)
	assert.ErrorIs(t, err, ErrCloseBeforeOpen)
	_, err = tl.CloseInterval(0, defI)
	assert.ErrorIs(t, err, ErrCloseBeforeOpen)

	inst, err := tl.CloseInterval(2, defI)
	require.NoError(t, err)
	require.NotNil(t, inst.CloseTact)
	assert.Equal(t, 2, *inst.CloseTact)

	same, err := tl.CloseInterval(2, defI)
	require.NoError(t, err, "closing twice at the same tact is a no-op")
	assert.Same(t, inst, same)

	_, err = tl.CloseInterval(3, defI)
	assert.ErrorIs(t, err, ErrAlreadyClosed)
	assert.False(t, tl.IsStillOpen("I"))
}

func TestCloseIntervalEnforcesSequence(t *testing.T) {
	tl := withTacts(t, 2)
	_, err := tl.OpenInterval(0, defI)
	require.NoError(t, err)

	_, err = tl.CloseInterval(5, defI)
	var se *SequenceError
	assert.ErrorAs(t, err, &se)
	assert.True(t, tl.IsStillOpen("I"))
}

func TestEventIdempotence(t *testing.T) {
	tl := withTacts(t, 3)

	a, err := tl.CreateEventInstance(2, defE)
	require.NoError(t, err)
	b, err := tl.CreateEventInstance(2, defE)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Len(t, tl.Records()[2].Events, 1)
	assert.Equal(t, 2, a.OccurrenceTact)
}

func TestIndexedQueries(t *testing.T) {
	tl := withTacts(t, 5)
	for _, tact := range []int{0, 2, 4} {
		_, err := tl.CreateEventInstance(tact, defE)
		require.NoError(t, err)
	}

	tests := []struct {
		index int
		want  int
		found bool
	}{
		{-1, 4, true},
		{-3, 0, true},
		{0, 0, true},
		{2, 4, true},
		{3, 0, false},
		{-4, 0, false},
	}
	for _, tt := range tests {
		inst := tl.EventInstance("E", tt.index)
		if !tt.found {
			assert.Nil(t, inst, "index %d", tt.index)
			continue
		}
		require.NotNil(t, inst, "index %d", tt.index)
		assert.Equal(t, tt.want, inst.OccurrenceTact)
	}

	assert.Nil(t, tl.IntervalInstance("I", -1))
	assert.Nil(t, tl.EventInstance("missing", -1))
}

func TestStillOpenIntervals(t *testing.T) {
	tl := withTacts(t, 4)
	_, err := tl.OpenInterval(0, defI)
	require.NoError(t, err)
	_, err = tl.OpenInterval(1, defJ)
	require.NoError(t, err)
	_, err = tl.CloseInterval(2, defI)
	require.NoError(t, err)

	ids := func(insts []*IntervalInstance) []string {
		var out []string
		for _, i := range insts {
			out = append(out, i.Interval.ID)
		}
		return out
	}

	assert.Equal(t, []string{"I"}, ids(tl.StillOpenIntervals(0)))
	assert.Equal(t, []string{"I", "J"}, ids(tl.StillOpenIntervals(1)))
	assert.Equal(t, []string{"J"}, ids(tl.StillOpenIntervals(3)))
}

func TestSnapshot(t *testing.T) {
	tl := withTacts(t, 4)
	_, err := tl.OpenInterval(1, defI)
	require.NoError(t, err)
	_, err = tl.CreateEventInstance(2, defE)
	require.NoError(t, err)
	_, err = tl.CloseInterval(3, defI)
	require.NoError(t, err)

	three := 3
	assert.Equal(t, ir.TimelineSnapshot{Tacts: []ir.TactSnapshot{
		{Tact: 0, OpenedIntervals: []ir.OpenedInterval{}, Events: []ir.OccurredEvent{}},
		{Tact: 1, OpenedIntervals: []ir.OpenedInterval{{Interval: "I", OpenTact: 1, CloseTact: &three}}, Events: []ir.OccurredEvent{}},
		{Tact: 2, OpenedIntervals: []ir.OpenedInterval{}, Events: []ir.OccurredEvent{{Event: "E", OccurrenceTact: 2}}},
		{Tact: 3, OpenedIntervals: []ir.OpenedInterval{}, Events: []ir.OccurredEvent{}},
	}}, tl.Snapshot())
}

func TestCloneIsDeep(t *testing.T) {
	tl := withTacts(t, 3)
	_, err := tl.OpenInterval(1, defI)
	require.NoError(t, err)

	c := tl.Clone()
	_, err = tl.CloseInterval(2, defI)
	require.NoError(t, err)
	_, err = tl.GetOrCreateTactRecord(3)
	require.NoError(t, err)

	assert.True(t, c.IsStillOpen("I"))
	assert.Equal(t, 2, c.LastTact())
	assert.False(t, tl.IsStillOpen("I"))
}

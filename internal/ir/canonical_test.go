package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"int", 42, "42"},
		{"float", 2.5, "2.5"},
		{"null", nil, "null"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"no html escaping", "<a&b>", `"<a&b>"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	result, err := MarshalCanonical(map[string]any{"zebra": 1, "alpha": 2, "beta": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalTimelineSnapshot(t *testing.T) {
	closeTact := 3
	snap := TimelineSnapshot{Tacts: []TactSnapshot{
		{Tact: 0, OpenedIntervals: []OpenedInterval{}, Events: []OccurredEvent{}},
		{Tact: 1, OpenedIntervals: []OpenedInterval{{Interval: "I", OpenTact: 1, CloseTact: &closeTact}}, Events: []OccurredEvent{}},
		{Tact: 2, OpenedIntervals: []OpenedInterval{}, Events: []OccurredEvent{{Event: "E", OccurrenceTact: 2}}},
	}}

	result, err := MarshalCanonical(snap)
	require.NoError(t, err)
	assert.Equal(t,
		`{"tacts":[{"events":[],"opened_intervals":[],"tact":0},`+
			`{"events":[],"opened_intervals":[{"close_tact":3,"interval":"I","open_tact":1}],"tact":1},`+
			`{"events":[{"event":"E","occurrence_tact":2}],"opened_intervals":[],"tact":2}]}`,
		string(result))
}

func TestMarshalCanonicalU2028(t *testing.T) {
	result, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(result))

	result, err = MarshalCanonical(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(result))
}

func TestCompareKeysRFC8785(t *testing.T) {
	assert.Equal(t, -1, compareKeysRFC8785("a", "b"))
	assert.Equal(t, 1, compareKeysRFC8785("b", "a"))
	assert.Equal(t, 0, compareKeysRFC8785("a", "a"))
	assert.Equal(t, -1, compareKeysRFC8785("a", "aa"))
	// U+1F600 encodes as surrogate 0xD83D, which sorts before U+FF61
	assert.Equal(t, -1, compareKeysRFC8785("\U0001F600", "｡"))
}

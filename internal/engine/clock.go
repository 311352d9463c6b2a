package engine

import "sync/atomic"

// NotStarted is the tact reported before the first ProcessTact.
const NotStarted = -1

// TactClock is the solver's discrete time base: not started, then 0, 1, 2, ...
// advancing by exactly one per tact.
//
// Reads are atomic so a registry can report a session's tact without
// taking the session lock; advancing is done only by the owning solver.
type TactClock struct {
	tact atomic.Int64
}

// NewTactClock creates a clock in the not-started state.
func NewTactClock() *TactClock {
	c := &TactClock{}
	c.tact.Store(NotStarted)
	return c
}

// NewTactClockAt creates a clock whose last completed tact is tact.
// Used by replay to resume a recorded session.
func NewTactClockAt(tact int) *TactClock {
	c := &TactClock{}
	c.tact.Store(int64(tact))
	return c
}

// Next advances the clock and returns the new tact.
func (c *TactClock) Next() int {
	return int(c.tact.Add(1))
}

// Current returns the current tact, or NotStarted.
func (c *TactClock) Current() int {
	return int(c.tact.Load())
}

// Started reports whether at least one tact has begun.
func (c *TactClock) Started() bool {
	return c.Current() != NotStarted
}

// set rewinds the clock to tact; used when a failed tact is rolled back.
func (c *TactClock) set(tact int) {
	c.tact.Store(int64(tact))
}

// Reset returns the clock to the not-started state.
func (c *TactClock) Reset() {
	c.set(NotStarted)
}

// Package timeline records, per tact, which interval instances opened and
// which event instances occurred.
//
// Tact records form a contiguous range starting at 0. Instances are owned
// by the record of the tact they opened or occurred in; an interval that
// closes later is updated in place. Historical queries scan the records in
// tact order, so instance lists are always ordered by tact.
package timeline

import (
	"fmt"

	"github.com/roach88/tactline/internal/ir"
)

// IntervalInstance is one opening episode of an interval definition.
type IntervalInstance struct {
	Interval  *ir.IntervalDef
	OpenTact  int
	CloseTact *int
}

// Closed reports whether the instance has a close tact.
func (i *IntervalInstance) Closed() bool {
	return i.CloseTact != nil
}

// EventInstance is one occurrence of an event definition.
type EventInstance struct {
	Event          *ir.EventDef
	OccurrenceTact int
}

// TactRecord holds the instances anchored at one tact.
type TactRecord struct {
	Tact            int
	Events          []*EventInstance
	OpenedIntervals []*IntervalInstance
}

func (r *TactRecord) interval(id string) *IntervalInstance {
	for _, inst := range r.OpenedIntervals {
		if inst.Interval.ID == id {
			return inst
		}
	}
	return nil
}

func (r *TactRecord) event(id string) *EventInstance {
	for _, inst := range r.Events {
		if inst.Event.ID == id {
			return inst
		}
	}
	return nil
}

// Timeline is the ordered sequence of tact records.
// It is not safe for concurrent use.
type Timeline struct {
	records []*TactRecord
}

// New creates an empty timeline.
func New() *Timeline {
	return &Timeline{}
}

// LastTact returns the highest recorded tact, or -1 when empty.
func (t *Timeline) LastTact() int {
	return len(t.records) - 1
}

// Records returns the tact records in ascending tact order.
func (t *Timeline) Records() []*TactRecord {
	return t.records
}

// GetOrCreateTactRecord returns the record for tact, creating it when tact
// is exactly one past the last recorded tact (or 0 on an empty timeline).
func (t *Timeline) GetOrCreateTactRecord(tact int) (*TactRecord, error) {
	if tact >= 0 && tact < len(t.records) {
		return t.records[tact], nil
	}
	if tact != len(t.records) {
		return nil, &SequenceError{Tact: tact, Last: t.LastTact()}
	}
	rec := &TactRecord{Tact: tact}
	t.records = append(t.records, rec)
	return rec, nil
}

// OpenInterval opens an instance of def at tact. If an unclosed instance
// opened at or before tact exists, it is returned unchanged.
func (t *Timeline) OpenInterval(tact int, def *ir.IntervalDef) (*IntervalInstance, error) {
	if last := t.IntervalInstance(def.ID, -1); last != nil {
		switch {
		case !last.Closed() && last.OpenTact <= tact:
			return last, nil
		case !last.Closed() || *last.CloseTact > tact:
			return nil, fmt.Errorf("open %s at tact %d: %w", def.ID, tact, ErrOpenBeforeClosed)
		}
	}
	rec, err := t.GetOrCreateTactRecord(tact)
	if err != nil {
		return nil, err
	}
	if existing := rec.interval(def.ID); existing != nil {
		return existing, nil
	}
	inst := &IntervalInstance{Interval: def, OpenTact: tact}
	rec.OpenedIntervals = append(rec.OpenedIntervals, inst)
	return inst, nil
}

// CloseInterval closes the most recent instance of def at tact.
// Closing again at the same tact is a no-op.
func (t *Timeline) CloseInterval(tact int, def *ir.IntervalDef) (*IntervalInstance, error) {
	inst := t.IntervalInstance(def.ID, -1)
	if inst == nil {
		return nil, fmt.Errorf("close %s at tact %d: %w", def.ID, tact, ErrNoOpenInterval)
	}
	if inst.Closed() {
		if *inst.CloseTact == tact {
			return inst, nil
		}
		return nil, fmt.Errorf("close %s at tact %d (closed at %d): %w", def.ID, tact, *inst.CloseTact, ErrAlreadyClosed)
	}
	if tact <= inst.OpenTact {
		return nil, fmt.Errorf("close %s at tact %d (opened at %d): %w", def.ID, tact, inst.OpenTact, ErrCloseBeforeOpen)
	}
	if _, err := t.GetOrCreateTactRecord(tact); err != nil {
		return nil, err
	}
	closeTact := tact
	inst.CloseTact = &closeTact
	return inst, nil
}

// CreateEventInstance records an occurrence of def at tact. Repeated calls
// for the same tact return the existing instance.
func (t *Timeline) CreateEventInstance(tact int, def *ir.EventDef) (*EventInstance, error) {
	rec, err := t.GetOrCreateTactRecord(tact)
	if err != nil {
		return nil, err
	}
	if existing := rec.event(def.ID); existing != nil {
		return existing, nil
	}
	inst := &EventInstance{Event: def, OccurrenceTact: tact}
	rec.Events = append(rec.Events, inst)
	return inst, nil
}

// AllIntervalInstances returns every instance of the interval, oldest first.
func (t *Timeline) AllIntervalInstances(id string) []*IntervalInstance {
	var out []*IntervalInstance
	for _, rec := range t.records {
		if inst := rec.interval(id); inst != nil {
			out = append(out, inst)
		}
	}
	return out
}

// AllEventInstances returns every occurrence of the event, oldest first.
func (t *Timeline) AllEventInstances(id string) []*EventInstance {
	var out []*EventInstance
	for _, rec := range t.records {
		if inst := rec.event(id); inst != nil {
			out = append(out, inst)
		}
	}
	return out
}

// IntervalInstance selects one historical instance. Negative indices count
// from the most recent (-1). Returns nil when out of range.
func (t *Timeline) IntervalInstance(id string, index int) *IntervalInstance {
	return pick(t.AllIntervalInstances(id), index)
}

// EventInstance selects one historical occurrence, indexed like
// IntervalInstance.
func (t *Timeline) EventInstance(id string, index int) *EventInstance {
	return pick(t.AllEventInstances(id), index)
}

func pick[T any](all []*T, index int) *T {
	if index < 0 {
		index += len(all)
	}
	if index < 0 || index >= len(all) {
		return nil
	}
	return all[index]
}

// StillOpenIntervals returns the instances opened at or before lastTact
// that were not closed by lastTact.
func (t *Timeline) StillOpenIntervals(lastTact int) []*IntervalInstance {
	var out []*IntervalInstance
	for _, rec := range t.records {
		if rec.Tact > lastTact {
			break
		}
		for _, inst := range rec.OpenedIntervals {
			if !inst.Closed() || *inst.CloseTact > lastTact {
				out = append(out, inst)
			}
		}
	}
	return out
}

// IsStillOpen reports whether the interval has an unclosed instance.
func (t *Timeline) IsStillOpen(id string) bool {
	inst := t.IntervalInstance(id, -1)
	return inst != nil && !inst.Closed()
}

// Snapshot renders the timeline in its serialised form.
func (t *Timeline) Snapshot() ir.TimelineSnapshot {
	snap := ir.TimelineSnapshot{Tacts: make([]ir.TactSnapshot, 0, len(t.records))}
	for _, rec := range t.records {
		ts := ir.TactSnapshot{
			Tact:            rec.Tact,
			OpenedIntervals: make([]ir.OpenedInterval, 0, len(rec.OpenedIntervals)),
			Events:          make([]ir.OccurredEvent, 0, len(rec.Events)),
		}
		for _, inst := range rec.OpenedIntervals {
			oi := ir.OpenedInterval{Interval: inst.Interval.ID, OpenTact: inst.OpenTact}
			if inst.CloseTact != nil {
				c := *inst.CloseTact
				oi.CloseTact = &c
			}
			ts.OpenedIntervals = append(ts.OpenedIntervals, oi)
		}
		for _, inst := range rec.Events {
			ts.Events = append(ts.Events, ir.OccurredEvent{Event: inst.Event.ID, OccurrenceTact: inst.OccurrenceTact})
		}
		snap.Tacts = append(snap.Tacts, ts)
	}
	return snap
}

// Clone returns a deep copy. Definitions are shared.
func (t *Timeline) Clone() *Timeline {
	c := &Timeline{records: make([]*TactRecord, len(t.records))}
	for i, rec := range t.records {
		cr := &TactRecord{Tact: rec.Tact}
		for _, inst := range rec.OpenedIntervals {
			ci := &IntervalInstance{Interval: inst.Interval, OpenTact: inst.OpenTact}
			if inst.CloseTact != nil {
				v := *inst.CloseTact
				ci.CloseTact = &v
			}
			cr.OpenedIntervals = append(cr.OpenedIntervals, ci)
		}
		for _, inst := range rec.Events {
			ce := *inst
			cr.Events = append(cr.Events, &ce)
		}
		c.records[i] = cr
	}
	return c
}

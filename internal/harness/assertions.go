package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/tactline/internal/ir"
	"github.com/roach88/tactline/internal/timeline"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string

	// Timeline is the final timeline, printed for context.
	Timeline ir.TimelineSnapshot
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nTimeline:\n")
	for _, rec := range e.Timeline.Tacts {
		fmt.Fprintf(&buf, "  [%d]", rec.Tact)
		for _, oi := range rec.OpenedIntervals {
			end := "open"
			if oi.CloseTact != nil {
				end = fmt.Sprint(*oi.CloseTact)
			}
			fmt.Fprintf(&buf, " %s[%d,%s]", oi.Interval, oi.OpenTact, end)
		}
		for _, ev := range rec.Events {
			fmt.Fprintf(&buf, " %s@%d", ev.Event, ev.OccurrenceTact)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure. last is the final successful tact result and may be nil.
func EvaluateAssertions(assertions []Assertion, tl *timeline.Timeline, last *ir.TactResult) []string {
	var msgs []string
	for _, a := range assertions {
		if err := evaluateAssertion(a, tl, last); err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}

func evaluateAssertion(a Assertion, tl *timeline.Timeline, last *ir.TactResult) error {
	switch a.Type {
	case AssertIntervalCount:
		return assertCount(a, len(tl.AllIntervalInstances(a.ID)), "interval", tl)
	case AssertEventCount:
		return assertCount(a, len(tl.AllEventInstances(a.ID)), "event", tl)
	case AssertStillOpen:
		if got := tl.IsStillOpen(a.ID); got != *a.Open {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("interval %s still open = %t", a.ID, *a.Open),
				Actual:   fmt.Sprintf("still open = %t", got),
				Timeline: tl.Snapshot(),
			}
		}
		return nil
	case AssertSignified:
		return assertSignified(a, tl, last)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertCount(a Assertion, got int, kind string, tl *timeline.Timeline) error {
	if got == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d instances of %s %s", *a.Count, kind, a.ID),
		Actual:   fmt.Sprintf("%d instances", got),
		Timeline: tl.Snapshot(),
	}
}

// assertSignified checks a fact published by the final tact. A null value
// expects unknown.
func assertSignified(a Assertion, tl *timeline.Timeline, last *ir.TactResult) error {
	if last == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s = %s", a.Path, ir.FormatContent(a.Value)),
			Actual:   "no tact was processed",
			Timeline: tl.Snapshot(),
		}
	}
	got, ok := last.Signified[a.Path]
	if ok && contentEqual(a.Value, got) {
		return nil
	}
	actual := "not published"
	if ok {
		actual = ir.FormatContent(got)
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s = %s", a.Path, ir.FormatContent(a.Value)),
		Actual:   actual,
		Timeline: tl.Snapshot(),
	}
}

package allen

import (
	"fmt"

	"github.com/roach88/tactline/internal/ir"
)

// TimeSection is the [Open, Close] tact span of one timeline instance.
type TimeSection struct {
	Open  int
	Close int
}

// RelationFunc decides one Allen relation between two sections.
type RelationFunc func(left, right TimeSection) bool

// Before: left ends before right starts.
func Before(l, r TimeSection) bool { return l.Close < r.Open }

// Meets: left ends at the tact right starts.
func Meets(l, r TimeSection) bool { return l.Close == r.Open }

// Starts: same start, left ends first.
func Starts(l, r TimeSection) bool { return l.Open == r.Open && l.Close < r.Close }

// Finishes: same end, left starts later.
func Finishes(l, r TimeSection) bool { return l.Close == r.Close && l.Open > r.Open }

// During: left lies strictly inside right.
func During(l, r TimeSection) bool { return l.Open > r.Open && l.Close < r.Close }

// Overlaps: left starts first and ends inside right.
func Overlaps(l, r TimeSection) bool {
	return l.Open < r.Open && l.Close > r.Open && l.Close < r.Close
}

// Equals: identical spans.
func Equals(l, r TimeSection) bool { return l.Open == r.Open && l.Close == r.Close }

// inverse builds a relation as its base relation with operands swapped.
func inverse(base RelationFunc) RelationFunc {
	return func(l, r TimeSection) bool { return base(r, l) }
}

// Inverse relations.
var (
	After        = inverse(Before)
	MetBy        = inverse(Meets)
	StartedBy    = inverse(Starts)
	FinishedBy   = inverse(Finishes)
	Contains     = inverse(During)
	OverlappedBy = inverse(Overlaps)
)

// Relations maps every accepted relation symbol to its function.
// "bi" and "ai" are aliases of after and before.
var Relations = map[ir.Relation]RelationFunc{
	ir.RelBefore:       Before,
	ir.RelAfter:        After,
	ir.RelMeets:        Meets,
	ir.RelMetBy:        MetBy,
	ir.RelStarts:       Starts,
	ir.RelStartedBy:    StartedBy,
	ir.RelFinishes:     Finishes,
	ir.RelFinishedBy:   FinishedBy,
	ir.RelDuring:       During,
	ir.RelContains:     Contains,
	ir.RelOverlaps:     Overlaps,
	ir.RelOverlappedBy: OverlappedBy,
	ir.RelEquals:       Equals,

	ir.RelBeforeInverse: After,
	ir.RelAfterInverse:  Before,
}

// Relate applies the named relation.
func Relate(rel ir.Relation, left, right TimeSection) (bool, error) {
	fn, ok := Relations[rel]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownRelation, rel)
	}
	return fn(left, right), nil
}

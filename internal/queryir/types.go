package queryir

// Query selects tacts from the log of one session epoch.
// A nil Filter selects every tact.
type Query struct {
	SessionID string
	Epoch     int
	Filter    Predicate
}

// Predicate is a filter condition over one logged tact.
type Predicate interface {
	predicateNode()
}

// Signified matches tacts whose result published Path with a value equal
// to Value. A nil Value matches an unknown (null) publication. Numbers
// compare numerically, so 2 and 2.0 are equal.
type Signified struct {
	Path  string
	Value any
}

func (Signified) predicateNode() {}

// Published matches tacts whose result contains Path, whatever its value.
type Published struct {
	Path string
}

func (Published) predicateNode() {}

// TactRange matches tact numbers From through To inclusive.
type TactRange struct {
	From int
	To   int
}

func (TactRange) predicateNode() {}

// And matches when every sub-predicate matches.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

package ir

// TimelineSnapshot is the serialised form of a timeline: tact records in
// ascending tact order.
type TimelineSnapshot struct {
	Tacts []TactSnapshot `json:"tacts"`
}

// TactSnapshot is one tact record.
type TactSnapshot struct {
	Tact            int              `json:"tact"`
	OpenedIntervals []OpenedInterval `json:"opened_intervals"`
	Events          []OccurredEvent  `json:"events"`
}

// OpenedInterval is an interval instance as recorded in the tact it opened.
// CloseTact is null while the interval is still open.
type OpenedInterval struct {
	Interval  string `json:"interval"`
	OpenTact  int    `json:"open_tact"`
	CloseTact *int   `json:"close_tact"`
}

// OccurredEvent is an event instance.
type OccurredEvent struct {
	Event          string `json:"event"`
	OccurrenceTact int    `json:"occurrence_tact"`
}

// SignifiedMeta is provenance for one published temporal fact.
type SignifiedMeta struct {
	Rule           string `json:"rule"`
	AllenOperation string `json:"allen_operation"`
	Value          any    `json:"value"`
}

// TactResult is returned by every processed tact.
type TactResult struct {
	Tact          int                      `json:"tact"`
	WM            map[string]any           `json:"wm"`
	Timeline      TimelineSnapshot         `json:"timeline"`
	Signified     map[string]any           `json:"signified"`
	SignifiedMeta map[string]SignifiedMeta `json:"signified_meta"`
}

// WMItem is one bulk working-memory assignment.
type WMItem struct {
	Ref         string   `json:"ref" yaml:"ref" binding:"required" validate:"required"`
	Value       any      `json:"value" yaml:"value"`
	Belief      *float64 `json:"belief,omitempty" yaml:"belief,omitempty"`
	Probability *float64 `json:"probability,omitempty" yaml:"probability,omitempty"`
	Accuracy    *float64 `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`
}

// ToValue converts the item into a working-memory value.
func (it WMItem) ToValue() (Value, error) {
	v, err := NewValue(it.Value)
	if err != nil {
		return Value{}, err
	}
	nf := &NonFactor{Belief: it.Belief, Probability: it.Probability, Accuracy: it.Accuracy}
	if !nf.IsZero() {
		v.NonFactor = nf
	}
	return v, nil
}

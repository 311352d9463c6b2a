package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// KnowledgeBase is the read-only set of definitions a solver runs against.
// Declaration order of intervals, events and rules is preserved and is the
// order in which the solver evaluates them.
type KnowledgeBase struct {
	World     []Property     `json:"world"`
	Intervals []*IntervalDef `json:"intervals"`
	Events    []*EventDef    `json:"events"`
	Rules     []*Rule        `json:"rules"`

	validated bool
}

// Property is one node of the working-memory class schema.
// Leaves have a Type and optionally a Default binding; objects have Children.
type Property struct {
	Name     string     `json:"name"`
	Type     string     `json:"type,omitempty"` // "number", "string", "bool", "any"; empty for objects
	Default  Expr       `json:"default,omitempty"`
	Children []Property `json:"children,omitempty"`
}

// IsLeaf reports whether the property holds a value rather than children.
func (p Property) IsLeaf() bool {
	return len(p.Children) == 0
}

// ValidPropertyTypes defines allowed leaf types.
var ValidPropertyTypes = map[string]bool{
	"number": true,
	"string": true,
	"bool":   true,
	"any":    true,
}

// IntervalDef describes when an interval opens and closes.
type IntervalDef struct {
	ID    string `json:"id"`
	Open  Expr   `json:"open"`
	Close Expr   `json:"close"`
}

// EventDef describes when an event occurs.
type EventDef struct {
	ID     string `json:"id"`
	Occurs Expr   `json:"occurs"`
}

// Rule is an externally evaluated rule; the solver only inspects its
// condition for temporal sub-expressions.
type Rule struct {
	ID        string `json:"id"`
	Condition Expr   `json:"condition"`
}

// Validated reports whether the knowledge base passed validation.
func (kb *KnowledgeBase) Validated() bool {
	return kb != nil && kb.validated
}

// MarkValidated records a successful validation.
// Only the compiler's validator should call this.
func (kb *KnowledgeBase) MarkValidated() {
	kb.validated = true
}

// Interval returns the interval definition with the given ID.
func (kb *KnowledgeBase) Interval(id string) (*IntervalDef, bool) {
	for _, d := range kb.Intervals {
		if d.ID == id {
			return d, true
		}
	}
	return nil, false
}

// Event returns the event definition with the given ID.
func (kb *KnowledgeBase) Event(id string) (*EventDef, bool) {
	for _, d := range kb.Events {
		if d.ID == id {
			return d, true
		}
	}
	return nil, false
}

// UnmarshalJSON implements json.Unmarshaler for Property.
func (p *Property) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name     string          `json:"name"`
		Type     string          `json:"type"`
		Default  json.RawMessage `json:"default"`
		Children []Property      `json:"children"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.Name, p.Type, p.Children = aux.Name, aux.Type, aux.Children
	p.Default = nil
	if len(aux.Default) > 0 && !bytes.Equal(aux.Default, []byte("null")) {
		e, err := unmarshalExpr(aux.Default)
		if err != nil {
			return fmt.Errorf("property %q default: %w", aux.Name, err)
		}
		p.Default = e
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for IntervalDef.
func (d *IntervalDef) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID    string          `json:"id"`
		Open  json.RawMessage `json:"open"`
		Close json.RawMessage `json:"close"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	open, err := unmarshalExpr(aux.Open)
	if err != nil {
		return fmt.Errorf("interval %q open: %w", aux.ID, err)
	}
	closeExpr, err := unmarshalExpr(aux.Close)
	if err != nil {
		return fmt.Errorf("interval %q close: %w", aux.ID, err)
	}
	*d = IntervalDef{ID: aux.ID, Open: open, Close: closeExpr}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for EventDef.
func (d *EventDef) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID     string          `json:"id"`
		Occurs json.RawMessage `json:"occurs"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	occurs, err := unmarshalExpr(aux.Occurs)
	if err != nil {
		return fmt.Errorf("event %q occurs: %w", aux.ID, err)
	}
	*d = EventDef{ID: aux.ID, Occurs: occurs}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Rule.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID        string          `json:"id"`
		Condition json.RawMessage `json:"condition"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	cond, err := unmarshalExpr(aux.Condition)
	if err != nil {
		return fmt.Errorf("rule %q condition: %w", aux.ID, err)
	}
	*r = Rule{ID: aux.ID, Condition: cond}
	return nil
}

// unmarshalExpr decodes JSON with UseNumber so integers stay integral.
func unmarshalExpr(data []byte) (Expr, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("expression is required")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return ParseExpr(raw)
}

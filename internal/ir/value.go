package ir

import (
	"encoding/json"
	"fmt"
	"math"
)

// Value is a working-memory value: content plus an optional non-factor
// annotation. Content is restricted to nil, string, int64, float64 and bool.
// A nil content means "unknown".
type Value struct {
	Content   any        `json:"content"`
	NonFactor *NonFactor `json:"non_factor,omitempty"`
}

// NonFactor carries belief/probability/accuracy annotations supplied with
// a value. Every field is optional.
type NonFactor struct {
	Belief      *float64 `json:"belief,omitempty"`
	Probability *float64 `json:"probability,omitempty"`
	Accuracy    *float64 `json:"accuracy,omitempty"`
}

// IsZero reports whether no annotation is set.
func (nf *NonFactor) IsZero() bool {
	return nf == nil || (nf.Belief == nil && nf.Probability == nil && nf.Accuracy == nil)
}

// Unknown returns the unknown value.
func Unknown() Value {
	return Value{}
}

// Bool creates a boolean value.
func Bool(b bool) Value {
	return Value{Content: b}
}

// Int creates an integer value.
func Int(n int64) Value {
	return Value{Content: n}
}

// Float creates a numeric value, unified to int64 when whole.
func Float(f float64) Value {
	return Value{Content: UnifyNumber(f)}
}

// String creates a string value.
func String(s string) Value {
	return Value{Content: s}
}

// IsUnknown reports whether the content is nil.
func (v Value) IsUnknown() bool {
	return v.Content == nil
}

// NewValue converts a Go value into a Value.
// Integers of any width become int64, float32 becomes float64 and
// json.Number is parsed. Other types are rejected.
func NewValue(content any) (Value, error) {
	c, err := normalizeContent(content)
	if err != nil {
		return Value{}, err
	}
	return Value{Content: c}, nil
}

// MustValue is like NewValue but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustValue(content any) Value {
	v, err := NewValue(content)
	if err != nil {
		panic(err)
	}
	return v
}

func normalizeContent(content any) (any, error) {
	switch c := content.(type) {
	case nil:
		return nil, nil
	case string, bool, int64, float64:
		return c, nil
	case int:
		return int64(c), nil
	case int8:
		return int64(c), nil
	case int16:
		return int64(c), nil
	case int32:
		return int64(c), nil
	case uint8:
		return int64(c), nil
	case uint16:
		return int64(c), nil
	case uint32:
		return int64(c), nil
	case uint:
		if uint64(c) > math.MaxInt64 {
			return nil, fmt.Errorf("integer out of int64 range: %d", c)
		}
		return int64(c), nil
	case uint64:
		if c > math.MaxInt64 {
			return nil, fmt.Errorf("integer out of int64 range: %d", c)
		}
		return int64(c), nil
	case float32:
		return float64(c), nil
	case json.Number:
		if i, err := c.Int64(); err == nil {
			return i, nil
		}
		f, err := c.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", c, err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", content)
	}
}

// IsNumber reports whether content is an int64 or float64.
func IsNumber(content any) bool {
	switch content.(type) {
	case int64, float64:
		return true
	}
	return false
}

// UnifyNumber returns the canonical numeric form of content: int64 when
// the value is whole and representable, float64 otherwise. Non-numeric
// content is returned unchanged.
func UnifyNumber(content any) any {
	switch n := content.(type) {
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return n
		}
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return int64(n)
		}
		return n
	case int64:
		return n
	default:
		return content
	}
}

// Float64 returns a numeric content as float64.
func Float64(content any) (float64, bool) {
	switch n := content.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Truthy applies the truthiness rules used by boolean operators:
// false, 0 and "" are false, everything else is true.
// Callers must handle unknown content before calling Truthy.
func Truthy(content any) bool {
	switch c := content.(type) {
	case bool:
		return c
	case int64:
		return c != 0
	case float64:
		return c != 0
	case string:
		return c != ""
	default:
		return content != nil
	}
}

// FormatContent renders content the way it appears in expression text.
func FormatContent(content any) string {
	switch c := content.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", c)
	default:
		return fmt.Sprintf("%v", c)
	}
}

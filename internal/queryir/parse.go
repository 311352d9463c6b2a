package queryir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/tactline/internal/ir"
)

// ParseFilter parses the comma-separated filter syntax described in the
// package documentation. An empty expression yields a nil predicate.
func ParseFilter(expr string) (Predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	var preds []Predicate
	for i, term := range strings.Split(expr, ",") {
		p, err := parseTerm(strings.TrimSpace(term))
		if err != nil {
			return nil, fmt.Errorf("term %d: %w", i+1, err)
		}
		preds = append(preds, p)
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return And{Predicates: preds}, nil
}

func parseTerm(term string) (Predicate, error) {
	if term == "" {
		return nil, fmt.Errorf("empty term")
	}
	if path, ok := strings.CutSuffix(term, "?"); ok && !strings.Contains(path, "=") {
		return Published{Path: strings.TrimSpace(path)}, nil
	}

	path, raw, ok := strings.Cut(term, "=")
	if !ok {
		return nil, fmt.Errorf("%q: expected path=value or path?", term)
	}
	path, raw = strings.TrimSpace(path), strings.TrimSpace(raw)
	if path == "tact" {
		return parseRange(raw)
	}
	v, err := parseValue(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Signified{Path: path, Value: v}, nil
}

func parseRange(raw string) (Predicate, error) {
	from, to, isRange := strings.Cut(raw, "..")
	lo, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return nil, fmt.Errorf("tact: invalid number %q", from)
	}
	if !isRange {
		return TactRange{From: lo, To: lo}, nil
	}
	hi, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return nil, fmt.Errorf("tact: invalid number %q", to)
	}
	return TactRange{From: lo, To: hi}, nil
}

// parseValue decodes a JSON scalar, falling back to the raw text as a
// string. Arrays and objects are rejected.
func parseValue(raw string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil || dec.More() {
		return raw, nil
	}
	switch decoded.(type) {
	case []any, map[string]any:
		return nil, fmt.Errorf("value must be a scalar, got %s", raw)
	}
	v, err := ir.NewValue(decoded)
	if err != nil {
		return nil, err
	}
	return ir.UnifyNumber(v.Content), nil
}

// Package querysql compiles queryir filters to parameterized SQLite SQL
// over the tacts table.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/tactline/internal/ir"
	"github.com/roach88/tactline/internal/queryir"
)

// Compile converts a query to parameterized SQL selecting matching tact
// numbers.
//
// Every statement ends in ORDER BY tact so results follow log order.
// Values and JSON paths are always bound as parameters, never
// interpolated into the SQL text.
func Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, fmt.Errorf("invalid query: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("SELECT tact FROM tacts WHERE session_id = ? AND epoch = ?")
	params := []any{q.SessionID, q.Epoch}

	if q.Filter != nil {
		where, filterParams, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" AND ")
		sb.WriteString(where)
		params = append(params, filterParams...)
	}
	sb.WriteString(" ORDER BY tact ASC")

	return sb.String(), params, nil
}

func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Signified:
		return compileSignified(pred)
	case queryir.Published:
		return "json_type(result, ?) IS NOT NULL", []any{signifiedPath(pred.Path)}, nil
	case queryir.TactRange:
		return "tact BETWEEN ? AND ?", []any{pred.From, pred.To}, nil
	case queryir.And:
		return compileAnd(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileSignified matches on the JSON type first: json_extract maps JSON
// booleans to 0/1 and null to SQL NULL, so neither can be compared by value.
func compileSignified(s queryir.Signified) (string, []any, error) {
	val, err := ir.NewValue(s.Value)
	if err != nil {
		return "", nil, err
	}
	path := signifiedPath(s.Path)
	switch v := ir.UnifyNumber(val.Content).(type) {
	case nil:
		return "json_type(result, ?) = 'null'", []any{path}, nil
	case bool:
		kind := "false"
		if v {
			kind = "true"
		}
		return "json_type(result, ?) = ?", []any{path, kind}, nil
	case string:
		return "(json_type(result, ?) = 'text' AND json_extract(result, ?) = ?)", []any{path, path, v}, nil
	case int64, float64:
		return "(json_type(result, ?) IN ('integer', 'real') AND json_extract(result, ?) = ?)", []any{path, path, v}, nil
	default:
		return "", nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

func compileAnd(and queryir.And) (string, []any, error) {
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, p := range and.Predicates {
		sql, ps, err := compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

// signifiedPath addresses one published path. Paths contain dots, so the
// member name is quoted.
func signifiedPath(path string) string {
	return `$.signified."` + path + `"`
}

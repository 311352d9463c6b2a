package queryir

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/tactline/internal/ir"
)

// Validate checks that a query is well formed. Every problem found is
// reported; the result is nil or an errors.Join of them.
func Validate(q Query) error {
	v := &validator{}
	if q.SessionID == "" {
		v.addError("session ID is required")
	}
	if q.Epoch < 0 {
		v.addError("epoch must be non-negative, got %d", q.Epoch)
	}
	if q.Filter != nil {
		v.validatePredicate(q.Filter)
	}
	return errors.Join(v.errs...)
}

// validator accumulates errors during traversal.
type validator struct {
	errs []error
}

func (v *validator) addError(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.addError("nil predicate")
	case Signified:
		v.validatePath(pred.Path)
		if _, err := ir.NewValue(pred.Value); err != nil {
			v.addError("path %q: %v", pred.Path, err)
		}
	case Published:
		v.validatePath(pred.Path)
	case TactRange:
		if pred.From < 0 {
			v.addError("tact range start must be non-negative, got %d", pred.From)
		}
		if pred.To < pred.From {
			v.addError("tact range %d..%d is empty", pred.From, pred.To)
		}
	case And:
		if len(pred.Predicates) == 0 {
			v.addError("empty conjunction")
		}
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

// validatePath rejects paths that cannot be quoted as a single JSON path
// member.
func (v *validator) validatePath(path string) {
	if path == "" {
		v.addError("path is required")
		return
	}
	if strings.ContainsAny(path, `"\`) {
		v.addError("path %q contains a quote or backslash", path)
	}
}

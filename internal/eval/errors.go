package eval

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTemporalExpr is returned when an Allen relation or attribute query
// reaches the expression evaluator. Temporal nodes are evaluated by the
// allen package; seeing one here means the knowledge base was not
// validated.
var ErrTemporalExpr = errors.New("temporal expression outside a rule condition")

// RecursionError reports a reference chain that revisits itself.
type RecursionError struct {
	// Chain is the sequence of references followed, ending with the
	// reference that was revisited.
	Chain []string

	// Binding is the expression text the revisited reference is bound to.
	Binding string
}

// Error implements the error interface.
func (e *RecursionError) Error() string {
	ref := ""
	if len(e.Chain) > 0 {
		ref = e.Chain[len(e.Chain)-1]
	}
	return fmt.Sprintf("recursive reference %s (bound to %s): %s", ref, e.Binding, strings.Join(e.Chain, " -> "))
}

// OperandError reports operands an operator cannot be applied to.
type OperandError struct {
	Op     string
	Left   any
	Right  any
	Reason string
}

// Error implements the error interface.
func (e *OperandError) Error() string {
	if e.Right == nil {
		return fmt.Sprintf("%s %v: %s", e.Op, e.Left, e.Reason)
	}
	return fmt.Sprintf("%v %s %v: %s", e.Left, e.Op, e.Right, e.Reason)
}

// IsRecursionError returns true if err is or wraps a RecursionError.
func IsRecursionError(err error) bool {
	var re *RecursionError
	return errors.As(err, &re)
}

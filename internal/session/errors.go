package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/tactline/internal/compiler"
)

// ErrNotFound is returned for an unknown session identity.
var ErrNotFound = errors.New("session not found")

// KBError reports a knowledge base that failed validation.
type KBError struct {
	Source string
	Errors []compiler.ValidationError
}

func (e *KBError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msgs = append(msgs, ve.Error())
	}
	return fmt.Sprintf("knowledge base %s failed validation: %s", e.Source, strings.Join(msgs, "; "))
}

// IsKBError reports whether err is or wraps a *KBError.
func IsKBError(err error) bool {
	var kbErr *KBError
	return errors.As(err, &kbErr)
}

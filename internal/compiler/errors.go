package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// cueError converts a CUE evaluation error into a CompileError for the
// given KB field, keeping the first reported source position. Non-CUE
// errors pass through unchanged.
func cueError(field string, err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	ce := &CompileError{Field: field, Message: errs[0].Error()}
	if len(errs) > 1 {
		ce.Message = fmt.Sprintf("%s (and %d more)", ce.Message, len(errs)-1)
	}
	if positions := errors.Positions(errs[0]); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}

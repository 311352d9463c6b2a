package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/tactline/internal/allen"
	"github.com/roach88/tactline/internal/eval"
	"github.com/roach88/tactline/internal/timeline"
)

// ErrKBNotValidated is returned by New for a knowledge base that did not
// pass validation.
var ErrKBNotValidated = errors.New("knowledge base not validated")

// RuntimeError represents an error that aborted a solver operation.
//
// Codes fall in three groups:
//   - configuration: the knowledge base or the caller drove the solver into
//     a state its contract forbids (TACT_SEQUENCE, INTERVAL_STATE,
//     NOT_VALIDATED, KB_NOT_VALIDATED, INVALID_EXPRESSION)
//   - resolution: evaluation could not produce a value (RECURSIVE_REFERENCE,
//     OPERAND)
//   - input: a working-memory update was rejected (INVALID_VALUE)
//
// Unknown results are never errors.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Tact is the tact being processed, or NotStarted.
	Tact int

	// Definition names the interval, event or rule being evaluated.
	Definition string

	// Err is the underlying error.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeTactSequence indicates a tact record introduced out of order.
	ErrCodeTactSequence RuntimeErrorCode = "TACT_SEQUENCE"

	// ErrCodeIntervalState indicates an interval opened or closed in
	// violation of its lifecycle.
	ErrCodeIntervalState RuntimeErrorCode = "INTERVAL_STATE"

	// ErrCodeNotValidated indicates an unvalidated temporal expression.
	ErrCodeNotValidated RuntimeErrorCode = "NOT_VALIDATED"

	// ErrCodeKBNotValidated indicates a solver built on an unvalidated KB.
	ErrCodeKBNotValidated RuntimeErrorCode = "KB_NOT_VALIDATED"

	// ErrCodeInvalidExpression indicates an expression the evaluators
	// cannot interpret (unknown relation or attribute, bad index, temporal
	// node in an interval or event condition).
	ErrCodeInvalidExpression RuntimeErrorCode = "INVALID_EXPRESSION"

	// ErrCodeRecursiveReference indicates a reference chain that revisits
	// itself.
	ErrCodeRecursiveReference RuntimeErrorCode = "RECURSIVE_REFERENCE"

	// ErrCodeOperand indicates operands an operator cannot accept.
	ErrCodeOperand RuntimeErrorCode = "OPERAND"

	// ErrCodeInvalidValue indicates a rejected working-memory update.
	ErrCodeInvalidValue RuntimeErrorCode = "INVALID_VALUE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.Definition != "" && e.Tact != NotStarted:
		return fmt.Sprintf("%s: %s (tact=%d, definition=%s)", e.Code, e.Message, e.Tact, e.Definition)
	case e.Tact != NotStarted:
		return fmt.Sprintf("%s: %s (tact=%d)", e.Code, e.Message, e.Tact)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func codeOf(err error) (RuntimeErrorCode, bool) {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return "", false
}

// IsConfigError returns true if err is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	code, ok := codeOf(err)
	if !ok {
		return false
	}
	switch code {
	case ErrCodeTactSequence, ErrCodeIntervalState, ErrCodeNotValidated,
		ErrCodeKBNotValidated, ErrCodeInvalidExpression:
		return true
	}
	return false
}

// IsResolutionError returns true if err is a resolution error.
func IsResolutionError(err error) bool {
	code, ok := codeOf(err)
	return ok && (code == ErrCodeRecursiveReference || code == ErrCodeOperand)
}

// IsInputError returns true if err is a rejected working-memory update.
func IsInputError(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeInvalidValue
}

// classify wraps a lower-level error in a RuntimeError carrying the tact
// and definition being processed. Errors that are already RuntimeErrors
// pass through unchanged.
func classify(err error, tact int, definition string) error {
	if err == nil {
		return nil
	}
	if _, ok := codeOf(err); ok {
		return err
	}

	var (
		seqErr *timeline.SequenceError
		recErr *eval.RecursionError
		opErr  *eval.OperandError
		code   RuntimeErrorCode
	)
	switch {
	case errors.As(err, &seqErr):
		code = ErrCodeTactSequence
	case errors.Is(err, timeline.ErrNoOpenInterval),
		errors.Is(err, timeline.ErrCloseBeforeOpen),
		errors.Is(err, timeline.ErrAlreadyClosed),
		errors.Is(err, timeline.ErrOpenBeforeClosed):
		code = ErrCodeIntervalState
	case errors.Is(err, allen.ErrNotValidated):
		code = ErrCodeNotValidated
	case errors.As(err, &recErr):
		code = ErrCodeRecursiveReference
	case errors.As(err, &opErr):
		code = ErrCodeOperand
	default:
		code = ErrCodeInvalidExpression
	}
	return &RuntimeError{Code: code, Message: err.Error(), Tact: tact, Definition: definition, Err: err}
}

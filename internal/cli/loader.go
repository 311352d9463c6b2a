package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"cuelang.org/go/cue/token"

	"github.com/roach88/tactline/internal/compiler"
	"github.com/roach88/tactline/internal/ir"
)

// Error code constants shared by every command. Validation codes come
// from the compiler (E1xx).
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeCompile     = "E006" // CUE build or compile failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStore       = "E008" // Database open or query failed
	ErrCodeInput       = "E009" // Unreadable inputs or scenario file
)

// LoadError is a knowledge base that could not be compiled at all.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the source line of the error, or 0.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// loadKB compiles and validates the knowledge base in dir.
// A compile failure is returned as *LoadError. Validation errors are
// returned alongside the unvalidated knowledge base.
func loadKB(dir string) (*ir.KnowledgeBase, []compiler.ValidationError, error) {
	kb, err := compiler.LoadKB(dir)
	if err != nil {
		return nil, nil, toLoadError(err)
	}
	if errs := compiler.ValidateKB(kb); len(errs) > 0 {
		return kb, errs, nil
	}
	return kb, nil, nil
}

// asLoadError returns err as a *LoadError, converting it if needed.
func asLoadError(err error) *LoadError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr
	}
	return toLoadError(err)
}

func toLoadError(err error) *LoadError {
	var compileErr *compiler.CompileError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
	case errors.As(err, &compileErr):
		return &LoadError{Code: ErrCodeCompile, Message: compileErr.Field + ": " + compileErr.Message, Pos: compileErr.Pos}
	default:
		return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
}

// kbCache loads each knowledge-base directory once per command.
type kbCache map[string]*ir.KnowledgeBase

func (c kbCache) load(dir string) (*ir.KnowledgeBase, error) {
	if kb, ok := c[dir]; ok {
		return kb, nil
	}
	kb, verrs, err := loadKB(dir)
	if err != nil {
		return nil, err
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("knowledge base %s: %w", dir, verrs[0])
	}
	c[dir] = kb
	return kb, nil
}

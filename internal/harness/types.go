package harness

import "github.com/roach88/tactline/internal/ir"

// TactOutcome records what one scenario step produced.
type TactOutcome struct {
	Step int `json:"step"`

	// Tact is the processed tact, or -1 when the step failed.
	Tact      int            `json:"tact"`
	Signified map[string]any `json:"signified,omitempty"`

	// Error is the runtime error code of a failed step.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	Tacts  []TactOutcome `json:"tacts"`
	Errors []string      `json:"errors,omitempty"`

	// Timeline is the final timeline.
	Timeline ir.TimelineSnapshot `json:"timeline"`

	// Deterministic reports whether replaying the recorded tact log
	// reproduced every result hash.
	Deterministic bool `json:"deterministic"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Tacts:  []TactOutcome{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

package engine

import (
	"fmt"

	"github.com/roach88/tactline/internal/ir"
)

// TactInput is one working-memory update applied before a tact.
type TactInput struct {
	Items       []ir.WMItem `json:"items" yaml:"items"`
	ClearBefore bool        `json:"clear_before,omitempty" yaml:"clear_before,omitempty"`
}

// Step applies inputs in order and then processes one tact.
func (s *Solver) Step(inputs ...TactInput) (*ir.TactResult, error) {
	for _, in := range inputs {
		if err := s.UpdateWM(in.Items, in.ClearBefore); err != nil {
			return nil, err
		}
	}
	return s.ProcessTact()
}

// Drive runs one tact per input and returns every tact result. It stops at
// the first error, returning the results committed so far.
func Drive(s *Solver, inputs []TactInput) ([]*ir.TactResult, error) {
	results := make([]*ir.TactResult, 0, len(inputs))
	for i, in := range inputs {
		res, err := s.Step(in)
		if err != nil {
			return results, fmt.Errorf("input %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// RecordedTact is one tact of a recorded session: the updates applied
// since the previous tact and the hash of the result it produced.
type RecordedTact struct {
	Tact       int
	Inputs     []TactInput
	ResultHash string
}

// ReplayMismatch is a tact whose replayed result differs from the record.
type ReplayMismatch struct {
	Tact int    `json:"tact"`
	Want string `json:"want"`
	Got  string `json:"got"`
}

// ReplayReport summarises a replay.
type ReplayReport struct {
	Tacts      int
	Mismatches []ReplayMismatch
}

// Deterministic reports whether every replayed tact matched its record.
func (r *ReplayReport) Deterministic() bool {
	return len(r.Mismatches) == 0
}

// Replay re-executes a recorded session on a fresh solver and compares
// each tact's result hash with the recorded one.
//
// Solving is a pure function of the knowledge base and the inputs, so a
// mismatch means the knowledge base changed or evaluation is not
// deterministic.
func Replay(kb *ir.KnowledgeBase, recorded []RecordedTact, opts ...Option) (*ReplayReport, error) {
	s, err := New(kb, opts...)
	if err != nil {
		return nil, err
	}
	report := &ReplayReport{}
	for _, rec := range recorded {
		res, err := s.Step(rec.Inputs...)
		if err != nil {
			return report, fmt.Errorf("replay tact %d: %w", rec.Tact, err)
		}
		if res.Tact != rec.Tact {
			return report, fmt.Errorf("replay produced tact %d, record has tact %d", res.Tact, rec.Tact)
		}
		got, err := ir.TactResultHash(res)
		if err != nil {
			return report, err
		}
		if got != rec.ResultHash {
			report.Mismatches = append(report.Mismatches, ReplayMismatch{Tact: rec.Tact, Want: rec.ResultHash, Got: got})
		}
		report.Tacts++
	}
	return report, nil
}

package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/tactline/internal/engine"
	"github.com/roach88/tactline/internal/ir"
	"github.com/roach88/tactline/internal/testutil"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// scenarioInputs is the reference interval/event scenario, one input per tact.
func scenarioInputs() []engine.TactInput {
	return []engine.TactInput{
		{Items: testutil.Items("sensor.attr2", 4, "sensor.attr1", 2)},
		{Items: testutil.Items("sensor.attr2", 1)},
		{Items: testutil.Items("sensor.attr1", 6)},
		{Items: testutil.Items("sensor.attr2", 3, "sensor.attr1", 0)},
		{Items: testutil.Items("sensor.attr1", 6)},
	}
}

// recordScenario runs the scenario on a fresh solver and logs every tact
// under the given session.
func recordScenario(t *testing.T, s *Store, kb *ir.KnowledgeBase, sessionID string) []*ir.TactResult {
	t.Helper()
	ctx := t.Context()

	if err := s.CreateSession(ctx, Session{ID: sessionID, KBHash: ir.MustKBHash(kb), KBSource: "testdata"}); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	solver, err := engine.New(kb)
	if err != nil {
		t.Fatalf("engine.New() failed: %v", err)
	}
	var results []*ir.TactResult
	for _, in := range scenarioInputs() {
		res, err := solver.Step(in)
		if err != nil {
			t.Fatalf("Step() failed: %v", err)
		}
		if err := s.WriteTact(ctx, sessionID, 0, []engine.TactInput{in}, res); err != nil {
			t.Fatalf("WriteTact() failed: %v", err)
		}
		results = append(results, res)
	}
	return results
}

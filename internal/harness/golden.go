package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tactline/internal/ir"
)

// Snapshot is the golden-file form of a scenario run: what each tact
// signified plus the final timeline.
type Snapshot struct {
	ScenarioName string
	Tacts        []TactOutcome
	Timeline     ir.TimelineSnapshot
}

// toCanonicalMap keeps only the fields that are stable across runs.
// Failed steps appear with their step index and error code.
func (s *Snapshot) toCanonicalMap() map[string]any {
	tacts := make([]any, len(s.Tacts))
	for i, o := range s.Tacts {
		if o.Error != "" {
			tacts[i] = map[string]any{"step": o.Step, "error": o.Error}
			continue
		}
		signified := o.Signified
		if signified == nil {
			signified = map[string]any{}
		}
		tacts[i] = map[string]any{"tact": o.Tact, "signified": signified}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"tacts":         tacts,
		"timeline":      s.Timeline,
	}
}

// MarshalSnapshot renders a result as canonical JSON.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snap := Snapshot{ScenarioName: name, Tacts: result.Tacts, Timeline: result.Timeline}
	return ir.MarshalCanonical(snap.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	data, err := MarshalSnapshot(name, result)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

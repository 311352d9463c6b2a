package cli

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tactline/internal/testutil"
)

// runRecorded drives the IntervalEvent inputs into a database and returns
// the database path. The session is named "sess-1".
func runRecorded(t *testing.T, format string) (db, kbDir, out string) {
	t.Helper()
	dir := t.TempDir()
	kbDir = testutil.WriteKBDir(t, testutil.IntervalEventCUE)
	db = filepath.Join(dir, "tactline.db")

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: format},
		Inputs:      writeFile(t, dir, "inputs.yaml", scenarioInputs),
		Database:    db,
		IDGenerator: testutil.NewSequentialIDGenerator("sess"),
	}
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetContext(t.Context())

	require.NoError(t, runInputs(opts, kbDir, cmd))
	return db, kbDir, buf.String()
}

func TestRun_Text(t *testing.T) {
	_, _, out := runRecorded(t, "text")

	assert.Equal(t, "Session sess-1\n"+
		"tact 0: R1.condition=null R2.condition.left=null R2.condition.right.left=0\n"+
		"tact 1: R1.condition=null R2.condition.left=null R2.condition.right.left=0\n"+
		"tact 2: R1.condition=false R2.condition.left=false R2.condition.right.left=1\n"+
		"tact 3: R1.condition=false R2.condition.left=false R2.condition.right.left=1\n"+
		"tact 4: R1.condition=false R2.condition.left=true R2.condition.right.left=2\n", out)
}

func TestRun_JSON(t *testing.T) {
	_, _, out := runRecorded(t, "json")

	var result struct {
		SessionID string `json:"session_id"`
		Tacts     []struct {
			Tact      int            `json:"tact"`
			Signified map[string]any `json:"signified"`
		} `json:"tacts"`
	}
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "sess-1", result.SessionID)
	require.Len(t, result.Tacts, 5)
	assert.Equal(t, true, result.Tacts[4].Signified["R2.condition.left"])
}

func TestRun_WithoutDatabase(t *testing.T) {
	dir := t.TempDir()
	kbDir := testutil.WriteKBDir(t, testutil.IntervalEventCUE)
	inputs := writeFile(t, dir, "inputs.yaml", scenarioInputs)

	out, err := execute(t, "run", kbDir, "--inputs", inputs)
	require.NoError(t, err)
	assert.Contains(t, out, "tact 4: R1.condition=false R2.condition.left=true")
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	kbDir := testutil.WriteKBDir(t, testutil.IntervalEventCUE)

	tests := []struct {
		name     string
		kb       string
		inputs   string
		exitCode int
		wantOut  string
	}{
		{
			name:     "missing inputs file",
			kb:       kbDir,
			inputs:   filepath.Join(dir, "missing.yaml"),
			exitCode: ExitCommandError,
			wantOut:  "Error [E009]",
		},
		{
			name:     "unknown input field",
			kb:       kbDir,
			inputs:   writeFile(t, dir, "typo.yaml", "- itemz: []\n"),
			exitCode: ExitCommandError,
			wantOut:  "Error [E009]",
		},
		{
			name:     "invalid knowledge base",
			kb:       testutil.WriteKBDir(t, undefinedIntervalCUE),
			inputs:   writeFile(t, dir, "empty.yaml", "[]\n"),
			exitCode: ExitCommandError,
			wantOut:  "E114",
		},
		{
			name:     "rejected value",
			kb:       kbDir,
			inputs:   writeFile(t, dir, "bad.yaml", "- items:\n    - {ref: sensor.attr1, value: hot}\n"),
			exitCode: ExitFailure,
			wantOut:  "Error [INVALID_VALUE]: input 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "run", tt.kb, "--inputs", tt.inputs)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestTrace_Text(t *testing.T) {
	db, _, _ := runRecorded(t, "json")

	out, err := execute(t, "trace", "--db", db, "--session", "sess-1")
	require.NoError(t, err)

	assert.Contains(t, out, "Session sess-1, epoch 0\n")
	assert.Contains(t, out, "[0] sensor.attr2=4 sensor.attr1=2\n    R1.condition=null")
	assert.Contains(t, out, "[4] sensor.attr1=6\n    R1.condition=false R2.condition.left=true R2.condition.right.left=2\n")
	assert.Contains(t, out, "  [1] I[1,3]\n")
	assert.Contains(t, out, "  [4] E@4\n")
	assert.Contains(t, out, "5 tact(s), 1 interval(s) (0 still open), 2 event(s)")
}

func TestTrace_JSON(t *testing.T) {
	db, _, _ := runRecorded(t, "json")

	out, err := execute(t, "trace", "--db", db, "--session", "sess-1", "--format", "json")
	require.NoError(t, err)

	var result TraceResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "sess-1", result.SessionID)
	assert.Len(t, result.Tacts, 5)
	assert.Len(t, result.Timeline.Tacts, 5)
	assert.Equal(t, TraceStats{Tacts: 5, Intervals: 1, Events: 2}, result.Stats)
	require.Len(t, result.Tacts[0].Inputs, 1)
	assert.Len(t, result.Tacts[0].Inputs[0].Items, 2)
}

func TestTrace_UnknownSession(t *testing.T) {
	db, _, _ := runRecorded(t, "json")

	out, err := execute(t, "trace", "--db", db, "--session", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E008]: session nope")
}

func TestTrace_Where(t *testing.T) {
	db, _, _ := runRecorded(t, "json")

	out, err := execute(t, "trace", "--db", db, "--session", "sess-1",
		"--where", "R1.condition=false,tact=0..3", "--format", "json")
	require.NoError(t, err)

	var result TraceResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "R1.condition=false,tact=0..3", result.Filter)
	require.Len(t, result.Tacts, 2)
	assert.Equal(t, 2, result.Tacts[0].Tact)
	assert.Equal(t, 3, result.Tacts[1].Tact)
	assert.Equal(t, 2, result.Stats.Tacts)
	assert.Len(t, result.Timeline.Tacts, 5)
}

func TestTrace_WhereText(t *testing.T) {
	db, _, _ := runRecorded(t, "json")

	out, err := execute(t, "trace", "--db", db, "--session", "sess-1", "--where", "R2.condition.left=true")
	require.NoError(t, err)
	assert.Contains(t, out, "Filter: R2.condition.left=true\n")
	assert.Contains(t, out, "[4] sensor.attr1=6")
	assert.NotContains(t, out, "[0] sensor.attr2=4")
	assert.Contains(t, out, "1 tact(s), 1 interval(s)")
}

func TestTrace_WhereInvalid(t *testing.T) {
	db, _, _ := runRecorded(t, "json")

	out, err := execute(t, "trace", "--db", db, "--session", "sess-1", "--where", "tact=x")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E009]: --where: term 1: tact: invalid number")
}

func TestReplay_Deterministic(t *testing.T) {
	db, _, _ := runRecorded(t, "json")

	out, err := execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ sess-1 (epoch 0): 5 tact(s) deterministic")
	assert.Contains(t, out, "All 1 session(s) deterministic")
}

func TestReplay_JSON(t *testing.T) {
	db, kbDir, _ := runRecorded(t, "json")

	out, err := execute(t, "replay", "--db", db, "--session", "sess-1", "--kb", kbDir, "--format", "json")
	require.NoError(t, err)

	var result ReplayResult
	decodeResponse(t, out, &result)
	assert.True(t, result.AllDeterministic)
	require.Len(t, result.Sessions, 1)
	assert.Equal(t, 5, result.Sessions[0].Tacts)
}

func TestReplay_DifferentKBFails(t *testing.T) {
	db, _, _ := runRecorded(t, "json")
	other := testutil.WriteKBDir(t, `package kb

world: sensor: {
	attr1: {type: "number"}
	attr2: {type: "number"}
}

event: E: occurs: {op: "gt", left: {ref: "sensor.attr1"}, right: 5}
`)

	out, err := execute(t, "replay", "--db", db, "--kb", other)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match")
	assert.Contains(t, out, "Replay verification failed")
}

func TestReplay_EmptyDatabase(t *testing.T) {
	out, err := execute(t, "replay", "--db", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Equal(t, "No sessions found.\n", out)
}

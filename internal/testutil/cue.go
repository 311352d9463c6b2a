package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// IntervalEventCUE is IntervalEventKB in knowledge-base source form.
const IntervalEventCUE = `package kb

world: sensor: {
	attr1: {type: "number"}
	attr2: {type: "number"}
}

interval: I: {
	open:  {op: "lt", left: {ref: "sensor.attr2"}, right: 2}
	close: {op: "ge", left: {ref: "sensor.attr2"}, right: 2}
}

event: E: occurs: {op: "gt", left: {ref: "sensor.attr1"}, right: 4}

rule: R1: condition: {allen: "b", left: {event: "E"}, right: {interval: "I"}}

rule: R2: condition: {
	op:   "and"
	left: {allen: "a", left: {event: "E"}, right: {interval: "I"}}
	right: {op: "ge", left: {attr: "count", of: {event: "E"}}, right: 1}
}
`

// WriteKBDir writes src as kb.cue into a fresh temporary directory and
// returns the directory.
func WriteKBDir(t testing.TB, src string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "kb.cue"), []byte(src), 0o644); err != nil {
		t.Fatalf("write kb.cue: %v", err)
	}
	return dir
}

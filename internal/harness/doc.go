// Package harness runs scenario files against the temporal solver.
//
// A scenario names a knowledge-base directory and lists tact steps. Each
// step applies a working-memory update, processes one tact and may state
// what that tact should have signified, opened, closed or fired. Steps can
// also expect a runtime error code instead of a result.
//
// # EXECUTION
//
// Every run uses a fresh solver and an in-memory store. Committed tacts
// are written to the store's tact log exactly as a served session would
// write them, and after the last step the log is replayed on a second
// solver. A replayed result hash that differs from the recorded one fails
// the scenario.
//
// # GOLDEN FILES
//
// RunWithGolden renders the signified facts of every tact together with
// the final timeline as canonical JSON and compares it with
// testdata/golden/<name>.golden. Run the tests with -update to rewrite
// the files.
package harness

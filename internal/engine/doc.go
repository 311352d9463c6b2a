// Package engine implements the temporal solver.
//
// The solver owns a timeline and a working memory for one knowledge base
// and advances them one tact at a time.
//
// TACT PROCESSING:
//
// Each ProcessTact call:
// 1. Advances the tact clock (0 on the first call) and clears the facts
// signified by the previous tact
// 2. Evaluates every interval's open condition, opening an instance when
// true; an instance opened before this tact is closed when its close
// condition is true
// 3. Evaluates every event's occurrence condition, recording an instance
// when true
// 4. Walks every rule condition depth-first. Each Allen relation or
// attribute query found is evaluated and published under
// signifier.<rule>.condition[.left|.right|.operand...]; descent stops at
// the temporal node
//
// Definitions are evaluated in declaration order. Conditions use
// three-valued logic: an unknown condition neither opens, closes nor
// fires anything.
//
// FAILURE:
//
// Any error aborts the tact. The solver restores the state it had before
// the call, so the timeline never holds a half-applied tact. Nothing is
// repaired automatically: the caller fixes the knowledge base or resets.
//
// CONCURRENCY:
//
// A Solver is not safe for concurrent use and performs no locking.
// Distinct solvers share no mutable state.
package engine

// Package ir provides the shared intermediate representation for tactline.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the knowledge-base
// definitions, expression trees and snapshot shapes in one foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - Expression trees are closed tagged variants (sealed Expr interface);
//     evaluators dispatch with a type switch, never through methods on nodes
//   - Definitions (intervals, events, rules) are immutable once the
//     knowledge base has been validated
//   - Value content is one of nil, string, int64, float64, bool; nil is
//     "unknown" and propagates through every operator
//   - All JSON tags use snake_case
//   - Tacts are logical time only, never wall-clock timestamps
package ir

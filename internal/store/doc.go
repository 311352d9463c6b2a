// Package store provides SQLite-backed durable storage for solver sessions.
//
// The store is an append-only tact log:
//   - Sessions: identity, knowledge-base hash and source, reset epoch
//   - Tacts: per committed tact, the working-memory updates that preceded
//     it and the canonical result it produced
//
// # Epochs
//
// Resetting a solver starts a new epoch. Tacts are keyed by
// (session_id, epoch, tact), so earlier epochs stay readable and a replay
// always covers exactly one epoch from tact 0.
//
// # Deterministic Reads
//
// All queries order by (epoch, tact) or id COLLATE BINARY, never by wall
// time, so reads and replays are identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Results and inputs are stored as RFC 8785 canonical JSON via
// internal/ir, and result_hash is ir.TactResultHash of the result.
package store
